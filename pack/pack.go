// Copyright the wasivfs Authors.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pack implements the one-shot host-directory walk that turns a
// freshly preopened real directory tree into entries inside an
// EmbeddedFS, the step that runs once at "wasi-vfs pack" time (either
// directly in-process on wasm, gated by __WASI_VFS_PACKING, or driven
// from the host CLI through a wazero-instantiated guest).
package pack

import (
	"fmt"
	"syscall"

	"github.com/wasivfs/wasivfs/overlay"
	"github.com/wasivfs/wasivfs/storage"
	"github.com/wasivfs/wasivfs/vfs"
)

// lookupflagsSymlinkFollow and the rights mask walkDir opens children
// with mirror the constants the original packer requested: enough to
// read, stat, open, and list, nothing more.
const (
	lookupflagsSymlinkFollow = 1
	oflagsDirectory          = 1 << 1
)

const maxPackableFileSize = 1<<32 - 1

// Packer walks every descriptor discovered to be a preopened real
// directory and mirrors its contents into Embedded.
type Packer struct {
	Host     overlay.HostWASI
	Embedded *vfs.EmbeddedFS
	Verbose  bool

	logf    func(format string, args ...interface{})
	records []preopenRecord
}

// NewPacker constructs a Packer. logf receives per-file diagnostics when
// Verbose is true; a nil logf is treated as a no-op (cmd/wasivfs wires
// its own logger, the wasip1 guest build wires stderr).
func NewPacker(embedded *vfs.EmbeddedFS, host overlay.HostWASI, verbose bool, logf func(string, ...interface{})) *Packer {
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	return &Packer{Host: host, Embedded: embedded, Verbose: verbose, logf: logf}
}

func (p *Packer) verbosef(format string, args ...interface{}) {
	if p.Verbose {
		p.logf(format, args...)
	}
}

type preopenRecord struct {
	realFD uint32
	root   storage.Ref
}

// ScanPreopenedDirs probes host descriptors starting at 3 until
// FdPrestatGet reports EBADF, registers every directory prestat it finds
// as a new EmbeddedFS preopen, and returns the virtual descriptors the
// embedded preopens were issued at.
func (p *Packer) ScanPreopenedDirs() ([]vfs.VFD, error) {
	var vfds []vfs.VFD
	var records []preopenRecord
	for fd := uint32(3); ; fd++ {
		stat, errno := p.Host.FdPrestatGet(fd)
		if errno == syscall.EBADF {
			break
		}
		if errno != 0 {
			return nil, fmt.Errorf("fd_prestat_get(%d): errno %v", fd, errno)
		}
		if !stat.IsDir {
			continue
		}
		buf := make([]byte, stat.DirNameLen)
		if errno := p.Host.FdPrestatDirName(fd, buf); errno != 0 {
			return nil, fmt.Errorf("fd_prestat_dir_name(%d): errno %v", fd, errno)
		}
		vfd, root := p.Embedded.PreopenDir(string(buf))
		vfds = append(vfds, vfd)
		records = append(records, preopenRecord{realFD: fd, root: root})
	}
	p.records = records
	return vfds, nil
}

// Pack walks every directory ScanPreopenedDirs registered and mirrors
// its full contents into Embedded. Must be called after
// ScanPreopenedDirs.
func (p *Packer) Pack() error {
	for _, rec := range p.records {
		if err := p.walkDir("", rec.realFD, rec.root); err != nil {
			return err
		}
	}
	return nil
}

func (p *Packer) visitDir(path string, root storage.Ref) error {
	if errno := p.Embedded.CreateDir(root, path); errno != 0 {
		return fmt.Errorf("create_dir(%q): errno %v", path, errno)
	}
	return nil
}

func (p *Packer) visitFile(path string, fd uint32, root storage.Ref) error {
	stat, errno := p.Host.FdFilestatGet(fd)
	if errno != 0 {
		return fmt.Errorf("fd_filestat_get(%q): errno %v", path, errno)
	}
	if stat.Size >= maxPackableFileSize {
		p.verbosef("too large file: %s (size %d)\n", path, stat.Size)
		return nil
	}

	buf := make([]byte, stat.Size)
	var offset uint32
	for uint64(offset) < stat.Size {
		n, errno := p.Host.FdRead(fd, [][]byte{buf[offset:]})
		if errno != 0 {
			return fmt.Errorf("fd_read(%q): errno %v", path, errno)
		}
		if n == 0 {
			break
		}
		offset += n
	}

	p.verbosef("pack file: %s under node-id=%d (size %d)\n", path, root.Node.Ino(), len(buf))
	if errno := p.Embedded.CreateFile(root, path, buf); errno != 0 {
		return fmt.Errorf("create_file(%q): errno %v", path, errno)
	}
	return nil
}
