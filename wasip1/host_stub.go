// Copyright the wasivfs Authors.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !wasip1

package wasip1

import (
	"io"
	"os"
	"syscall"

	"github.com/wasivfs/wasivfs/overlay"
	"github.com/wasivfs/wasivfs/vfs"
)

// StubHost is a HostWASI implementation backed by real os.File operations
// on the host running the test, rather than wasm import calls to an
// actual WASI runtime. It exists so the router's Passthrough dispatch and
// the packer's directory walk can be exercised by `go test` on any
// platform, the same way the teacher's loopback file system delegates
// FUSE operations straight through to host syscalls instead of a fake in
// memory tree.
//
// StubHost only ever talks to directories explicitly registered with
// Preopen; PathOpen resolves relative to one of those roots, exactly as
// the real WASI preopen model requires.
type StubHost struct {
	files    map[uint32]*os.File
	preopens map[uint32]string
	next     uint32
}

// NewStubHost creates an empty StubHost with stdio wired to the real
// process's stdio streams.
func NewStubHost() *StubHost {
	h := &StubHost{
		files:    make(map[uint32]*os.File),
		preopens: make(map[uint32]string),
		next:     3,
	}
	h.files[0] = os.Stdin
	h.files[1] = os.Stdout
	h.files[2] = os.Stderr
	return h
}

// Preopen registers dir as a preopened directory and returns the host fd
// it was assigned, mirroring what a real wasm runtime would have set up
// before the guest's _start ran.
func (h *StubHost) Preopen(dir string) (uint32, error) {
	f, err := os.Open(dir)
	if err != nil {
		return 0, err
	}
	fd := h.next
	h.next++
	h.files[fd] = f
	h.preopens[fd] = dir
	return fd, nil
}

func (h *StubHost) file(fd uint32) (*os.File, syscall.Errno) {
	f, ok := h.files[fd]
	if !ok {
		return nil, syscall.EBADF
	}
	return f, 0
}

func filestatFromOS(fi os.FileInfo) vfs.Filestat {
	ft := vfs.FiletypeRegularFile
	if fi.IsDir() {
		ft = vfs.FiletypeDirectory
	}
	stat := vfs.Filestat{Filetype: ft, Size: uint64(fi.Size())}
	if sys, ok := fi.Sys().(*syscall.Stat_t); ok {
		stat.Ino = sys.Ino
	}
	return stat
}

func (h *StubHost) FdAdvise(fd uint32, offset, length uint64, advice uint8) syscall.Errno {
	return 0
}

func (h *StubHost) FdAllocate(fd uint32, offset, length uint64) syscall.Errno {
	return syscall.ENOSYS
}

func (h *StubHost) FdClose(fd uint32) syscall.Errno {
	f, errno := h.file(fd)
	if errno != 0 {
		return errno
	}
	if fd > 2 {
		f.Close()
	}
	delete(h.files, fd)
	delete(h.preopens, fd)
	return 0
}

func (h *StubHost) FdDatasync(fd uint32) syscall.Errno {
	f, errno := h.file(fd)
	if errno != 0 {
		return errno
	}
	if err := f.Sync(); err != nil {
		return syscall.EIO
	}
	return 0
}

func (h *StubHost) FdFdstatGet(fd uint32) (vfs.Fdstat, syscall.Errno) {
	f, errno := h.file(fd)
	if errno != 0 {
		return vfs.Fdstat{}, errno
	}
	fi, err := f.Stat()
	if err != nil {
		return vfs.Fdstat{}, syscall.EIO
	}
	stat := filestatFromOS(fi)
	return vfs.Fdstat{Filetype: stat.Filetype, RightsBase: vfs.ReadOnlyRights, RightsInheriting: vfs.ReadOnlyRights}, 0
}

func (h *StubHost) FdFdstatSetFlags(fd uint32, flags uint32) syscall.Errno { return 0 }

func (h *StubHost) FdFdstatSetRights(fd uint32, base, inheriting vfs.Rights) syscall.Errno {
	return 0
}

func (h *StubHost) FdFilestatGet(fd uint32) (vfs.Filestat, syscall.Errno) {
	f, errno := h.file(fd)
	if errno != 0 {
		return vfs.Filestat{}, errno
	}
	fi, err := f.Stat()
	if err != nil {
		return vfs.Filestat{}, syscall.EIO
	}
	return filestatFromOS(fi), 0
}

func (h *StubHost) FdFilestatSetSize(fd uint32, size uint64) syscall.Errno {
	f, errno := h.file(fd)
	if errno != 0 {
		return errno
	}
	if err := f.Truncate(int64(size)); err != nil {
		return syscall.EIO
	}
	return 0
}

func (h *StubHost) FdFilestatSetTimes(fd uint32, atim, mtim uint64, fstFlags uint16) syscall.Errno {
	return syscall.ENOSYS
}

func (h *StubHost) FdPread(fd uint32, iovs [][]byte, offset uint64) (uint32, syscall.Errno) {
	f, errno := h.file(fd)
	if errno != 0 {
		return 0, errno
	}
	var n uint32
	pos := int64(offset)
	for _, iov := range iovs {
		c, err := f.ReadAt(iov, pos)
		n += uint32(c)
		pos += int64(c)
		if err != nil {
			break
		}
		if c < len(iov) {
			break
		}
	}
	return n, 0
}

func (h *StubHost) FdPrestatGet(fd uint32) (overlay.Prestat, syscall.Errno) {
	dir, ok := h.preopens[fd]
	if !ok {
		return overlay.Prestat{}, syscall.EBADF
	}
	return overlay.Prestat{IsDir: true, DirNameLen: uint32(len(dir))}, 0
}

func (h *StubHost) FdPrestatDirName(fd uint32, buf []byte) syscall.Errno {
	dir, ok := h.preopens[fd]
	if !ok {
		return syscall.EBADF
	}
	copy(buf, dir)
	return 0
}

func (h *StubHost) FdPwrite(fd uint32, iovs [][]byte, offset uint64) (uint32, syscall.Errno) {
	f, errno := h.file(fd)
	if errno != 0 {
		return 0, errno
	}
	var n uint32
	pos := int64(offset)
	for _, iov := range iovs {
		c, err := f.WriteAt(iov, pos)
		n += uint32(c)
		pos += int64(c)
		if err != nil {
			return n, syscall.EIO
		}
	}
	return n, 0
}

func (h *StubHost) FdRead(fd uint32, iovs [][]byte) (uint32, syscall.Errno) {
	f, errno := h.file(fd)
	if errno != 0 {
		return 0, errno
	}
	var n uint32
	for _, iov := range iovs {
		c, err := f.Read(iov)
		n += uint32(c)
		if err != nil && err != io.EOF {
			return n, syscall.EIO
		}
		if c < len(iov) {
			break
		}
	}
	return n, 0
}

func (h *StubHost) FdReaddir(fd uint32, buf []byte, cookie uint64) (uint32, syscall.Errno) {
	f, errno := h.file(fd)
	if errno != 0 {
		return 0, errno
	}
	entries, err := f.ReadDir(0)
	if err != nil {
		return 0, syscall.EIO
	}
	bufLen := len(buf)
	var bufused int
	current := cookie
	if cookie > uint64(len(entries)) {
		entries = nil
	} else {
		entries = entries[cookie:]
	}
	for _, entry := range entries {
		current++
		info, err := entry.Info()
		if err != nil {
			return 0, syscall.EIO
		}
		stat := filestatFromOS(info)
		name := entry.Name()

		var tmp [24]byte
		byteOrder.PutUint64(tmp[0:8], current)
		byteOrder.PutUint64(tmp[8:16], stat.Ino)
		byteOrder.PutUint32(tmp[16:20], uint32(len(name)))
		tmp[20] = byte(stat.Filetype)

		direntCopyLen := len(tmp)
		if remaining := bufLen - bufused; remaining < direntCopyLen {
			direntCopyLen = remaining
		}
		copy(buf[bufused:bufused+direntCopyLen], tmp[:direntCopyLen])
		if direntCopyLen < len(tmp) {
			return uint32(bufLen), 0
		}
		bufused += direntCopyLen

		nameCopyLen := len(name)
		if remaining := bufLen - bufused; remaining < nameCopyLen {
			nameCopyLen = remaining
		}
		copy(buf[bufused:bufused+nameCopyLen], name[:nameCopyLen])
		if nameCopyLen < len(name) {
			return uint32(bufLen), 0
		}
		bufused += nameCopyLen
	}
	return uint32(bufused), 0
}

func (h *StubHost) FdRenumber(fd, to uint32) syscall.Errno {
	f, errno := h.file(fd)
	if errno != 0 {
		return errno
	}
	if old, ok := h.files[to]; ok && to > 2 {
		old.Close()
	}
	h.files[to] = f
	delete(h.files, fd)
	if dir, ok := h.preopens[fd]; ok {
		h.preopens[to] = dir
		delete(h.preopens, fd)
	}
	return 0
}

func (h *StubHost) FdSeek(fd uint32, offset int64, whence int8) (uint64, syscall.Errno) {
	f, errno := h.file(fd)
	if errno != 0 {
		return 0, errno
	}
	pos, err := f.Seek(offset, int(whence))
	if err != nil {
		return 0, syscall.EINVAL
	}
	return uint64(pos), 0
}

func (h *StubHost) FdSync(fd uint32) syscall.Errno {
	f, errno := h.file(fd)
	if errno != 0 {
		return errno
	}
	if err := f.Sync(); err != nil {
		return syscall.EIO
	}
	return 0
}

func (h *StubHost) FdTell(fd uint32) (uint64, syscall.Errno) {
	f, errno := h.file(fd)
	if errno != 0 {
		return 0, errno
	}
	pos, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, syscall.EINVAL
	}
	return uint64(pos), 0
}

func (h *StubHost) FdWrite(fd uint32, iovs [][]byte) (uint32, syscall.Errno) {
	f, errno := h.file(fd)
	if errno != 0 {
		return 0, errno
	}
	var n uint32
	for _, iov := range iovs {
		c, err := f.Write(iov)
		n += uint32(c)
		if err != nil {
			return n, syscall.EIO
		}
	}
	return n, 0
}

func (h *StubHost) resolve(fd uint32, path string) (string, syscall.Errno) {
	dir, ok := h.preopens[fd]
	if !ok {
		f, errno := h.file(fd)
		if errno != 0 {
			return "", errno
		}
		dir = f.Name()
	}
	return dir + "/" + path, 0
}

func (h *StubHost) PathCreateDirectory(fd uint32, path string) syscall.Errno {
	full, errno := h.resolve(fd, path)
	if errno != 0 {
		return errno
	}
	if err := os.Mkdir(full, 0o755); err != nil {
		return syscall.EIO
	}
	return 0
}

func (h *StubHost) PathFilestatGet(fd uint32, flags uint32, path string) (vfs.Filestat, syscall.Errno) {
	full, errno := h.resolve(fd, path)
	if errno != 0 {
		return vfs.Filestat{}, errno
	}
	fi, err := os.Stat(full)
	if err != nil {
		return vfs.Filestat{}, syscall.ENOENT
	}
	return filestatFromOS(fi), 0
}

func (h *StubHost) PathFilestatSetTimes(fd uint32, flags uint32, path string, atim, mtim uint64, fstFlags uint16) syscall.Errno {
	return syscall.ENOSYS
}

func (h *StubHost) PathLink(oldFD uint32, oldFlags uint32, oldPath string, newFD uint32, newPath string) syscall.Errno {
	oldFull, errno := h.resolve(oldFD, oldPath)
	if errno != 0 {
		return errno
	}
	newFull, errno := h.resolve(newFD, newPath)
	if errno != 0 {
		return errno
	}
	if err := os.Link(oldFull, newFull); err != nil {
		return syscall.EIO
	}
	return 0
}

func (h *StubHost) PathOpen(fd uint32, dirflags uint32, path string, oflags uint32, rightsBase, rightsInheriting vfs.Rights, fdflags uint32) (uint32, syscall.Errno) {
	full, errno := h.resolve(fd, path)
	if errno != 0 {
		return 0, errno
	}
	f, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, syscall.ENOENT
		}
		return 0, syscall.EIO
	}
	newFD := h.next
	h.next++
	h.files[newFD] = f
	return newFD, 0
}

func (h *StubHost) PathReadlink(fd uint32, path string, buf []byte) (uint32, syscall.Errno) {
	full, errno := h.resolve(fd, path)
	if errno != 0 {
		return 0, errno
	}
	target, err := os.Readlink(full)
	if err != nil {
		return 0, syscall.EINVAL
	}
	n := copy(buf, target)
	return uint32(n), 0
}

func (h *StubHost) PathRemoveDirectory(fd uint32, path string) syscall.Errno {
	full, errno := h.resolve(fd, path)
	if errno != 0 {
		return errno
	}
	if err := os.Remove(full); err != nil {
		return syscall.EIO
	}
	return 0
}

func (h *StubHost) PathRename(fd uint32, oldPath string, newFD uint32, newPath string) syscall.Errno {
	oldFull, errno := h.resolve(fd, oldPath)
	if errno != 0 {
		return errno
	}
	newFull, errno := h.resolve(newFD, newPath)
	if errno != 0 {
		return errno
	}
	if err := os.Rename(oldFull, newFull); err != nil {
		return syscall.EIO
	}
	return 0
}

func (h *StubHost) PathSymlink(oldPath string, fd uint32, newPath string) syscall.Errno {
	newFull, errno := h.resolve(fd, newPath)
	if errno != 0 {
		return errno
	}
	if err := os.Symlink(oldPath, newFull); err != nil {
		return syscall.EIO
	}
	return 0
}

func (h *StubHost) PathUnlinkFile(fd uint32, path string) syscall.Errno {
	full, errno := h.resolve(fd, path)
	if errno != 0 {
		return errno
	}
	if err := os.Remove(full); err != nil {
		return syscall.EIO
	}
	return 0
}

var _ overlay.HostWASI = (*StubHost)(nil)
