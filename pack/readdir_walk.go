// Copyright the wasivfs Authors.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pack

import (
	"encoding/binary"
	"fmt"

	"github.com/wasivfs/wasivfs/storage"
	"github.com/wasivfs/wasivfs/vfs"
)

// direntDefaultBufferSize is the initial fd_readdir scratch buffer size;
// it doubles whenever a single entry doesn't fit in an otherwise-empty
// buffer, so arbitrarily long file names are still handled, just with a
// bigger re-read.
const direntDefaultBufferSize = 4096

// direntSize is sizeof(__wasi_dirent_t): d_next/d_ino (u64 each),
// d_namlen (u32), d_type (u8), padded to 24 bytes.
const direntSize = 24

var byteOrder = binary.LittleEndian

type decodedDirent struct {
	next   uint64
	ino    uint64
	namlen uint32
	dtype  vfs.Filetype
}

func decodeDirent(b []byte) decodedDirent {
	return decodedDirent{
		next:   byteOrder.Uint64(b[0:8]),
		ino:    byteOrder.Uint64(b[8:16]),
		namlen: byteOrder.Uint32(b[16:20]),
		dtype:  vfs.Filetype(b[20]),
	}
}

// walkDir mirrors the original packer's directory walk exactly: a
// self-resizing buffer is re-filled via fd_readdir at the current
// cookie; a dirent or name that doesn't fit in what's left of the
// buffer causes a re-read at the same cookie (growing the buffer first
// if that happened with an otherwise-empty buffer, to make progress on
// an entry whose name alone exceeds the current capacity).
func (p *Packer) walkDir(prefix string, fd uint32, root storage.Ref) error {
	var (
		offset, capacity int
		cookie           uint64
		buffer           = make([]byte, direntDefaultBufferSize)
	)

	for {
		if offset == capacity {
			n, errno := p.Host.FdReaddir(fd, buffer, cookie)
			if errno != 0 {
				return fmt.Errorf("fd_readdir: errno %v", errno)
			}
			capacity = int(n)
			offset = 0
			if capacity == 0 {
				break
			}
		}

		data := buffer[offset:capacity]
		if len(data) < direntSize {
			offset = capacity
			continue
		}

		dirent := decodeDirent(data[:direntSize])
		rest := data[direntSize:]
		if len(rest) < int(dirent.namlen) {
			if offset == 0 {
				buffer = append(buffer, make([]byte, len(buffer))...)
			}
			offset = capacity
			continue
		}

		cookie = dirent.next
		offset += direntSize + int(dirent.namlen)
		name := string(rest[:dirent.namlen])
		if name == "." || name == ".." {
			continue
		}

		path := prefix + "/" + name
		const rights = vfs.ReadOnlyRights // read, advise, open, list, stat

		switch dirent.dtype {
		case vfs.FiletypeDirectory:
			childFD, errno := p.Host.PathOpen(fd, lookupflagsSymlinkFollow, name, oflagsDirectory, rights, rights, 0)
			if errno != 0 {
				return fmt.Errorf("path_open(%q): errno %v", path, errno)
			}
			if err := p.visitDir(path, root); err != nil {
				return err
			}
			if err := p.walkDir(path, childFD, root); err != nil {
				return err
			}
			if errno := p.Host.FdClose(childFD); errno != 0 {
				return fmt.Errorf("fd_close(%q): errno %v", path, errno)
			}
		case vfs.FiletypeRegularFile:
			childFD, errno := p.Host.PathOpen(fd, lookupflagsSymlinkFollow, name, 0, rights, rights, 0)
			if errno != 0 {
				return fmt.Errorf("path_open(%q): errno %v", path, errno)
			}
			if err := p.visitFile(path, childFD, root); err != nil {
				return err
			}
			if errno := p.Host.FdClose(childFD); errno != 0 {
				return fmt.Errorf("fd_close(%q): errno %v", path, errno)
			}
		}
	}
	return nil
}
