// Copyright the wasivfs Authors.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package overlay

import (
	"syscall"

	"github.com/wasivfs/wasivfs/vfs"
)

// Prestat is the preopen descriptor of a host (or virtual) prestat
// result: a directory tag and the mount path's byte length.
type Prestat struct {
	IsDir      bool
	DirNameLen uint32
}

// HostWASI is the real, un-intercepted WASI preview-1 file-system surface.
// A Passthrough-backed call on the Router always forwards to exactly one
// of these methods, with the backing host descriptor in place of the user
// descriptor and the other arguments untouched.
//
// Two concrete implementations exist: the wasip1 package's real host
// import wrappers (built only under GOOS=wasip1, since only there does
// go:wasmimport resolve to the actual runtime), and a host-testable
// implementation backed by real os.File operations, used by the pack
// package's tests (this package's own tests use a small fake). Both
// satisfy this same interface, so Router's dispatch logic is identical
// in both environments.
type HostWASI interface {
	FdAdvise(fd uint32, offset, length uint64, advice uint8) syscall.Errno
	FdAllocate(fd uint32, offset, length uint64) syscall.Errno
	FdClose(fd uint32) syscall.Errno
	FdDatasync(fd uint32) syscall.Errno
	FdFdstatGet(fd uint32) (vfs.Fdstat, syscall.Errno)
	FdFdstatSetFlags(fd uint32, flags uint32) syscall.Errno
	FdFdstatSetRights(fd uint32, base, inheriting vfs.Rights) syscall.Errno
	FdFilestatGet(fd uint32) (vfs.Filestat, syscall.Errno)
	FdFilestatSetSize(fd uint32, size uint64) syscall.Errno
	FdFilestatSetTimes(fd uint32, atim, mtim uint64, fstFlags uint16) syscall.Errno
	FdPread(fd uint32, iovs [][]byte, offset uint64) (uint32, syscall.Errno)
	FdPrestatGet(fd uint32) (Prestat, syscall.Errno)
	FdPrestatDirName(fd uint32, buf []byte) syscall.Errno
	FdPwrite(fd uint32, iovs [][]byte, offset uint64) (uint32, syscall.Errno)
	FdRead(fd uint32, iovs [][]byte) (uint32, syscall.Errno)
	FdReaddir(fd uint32, buf []byte, cookie uint64) (uint32, syscall.Errno)
	FdRenumber(fd, to uint32) syscall.Errno
	FdSeek(fd uint32, offset int64, whence int8) (uint64, syscall.Errno)
	FdSync(fd uint32) syscall.Errno
	FdTell(fd uint32) (uint64, syscall.Errno)
	FdWrite(fd uint32, iovs [][]byte) (uint32, syscall.Errno)
	PathCreateDirectory(fd uint32, path string) syscall.Errno
	PathFilestatGet(fd uint32, flags uint32, path string) (vfs.Filestat, syscall.Errno)
	PathFilestatSetTimes(fd uint32, flags uint32, path string, atim, mtim uint64, fstFlags uint16) syscall.Errno
	PathLink(oldFD uint32, oldFlags uint32, oldPath string, newFD uint32, newPath string) syscall.Errno
	PathOpen(fd uint32, dirflags uint32, path string, oflags uint32, rightsBase, rightsInheriting vfs.Rights, fdflags uint32) (uint32, syscall.Errno)
	PathReadlink(fd uint32, path string, buf []byte) (uint32, syscall.Errno)
	PathRemoveDirectory(fd uint32, path string) syscall.Errno
	PathRename(fd uint32, oldPath string, newFD uint32, newPath string) syscall.Errno
	PathSymlink(oldPath string, fd uint32, newPath string) syscall.Errno
	PathUnlinkFile(fd uint32, path string) syscall.Errno
}
