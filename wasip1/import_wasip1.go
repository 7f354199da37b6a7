// Copyright the wasivfs Authors.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build wasip1

package wasip1

import (
	"syscall"
	"unsafe"

	"github.com/wasivfs/wasivfs/overlay"
	"github.com/wasivfs/wasivfs/vfs"
)

// The raw WASI preview-1 host imports this module intercepts. Every
// function here is the exact ABI the guest's libc would otherwise have
// called directly; RealHost below is the only thing standing between a
// trampoline and these.

//go:wasmimport wasi_snapshot_preview1 fd_advise
func importFdAdvise(fd int32, offset, length int64, advice int32) int32

//go:wasmimport wasi_snapshot_preview1 fd_allocate
func importFdAllocate(fd int32, offset, length int64) int32

//go:wasmimport wasi_snapshot_preview1 fd_close
func importFdClose(fd int32) int32

//go:wasmimport wasi_snapshot_preview1 fd_datasync
func importFdDatasync(fd int32) int32

//go:wasmimport wasi_snapshot_preview1 fd_fdstat_get
func importFdFdstatGet(fd int32, resultPtr unsafe.Pointer) int32

//go:wasmimport wasi_snapshot_preview1 fd_fdstat_set_flags
func importFdFdstatSetFlags(fd int32, flags int32) int32

//go:wasmimport wasi_snapshot_preview1 fd_fdstat_set_rights
func importFdFdstatSetRights(fd int32, base, inheriting int64) int32

//go:wasmimport wasi_snapshot_preview1 fd_filestat_get
func importFdFilestatGet(fd int32, resultPtr unsafe.Pointer) int32

//go:wasmimport wasi_snapshot_preview1 fd_filestat_set_size
func importFdFilestatSetSize(fd int32, size int64) int32

//go:wasmimport wasi_snapshot_preview1 fd_filestat_set_times
func importFdFilestatSetTimes(fd int32, atim, mtim int64, fstFlags int32) int32

//go:wasmimport wasi_snapshot_preview1 fd_pread
func importFdPread(fd int32, iovsPtr unsafe.Pointer, iovsLen int32, offset int64, resultPtr unsafe.Pointer) int32

//go:wasmimport wasi_snapshot_preview1 fd_prestat_get
func importFdPrestatGet(fd int32, resultPtr unsafe.Pointer) int32

//go:wasmimport wasi_snapshot_preview1 fd_prestat_dir_name
func importFdPrestatDirName(fd int32, pathPtr unsafe.Pointer, pathLen int32) int32

//go:wasmimport wasi_snapshot_preview1 fd_pwrite
func importFdPwrite(fd int32, iovsPtr unsafe.Pointer, iovsLen int32, offset int64, resultPtr unsafe.Pointer) int32

//go:wasmimport wasi_snapshot_preview1 fd_read
func importFdRead(fd int32, iovsPtr unsafe.Pointer, iovsLen int32, resultPtr unsafe.Pointer) int32

//go:wasmimport wasi_snapshot_preview1 fd_readdir
func importFdReaddir(fd int32, bufPtr unsafe.Pointer, bufLen int32, cookie int64, resultPtr unsafe.Pointer) int32

//go:wasmimport wasi_snapshot_preview1 fd_renumber
func importFdRenumber(fd, to int32) int32

//go:wasmimport wasi_snapshot_preview1 fd_seek
func importFdSeek(fd int32, offset int64, whence int32, resultPtr unsafe.Pointer) int32

//go:wasmimport wasi_snapshot_preview1 fd_sync
func importFdSync(fd int32) int32

//go:wasmimport wasi_snapshot_preview1 fd_tell
func importFdTell(fd int32, resultPtr unsafe.Pointer) int32

//go:wasmimport wasi_snapshot_preview1 fd_write
func importFdWrite(fd int32, iovsPtr unsafe.Pointer, iovsLen int32, resultPtr unsafe.Pointer) int32

//go:wasmimport wasi_snapshot_preview1 path_create_directory
func importPathCreateDirectory(fd int32, pathPtr unsafe.Pointer, pathLen int32) int32

//go:wasmimport wasi_snapshot_preview1 path_filestat_get
func importPathFilestatGet(fd int32, flags int32, pathPtr unsafe.Pointer, pathLen int32, resultPtr unsafe.Pointer) int32

//go:wasmimport wasi_snapshot_preview1 path_filestat_set_times
func importPathFilestatSetTimes(fd int32, flags int32, pathPtr unsafe.Pointer, pathLen int32, atim, mtim int64, fstFlags int32) int32

//go:wasmimport wasi_snapshot_preview1 path_link
func importPathLink(oldFD int32, oldFlags int32, oldPathPtr unsafe.Pointer, oldPathLen int32, newFD int32, newPathPtr unsafe.Pointer, newPathLen int32) int32

//go:wasmimport wasi_snapshot_preview1 path_open
func importPathOpen(fd int32, dirflags int32, pathPtr unsafe.Pointer, pathLen int32, oflags int32, rightsBase, rightsInheriting int64, fdflags int32, resultPtr unsafe.Pointer) int32

//go:wasmimport wasi_snapshot_preview1 path_readlink
func importPathReadlink(fd int32, pathPtr unsafe.Pointer, pathLen int32, bufPtr unsafe.Pointer, bufLen int32, resultPtr unsafe.Pointer) int32

//go:wasmimport wasi_snapshot_preview1 path_remove_directory
func importPathRemoveDirectory(fd int32, pathPtr unsafe.Pointer, pathLen int32) int32

//go:wasmimport wasi_snapshot_preview1 path_rename
func importPathRename(fd int32, oldPathPtr unsafe.Pointer, oldPathLen int32, newFD int32, newPathPtr unsafe.Pointer, newPathLen int32) int32

//go:wasmimport wasi_snapshot_preview1 path_symlink
func importPathSymlink(oldPathPtr unsafe.Pointer, oldPathLen int32, fd int32, newPathPtr unsafe.Pointer, newPathLen int32) int32

//go:wasmimport wasi_snapshot_preview1 path_unlink_file
func importPathUnlinkFile(fd int32, pathPtr unsafe.Pointer, pathLen int32) int32

// wasiFdstat and wasiFilestat mirror the host ABI's packed struct layout
// exactly, so importFdFdstatGet/importFdFilestatGet can write straight
// into them.
type wasiFdstat struct {
	filetype         uint8
	_                [1]byte
	flags            uint16
	_                [4]byte
	rightsBase       uint64
	rightsInheriting uint64
}

type wasiFilestat struct {
	dev     uint64
	ino     uint64
	ftype   uint8
	_       [7]byte
	nlink   uint64
	size    uint64
	atim    uint64
	mtim    uint64
	ctim    uint64
}

type wasiPrestat struct {
	tag      uint8
	_        [3]byte
	nameLen  uint32
}

// RealHost implements overlay.HostWASI by forwarding every call straight
// through to the host's real WASI preview-1 imports, translating
// [][]byte iovecs into the packed iovec_t arrays the ABI expects and raw
// errno ints into syscall.Errno.
type RealHost struct{}

func packIovecs(iovs [][]byte) []wasiIovec {
	packed := make([]wasiIovec, len(iovs))
	for i, iov := range iovs {
		packed[i] = wasiIovec{ptr: uint32(uintptr(ptrOf(iov))), length: uint32(len(iov))}
	}
	return packed
}

// wasiIovec is the wasm32 __wasi_iovec_t: {ptr u32, len u32}.
type wasiIovec struct {
	ptr    uint32
	length uint32
}

func ptrOf(b []byte) unsafe.Pointer {
	if len(b) == 0 {
		return unsafe.Pointer(nil)
	}
	return unsafe.Pointer(&b[0])
}

func ptrOfIovecs(v []wasiIovec) unsafe.Pointer {
	if len(v) == 0 {
		return unsafe.Pointer(nil)
	}
	return unsafe.Pointer(&v[0])
}

func (RealHost) FdAdvise(fd uint32, offset, length uint64, advice uint8) syscall.Errno {
	return toErrno(Errno(importFdAdvise(int32(fd), int64(offset), int64(length), int32(advice))))
}

func (RealHost) FdAllocate(fd uint32, offset, length uint64) syscall.Errno {
	return toErrno(Errno(importFdAllocate(int32(fd), int64(offset), int64(length))))
}

func (RealHost) FdClose(fd uint32) syscall.Errno {
	return toErrno(Errno(importFdClose(int32(fd))))
}

func (RealHost) FdDatasync(fd uint32) syscall.Errno {
	return toErrno(Errno(importFdDatasync(int32(fd))))
}

func (RealHost) FdFdstatGet(fd uint32) (vfs.Fdstat, syscall.Errno) {
	var raw wasiFdstat
	ret := importFdFdstatGet(int32(fd), unsafe.Pointer(&raw))
	if ret != 0 {
		return vfs.Fdstat{}, toErrno(Errno(ret))
	}
	return vfs.Fdstat{
		Filetype:         vfs.Filetype(raw.filetype),
		Flags:            uint32(raw.flags),
		RightsBase:       vfs.Rights(raw.rightsBase),
		RightsInheriting: vfs.Rights(raw.rightsInheriting),
	}, 0
}

func (RealHost) FdFdstatSetFlags(fd uint32, flags uint32) syscall.Errno {
	return toErrno(Errno(importFdFdstatSetFlags(int32(fd), int32(flags))))
}

func (RealHost) FdFdstatSetRights(fd uint32, base, inheriting vfs.Rights) syscall.Errno {
	return toErrno(Errno(importFdFdstatSetRights(int32(fd), int64(base), int64(inheriting))))
}

func (RealHost) FdFilestatGet(fd uint32) (vfs.Filestat, syscall.Errno) {
	var raw wasiFilestat
	ret := importFdFilestatGet(int32(fd), unsafe.Pointer(&raw))
	if ret != 0 {
		return vfs.Filestat{}, toErrno(Errno(ret))
	}
	return vfs.Filestat{Ino: raw.ino, Filetype: vfs.Filetype(raw.ftype), Size: raw.size}, 0
}

func (RealHost) FdFilestatSetSize(fd uint32, size uint64) syscall.Errno {
	return toErrno(Errno(importFdFilestatSetSize(int32(fd), int64(size))))
}

func (RealHost) FdFilestatSetTimes(fd uint32, atim, mtim uint64, fstFlags uint16) syscall.Errno {
	return toErrno(Errno(importFdFilestatSetTimes(int32(fd), int64(atim), int64(mtim), int32(fstFlags))))
}

func (RealHost) FdPread(fd uint32, iovs [][]byte, offset uint64) (uint32, syscall.Errno) {
	packed := packIovecs(iovs)
	var n uint32
	ret := importFdPread(int32(fd), ptrOfIovecs(packed), int32(len(packed)), int64(offset), unsafe.Pointer(&n))
	return n, toErrno(Errno(ret))
}

func (RealHost) FdPrestatGet(fd uint32) (overlay.Prestat, syscall.Errno) {
	var raw wasiPrestat
	ret := importFdPrestatGet(int32(fd), unsafe.Pointer(&raw))
	if ret != 0 {
		return overlay.Prestat{}, toErrno(Errno(ret))
	}
	return overlay.Prestat{IsDir: raw.tag == 0, DirNameLen: raw.nameLen}, 0
}

func (RealHost) FdPrestatDirName(fd uint32, buf []byte) syscall.Errno {
	return toErrno(Errno(importFdPrestatDirName(int32(fd), ptrOf(buf), int32(len(buf)))))
}

func (RealHost) FdPwrite(fd uint32, iovs [][]byte, offset uint64) (uint32, syscall.Errno) {
	packed := packIovecs(iovs)
	var n uint32
	ret := importFdPwrite(int32(fd), ptrOfIovecs(packed), int32(len(packed)), int64(offset), unsafe.Pointer(&n))
	return n, toErrno(Errno(ret))
}

func (RealHost) FdRead(fd uint32, iovs [][]byte) (uint32, syscall.Errno) {
	packed := packIovecs(iovs)
	var n uint32
	ret := importFdRead(int32(fd), ptrOfIovecs(packed), int32(len(packed)), unsafe.Pointer(&n))
	return n, toErrno(Errno(ret))
}

func (RealHost) FdReaddir(fd uint32, buf []byte, cookie uint64) (uint32, syscall.Errno) {
	var n uint32
	ret := importFdReaddir(int32(fd), ptrOf(buf), int32(len(buf)), int64(cookie), unsafe.Pointer(&n))
	return n, toErrno(Errno(ret))
}

func (RealHost) FdRenumber(fd, to uint32) syscall.Errno {
	return toErrno(Errno(importFdRenumber(int32(fd), int32(to))))
}

func (RealHost) FdSeek(fd uint32, offset int64, whence int8) (uint64, syscall.Errno) {
	var n uint64
	ret := importFdSeek(int32(fd), offset, int32(whence), unsafe.Pointer(&n))
	return n, toErrno(Errno(ret))
}

func (RealHost) FdSync(fd uint32) syscall.Errno {
	return toErrno(Errno(importFdSync(int32(fd))))
}

func (RealHost) FdTell(fd uint32) (uint64, syscall.Errno) {
	var n uint64
	ret := importFdTell(int32(fd), unsafe.Pointer(&n))
	return n, toErrno(Errno(ret))
}

func (RealHost) FdWrite(fd uint32, iovs [][]byte) (uint32, syscall.Errno) {
	packed := packIovecs(iovs)
	var n uint32
	ret := importFdWrite(int32(fd), ptrOfIovecs(packed), int32(len(packed)), unsafe.Pointer(&n))
	return n, toErrno(Errno(ret))
}

func (RealHost) PathCreateDirectory(fd uint32, path string) syscall.Errno {
	b := []byte(path)
	return toErrno(Errno(importPathCreateDirectory(int32(fd), ptrOf(b), int32(len(b)))))
}

func (RealHost) PathFilestatGet(fd uint32, flags uint32, path string) (vfs.Filestat, syscall.Errno) {
	b := []byte(path)
	var raw wasiFilestat
	ret := importPathFilestatGet(int32(fd), int32(flags), ptrOf(b), int32(len(b)), unsafe.Pointer(&raw))
	if ret != 0 {
		return vfs.Filestat{}, toErrno(Errno(ret))
	}
	return vfs.Filestat{Ino: raw.ino, Filetype: vfs.Filetype(raw.ftype), Size: raw.size}, 0
}

func (RealHost) PathFilestatSetTimes(fd uint32, flags uint32, path string, atim, mtim uint64, fstFlags uint16) syscall.Errno {
	b := []byte(path)
	return toErrno(Errno(importPathFilestatSetTimes(int32(fd), int32(flags), ptrOf(b), int32(len(b)), int64(atim), int64(mtim), int32(fstFlags))))
}

func (RealHost) PathLink(oldFD uint32, oldFlags uint32, oldPath string, newFD uint32, newPath string) syscall.Errno {
	oldB, newB := []byte(oldPath), []byte(newPath)
	return toErrno(Errno(importPathLink(int32(oldFD), int32(oldFlags), ptrOf(oldB), int32(len(oldB)), int32(newFD), ptrOf(newB), int32(len(newB)))))
}

func (RealHost) PathOpen(fd uint32, dirflags uint32, path string, oflags uint32, rightsBase, rightsInheriting vfs.Rights, fdflags uint32) (uint32, syscall.Errno) {
	b := []byte(path)
	var newFD uint32
	ret := importPathOpen(int32(fd), int32(dirflags), ptrOf(b), int32(len(b)), int32(oflags), int64(rightsBase), int64(rightsInheriting), int32(fdflags), unsafe.Pointer(&newFD))
	return newFD, toErrno(Errno(ret))
}

func (RealHost) PathReadlink(fd uint32, path string, buf []byte) (uint32, syscall.Errno) {
	pb := []byte(path)
	var n uint32
	ret := importPathReadlink(int32(fd), ptrOf(pb), int32(len(pb)), ptrOf(buf), int32(len(buf)), unsafe.Pointer(&n))
	return n, toErrno(Errno(ret))
}

func (RealHost) PathRemoveDirectory(fd uint32, path string) syscall.Errno {
	b := []byte(path)
	return toErrno(Errno(importPathRemoveDirectory(int32(fd), ptrOf(b), int32(len(b)))))
}

func (RealHost) PathRename(fd uint32, oldPath string, newFD uint32, newPath string) syscall.Errno {
	oldB, newB := []byte(oldPath), []byte(newPath)
	return toErrno(Errno(importPathRename(int32(fd), ptrOf(oldB), int32(len(oldB)), int32(newFD), ptrOf(newB), int32(len(newB)))))
}

func (RealHost) PathSymlink(oldPath string, fd uint32, newPath string) syscall.Errno {
	oldB, newB := []byte(oldPath), []byte(newPath)
	return toErrno(Errno(importPathSymlink(ptrOf(oldB), int32(len(oldB)), int32(fd), ptrOf(newB), int32(len(newB)))))
}

func (RealHost) PathUnlinkFile(fd uint32, path string) syscall.Errno {
	b := []byte(path)
	return toErrno(Errno(importPathUnlinkFile(int32(fd), ptrOf(b), int32(len(b)))))
}

var _ overlay.HostWASI = RealHost{}
