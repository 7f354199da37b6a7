// Copyright the wasivfs Authors.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build wasip1

package wasip1

import (
	"fmt"
	"os"
	"syscall"
	"unsafe"

	"github.com/wasivfs/wasivfs/overlay"
	"github.com/wasivfs/wasivfs/vfs"
)

// Every exported function here binds at the exact wasi_snapshot_preview1
// import names wasi-libc expects, so a packed module can be instantiated
// by any WASI host without it knowing wasi-vfs exists. Each trampoline:
// traces its raw arguments (a no-op unless WASI_VFS_TRACE is set),
// decodes them out of linear memory, asks GlobalState for the current
// Router (nil while packing, or before InitGlobalState has run), falls
// back to calling RealHost directly when there is none, otherwise
// dispatches through the router, writes its result back into linear
// memory, traces the outcome, and returns the WASI errno.

func unsafeBytes(ptr unsafe.Pointer, length int32) []byte {
	if length == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(ptr), int(length))
}

func decodeString(ptr unsafe.Pointer, length int32) string {
	return string(unsafeBytes(ptr, length))
}

// decodeIovecs reads a wasm32 __wasi_iovec_t/__wasi_ciovec_t array: count
// entries of {ptr u32, len u32} packed back-to-back.
func decodeIovecs(ptr unsafe.Pointer, count int32) [][]byte {
	type rawIovec struct {
		ptr uint32
		len uint32
	}
	raws := unsafe.Slice((*rawIovec)(ptr), int(count))
	out := make([][]byte, count)
	for i, raw := range raws {
		out[i] = unsafeBytes(unsafe.Pointer(uintptr(raw.ptr)), int32(raw.len))
	}
	return out
}

func currentRouter() (*overlay.Router, RealHost) {
	g := Global()
	host := RealHost{}
	if g == nil {
		return nil, host
	}
	return g.GetOrCreateRouter(host), host
}

func writeFdstat(ptr unsafe.Pointer, stat vfs.Fdstat) {
	raw := (*wasiFdstat)(ptr)
	raw.filetype = uint8(stat.Filetype)
	raw.flags = uint16(stat.Flags)
	raw.rightsBase = uint64(stat.RightsBase)
	raw.rightsInheriting = uint64(stat.RightsInheriting)
}

func writeFilestat(ptr unsafe.Pointer, stat vfs.Filestat) {
	raw := (*wasiFilestat)(ptr)
	raw.ino = stat.Ino
	raw.ftype = uint8(stat.Filetype)
	raw.size = stat.Size
}

//go:wasmexport fd_advise
func trampolineFdAdvise(fd int32, offset, length int64, advice int32) int32 {
	traceSyscall("fd_advise", fd, offset, length, advice)
	r, host := currentRouter()
	var errno syscall.Errno
	if r == nil {
		errno = host.FdAdvise(uint32(fd), uint64(offset), uint64(length), uint8(advice))
	} else {
		errno = r.FdAdvise(uint32(fd), uint64(offset), uint64(length), uint8(advice))
	}
	result := fromErrno(errno)
	traceResult("fd_advise", result)
	return int32(result)
}

//go:wasmexport fd_allocate
func trampolineFdAllocate(fd int32, offset, length int64) int32 {
	traceSyscall("fd_allocate", fd, offset, length)
	r, host := currentRouter()
	var errno syscall.Errno
	if r == nil {
		errno = host.FdAllocate(uint32(fd), uint64(offset), uint64(length))
	} else {
		errno = r.FdAllocate(uint32(fd), uint64(offset), uint64(length))
	}
	result := fromErrno(errno)
	traceResult("fd_allocate", result)
	return int32(result)
}

//go:wasmexport fd_close
func trampolineFdClose(fd int32) int32 {
	traceSyscall("fd_close", fd)
	r, host := currentRouter()
	var errno syscall.Errno
	if r == nil {
		errno = host.FdClose(uint32(fd))
	} else {
		errno = r.FdClose(uint32(fd))
	}
	result := fromErrno(errno)
	traceResult("fd_close", result)
	return int32(result)
}

//go:wasmexport fd_datasync
func trampolineFdDatasync(fd int32) int32 {
	traceSyscall("fd_datasync", fd)
	r, host := currentRouter()
	var errno syscall.Errno
	if r == nil {
		errno = host.FdDatasync(uint32(fd))
	} else {
		errno = r.FdDatasync(uint32(fd))
	}
	result := fromErrno(errno)
	traceResult("fd_datasync", result)
	return int32(result)
}

//go:wasmexport fd_fdstat_get
func trampolineFdFdstatGet(fd int32, resultPtr unsafe.Pointer) int32 {
	traceSyscall("fd_fdstat_get", fd)
	r, host := currentRouter()
	var stat vfs.Fdstat
	var errno syscall.Errno
	if r == nil {
		stat, errno = host.FdFdstatGet(uint32(fd))
	} else {
		stat, errno = r.FdFdstatGet(uint32(fd))
	}
	if errno == 0 {
		writeFdstat(resultPtr, stat)
	}
	result := fromErrno(errno)
	traceResult("fd_fdstat_get", result)
	return int32(result)
}

//go:wasmexport fd_fdstat_set_flags
func trampolineFdFdstatSetFlags(fd int32, flags int32) int32 {
	traceSyscall("fd_fdstat_set_flags", fd, flags)
	r, host := currentRouter()
	var errno syscall.Errno
	if r == nil {
		errno = host.FdFdstatSetFlags(uint32(fd), uint32(flags))
	} else {
		errno = r.FdFdstatSetFlags(uint32(fd), uint32(flags))
	}
	result := fromErrno(errno)
	traceResult("fd_fdstat_set_flags", result)
	return int32(result)
}

//go:wasmexport fd_fdstat_set_rights
func trampolineFdFdstatSetRights(fd int32, base, inheriting int64) int32 {
	traceSyscall("fd_fdstat_set_rights", fd, base, inheriting)
	r, host := currentRouter()
	var errno syscall.Errno
	if r == nil {
		errno = host.FdFdstatSetRights(uint32(fd), vfs.Rights(base), vfs.Rights(inheriting))
	} else {
		errno = r.FdFdstatSetRights(uint32(fd), vfs.Rights(base), vfs.Rights(inheriting))
	}
	result := fromErrno(errno)
	traceResult("fd_fdstat_set_rights", result)
	return int32(result)
}

//go:wasmexport fd_filestat_get
func trampolineFdFilestatGet(fd int32, resultPtr unsafe.Pointer) int32 {
	traceSyscall("fd_filestat_get", fd)
	r, host := currentRouter()
	var stat vfs.Filestat
	var errno syscall.Errno
	if r == nil {
		stat, errno = host.FdFilestatGet(uint32(fd))
	} else {
		stat, errno = r.FdFilestatGet(uint32(fd))
	}
	if errno == 0 {
		writeFilestat(resultPtr, stat)
	}
	result := fromErrno(errno)
	traceResult("fd_filestat_get", result)
	return int32(result)
}

//go:wasmexport fd_filestat_set_size
func trampolineFdFilestatSetSize(fd int32, size int64) int32 {
	traceSyscall("fd_filestat_set_size", fd, size)
	r, host := currentRouter()
	var errno syscall.Errno
	if r == nil {
		errno = host.FdFilestatSetSize(uint32(fd), uint64(size))
	} else {
		errno = r.FdFilestatSetSize(uint32(fd), uint64(size))
	}
	result := fromErrno(errno)
	traceResult("fd_filestat_set_size", result)
	return int32(result)
}

//go:wasmexport fd_filestat_set_times
func trampolineFdFilestatSetTimes(fd int32, atim, mtim int64, fstFlags int32) int32 {
	traceSyscall("fd_filestat_set_times", fd, atim, mtim, fstFlags)
	r, host := currentRouter()
	var errno syscall.Errno
	if r == nil {
		errno = host.FdFilestatSetTimes(uint32(fd), uint64(atim), uint64(mtim), uint16(fstFlags))
	} else {
		errno = r.FdFilestatSetTimes(uint32(fd), uint64(atim), uint64(mtim), uint16(fstFlags))
	}
	result := fromErrno(errno)
	traceResult("fd_filestat_set_times", result)
	return int32(result)
}

//go:wasmexport fd_pread
func trampolineFdPread(fd int32, iovsPtr unsafe.Pointer, iovsLen int32, offset int64, resultPtr unsafe.Pointer) int32 {
	traceSyscall("fd_pread", fd, iovsLen, offset)
	iovs := decodeIovecs(iovsPtr, iovsLen)
	r, host := currentRouter()
	var n uint32
	var errno syscall.Errno
	if r == nil {
		n, errno = host.FdPread(uint32(fd), iovs, uint64(offset))
	} else {
		n, errno = r.FdPread(uint32(fd), iovs, uint64(offset))
	}
	*(*uint32)(resultPtr) = n
	result := fromErrno(errno)
	traceResult("fd_pread", result)
	return int32(result)
}

//go:wasmexport fd_prestat_get
func trampolineFdPrestatGet(fd int32, resultPtr unsafe.Pointer) int32 {
	traceSyscall("fd_prestat_get", fd)
	r, host := currentRouter()
	var stat overlay.Prestat
	var errno syscall.Errno
	if r == nil {
		stat, errno = host.FdPrestatGet(uint32(fd))
	} else {
		stat, errno = r.FdPrestatGet(uint32(fd))
	}
	if errno == 0 {
		raw := (*wasiPrestat)(resultPtr)
		if stat.IsDir {
			raw.tag = 0
		} else {
			raw.tag = 1
		}
		raw.nameLen = stat.DirNameLen
	}
	result := fromErrno(errno)
	traceResult("fd_prestat_get", result)
	return int32(result)
}

//go:wasmexport fd_prestat_dir_name
func trampolineFdPrestatDirName(fd int32, pathPtr unsafe.Pointer, pathLen int32) int32 {
	traceSyscall("fd_prestat_dir_name", fd, pathLen)
	buf := unsafeBytes(pathPtr, pathLen)
	r, host := currentRouter()
	var errno syscall.Errno
	if r == nil {
		errno = host.FdPrestatDirName(uint32(fd), buf)
	} else {
		errno = r.FdPrestatDirName(uint32(fd), buf)
	}
	result := fromErrno(errno)
	traceResult("fd_prestat_dir_name", result)
	return int32(result)
}

//go:wasmexport fd_pwrite
func trampolineFdPwrite(fd int32, iovsPtr unsafe.Pointer, iovsLen int32, offset int64, resultPtr unsafe.Pointer) int32 {
	traceSyscall("fd_pwrite", fd, iovsLen, offset)
	iovs := decodeIovecs(iovsPtr, iovsLen)
	r, host := currentRouter()
	var n uint32
	var errno syscall.Errno
	if r == nil {
		n, errno = host.FdPwrite(uint32(fd), iovs, uint64(offset))
	} else {
		n, errno = r.FdPwrite(uint32(fd), iovs, uint64(offset))
	}
	*(*uint32)(resultPtr) = n
	result := fromErrno(errno)
	traceResult("fd_pwrite", result)
	return int32(result)
}

//go:wasmexport fd_read
func trampolineFdRead(fd int32, iovsPtr unsafe.Pointer, iovsLen int32, resultPtr unsafe.Pointer) int32 {
	traceSyscall("fd_read", fd, iovsLen)
	iovs := decodeIovecs(iovsPtr, iovsLen)
	r, host := currentRouter()
	var n uint32
	var errno syscall.Errno
	if r == nil {
		n, errno = host.FdRead(uint32(fd), iovs)
	} else {
		n, errno = r.FdRead(uint32(fd), iovs)
	}
	*(*uint32)(resultPtr) = n
	result := fromErrno(errno)
	traceResult("fd_read", result)
	return int32(result)
}

//go:wasmexport fd_readdir
func trampolineFdReaddir(fd int32, bufPtr unsafe.Pointer, bufLen int32, cookie int64, resultPtr unsafe.Pointer) int32 {
	traceSyscall("fd_readdir", fd, bufLen, cookie)
	buf := unsafeBytes(bufPtr, bufLen)
	r, host := currentRouter()
	var n uint32
	var errno syscall.Errno
	if r == nil {
		n, errno = host.FdReaddir(uint32(fd), buf, uint64(cookie))
	} else {
		n, errno = r.FdReaddir(uint32(fd), buf, uint64(cookie))
	}
	*(*uint32)(resultPtr) = n
	result := fromErrno(errno)
	traceResult("fd_readdir", result)
	return int32(result)
}

//go:wasmexport fd_renumber
func trampolineFdRenumber(fd, to int32) int32 {
	traceSyscall("fd_renumber", fd, to)
	r, host := currentRouter()
	var errno syscall.Errno
	if r == nil {
		errno = host.FdRenumber(uint32(fd), uint32(to))
	} else {
		errno = r.FdRenumber(uint32(fd), uint32(to))
	}
	result := fromErrno(errno)
	traceResult("fd_renumber", result)
	return int32(result)
}

//go:wasmexport fd_seek
func trampolineFdSeek(fd int32, offset int64, whence int32, resultPtr unsafe.Pointer) int32 {
	traceSyscall("fd_seek", fd, offset, whence)
	r, host := currentRouter()
	var n uint64
	var errno syscall.Errno
	if r == nil {
		n, errno = host.FdSeek(uint32(fd), offset, int8(whence))
	} else {
		n, errno = r.FdSeek(uint32(fd), offset, int8(whence))
	}
	*(*uint64)(resultPtr) = n
	result := fromErrno(errno)
	traceResult("fd_seek", result)
	return int32(result)
}

//go:wasmexport fd_sync
func trampolineFdSync(fd int32) int32 {
	traceSyscall("fd_sync", fd)
	r, host := currentRouter()
	var errno syscall.Errno
	if r == nil {
		errno = host.FdSync(uint32(fd))
	} else {
		errno = r.FdSync(uint32(fd))
	}
	result := fromErrno(errno)
	traceResult("fd_sync", result)
	return int32(result)
}

//go:wasmexport fd_tell
func trampolineFdTell(fd int32, resultPtr unsafe.Pointer) int32 {
	traceSyscall("fd_tell", fd)
	r, host := currentRouter()
	var n uint64
	var errno syscall.Errno
	if r == nil {
		n, errno = host.FdTell(uint32(fd))
	} else {
		n, errno = r.FdTell(uint32(fd))
	}
	*(*uint64)(resultPtr) = n
	result := fromErrno(errno)
	traceResult("fd_tell", result)
	return int32(result)
}

//go:wasmexport fd_write
func trampolineFdWrite(fd int32, iovsPtr unsafe.Pointer, iovsLen int32, resultPtr unsafe.Pointer) int32 {
	traceSyscall("fd_write", fd, iovsLen)
	iovs := decodeIovecs(iovsPtr, iovsLen)
	r, host := currentRouter()
	var n uint32
	var errno syscall.Errno
	if r == nil {
		n, errno = host.FdWrite(uint32(fd), iovs)
	} else {
		n, errno = r.FdWrite(uint32(fd), iovs)
	}
	*(*uint32)(resultPtr) = n
	result := fromErrno(errno)
	traceResult("fd_write", result)
	return int32(result)
}

//go:wasmexport path_create_directory
func trampolinePathCreateDirectory(fd int32, pathPtr unsafe.Pointer, pathLen int32) int32 {
	traceSyscall("path_create_directory", fd, pathLen)
	path := decodeString(pathPtr, pathLen)
	r, host := currentRouter()
	var errno syscall.Errno
	if r == nil {
		errno = host.PathCreateDirectory(uint32(fd), path)
	} else {
		errno = r.PathCreateDirectory(uint32(fd), path)
	}
	result := fromErrno(errno)
	traceResult("path_create_directory", result)
	return int32(result)
}

//go:wasmexport path_filestat_get
func trampolinePathFilestatGet(fd int32, flags int32, pathPtr unsafe.Pointer, pathLen int32, resultPtr unsafe.Pointer) int32 {
	traceSyscall("path_filestat_get", fd, flags, pathLen)
	path := decodeString(pathPtr, pathLen)
	r, host := currentRouter()
	var stat vfs.Filestat
	var errno syscall.Errno
	if r == nil {
		stat, errno = host.PathFilestatGet(uint32(fd), uint32(flags), path)
	} else {
		stat, errno = r.PathFilestatGet(uint32(fd), uint32(flags), path)
	}
	if errno == 0 {
		writeFilestat(resultPtr, stat)
	}
	result := fromErrno(errno)
	traceResult("path_filestat_get", result)
	return int32(result)
}

//go:wasmexport path_filestat_set_times
func trampolinePathFilestatSetTimes(fd int32, flags int32, pathPtr unsafe.Pointer, pathLen int32, atim, mtim int64, fstFlags int32) int32 {
	traceSyscall("path_filestat_set_times", fd, flags, pathLen, atim, mtim, fstFlags)
	path := decodeString(pathPtr, pathLen)
	r, host := currentRouter()
	var errno syscall.Errno
	if r == nil {
		errno = host.PathFilestatSetTimes(uint32(fd), uint32(flags), path, uint64(atim), uint64(mtim), uint16(fstFlags))
	} else {
		errno = r.PathFilestatSetTimes(uint32(fd), uint32(flags), path, uint64(atim), uint64(mtim), uint16(fstFlags))
	}
	result := fromErrno(errno)
	traceResult("path_filestat_set_times", result)
	return int32(result)
}

//go:wasmexport path_link
func trampolinePathLink(oldFD int32, oldFlags int32, oldPathPtr unsafe.Pointer, oldPathLen int32, newFD int32, newPathPtr unsafe.Pointer, newPathLen int32) int32 {
	traceSyscall("path_link", oldFD, oldFlags, oldPathLen, newFD, newPathLen)
	oldPath := decodeString(oldPathPtr, oldPathLen)
	newPath := decodeString(newPathPtr, newPathLen)
	r, host := currentRouter()
	var errno syscall.Errno
	if r == nil {
		errno = host.PathLink(uint32(oldFD), uint32(oldFlags), oldPath, uint32(newFD), newPath)
	} else {
		errno = r.PathLink(uint32(oldFD), uint32(oldFlags), oldPath, uint32(newFD), newPath)
	}
	result := fromErrno(errno)
	traceResult("path_link", result)
	return int32(result)
}

//go:wasmexport path_open
func trampolinePathOpen(fd int32, dirflags int32, pathPtr unsafe.Pointer, pathLen int32, oflags int32, rightsBase, rightsInheriting int64, fdflags int32, resultPtr unsafe.Pointer) int32 {
	traceSyscall("path_open", fd, dirflags, pathLen, oflags, fdflags)
	path := decodeString(pathPtr, pathLen)
	r, host := currentRouter()
	var newFD uint32
	var errno syscall.Errno
	if r == nil {
		newFD, errno = host.PathOpen(uint32(fd), uint32(dirflags), path, uint32(oflags), vfs.Rights(rightsBase), vfs.Rights(rightsInheriting), uint32(fdflags))
	} else {
		newFD, errno = r.PathOpen(uint32(fd), uint32(dirflags), path, uint32(oflags), vfs.Rights(rightsBase), vfs.Rights(rightsInheriting), uint32(fdflags))
	}
	*(*uint32)(resultPtr) = newFD
	result := fromErrno(errno)
	traceResult("path_open", result)
	return int32(result)
}

//go:wasmexport path_readlink
func trampolinePathReadlink(fd int32, pathPtr unsafe.Pointer, pathLen int32, bufPtr unsafe.Pointer, bufLen int32, resultPtr unsafe.Pointer) int32 {
	traceSyscall("path_readlink", fd, pathLen, bufLen)
	path := decodeString(pathPtr, pathLen)
	buf := unsafeBytes(bufPtr, bufLen)
	r, host := currentRouter()
	var n uint32
	var errno syscall.Errno
	if r == nil {
		n, errno = host.PathReadlink(uint32(fd), path, buf)
	} else {
		n, errno = r.PathReadlink(uint32(fd), path, buf)
	}
	*(*uint32)(resultPtr) = n
	result := fromErrno(errno)
	traceResult("path_readlink", result)
	return int32(result)
}

//go:wasmexport path_remove_directory
func trampolinePathRemoveDirectory(fd int32, pathPtr unsafe.Pointer, pathLen int32) int32 {
	traceSyscall("path_remove_directory", fd, pathLen)
	path := decodeString(pathPtr, pathLen)
	r, host := currentRouter()
	var errno syscall.Errno
	if r == nil {
		errno = host.PathRemoveDirectory(uint32(fd), path)
	} else {
		errno = r.PathRemoveDirectory(uint32(fd), path)
	}
	result := fromErrno(errno)
	traceResult("path_remove_directory", result)
	return int32(result)
}

//go:wasmexport path_rename
func trampolinePathRename(fd int32, oldPathPtr unsafe.Pointer, oldPathLen int32, newFD int32, newPathPtr unsafe.Pointer, newPathLen int32) int32 {
	traceSyscall("path_rename", fd, oldPathLen, newFD, newPathLen)
	oldPath := decodeString(oldPathPtr, oldPathLen)
	newPath := decodeString(newPathPtr, newPathLen)
	r, host := currentRouter()
	var errno syscall.Errno
	if r == nil {
		errno = host.PathRename(uint32(fd), oldPath, uint32(newFD), newPath)
	} else {
		errno = r.PathRename(uint32(fd), oldPath, uint32(newFD), newPath)
	}
	result := fromErrno(errno)
	traceResult("path_rename", result)
	return int32(result)
}

//go:wasmexport path_symlink
func trampolinePathSymlink(oldPathPtr unsafe.Pointer, oldPathLen int32, fd int32, newPathPtr unsafe.Pointer, newPathLen int32) int32 {
	traceSyscall("path_symlink", oldPathLen, fd, newPathLen)
	oldPath := decodeString(oldPathPtr, oldPathLen)
	newPath := decodeString(newPathPtr, newPathLen)
	r, host := currentRouter()
	var errno syscall.Errno
	if r == nil {
		errno = host.PathSymlink(oldPath, uint32(fd), newPath)
	} else {
		errno = r.PathSymlink(oldPath, uint32(fd), newPath)
	}
	result := fromErrno(errno)
	traceResult("path_symlink", result)
	return int32(result)
}

//go:wasmexport path_unlink_file
func trampolinePathUnlinkFile(fd int32, pathPtr unsafe.Pointer, pathLen int32) int32 {
	traceSyscall("path_unlink_file", fd, pathLen)
	path := decodeString(pathPtr, pathLen)
	r, host := currentRouter()
	var errno syscall.Errno
	if r == nil {
		errno = host.PathUnlinkFile(uint32(fd), path)
	} else {
		errno = r.PathUnlinkFile(uint32(fd), path)
	}
	result := fromErrno(errno)
	traceResult("path_unlink_file", result)
	return int32(result)
}

// poll_oneoff never had a meaningful virtual-side implementation and the
// router reports ENOTSUP unconditionally; there is no host fallback
// worth taking since the call never names a specific descriptor this
// module manages exclusively.
//
//go:wasmexport poll_oneoff
func trampolinePollOneoff(inPtr, outPtr unsafe.Pointer, nsubscriptions int32, resultPtr unsafe.Pointer) int32 {
	traceSyscall("poll_oneoff", nsubscriptions)
	traceResult("poll_oneoff", ENOTSUP)
	return int32(ENOTSUP)
}

//go:wasmexport __internal_wasi_vfs_rt_init
func trampolineRtInit() {
	// The real init wiring (constructing the initial EmbeddedFS, or
	// restoring one a wasm-snapshot step baked into linear memory)
	// happens in generated glue emitted alongside this binary; this hook
	// exists so that glue has a stable, non-mangled name to call into.
}

//go:wasmexport __internal_wasi_vfs_pack_fs
func trampolinePackFs() {
	g := Global()
	if g == nil {
		return
	}
	if err := g.PackFS(RealHost{}); err != nil {
		fmt.Fprintf(os.Stderr, "wasi-vfs: pack_fs: %v\n", err)
		os.Exit(1)
	}
}
