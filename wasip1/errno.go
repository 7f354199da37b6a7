// Copyright the wasivfs Authors.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package wasip1 is the wasm32-wasip1 guest boundary: the real
// go:wasmimport bindings to the host's unintercepted WASI preview-1
// surface, the go:wasmexport trampolines the host calls into, the
// process-wide state machine that lazily upgrades from a bare embedded
// file system into a full overlay router, and the WASI_VFS_TRACE
// diagnostic hook.
package wasip1

import "syscall"

// Errno is the WASI preview-1 __wasi_errno_t wire value: a little-endian
// u16 at the ABI boundary, widened to uint32 here only so a bare zero
// value reads as ESUCCESS without an explicit cast at every call site.
type Errno uint32

// The canonical WASI preview-1 errno ordinal assignment. Values and order
// are part of the wire format and must never be renumbered.
const (
	ESUCCESS Errno = iota
	E2BIG
	EACCES
	EADDRINUSE
	EADDRNOTAVAIL
	EAFNOSUPPORT
	EAGAIN
	EALREADY
	EBADF
	EBADMSG
	EBUSY
	ECANCELED
	ECHILD
	ECONNABORTED
	ECONNREFUSED
	ECONNRESET
	EDEADLK
	EDESTADDRREQ
	EDOM
	EDQUOT
	EEXIST
	EFAULT
	EFBIG
	EHOSTUNREACH
	EIDRM
	EILSEQ
	EINPROGRESS
	EINTR
	EINVAL
	EIO
	EISCONN
	EISDIR
	ELOOP
	EMFILE
	EMLINK
	EMSGSIZE
	EMULTIHOP
	ENAMETOOLONG
	ENETDOWN
	ENETRESET
	ENETUNREACH
	ENFILE
	ENOBUFS
	ENODEV
	ENOENT
	ENOEXEC
	ENOLCK
	ENOLINK
	ENOMEM
	ENOMSG
	ENOPROTOOPT
	ENOSPC
	ENOSYS
	ENOTCONN
	ENOTDIR
	ENOTEMPTY
	ENOTRECOVERABLE
	ENOTSOCK
	ENOTSUP
	ENOTTY
	ENXIO
	EOVERFLOW
	EOWNERDEAD
	EPERM
	EPIPE
	EPROTO
	EPROTONOSUPPORT
	EPROTOTYPE
	ERANGE
	EROFS
	ESPIPE
	ESRCH
	ESTALE
	ETIMEDOUT
	ETXTBSY
	EXDEV
	ENOTCAPABLE
)

// fromErrno maps the handful of syscall.Errno values this implementation
// ever produces to their WASI wire ordinal. Anything unrecognized folds
// to EIO rather than panicking, since a trampoline must always return
// something to the guest.
func fromErrno(errno syscall.Errno) Errno {
	switch errno {
	case 0:
		return ESUCCESS
	case syscall.EBADF:
		return EBADF
	case syscall.ENOENT:
		return ENOENT
	case syscall.ENOTDIR:
		return ENOTDIR
	case syscall.EISDIR:
		return EISDIR
	case syscall.EINVAL:
		return EINVAL
	case syscall.ENOTSUP:
		return ENOTSUP
	case syscall.EEXIST:
		return EEXIST
	case syscall.EIO:
		return EIO
	case syscall.ENOSYS:
		return ENOSYS
	case syscall.EPERM:
		return EPERM
	case syscall.E2BIG:
		return E2BIG
	default:
		return EIO
	}
}

// toErrno is the reverse mapping, used by RealHost to translate the raw
// WASI errno number a host import returns into a syscall.Errno the rest
// of this module understands.
func toErrno(e Errno) syscall.Errno {
	switch e {
	case ESUCCESS:
		return 0
	case EBADF:
		return syscall.EBADF
	case ENOENT:
		return syscall.ENOENT
	case ENOTDIR:
		return syscall.ENOTDIR
	case EISDIR:
		return syscall.EISDIR
	case EINVAL:
		return syscall.EINVAL
	case ENOTSUP:
		return syscall.ENOTSUP
	case EEXIST:
		return syscall.EEXIST
	case ENOSYS:
		return syscall.ENOSYS
	case EPERM:
		return syscall.EPERM
	case E2BIG:
		return syscall.E2BIG
	default:
		return syscall.EIO
	}
}
