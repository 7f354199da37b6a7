// Copyright the wasivfs Authors.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package overlay

import (
	"encoding/binary"
	"syscall"

	"github.com/wasivfs/wasivfs/storage"
	"github.com/wasivfs/wasivfs/vfs"
)

// byteOrder is little-endian: every WASI preview-1 host wasivfs targets
// (wasm32, wasm64) is little-endian on the wire.
var byteOrder = binary.LittleEndian

// Whence mirrors the three WASI __wasi_whence_t values fd_seek accepts.
const (
	WhenceSet int8 = 0
	WhenceCur int8 = 1
	WhenceEnd int8 = 2
)

func computeNewOffset(base uint64, offset int64) (uint64, syscall.Errno) {
	if offset >= 0 {
		newOffset := base + uint64(offset)
		if newOffset < base {
			return 0, syscall.EINVAL
		}
		return newOffset, 0
	}
	neg := uint64(-offset)
	if neg <= base {
		return base - neg, 0
	}
	return 0, syscall.EINVAL
}

// FdRead reads into iovs from userFD, advancing its offset on the virtual
// side. Reading from a virtual directory is ERRNO_ISDIR.
func (r *Router) FdRead(userFD uint32, iovs [][]byte) (uint32, syscall.Errno) {
	b, errno := r.Backing(userFD)
	if errno != 0 {
		return 0, errno
	}
	if b.Kind == Passthrough {
		return r.Host.FdRead(b.HostFD, iovs)
	}

	node, errno := r.Embedded.Node(b.Vfd)
	if errno != 0 {
		return 0, errno
	}
	if node.Kind == storage.KindDir {
		return 0, syscall.EISDIR
	}
	entry, errno := r.Embedded.FdEntryMut(b.Vfd)
	if errno != 0 {
		return 0, errno
	}
	n := copyIntoIovs(iovs, node.Content, entry.Offset)
	entry.Offset += uint64(n)
	return n, 0
}

// FdPread is fd_read at an explicit offset; it never touches the
// descriptor's stored offset.
func (r *Router) FdPread(userFD uint32, iovs [][]byte, offset uint64) (uint32, syscall.Errno) {
	b, errno := r.Backing(userFD)
	if errno != 0 {
		return 0, errno
	}
	if b.Kind == Passthrough {
		return r.Host.FdPread(b.HostFD, iovs, offset)
	}

	node, errno := r.Embedded.Node(b.Vfd)
	if errno != 0 {
		return 0, errno
	}
	if node.Kind == storage.KindDir {
		return 0, syscall.EISDIR
	}
	return copyIntoIovs(iovs, node.Content, offset), 0
}

func copyIntoIovs(iovs [][]byte, content []byte, offset uint64) uint32 {
	var n uint32
	pos := offset
	for _, iov := range iovs {
		if pos >= uint64(len(content)) {
			break
		}
		remaining := content[pos:]
		c := copy(iov, remaining)
		pos += uint64(c)
		n += uint32(c)
		if c < len(iov) {
			break
		}
	}
	return n
}

// FdSeek repositions userFD's offset per whence, returning the new
// absolute offset. Seeking a virtual directory is ERRNO_INVAL.
func (r *Router) FdSeek(userFD uint32, offset int64, whence int8) (uint64, syscall.Errno) {
	b, errno := r.Backing(userFD)
	if errno != 0 {
		return 0, errno
	}
	if b.Kind == Passthrough {
		return r.Host.FdSeek(b.HostFD, offset, whence)
	}

	node, errno := r.Embedded.Node(b.Vfd)
	if errno != 0 {
		return 0, errno
	}
	if node.Kind == storage.KindDir {
		return 0, syscall.EINVAL
	}
	switch whence {
	case WhenceSet:
		if offset < 0 {
			return 0, syscall.EINVAL
		}
		entry, errno := r.Embedded.FdEntryMut(b.Vfd)
		if errno != 0 {
			return 0, errno
		}
		entry.Offset = uint64(offset)
		return entry.Offset, 0
	case WhenceCur:
		entry, errno := r.Embedded.FdEntryMut(b.Vfd)
		if errno != 0 {
			return 0, errno
		}
		newOffset, errno := computeNewOffset(entry.Offset, offset)
		if errno != 0 {
			return 0, errno
		}
		entry.Offset = newOffset
		return newOffset, 0
	case WhenceEnd:
		newOffset, errno := computeNewOffset(uint64(len(node.Content)), offset)
		if errno != 0 {
			return 0, errno
		}
		entry, errno := r.Embedded.FdEntryMut(b.Vfd)
		if errno != 0 {
			return 0, errno
		}
		entry.Offset = newOffset
		return newOffset, 0
	default:
		return 0, syscall.EINVAL
	}
}

// FdTell returns userFD's current offset. A virtual directory descriptor
// reports ERRNO_ISDIR rather than a meaningless offset, in line with
// fd_read (ISDIR) and fd_seek (INVAL) refusing directories, and to avoid
// silently handing callers a bogus cursor position.
func (r *Router) FdTell(userFD uint32) (uint64, syscall.Errno) {
	b, errno := r.Backing(userFD)
	if errno != 0 {
		return 0, errno
	}
	if b.Kind == Passthrough {
		return r.Host.FdTell(b.HostFD)
	}
	node, errno := r.Embedded.Node(b.Vfd)
	if errno != 0 {
		return 0, errno
	}
	if node.Kind == storage.KindDir {
		return 0, syscall.EISDIR
	}
	entry, errno := r.Embedded.FdEntry(b.Vfd)
	if errno != 0 {
		return 0, errno
	}
	return entry.Offset, 0
}

// FdClose closes userFD's underlying descriptor and retires the user
// descriptor slot.
func (r *Router) FdClose(userFD uint32) syscall.Errno {
	b, errno := r.Backing(userFD)
	if errno != 0 {
		return errno
	}
	if b.Kind == Passthrough {
		if errno := r.Host.FdClose(b.HostFD); errno != 0 {
			return errno
		}
		r.closeUserFD(userFD)
		return 0
	}
	if errno := r.Embedded.CloseFile(b.Vfd); errno != 0 {
		return errno
	}
	r.closeUserFD(userFD)
	return 0
}

// FdFdstatGet returns the fixed read-only rights mask and file type for a
// virtual descriptor, or forwards to the host.
func (r *Router) FdFdstatGet(userFD uint32) (vfs.Fdstat, syscall.Errno) {
	b, errno := r.Backing(userFD)
	if errno != 0 {
		return vfs.Fdstat{}, errno
	}
	if b.Kind == Passthrough {
		return r.Host.FdFdstatGet(b.HostFD)
	}
	return r.Embedded.FdStat(b.Vfd)
}

// FdFdstatSetFlags overwrites the flags field of a virtual descriptor's
// entry without validating the bits, matching the rest of this
// implementation's read-only posture: flags are advisory metadata the
// packed module never acts on.
func (r *Router) FdFdstatSetFlags(userFD uint32, flags uint32) syscall.Errno {
	b, errno := r.Backing(userFD)
	if errno != 0 {
		return errno
	}
	if b.Kind == Passthrough {
		return r.Host.FdFdstatSetFlags(b.HostFD, flags)
	}
	entry, errno := r.Embedded.FdEntryMut(b.Vfd)
	if errno != 0 {
		return errno
	}
	entry.Flags = flags
	return 0
}

// FdFdstatSetRights is always ENOTSUP on a virtual descriptor: the rights
// mask a virtual descriptor reports is fixed at ReadOnlyRights and never
// varies per descriptor, so there is nothing for this call to change.
func (r *Router) FdFdstatSetRights(userFD uint32, base, inheriting vfs.Rights) syscall.Errno {
	b, errno := r.Backing(userFD)
	if errno != 0 {
		return errno
	}
	if b.Kind == Passthrough {
		return r.Host.FdFdstatSetRights(b.HostFD, base, inheriting)
	}
	return syscall.ENOTSUP
}

// FdFilestatGet stats the node a descriptor currently refers to.
func (r *Router) FdFilestatGet(userFD uint32) (vfs.Filestat, syscall.Errno) {
	b, errno := r.Backing(userFD)
	if errno != 0 {
		return vfs.Filestat{}, errno
	}
	if b.Kind == Passthrough {
		return r.Host.FdFilestatGet(b.HostFD)
	}
	entry, errno := r.Embedded.FdEntry(b.Vfd)
	if errno != 0 {
		return vfs.Filestat{}, errno
	}
	return r.Embedded.FilestatFromNode(entry.Node), 0
}

// FdFilestatSetSize, FdFilestatSetTimes, FdSync, FdDatasync, FdAllocate and
// FdAdvise all mutate or hint at host-level file state this tree has none
// of; on a virtual descriptor they are ENOTSUP.
func (r *Router) FdFilestatSetSize(userFD uint32, size uint64) syscall.Errno {
	b, errno := r.Backing(userFD)
	if errno != 0 {
		return errno
	}
	if b.Kind == Passthrough {
		return r.Host.FdFilestatSetSize(b.HostFD, size)
	}
	return syscall.ENOTSUP
}

func (r *Router) FdFilestatSetTimes(userFD uint32, atim, mtim uint64, fstFlags uint16) syscall.Errno {
	b, errno := r.Backing(userFD)
	if errno != 0 {
		return errno
	}
	if b.Kind == Passthrough {
		return r.Host.FdFilestatSetTimes(b.HostFD, atim, mtim, fstFlags)
	}
	return syscall.ENOTSUP
}

func (r *Router) FdSync(userFD uint32) syscall.Errno {
	b, errno := r.Backing(userFD)
	if errno != 0 {
		return errno
	}
	if b.Kind == Passthrough {
		return r.Host.FdSync(b.HostFD)
	}
	return syscall.ENOTSUP
}

func (r *Router) FdDatasync(userFD uint32) syscall.Errno {
	b, errno := r.Backing(userFD)
	if errno != 0 {
		return errno
	}
	if b.Kind == Passthrough {
		return r.Host.FdDatasync(b.HostFD)
	}
	return syscall.ENOTSUP
}

func (r *Router) FdAllocate(userFD uint32, offset, length uint64) syscall.Errno {
	b, errno := r.Backing(userFD)
	if errno != 0 {
		return errno
	}
	if b.Kind == Passthrough {
		return r.Host.FdAllocate(b.HostFD, offset, length)
	}
	return syscall.ENOTSUP
}

func (r *Router) FdAdvise(userFD uint32, offset, length uint64, advice uint8) syscall.Errno {
	b, errno := r.Backing(userFD)
	if errno != 0 {
		return errno
	}
	if b.Kind == Passthrough {
		return r.Host.FdAdvise(b.HostFD, offset, length, advice)
	}
	return syscall.ENOTSUP
}

func (r *Router) FdWrite(userFD uint32, iovs [][]byte) (uint32, syscall.Errno) {
	b, errno := r.Backing(userFD)
	if errno != 0 {
		return 0, errno
	}
	if b.Kind == Passthrough {
		return r.Host.FdWrite(b.HostFD, iovs)
	}
	return 0, syscall.ENOTSUP
}

func (r *Router) FdPwrite(userFD uint32, iovs [][]byte, offset uint64) (uint32, syscall.Errno) {
	b, errno := r.Backing(userFD)
	if errno != 0 {
		return 0, errno
	}
	if b.Kind == Passthrough {
		return r.Host.FdPwrite(b.HostFD, iovs, offset)
	}
	return 0, syscall.ENOTSUP
}

// dirent is the on-wire __wasi_dirent_t layout fd_readdir packs before
// each entry's raw name bytes: d_next (u64), d_ino (u64), d_namlen (u32),
// d_type (u8), with 3 bytes of trailing padding to round the struct to 24
// bytes total.
const direntSize = 24

func putDirent(buf []byte, dNext, dIno uint64, dNamlen uint32, dType vfs.Filetype) {
	byteOrder.PutUint64(buf[0:8], dNext)
	byteOrder.PutUint64(buf[8:16], dIno)
	byteOrder.PutUint32(buf[16:20], dNamlen)
	buf[20] = byte(dType)
}

// FdReaddir fills buf with as many directory entries as fit, starting
// after the first cookie entries, following the exact truncation rule the
// original packer relies on: when a dirent or name doesn't fully fit, the
// bytes of it that do fit are copied, and the return value becomes
// buf_len verbatim rather than the partial byte count, signaling the
// caller to retry with a bigger buffer at the same cookie.
func (r *Router) FdReaddir(userFD uint32, buf []byte, cookie uint64) (uint32, syscall.Errno) {
	b, errno := r.Backing(userFD)
	if errno != 0 {
		return 0, errno
	}
	if b.Kind == Passthrough {
		return r.Host.FdReaddir(b.HostFD, buf, cookie)
	}

	node, errno := r.Embedded.Node(b.Vfd)
	if errno != 0 {
		return 0, errno
	}
	if node.Kind != storage.KindDir {
		return 0, syscall.ENOTDIR
	}

	bufLen := len(buf)
	var bufused int
	currentCookie := cookie
	entries := node.Entries
	if cookie > uint64(len(entries)) {
		entries = nil
	} else {
		entries = entries[cookie:]
	}
	for _, dirEntry := range entries {
		currentCookie++
		nodeID := r.Embedded.NodeIDByLink(dirEntry.Link)
		stat := r.Embedded.FilestatFromNode(nodeID)
		nameLen := len(dirEntry.Name)

		direntCopyLen := direntSize
		if remaining := bufLen - bufused; remaining < direntCopyLen {
			direntCopyLen = remaining
		}
		var tmp [direntSize]byte
		putDirent(tmp[:], currentCookie, stat.Ino, uint32(nameLen), stat.Filetype)
		copy(buf[bufused:bufused+direntCopyLen], tmp[:direntCopyLen])
		if direntCopyLen < direntSize {
			return uint32(bufLen), 0
		}
		bufused += direntCopyLen

		nameCopyLen := nameLen
		if remaining := bufLen - bufused; remaining < nameCopyLen {
			nameCopyLen = remaining
		}
		copy(buf[bufused:bufused+nameCopyLen], dirEntry.Name[:nameCopyLen])
		if nameCopyLen < nameLen {
			return uint32(bufLen), 0
		}
		bufused += nameCopyLen
	}
	return uint32(bufused), 0
}

// FdRenumber is only meaningful between two host descriptors; the spec
// never needs to renumber a virtual descriptor onto another slot, so any
// call naming a virtual side is ENOTSUP.
func (r *Router) FdRenumber(userFD, to uint32) syscall.Errno {
	from, errno := r.Backing(userFD)
	if errno != 0 {
		return errno
	}
	toBacking, errno := r.Backing(to)
	if errno != 0 {
		return errno
	}
	if from.Kind != Passthrough || toBacking.Kind != Passthrough {
		return syscall.ENOTSUP
	}
	if errno := r.Host.FdRenumber(from.HostFD, toBacking.HostFD); errno != 0 {
		return errno
	}
	// The host now holds the renumbered file at toBacking.HostFD, which
	// user descriptor `to` already maps to; the source slot is retired.
	if userFD != to {
		r.closeUserFD(userFD)
	}
	return 0
}

// FdPrestatGet reports the preopen tag and mount-path length of a
// descriptor issued by NewRouter's preopen seeding.
func (r *Router) FdPrestatGet(userFD uint32) (Prestat, syscall.Errno) {
	b, errno := r.Backing(userFD)
	if errno != 0 {
		return Prestat{}, errno
	}
	if b.Kind == Passthrough {
		return r.Host.FdPrestatGet(b.HostFD)
	}
	path, ok := r.Embedded.PreopenedDirPath(b.Vfd)
	if !ok {
		return Prestat{}, syscall.EBADF
	}
	return Prestat{IsDir: true, DirNameLen: uint32(len(path))}, 0
}

// FdPrestatDirName copies the preopen mount path's raw bytes into buf,
// with no trailing NUL.
func (r *Router) FdPrestatDirName(userFD uint32, buf []byte) syscall.Errno {
	b, errno := r.Backing(userFD)
	if errno != 0 {
		return errno
	}
	if b.Kind == Passthrough {
		return r.Host.FdPrestatDirName(b.HostFD, buf)
	}
	path, ok := r.Embedded.PreopenedDirPath(b.Vfd)
	if !ok {
		return syscall.EBADF
	}
	copy(buf, path)
	return 0
}

// PathOpen resolves path under userFD and issues a fresh user descriptor
// for the result.
func (r *Router) PathOpen(userFD uint32, dirflags uint32, path string, oflags uint32, rightsBase, rightsInheriting vfs.Rights, fdflags uint32) (uint32, syscall.Errno) {
	b, errno := r.Backing(userFD)
	if errno != 0 {
		return 0, errno
	}
	if b.Kind == Passthrough {
		hostFD, errno := r.Host.PathOpen(b.HostFD, dirflags, path, oflags, rightsBase, rightsInheriting, fdflags)
		if errno != 0 {
			return 0, errno
		}
		return r.issueUserFD(Backing{Kind: Passthrough, HostFD: hostFD}), 0
	}
	newVfd, errno := r.Embedded.OpenFile(b.Vfd, path, fdflags)
	if errno != 0 {
		return 0, errno
	}
	return r.issueUserFD(Backing{Kind: Virtual, Vfd: newVfd}), 0
}

// PathFilestatGet resolves path under userFD and stats it, without
// opening a descriptor.
func (r *Router) PathFilestatGet(userFD uint32, flags uint32, path string) (vfs.Filestat, syscall.Errno) {
	b, errno := r.Backing(userFD)
	if errno != 0 {
		return vfs.Filestat{}, errno
	}
	if b.Kind == Passthrough {
		return r.Host.PathFilestatGet(b.HostFD, flags, path)
	}
	return r.Embedded.FilestatAtPath(b.Vfd, path)
}

// PathFilestatSetTimes, PathCreateDirectory, PathRemoveDirectory,
// PathSymlink and PathUnlinkFile all mutate the tree; none of them are
// supported against a virtual descriptor.
func (r *Router) PathFilestatSetTimes(userFD uint32, flags uint32, path string, atim, mtim uint64, fstFlags uint16) syscall.Errno {
	b, errno := r.Backing(userFD)
	if errno != 0 {
		return errno
	}
	if b.Kind == Passthrough {
		return r.Host.PathFilestatSetTimes(b.HostFD, flags, path, atim, mtim, fstFlags)
	}
	return syscall.ENOTSUP
}

func (r *Router) PathCreateDirectory(userFD uint32, path string) syscall.Errno {
	b, errno := r.Backing(userFD)
	if errno != 0 {
		return errno
	}
	if b.Kind == Passthrough {
		return r.Host.PathCreateDirectory(b.HostFD, path)
	}
	return syscall.ENOTSUP
}

func (r *Router) PathRemoveDirectory(userFD uint32, path string) syscall.Errno {
	b, errno := r.Backing(userFD)
	if errno != 0 {
		return errno
	}
	if b.Kind == Passthrough {
		return r.Host.PathRemoveDirectory(b.HostFD, path)
	}
	return syscall.ENOTSUP
}

func (r *Router) PathSymlink(oldPath string, userFD uint32, newPath string) syscall.Errno {
	b, errno := r.Backing(userFD)
	if errno != 0 {
		return errno
	}
	if b.Kind == Passthrough {
		return r.Host.PathSymlink(oldPath, b.HostFD, newPath)
	}
	return syscall.ENOTSUP
}

func (r *Router) PathUnlinkFile(userFD uint32, path string) syscall.Errno {
	b, errno := r.Backing(userFD)
	if errno != 0 {
		return errno
	}
	if b.Kind == Passthrough {
		return r.Host.PathUnlinkFile(b.HostFD, path)
	}
	return syscall.ENOTSUP
}

// PathReadlink is always ERRNO_INVAL against a virtual descriptor: the
// tree never contains symlink nodes, so there is never a link target to
// report, and INVAL (rather than a generic NOTSUP) matches what calling
// readlink on a non-symlink ordinarily reports.
func (r *Router) PathReadlink(userFD uint32, path string, buf []byte) (uint32, syscall.Errno) {
	b, errno := r.Backing(userFD)
	if errno != 0 {
		return 0, errno
	}
	if b.Kind == Passthrough {
		return r.Host.PathReadlink(b.HostFD, path, buf)
	}
	return 0, syscall.EINVAL
}

// PathLink and PathRename each take two descriptors; both sides must be
// real host descriptors or the call is ENOTSUP, since the virtual tree
// has no representation of a host-side link target and vice versa.
func (r *Router) PathLink(oldFD uint32, oldFlags uint32, oldPath string, newFD uint32, newPath string) syscall.Errno {
	old, errno := r.Backing(oldFD)
	if errno != 0 {
		return errno
	}
	new_, errno := r.Backing(newFD)
	if errno != 0 {
		return errno
	}
	if old.Kind != Passthrough || new_.Kind != Passthrough {
		return syscall.ENOTSUP
	}
	return r.Host.PathLink(old.HostFD, oldFlags, oldPath, new_.HostFD, newPath)
}

func (r *Router) PathRename(userFD uint32, oldPath string, newFD uint32, newPath string) syscall.Errno {
	from, errno := r.Backing(userFD)
	if errno != 0 {
		return errno
	}
	to, errno := r.Backing(newFD)
	if errno != 0 {
		return errno
	}
	if from.Kind != Passthrough || to.Kind != Passthrough {
		return syscall.ENOTSUP
	}
	return r.Host.PathRename(from.HostFD, oldPath, to.HostFD, newPath)
}

// PollOneoff is never implemented against the mixed descriptor set this
// router manages and always reports ENOTSUP, regardless of which
// descriptors the subscriptions name.
func (r *Router) PollOneoff() syscall.Errno {
	return syscall.ENOTSUP
}
