// Copyright the wasivfs Authors.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package vfs implements the embedded virtual file system: a descriptor
// table of virtual descriptors layered on top of a storage.Backend, plus
// the high-level create/open/read/readdir/stat operations the overlay
// router and the packer drive it with.
package vfs

import (
	"strings"
	"syscall"

	"github.com/wasivfs/wasivfs/storage"
)

// VFD is an internal file descriptor managed by the embedded file system,
// distinct from the user-visible descriptor the overlay router hands out.
type VFD uint32

// FdEntry is the per-open-descriptor state: which node/link it resolved
// to, the current byte offset, and the flags it was opened with.
type FdEntry struct {
	Node   storage.NodeID
	Link   storage.LinkID
	Offset uint64
	Flags  uint32
}

type preopenedDir struct {
	path string
}

// EmbeddedFS owns a storage.Backend instance, the ordered list of preopen
// records, and the descriptor table. Virtual descriptors are issued
// monotonically starting at 0; the first N descriptors, by construction,
// are always the preopens.
type EmbeddedFS struct {
	backend  storage.Backend
	preopens []preopenedDir
	opens    map[VFD]*FdEntry
	nextVfd  VFD
}

// NewEmbeddedFS creates an EmbeddedFS backed by the given storage.Backend.
func NewEmbeddedFS(backend storage.Backend) *EmbeddedFS {
	return &EmbeddedFS{
		backend: backend,
		opens:   make(map[VFD]*FdEntry),
	}
}

// Backend returns the underlying storage.Backend, for callers that need
// to reach the storage directly.
func (fs *EmbeddedFS) Backend() storage.Backend { return fs.backend }

func (fs *EmbeddedFS) issueVfd() VFD {
	v := fs.nextVfd
	fs.nextVfd++
	return v
}

// PreopenDir allocates a new root directory in storage, issues the next
// virtual descriptor for it, and registers the preopen record. Precondition:
// the number of preopens must equal the number of live descriptors at the
// moment of registration — preopens must all be installed before any other
// file is opened.
func (fs *EmbeddedFS) PreopenDir(path string) (VFD, storage.Ref) {
	if len(fs.preopens) != len(fs.opens) {
		panic("vfs: preopen registered after a non-preopen descriptor was opened")
	}
	vfd := fs.issueVfd()
	fs.preopens = append(fs.preopens, preopenedDir{path: path})
	ref := fs.backend.NewRootDir()
	fs.opens[vfd] = &FdEntry{Node: ref.Node, Link: ref.Link}
	return vfd, ref
}

// PreopenedDirPath returns the mount path for vfd iff vfd identifies a
// preopen descriptor.
func (fs *EmbeddedFS) PreopenedDirPath(vfd VFD) (string, bool) {
	idx := int(vfd)
	if idx < 0 || idx >= len(fs.preopens) {
		return "", false
	}
	return fs.preopens[idx].path, true
}

// CreateFile is used only during packing. It walks relpath component by
// component under (dirNode, dirLink), silently creating missing
// intermediate directories, and places a new file at the final name.
func (fs *EmbeddedFS) CreateFile(dir storage.Ref, relpath string, content []byte) syscall.Errno {
	if fs.backend.GetInode(dir.Node).Kind != storage.KindDir {
		return syscall.EBADF
	}
	relpath = strings.TrimPrefix(relpath, "/")
	components := strings.Split(relpath, "/")
	filename := components[len(components)-1]
	if filename == "" {
		return syscall.ENOENT
	}

	cursor := dir
	for _, component := range components[:len(components)-1] {
		if component == "." || component == "" {
			continue
		}
		node := fs.backend.GetInode(cursor.Node)
		found := false
		for _, entry := range node.Entries {
			if entry.Name == component {
				cursor = storage.Ref{Node: fs.backend.GetLink(entry.Link).Node, Link: entry.Link}
				found = true
				break
			}
		}
		if !found {
			cursor = fs.backend.NewDir(cursor, component)
		}
	}

	fs.backend.NewFile(cursor, filename, content)
	return 0
}

// CreateDir is the directory counterpart to CreateFile, used only during
// packing to record an empty directory that CreateFile's auto-vivification
// would otherwise never visit (a directory with no regular-file
// descendants). Intermediate components are vivified the same way;
// the final component is created as a directory iff it doesn't already
// exist, so walking into a directory that does contain files (CreateFile
// already having vivified it from underneath) is a no-op rather than an
// error.
func (fs *EmbeddedFS) CreateDir(dir storage.Ref, relpath string) syscall.Errno {
	if fs.backend.GetInode(dir.Node).Kind != storage.KindDir {
		return syscall.EBADF
	}
	relpath = strings.TrimPrefix(relpath, "/")
	components := strings.Split(relpath, "/")

	cursor := dir
	for _, component := range components {
		if component == "." || component == "" {
			continue
		}
		node := fs.backend.GetInode(cursor.Node)
		found := false
		for _, entry := range node.Entries {
			if entry.Name == component {
				cursor = storage.Ref{Node: fs.backend.GetLink(entry.Link).Node, Link: entry.Link}
				found = true
				break
			}
		}
		if !found {
			cursor = fs.backend.NewDir(cursor, component)
		}
	}
	return 0
}

// OpenFile resolves path against the directory the base descriptor
// refers to, allocates a fresh virtual descriptor positioned at offset 0,
// and returns it.
func (fs *EmbeddedFS) OpenFile(base VFD, path string, fdflags uint32) (VFD, syscall.Errno) {
	baseEntry, ok := fs.opens[base]
	if !ok {
		return 0, syscall.EBADF
	}
	ref, errno := fs.backend.ResolveNode(storage.Ref{Node: baseEntry.Node, Link: baseEntry.Link}, path)
	if errno != 0 {
		return 0, errno
	}
	vfd := fs.issueVfd()
	fs.opens[vfd] = &FdEntry{Node: ref.Node, Link: ref.Link, Flags: fdflags}
	return vfd, 0
}

// CloseFile removes the descriptor entry for vfd. Virtual descriptors are
// never reused.
func (fs *EmbeddedFS) CloseFile(vfd VFD) syscall.Errno {
	if _, ok := fs.opens[vfd]; !ok {
		return syscall.EBADF
	}
	delete(fs.opens, vfd)
	return 0
}

// Node returns the inode body that vfd currently refers to.
func (fs *EmbeddedFS) Node(vfd VFD) (storage.Node, syscall.Errno) {
	entry, ok := fs.opens[vfd]
	if !ok {
		return storage.Node{}, syscall.EBADF
	}
	return fs.backend.GetInode(entry.Node), 0
}

// NodeIDByLink resolves the node a link points at, used by fd_readdir to
// stat each child entry.
func (fs *EmbeddedFS) NodeIDByLink(link storage.LinkID) storage.NodeID {
	return fs.backend.GetLink(link).Node
}

// FdEntry returns a read-only copy of vfd's descriptor entry.
func (fs *EmbeddedFS) FdEntry(vfd VFD) (FdEntry, syscall.Errno) {
	entry, ok := fs.opens[vfd]
	if !ok {
		return FdEntry{}, syscall.EBADF
	}
	return *entry, 0
}

// FdEntryMut returns a mutable pointer to vfd's descriptor entry, for
// callers that need to advance the offset or change flags.
func (fs *EmbeddedFS) FdEntryMut(vfd VFD) (*FdEntry, syscall.Errno) {
	entry, ok := fs.opens[vfd]
	if !ok {
		return nil, syscall.EBADF
	}
	return entry, 0
}
