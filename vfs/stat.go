// Copyright the wasivfs Authors.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vfs

import (
	"syscall"

	"github.com/wasivfs/wasivfs/storage"
)

// Filetype mirrors the WASI __wasi_filetype_t tag values this package
// cares about.
type Filetype uint8

const (
	FiletypeUnknown      Filetype = 0
	FiletypeDirectory    Filetype = 3
	FiletypeRegularFile  Filetype = 4
)

// Rights is the WASI rights bitmask. The embedded FS only ever grants a
// fixed read-only subset (§4.2).
type Rights uint64

const (
	RightFdRead        Rights = 1 << 1
	RightFdAdvise      Rights = 1 << 7
	RightPathOpen      Rights = 1 << 13
	RightFdReaddir     Rights = 1 << 14
	RightFdFilestatGet Rights = 1 << 21
)

// ReadOnlyRights is the fixed rights mask every virtual descriptor
// reports for both base and inheriting rights.
const ReadOnlyRights = RightFdRead | RightFdAdvise | RightPathOpen | RightFdReaddir | RightFdFilestatGet

// Fdstat is the subset of __wasi_fdstat_t the embedded FS can populate.
type Fdstat struct {
	Filetype         Filetype
	Flags            uint32
	RightsBase       Rights
	RightsInheriting Rights
}

// Filestat is the subset of __wasi_filestat_t the embedded FS can
// populate; dev/nlink/timestamps are always zero since the tree carries
// none of that metadata.
type Filestat struct {
	Ino      uint64
	Filetype Filetype
	Size     uint64
}

func filetypeOf(n storage.Node) Filetype {
	if n.Kind == storage.KindDir {
		return FiletypeDirectory
	}
	return FiletypeRegularFile
}

// FdStat returns the fixed rights mask and the file type/flags for vfd.
func (fs *EmbeddedFS) FdStat(vfd VFD) (Fdstat, syscall.Errno) {
	entry, ok := fs.opens[vfd]
	if !ok {
		return Fdstat{}, syscall.EBADF
	}
	node := fs.backend.GetInode(entry.Node)
	return Fdstat{
		Filetype:         filetypeOf(node),
		Flags:            entry.Flags,
		RightsBase:       ReadOnlyRights,
		RightsInheriting: ReadOnlyRights,
	}, 0
}

// FilestatFromNode builds a Filestat for an arbitrary node, independent
// of any open descriptor (used by fd_readdir to stat each child).
func (fs *EmbeddedFS) FilestatFromNode(id storage.NodeID) Filestat {
	node := fs.backend.GetInode(id)
	stat := Filestat{Ino: id.Ino(), Filetype: filetypeOf(node)}
	if node.Kind == storage.KindFile {
		stat.Size = uint64(len(node.Content))
	}
	return stat
}

// FilestatAtPath resolves path against base and stats the result.
func (fs *EmbeddedFS) FilestatAtPath(base VFD, path string) (Filestat, syscall.Errno) {
	baseEntry, ok := fs.opens[base]
	if !ok {
		return Filestat{}, syscall.EBADF
	}
	ref, errno := fs.backend.ResolveNode(storage.Ref{Node: baseEntry.Node, Link: baseEntry.Link}, path)
	if errno != 0 {
		return Filestat{}, errno
	}
	return fs.FilestatFromNode(ref.Node), 0
}
