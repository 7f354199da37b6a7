// Copyright the wasivfs Authors.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package storage provides the content-addressed tree store that backs
// the embedded virtual file system: inodes, hard-link edges, and path
// resolution, behind a Backend interface so alternate storage engines can
// be plugged in without touching the layers above.
package storage

import "syscall"

// NodeID identifies one inode (a file or a directory). Identity is stable
// for the lifetime of the Backend that allocated it.
type NodeID uint32

// LinkID identifies one occurrence of an inode at a particular parent.
// Multiple LinkIDs may point at the same NodeID (hard-link semantics).
type LinkID uint32

// Ino derives the WASI inode number exposed to the guest from a NodeID.
// Any total injection into uint64 is acceptable; the reference Backend
// uses the arena index directly.
func (n NodeID) Ino() uint64 { return uint64(n) }

// Ref pairs a NodeID with the LinkID that was used to reach it. Nearly
// every Backend method and caller works in terms of this pair rather than
// either half alone, since resolving ".." requires the link's parent
// pointer, not just the node's identity.
type Ref struct {
	Node NodeID
	Link LinkID
}

// DirEntry is a single (name, LinkID) pair stored inside a directory's
// entry list. Names are non-empty byte sequences that do not contain '/'
// and are not "." or "..".
type DirEntry struct {
	Name string
	Link LinkID
}

// Kind tags whether an inode is a file or a directory.
type Kind int

const (
	KindFile Kind = iota
	KindDir
)

// Node is a reference-shaped view of an inode's body, returned by
// Backend.GetInode. Exactly one of Content or Entries is meaningful,
// selected by Kind.
type Node struct {
	Kind    Kind
	Content []byte
	Entries []DirEntry
}

// Link is the resolved body of a LinkID: the node it points at, and the
// parent link it hangs from. Parent is the zero value (HasParent=false)
// iff the link is a preopen root.
type Link struct {
	Parent   LinkID
	HasParent bool
	Node     NodeID
}

// Backend abstracts a content-addressed tree store with hard-link edges.
// The reference implementation is Arena; the interface exists so a
// different identifier representation (e.g. a serialization-friendly one)
// can be swapped in without changing vfs or overlay.
type Backend interface {
	// NewRootDir creates a fresh directory with no parent. Used to
	// build preopen roots.
	NewRootDir() Ref

	// NewDir allocates a new directory node and a new link under
	// parent, appending (name, newLink) to parent's entry list. No
	// uniqueness check is performed; callers must not create
	// duplicate names.
	NewDir(parent Ref, name string) Ref

	// NewFile is the file analogue of NewDir; bytes become the file's
	// immutable content.
	NewFile(parent Ref, name string, content []byte) Ref

	// GetInode returns the body of the node identified by id.
	GetInode(id NodeID) Node

	// GetLink returns the body of the link identified by id.
	GetLink(id LinkID) Link

	// ResolveNode resolves path against base (which must be a
	// directory) per the algorithm in §4.1 of the specification.
	ResolveNode(base Ref, path string) (Ref, syscall.Errno)
}
