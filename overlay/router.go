// Copyright the wasivfs Authors.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package overlay is the descriptor router: it maintains the single
// user-visible descriptor namespace, partitions it between descriptors
// served from the embedded virtual file system and descriptors
// delegated to the real host WASI implementation, and implements the
// per-syscall routing and virtual-side semantics described in the
// specification (§4.3, §4.4).
package overlay

import (
	"syscall"

	"github.com/wasivfs/wasivfs/vfs"
)

// BackingKind tags whether a user descriptor is served by the host or by
// the embedded virtual file system.
type BackingKind int

const (
	Passthrough BackingKind = iota
	Virtual
)

// Backing is the tagged union a user descriptor maps to.
type Backing struct {
	Kind   BackingKind
	HostFD uint32 // valid iff Kind == Passthrough
	Vfd    vfs.VFD // valid iff Kind == Virtual
}

// Router owns the Embedded FS and the user descriptor map, and dispatches
// each intercepted syscall either into the Embedded FS or to Host, the
// real preview-1 WASI surface. Host is a plain field rather than a
// parameter threaded through every call because the real implementation
// must never itself be reached through the router — see the
// single-threaded re-entrancy note in the specification's concurrency
// section.
type Router struct {
	Embedded *vfs.EmbeddedFS
	Host     HostWASI

	fdMap  map[uint32]Backing
	nextFD uint32
}

// NewRouter seeds the user descriptor map per §4.3: stdio first, then the
// real host preopens (scanned via fd_prestat_get until ERRNO_BADF), then
// the virtual preopens appended after. realPreopenFDs is the list of real
// host descriptors discovered to be preopens, in ascending order, and
// virtualVfds is the list of virtual preopen descriptors the Packer
// produced, in the order EmbeddedFS.PreopenDir issued them.
func NewRouter(embedded *vfs.EmbeddedFS, host HostWASI, realPreopenFDs []uint32, virtualVfds []vfs.VFD) *Router {
	r := &Router{
		Embedded: embedded,
		Host:     host,
		fdMap:    make(map[uint32]Backing),
		nextFD:   3,
	}
	for fd := uint32(0); fd <= 2; fd++ {
		r.fdMap[fd] = Backing{Kind: Passthrough, HostFD: fd}
	}
	for _, hostFD := range realPreopenFDs {
		r.setUserFDAt(Backing{Kind: Passthrough, HostFD: hostFD}, r.nextFD)
		r.nextFD++
	}
	for _, vfd := range virtualVfds {
		r.setUserFDAt(Backing{Kind: Virtual, Vfd: vfd}, r.nextFD)
		r.nextFD++
	}
	return r
}

func (r *Router) setUserFDAt(b Backing, fd uint32) {
	r.fdMap[fd] = b
}

// issueUserFD allocates the next user descriptor for b. User descriptors
// are strictly monotonic and never reused, even after Close.
func (r *Router) issueUserFD(b Backing) uint32 {
	fd := r.nextFD
	r.nextFD++
	r.fdMap[fd] = b
	return fd
}

// Backing returns the Backing for userFD, or ERRNO_BADF if it is not a
// live user descriptor.
func (r *Router) Backing(userFD uint32) (Backing, syscall.Errno) {
	b, ok := r.fdMap[userFD]
	if !ok {
		return Backing{}, syscall.EBADF
	}
	return b, 0
}

// closeUserFD removes userFD from the map. The caller is responsible for
// having already closed the underlying virtual or host descriptor.
func (r *Router) closeUserFD(userFD uint32) {
	delete(r.fdMap, userFD)
}
