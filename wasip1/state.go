// Copyright the wasivfs Authors.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wasip1

import (
	"os"

	"github.com/wasivfs/wasivfs/overlay"
	"github.com/wasivfs/wasivfs/pack"
	"github.com/wasivfs/wasivfs/vfs"
)

// Config is read once, at GlobalState construction, from the guest
// process's environment through EnvVar (below).
type Config struct {
	// Packing disables the overlay router entirely: set while
	// __internal_wasi_vfs_pack_fs is walking the host file system, since
	// packing must see the raw host descriptors, not the router's view
	// of them.
	Packing bool
	// Verbose turns on the packer's per-file diagnostic output
	// (WASI_VFS_VERBOSE=1).
	Verbose bool
	// Trace turns on per-syscall tracing to stderr (WASI_VFS_TRACE set).
	Trace bool
}

// LoadConfig reads Config from the environment using EnvVar, which reads
// the Go runtime's environment (os.Getenv).
//
// There is no runtime toggle for the legacy "wasi_unstable" import
// module name here: go:wasmimport/go:wasmexport directives are
// compile-time-static, so that toggle (if ever implemented) belongs in a
// separate build-tag-gated source file, not in this struct. See
// SPEC_FULL.md §9.
func LoadConfig() Config {
	return Config{
		Packing: EnvVar("__WASI_VFS_PACKING") != "",
		Verbose: EnvVar("WASI_VFS_VERBOSE") == "1",
		Trace:   EnvVar("WASI_VFS_TRACE") != "",
	}
}

// EnvVar looks up name in os.Environ. On a real wasm32-wasip1 build this
// still goes through the Go runtime's own environ handling, which reads
// it via the same environ_sizes_get/environ_get pair the original
// self-made env_var helper used, so it remains safe to call this early.
func EnvVar(name string) string {
	return os.Getenv(name)
}

// GlobalState is the process-wide singleton: an embedded FS plus its
// preopen vfds before packing/first use, and the Router it upgrades into
// once a real program (not the packer) starts making syscalls.
type GlobalState struct {
	embedded     *vfs.EmbeddedFS
	preopenVfds  []vfs.VFD
	realPreopens []uint32
	router       *overlay.Router
	config       Config
}

var global *GlobalState

// InitGlobalState constructs the process-wide state from a freshly
// created (and, in a packed module, already-populated) EmbeddedFS. Called
// once from the generated init trampoline.
func InitGlobalState(embedded *vfs.EmbeddedFS, preopenVfds []vfs.VFD, realPreopens []uint32) {
	global = &GlobalState{
		embedded:     embedded,
		preopenVfds:  preopenVfds,
		realPreopens: realPreopens,
		config:       LoadConfig(),
	}
	EnableTracing(global.config.Trace)
}

// Global returns the process-wide state (nil before InitGlobalState has
// run), for the trampolines and the pack_fs entry point.
func Global() *GlobalState { return global }

// Embedded returns the embedded file system, regardless of whether the
// router has been built yet.
func (g *GlobalState) Embedded() *vfs.EmbeddedFS { return g.embedded }

// GetOrCreateRouter returns the lazily-constructed Router, or nil while
// __WASI_VFS_PACKING is set: the packer must see the real, unintercepted
// host descriptors, so every trampoline falls back to calling straight
// through to RealHost whenever this returns nil.
func (g *GlobalState) GetOrCreateRouter(host overlay.HostWASI) *overlay.Router {
	if g.config.Packing {
		return nil
	}
	if g.router == nil {
		g.router = overlay.NewRouter(g.embedded, host, g.realPreopens, g.preopenVfds)
	}
	return g.router
}

// PackFS scans host preopens (fd 3 onward) via the given host interface,
// registers every directory prestat found as a new EmbeddedFS preopen,
// and mirrors its full contents in. Called once from
// __internal_wasi_vfs_pack_fs while __WASI_VFS_PACKING is set, so host
// must be RealHost: GetOrCreateRouter refuses to build a Router during
// packing, which is exactly what lets the packer see raw host
// descriptors.
func (g *GlobalState) PackFS(host overlay.HostWASI) error {
	logf := func(format string, args ...interface{}) { VerboseLogf(true, format, args...) }
	packer := pack.NewPacker(g.embedded, host, g.config.Verbose, logf)
	vfds, err := packer.ScanPreopenedDirs()
	if err != nil {
		return err
	}
	g.preopenVfds = vfds
	return packer.Pack()
}
