// Package wasivfs is the root of a virtual file system for WASI preview-1
// guest modules. It lets a guest compiled against the standard WASI
// preview-1 ABI transparently read an in-memory tree of files packed into
// the module at build time, alongside the real directories the host
// preopens for it.
//
// The package is organized leaves-first:
//
//   - storage holds the inode/link arena and path resolution.
//   - vfs builds the embedded-fs descriptor table and high level file
//     operations on top of storage.
//   - overlay maintains the user-visible descriptor map and decides,
//     per descriptor, whether a call is served virtually or passed
//     through to the host.
//   - wasip1 decodes the raw WASI ABI and exports the intercepted
//     syscalls at the names the wasm host expects.
//   - pack implements the one-shot directory walk that populates the
//     storage arena from the host's preopened directories.
//   - cmd/wasivfs is the host-side CLI that drives packing.
package wasivfs
