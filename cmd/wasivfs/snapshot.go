// Copyright the wasivfs Authors.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/tetratelabs/wazero/api"
)

// snapshotModule serializes mod's current linear memory (already
// populated by a successful __internal_wasi_vfs_pack_fs call) back into
// a standalone .wasm binary at outputPath.
//
// wazero does not expose a way to re-encode a live module instance back
// into a wasm binary; turning post-init linear memory into a loadable
// module is exactly the job of an external memory-snapshotting tool, out
// of scope here the same way it is for the original project. This is the
// one seam meant to be swapped for a real snapshotter invocation.
func snapshotModule(mod api.Module, outputPath string) error {
	return fmt.Errorf("snapshot: no wasm-snapshot tool configured; cannot write %s for module %s", outputPath, mod.Name())
}
