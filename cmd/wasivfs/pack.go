// Copyright the wasivfs Authors.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"golang.org/x/sys/unix"
)

// runPack implements `wasivfs pack`: instantiate the input guest module
// under a wazero runtime with the requested host directories preopened,
// invoke its exported __internal_wasi_vfs_pack_fs entry point so the
// guest mirrors those directories into its own embedded tree, then hand
// the now-populated instance's linear memory off to the external
// snapshot step that serializes it back into a standalone .wasm binary.
func runPack(args []string) error {
	fs := flag.NewFlagSet("pack", flag.ExitOnError)
	output := fs.String("o", "", "output wasm file (required)")
	verbose := fs.Bool("verbose", false, "print per-file packing diagnostics")
	var dirs dirFlags
	registerDirFlags(fs, &dirs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *output == "" {
		return fmt.Errorf("pack: -o output is required")
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: wasivfs pack [flags] <input.wasm>")
	}
	input := fs.Arg(0)

	for _, m := range dirs.mappings {
		if err := unix.Access(m.host, unix.R_OK); err != nil {
			return fmt.Errorf("pack: --dir %s::%s: %w", m.host, m.guest, err)
		}
	}

	wasmBytes, err := os.ReadFile(input)
	if err != nil {
		return fmt.Errorf("pack: reading %s: %w", input, err)
	}

	ctx := context.Background()
	runtime := wazero.NewRuntime(ctx)
	defer runtime.Close(ctx)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, runtime); err != nil {
		return fmt.Errorf("pack: instantiating wasi_snapshot_preview1: %w", err)
	}

	compiled, err := runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return fmt.Errorf("pack: compiling %s: %w", input, err)
	}

	fsConfig := wazero.NewFSConfig()
	for _, m := range dirs.mappings {
		fsConfig = fsConfig.WithDirMount(m.host, m.guest)
	}

	env := []string{"__WASI_VFS_PACKING", "1"}
	if *verbose {
		env = append(env, "WASI_VFS_VERBOSE", "1")
	}
	moduleConfig := wazero.NewModuleConfig().
		WithFSConfig(fsConfig).
		WithStdout(os.Stdout).
		WithStderr(os.Stderr)
	for i := 0; i+1 < len(env); i += 2 {
		moduleConfig = moduleConfig.WithEnv(env[i], env[i+1])
	}

	mod, err := runtime.InstantiateModule(ctx, compiled, moduleConfig)
	if err != nil {
		return fmt.Errorf("pack: instantiating %s: %w", input, err)
	}
	defer mod.Close(ctx)

	packFn := mod.ExportedFunction("__internal_wasi_vfs_pack_fs")
	if packFn == nil {
		return fmt.Errorf("pack: %s does not export __internal_wasi_vfs_pack_fs (is it built with wasivfs?)", input)
	}
	if _, err := packFn.Call(ctx); err != nil {
		return fmt.Errorf("pack: running __internal_wasi_vfs_pack_fs: %w", err)
	}

	return snapshotModule(mod, *output)
}
