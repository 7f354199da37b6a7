// Copyright the wasivfs Authors.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"flag"
	"fmt"
)

// runLinkModule implements `wasivfs link-module`, a hidden, reserved
// subcommand. The source's own implementation of this step is
// unimplemented; this keeps the same argument shape (main module, side
// modules, -o output) so scripts that already invoke it get a clear
// error instead of a missing-subcommand one.
func runLinkModule(args []string) error {
	fs := flag.NewFlagSet("link-module", flag.ExitOnError)
	output := fs.String("o", "", "output wasm file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: wasivfs link-module <main-module> [side-modules...] -o <output>")
	}
	_ = output
	return fmt.Errorf("link-module: not yet supported")
}
