// Copyright the wasivfs Authors.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command wasivfs is the host-side CLI that drives packing a host
// directory tree into a WASI preview-1 guest module, and the reserved
// (unimplemented) module-linking entry point.
package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "pack":
		err = runPack(os.Args[2:])
	case "link-module":
		err = runLinkModule(os.Args[2:])
	case "-h", "-help", "--help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "wasivfs: unknown subcommand %q\n", os.Args[1])
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "wasivfs: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: wasivfs <command> [arguments]

commands:
  pack    pack host directories into a WASI guest module
`)
}
