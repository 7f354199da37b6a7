// Copyright the wasivfs Authors.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

// dirMapping is one resolved HOST::GUEST directory mapping, regardless
// of which flag it was parsed from.
type dirMapping struct {
	host  string
	guest string
}

// dirFlags collects --dir and the deprecated --mapdir across repeated
// flag.Var invocations, in the order they were given on the command
// line.
type dirFlags struct {
	mappings []dirMapping
}

func (d *dirFlags) String() string {
	var parts []string
	for _, m := range d.mappings {
		parts = append(parts, m.host+"::"+m.guest)
	}
	return strings.Join(parts, ",")
}

// Set implements flag.Value for --dir HOST::GUEST.
func (d *dirFlags) Set(value string) error {
	host, guest, ok := strings.Cut(value, "::")
	if !ok {
		return fmt.Errorf("--dir expects HOST::GUEST, got %q", value)
	}
	d.mappings = append(d.mappings, dirMapping{host: host, guest: guest})
	return nil
}

// mapdirFlags parses the deprecated --mapdir GUEST::HOST form, with
// operands in the opposite order from --dir, and appends into the same
// dirFlags list as --dir once reversed.
type mapdirFlags struct {
	dirs *dirFlags
}

func (m *mapdirFlags) String() string { return "" }

func (m *mapdirFlags) Set(value string) error {
	guest, host, ok := strings.Cut(value, "::")
	if !ok {
		return fmt.Errorf("--mapdir expects GUEST::HOST, got %q", value)
	}
	fmt.Fprintf(os.Stderr, "wasivfs: --mapdir is deprecated, use --dir %s::%s instead\n", host, guest)
	m.dirs.mappings = append(m.dirs.mappings, dirMapping{host: host, guest: guest})
	return nil
}

func registerDirFlags(fs *flag.FlagSet, dirs *dirFlags) {
	fs.Var(dirs, "dir", "HOST::GUEST directory mapping to expose to the guest (repeatable)")
	fs.Var(&mapdirFlags{dirs: dirs}, "mapdir", "deprecated: GUEST::HOST directory mapping (repeatable)")
}
