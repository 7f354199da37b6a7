// Copyright the wasivfs Authors.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wasip1

import (
	"fmt"
	"os"
)

// tracingEnabled caches whether WASI_VFS_TRACE was set at process start;
// it is read once from Config rather than re-read per call.
var tracingEnabled bool

// EnableTracing turns on per-syscall trace output. Called once from
// Config during GlobalState construction.
func EnableTracing(enabled bool) { tracingEnabled = enabled }

// traceSyscall writes a one-line diagnostic to stderr for a call that
// is about to be dispatched, mirroring the format the original tracing
// hook produced: "name(args...)".
func traceSyscall(name string, args ...interface{}) {
	if !tracingEnabled {
		return
	}
	fmt.Fprintf(os.Stderr, "%s%v\n", name, args)
}

// traceResult writes a one-line diagnostic for a call's outcome.
func traceResult(name string, errno Errno) {
	if !tracingEnabled {
		return
	}
	fmt.Fprintf(os.Stderr, "%s returns %d\n", name, errno)
}

// verboseLogf is the WASI_VFS_VERBOSE packer diagnostic: PackFS hands it
// to the pack package as its logf, which reports per-file progress during
// a pack_fs run.
func verboseLogf(verbose bool, format string, args ...interface{}) {
	if !verbose {
		return
	}
	fmt.Fprintf(os.Stderr, format, args...)
}

// VerboseLogf exports verboseLogf; PackFS wraps it as the packer's logf.
func VerboseLogf(verbose bool, format string, args ...interface{}) {
	verboseLogf(verbose, format, args...)
}
