// Copyright the wasivfs Authors.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pack_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/wasivfs/wasivfs/pack"
	"github.com/wasivfs/wasivfs/storage"
	"github.com/wasivfs/wasivfs/vfs"
	"github.com/wasivfs/wasivfs/wasip1"
)

func writeTree(t *testing.T, root string) {
	t.Helper()
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	must(os.WriteFile(filepath.Join(root, "a.txt"), []byte("alpha"), 0o644))
	must(os.Mkdir(filepath.Join(root, "sub"), 0o755))
	must(os.WriteFile(filepath.Join(root, "sub", "b.txt"), []byte("beta"), 0o644))
	must(os.Mkdir(filepath.Join(root, "empty"), 0o755))
}

func TestPackerPacksHostTree(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir)

	host := wasip1.NewStubHost()
	if _, err := host.Preopen(dir); err != nil {
		t.Fatalf("Preopen: %v", err)
	}

	backend := storage.NewArena()
	embedded := vfs.NewEmbeddedFS(backend)
	var logged []string
	packer := pack.NewPacker(embedded, host, true, func(format string, args ...interface{}) {
		logged = append(logged, format)
	})

	vfds, err := packer.ScanPreopenedDirs()
	if err != nil {
		t.Fatalf("ScanPreopenedDirs: %v", err)
	}
	if len(vfds) != 1 {
		t.Fatalf("vfds = %v, want exactly one preopen", vfds)
	}
	if err := packer.Pack(); err != nil {
		t.Fatalf("Pack: %v", err)
	}

	// The preopen root ScanPreopenedDirs registered is always node/link 0,
	// the first thing the Arena ever allocates.
	got, errno := backend.ResolveNode(storage.Ref{Node: 0, Link: 0}, "a.txt")
	if errno != 0 {
		t.Fatalf("ResolveNode(a.txt): errno %v", errno)
	}
	node := backend.GetInode(got.Node)
	if string(node.Content) != "alpha" {
		t.Errorf("a.txt content = %q, want alpha", node.Content)
	}

	got, errno = backend.ResolveNode(storage.Ref{Node: 0, Link: 0}, "sub/b.txt")
	if errno != 0 {
		t.Fatalf("ResolveNode(sub/b.txt): errno %v", errno)
	}
	node = backend.GetInode(got.Node)
	if string(node.Content) != "beta" {
		t.Errorf("sub/b.txt content = %q, want beta", node.Content)
	}

	got, errno = backend.ResolveNode(storage.Ref{Node: 0, Link: 0}, "empty")
	if errno != 0 {
		t.Fatalf("ResolveNode(empty): errno %v", errno)
	}
	if backend.GetInode(got.Node).Kind != storage.KindDir {
		t.Errorf("empty should resolve to a directory")
	}

	if len(logged) == 0 {
		t.Errorf("expected verbose log lines, got none")
	}
}
