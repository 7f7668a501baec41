package fsenum

import (
	"os"
	"path/filepath"
	"testing"
)

func mkfile(t *testing.T, root, rel string, size int) {
	t.Helper()
	p := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, make([]byte, size), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestWalkClassifiesTiers(t *testing.T) {
	root := t.TempDir()
	mkfile(t, root, "a.txt", 8<<10)
	mkfile(t, root, "dir1/b.bin", 256<<10)
	mkfile(t, root, "dir1/dir2/c.dat", 1_100_000)

	entries, err := Walk(root, &Filter{})
	if err != nil {
		t.Fatal(err)
	}
	tiers := map[string]Tier{}
	for _, e := range entries {
		if e.Kind == KindFile {
			tiers[e.Relpath] = e.Tier
		}
	}
	if tiers["a.txt"] != TierSmall {
		t.Errorf("a.txt tier = %v, want small", tiers["a.txt"])
	}
	if tiers["dir1/b.bin"] != TierSmall {
		t.Errorf("dir1/b.bin tier = %v, want small", tiers["dir1/b.bin"])
	}
	if tiers["dir1/dir2/c.dat"] != TierMedium {
		t.Errorf("dir1/dir2/c.dat tier = %v, want medium", tiers["dir1/dir2/c.dat"])
	}
}

func TestWalkExcludeDirPrunesSubtree(t *testing.T) {
	root := t.TempDir()
	mkfile(t, root, "keep/a.txt", 1)
	mkfile(t, root, "node_modules/pkg/index.js", 1)

	entries, err := Walk(root, &Filter{ExcludeDirs: []string{"node_modules"}})
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Relpath == "node_modules" || e.Relpath == "node_modules/pkg/index.js" {
			t.Errorf("excluded subtree present: %s", e.Relpath)
		}
	}
}

func TestWalkExcludeFiles(t *testing.T) {
	root := t.TempDir()
	mkfile(t, root, "keep.txt", 1)
	mkfile(t, root, "drop.bak", 1)

	entries, err := Walk(root, &Filter{ExcludeFiles: []string{"*.bak"}})
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Relpath == "drop.bak" {
			t.Errorf("excluded file present: %s", e.Relpath)
		}
	}
}
