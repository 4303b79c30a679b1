package staging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestStashWritesAndCleanupRemoves(t *testing.T) {
	dir, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create staging dir: %v", err)
	}

	data := []byte{0xff, 0xd8, 0xff, 0xd9}
	path, cleanup, err := dir.Stash(data)
	if err != nil {
		t.Fatalf("stash failed: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("staged file unreadable: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatal("staged bytes differ from input")
	}

	cleanup()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected staged file to be removed, stat err=%v", err)
	}

	// Second call must be a no-op.
	cleanup()
}

func TestStashNamesNeverCollide(t *testing.T) {
	root := t.TempDir()
	dir, err := New(root)
	if err != nil {
		t.Fatalf("failed to create staging dir: %v", err)
	}

	seen := map[string]bool{}
	for i := 0; i < 64; i++ {
		path, cleanup, err := dir.Stash([]byte("frame"))
		if err != nil {
			t.Fatalf("stash %d failed: %v", i, err)
		}
		defer cleanup()
		if seen[path] {
			t.Fatalf("path reused: %s", path)
		}
		seen[path] = true
		if filepath.Dir(path) != root {
			t.Fatalf("staged outside root: %s", path)
		}
	}
}

func TestNewCreatesMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "staging")
	if _, err := New(root); err != nil {
		t.Fatalf("expected staging root to be created: %v", err)
	}
	if _, err := os.Stat(root); err != nil {
		t.Fatalf("staging root missing: %v", err)
	}
}
