// Package staging writes image bytes to uniquely named temp files for
// collaborators that need a file path rather than an in-memory buffer.
package staging

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Dir stages buffers under a single directory. Names are uuid-derived so
// concurrent requests can never collide or clobber each other's files.
type Dir struct {
	root string
}

// New returns staging rooted at dir, or at the system temp directory when
// dir is empty.
func New(dir string) (*Dir, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	return &Dir{root: dir}, nil
}

// Stash writes data to a fresh file and returns its path together with a
// cleanup func. Callers must defer cleanup so the file is released on every
// exit path, including decode and classifier failures. Cleanup is safe to
// call more than once.
func (d *Dir) Stash(data []byte) (string, func(), error) {
	path := filepath.Join(d.root, uuid.NewString()+".jpg")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", nil, fmt.Errorf("stage image: %w", err)
	}
	cleanup := func() {
		os.Remove(path)
	}
	return path, cleanup, nil
}
