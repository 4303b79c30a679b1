package device

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// FileCamera serves JPEG files from a directory in rotation. It stands in
// for the on-board sensor when running on a host, or replays a directory a
// snapshot tool writes into.
type FileCamera struct {
	dir string

	mu    sync.Mutex
	files []string
	next  int
}

// NewFileCamera points the camera at a directory of *.jpg files.
func NewFileCamera(dir string) *FileCamera {
	return &FileCamera{dir: dir}
}

// Arm scans the directory. The resolution profile is recorded by real
// sensors; files are served at whatever size they were written.
func (c *FileCamera) Arm(Resolution) error {
	matches, err := filepath.Glob(filepath.Join(c.dir, "*.jpg"))
	if err != nil {
		return fmt.Errorf("scan frame dir: %w", err)
	}
	jpegs, err := filepath.Glob(filepath.Join(c.dir, "*.jpeg"))
	if err != nil {
		return fmt.Errorf("scan frame dir: %w", err)
	}
	matches = append(matches, jpegs...)
	if len(matches) == 0 {
		return fmt.Errorf("no jpeg files in %s", c.dir)
	}
	sort.Strings(matches)

	c.mu.Lock()
	c.files = matches
	c.next = 0
	c.mu.Unlock()
	return nil
}

// Capture returns the next file's bytes, wrapping around at the end.
func (c *FileCamera) Capture() ([]byte, error) {
	c.mu.Lock()
	if len(c.files) == 0 {
		c.mu.Unlock()
		return nil, fmt.Errorf("camera not armed or no frames in %s", c.dir)
	}
	path := c.files[c.next]
	c.next = (c.next + 1) % len(c.files)
	c.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read frame %s: %w", path, err)
	}
	return data, nil
}
