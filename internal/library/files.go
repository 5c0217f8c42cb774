package library

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// DiskStore reads documents from absolute paths picked by the shell's
// native dialogs and saves into its configured directory.
type DiskStore struct {
	dir string
}

func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &DiskStore{dir: dir}, nil
}

func (s *DiskStore) Read(ctx context.Context, path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Save writes atomically: a rename never leaves a half-written document
// behind on crash.
func (s *DiskStore) Save(ctx context.Context, name string, data []byte) error {
	target := filepath.Join(s.dir, filepath.Base(name))
	tmp, err := os.CreateTemp(s.dir, ".save-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), target)
}
