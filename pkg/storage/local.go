package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

type LocalStore struct {
	dir string
}

func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &LocalStore{dir: dir}, nil
}

func (s *LocalStore) Dir() string {
	return s.dir
}

func (s *LocalStore) Save(_ context.Context, filename, contentType string, body io.Reader) (string, error) {
	key := objectName(filename, contentType)
	f, err := os.Create(filepath.Join(s.dir, key))
	if err != nil {
		return "", fmt.Errorf("failed to create image file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, body); err != nil {
		return "", fmt.Errorf("failed to write image file: %w", err)
	}
	return key, nil
}

// Delete removes the image; a missing file is not an error.
func (s *LocalStore) Delete(_ context.Context, key string) error {
	if key == "" {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, filepath.Base(key)))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove image file: %w", err)
	}
	return nil
}
