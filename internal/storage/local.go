package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Local writes uploads under a directory on disk. Locations are file paths.
type Local struct {
	dir string
}

func NewLocal(dir string) (*Local, error) {
	if dir == "" {
		dir = "app/data/uploads"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Local{dir: dir}, nil
}

func (l *Local) Save(ctx context.Context, filename string, r io.Reader) (string, error) {
	name, err := CleanFilename(filename)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := filepath.Join(l.dir, uniqueName(name))
	tmp, err := os.CreateTemp(l.dir, ".upload-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", err
	}
	return path, nil
}

// Load reads a file previously returned by Save. Paths outside the upload directory are rejected.
func (l *Local) Load(_ context.Context, location string) ([]byte, error) {
	if err := l.inside(location); err != nil {
		return nil, err
	}
	return os.ReadFile(location)
}

// Delete removes a saved upload. A missing file is not an error.
func (l *Local) Delete(_ context.Context, location string) error {
	if err := l.inside(location); err != nil {
		return err
	}
	if err := os.Remove(location); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (l *Local) inside(location string) error {
	rel, err := filepath.Rel(l.dir, location)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("location %s is outside the upload directory", location)
	}
	return nil
}
