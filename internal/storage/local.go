package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore serves documents from a directory, for development and the CLI.
type LocalStore struct {
	root     string
	maxBytes int64
}

// NewLocalStore roots a store at dir.
func NewLocalStore(dir string, maxBytes int64) (*LocalStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("NewLocalStore: %w", err)
	}
	if abs, err = filepath.EvalSymlinks(abs); err != nil {
		return nil, fmt.Errorf("NewLocalStore: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("NewLocalStore: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("NewLocalStore: %s is not a directory", abs)
	}
	return &LocalStore{root: abs, maxBytes: maxBytes}, nil
}

// Fetch reads root/key. Keys may not leave the root directory, neither
// through ".." nor through symbolic links.
func (s *LocalStore) Fetch(ctx context.Context, key string) ([]byte, error) {
	const op = "LocalStore.Fetch"

	path, err := s.resolve(key)
	if err != nil {
		return nil, fmt.Errorf("%s: %q: %w", op, key, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %q: %w", op, key, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s: %q is a directory: %w", op, key, ErrNotFound)
	}
	if s.maxBytes > 0 && info.Size() > s.maxBytes {
		return nil, fmt.Errorf("%s: %d bytes: %w", op, info.Size(), ErrTooLarge)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return data, nil
}

func (s *LocalStore) resolve(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", ErrInvalidKey
	}

	path := filepath.Join(s.root, filepath.FromSlash(key))
	if !s.contains(path) {
		return "", ErrInvalidKey
	}

	target, err := filepath.EvalSymlinks(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return path, nil
		}
		return "", err
	}
	if !s.contains(target) {
		return "", ErrInvalidKey
	}
	return target, nil
}

func (s *LocalStore) contains(path string) bool {
	rel, err := filepath.Rel(s.root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return true
}
