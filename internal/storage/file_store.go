package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileStore writes artifacts into a local directory served under URLPrefix.
type FileStore struct {
	dir       string
	urlPrefix string
}

func NewFileStore(dir, urlPrefix string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact dir: %w", err)
	}
	return &FileStore{dir: dir, urlPrefix: strings.TrimRight(urlPrefix, "/")}, nil
}

func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) Put(_ context.Context, name, _ string, data []byte) (string, error) {
	if name == "" || name != filepath.Base(name) {
		return "", fmt.Errorf("invalid artifact name %q", name)
	}

	path := filepath.Join(s.dir, name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("%w: %s", ErrArtifactExists, name)
		}
		return "", fmt.Errorf("failed to create artifact: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to close artifact: %w", err)
	}

	return s.urlPrefix + "/" + name, nil
}
