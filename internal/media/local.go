package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore writes media under a directory on disk.
type LocalStore struct {
	dir string
}

var _ Store = (*LocalStore)(nil)

func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("NewLocalStore: create %s: %w", dir, err)
	}
	return &LocalStore{dir: dir}, nil
}

// Put writes data and returns a file:// URI.
func (s *LocalStore) Put(ctx context.Context, objectName string, data []byte, contentType string) (string, error) {
	full := filepath.Join(s.dir, filepath.FromSlash(objectName))
	if !strings.HasPrefix(full, filepath.Clean(s.dir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("Put: object %q escapes media dir", objectName)
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("Put: create dir: %w", err)
	}
	if err := os.WriteFile(full, data, 0o600); err != nil {
		return "", fmt.Errorf("Put: write %s: %w", full, err)
	}
	return "file://" + full, nil
}

func (s *LocalStore) Get(ctx context.Context, uri string) ([]byte, error) {
	if !strings.HasPrefix(uri, "file://") {
		return nil, fmt.Errorf("Get: invalid file URI: %s", uri)
	}
	data, err := os.ReadFile(strings.TrimPrefix(uri, "file://"))
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return data, nil
}

func (s *LocalStore) Close() error {
	return nil
}
