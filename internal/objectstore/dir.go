package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DirStore кладёт объекты в локальную директорию; URL строятся от
// публичного базового адреса, под которым директория раздаётся.
type DirStore struct {
	root    string
	baseURL string
}

var _ Store = (*DirStore)(nil)

func NewDirStore(root, baseURL string) (*DirStore, error) {
	if root == "" {
		return nil, errors.New("dir store: root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("dir store: %w", err)
	}
	return &DirStore{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (d *DirStore) Bucket() string { return filepath.Base(d.root) }

func (d *DirStore) URL(key string) string {
	key = strings.TrimLeft(key, "/")
	if d.baseURL == "" {
		return "file://" + filepath.ToSlash(d.path(key))
	}
	return d.baseURL + "/" + key
}

func (d *DirStore) Put(_ context.Context, key string, body []byte, _ string) (string, error) {
	p := d.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", fmt.Errorf("dir store: %w", err)
	}
	// Пишем через временный файл, чтобы читатель не увидел половину объекта.
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return "", fmt.Errorf("dir store: %w", err)
	}
	if err := os.Rename(tmp, p); err != nil {
		return "", fmt.Errorf("dir store: %w", err)
	}
	return d.URL(key), nil
}

func (d *DirStore) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(d.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("dir store: %w", err)
	}
	return data, nil
}

// path не даёт ключу выйти за пределы root.
func (d *DirStore) path(key string) string {
	clean := filepath.Clean("/" + strings.TrimLeft(key, "/"))
	return filepath.Join(d.root, filepath.FromSlash(clean))
}
