// Package objectstore хранит входные пропсы и готовые видео.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"os"
)

var ErrNotFound = errors.New("object not found")

// Store - минимальное объектное хранилище: положить, прочитать, получить URL.
type Store interface {
	// Put сохраняет объект и возвращает его публичный URL.
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	URL(key string) string
	Bucket() string
}

// PutFile загружает локальный файл целиком.
func PutFile(ctx context.Context, s Store, key, path, contentType string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return s.Put(ctx, key, data, contentType)
}
