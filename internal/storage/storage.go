package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrInvalidConfig   = errors.New("storage: invalid configuration")
	ErrUploadFailed    = errors.New("storage: upload failed")
	ErrUnsupportedType = errors.New("storage: unsupported content type")
)

// allowedImageTypes - форматы логотипов
var allowedImageTypes = map[string]string{
	"image/png":     ".png",
	"image/jpeg":    ".jpg",
	"image/webp":    ".webp",
	"image/svg+xml": ".svg",
}

// Object - файл для загрузки
type Object struct {
	Prefix      string
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Uploader сохраняет файл и возвращает его публичный URL
type Uploader interface {
	Upload(ctx context.Context, obj Object) (string, error)
}

// ObjectKey строит уникальный ключ вида prefix/uuid.ext
func ObjectKey(obj Object) (string, error) {
	ext, ok := allowedImageTypes[strings.ToLower(obj.ContentType)]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, obj.ContentType)
	}
	prefix := strings.Trim(obj.Prefix, "/")
	if prefix == "" {
		prefix = "uploads"
	}
	return path.Join(prefix, uuid.NewString()+ext), nil
}

// MemoryUploader хранит файлы в памяти. Используется с драйвером memory и в тестах.
type MemoryUploader struct {
	baseURL string

	mu      sync.Mutex
	objects map[string][]byte
}

func NewMemoryUploader(baseURL string) *MemoryUploader {
	return &MemoryUploader{baseURL: strings.TrimSuffix(baseURL, "/"), objects: make(map[string][]byte)}
}

func (u *MemoryUploader) Upload(_ context.Context, obj Object) (string, error) {
	key, err := ObjectKey(obj)
	if err != nil {
		return "", err
	}
	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return "", errors.Join(ErrUploadFailed, err)
	}
	u.mu.Lock()
	u.objects[key] = data
	u.mu.Unlock()
	return u.baseURL + "/" + key, nil
}

// Len возвращает число сохраненных объектов
func (u *MemoryUploader) Len() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.objects)
}
