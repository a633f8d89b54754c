// Package storage uploads post images to an object store and removes them.
package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/princinho/postboard/config"
)

const (
	DriverNone   = "none"
	DriverR2     = "r2"
	DriverGCS    = "gcs"
	DriverMemory = "memory"
)

// Object is one upload. Size may be -1 when unknown.
type Object struct {
	Key         string
	Body        io.Reader
	Size        int64
	ContentType string
}

// ObjectStore is implemented by every backend.
type ObjectStore interface {
	// Put stores obj and returns its public URL.
	Put(ctx context.Context, obj Object) (string, error)
	Delete(ctx context.Context, key string) error
}

// New builds the backend selected by cfg.Driver. It returns a nil store for
// DriverNone.
func New(ctx context.Context, cfg config.StorageConfig) (ObjectStore, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", DriverNone:
		return nil, nil
	case DriverR2:
		store, err := NewR2Store(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return store, nil
	case DriverGCS:
		store, err := NewGCSStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return store, nil
	case DriverMemory:
		return NewMemoryStore("memory://" + cfg.R2Bucket), nil
	}
	return nil, fmt.Errorf("storage: unknown driver %q", cfg.Driver)
}

// ObjectKey builds a unique key under prefix keeping the file extension.
func ObjectKey(prefix, owner, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = ".bin"
	}
	return fmt.Sprintf("%s/%s/%d-%s%s", prefix, owner, time.Now().UTC().Unix(), uuid.New().String(), ext)
}
