package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// MemoryStore keeps objects in process. Used for local runs and tests.
type MemoryStore struct {
	mu      sync.Mutex
	baseURL string
	objects map[string]StoredObject
}

type StoredObject struct {
	Data        []byte
	ContentType string
}

func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		objects: make(map[string]StoredObject),
	}
}

func (m *MemoryStore) Put(_ context.Context, obj Object) (string, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, obj.Body); err != nil {
		return "", fmt.Errorf("upload copy: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[obj.Key] = StoredObject{Data: buf.Bytes(), ContentType: obj.ContentType}
	return m.baseURL + "/" + obj.Key, nil
}

// Delete of a missing key is not an error, like the S3 API.
func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *MemoryStore) Get(key string) (StoredObject, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	return obj, ok
}

func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
