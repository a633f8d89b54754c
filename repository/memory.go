package repository

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/princinho/postboard/apperror"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// MemoryRepository is an in-process Repository used for local development
// and tests. Documents are kept BSON encoded so filters and patches behave
// like they do against MongoDB. All writes are serialized by mu.
type MemoryRepository[T any] struct {
	mu     sync.RWMutex
	docs   map[bson.ObjectID][]byte
	order  []bson.ObjectID
	unique []string
	now    func() time.Time
}

// NewMemoryRepository returns an empty store. unique names fields that must
// not repeat across documents when non-empty, like a sparse unique index.
func NewMemoryRepository[T any](unique ...string) *MemoryRepository[T] {
	return &MemoryRepository[T]{
		docs:   make(map[bson.ObjectID][]byte),
		unique: unique,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryRepository[T]) Find(_ context.Context, filter bson.M) ([]T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]T, 0)
	for _, id := range r.order {
		m, err := decodeMap(r.docs[id])
		if err != nil {
			return nil, err
		}
		if !matches(m, filter) {
			continue
		}
		var doc T
		if err := bson.Unmarshal(r.docs[id], &doc); err != nil {
			return nil, err
		}
		items = append(items, doc)
	}
	return items, nil
}

func (r *MemoryRepository[T]) findOne(filter bson.M) (*T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.order {
		m, err := decodeMap(r.docs[id])
		if err != nil {
			return nil, err
		}
		if matches(m, filter) {
			var doc T
			if err := bson.Unmarshal(r.docs[id], &doc); err != nil {
				return nil, err
			}
			return &doc, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryRepository[T]) FindByID(_ context.Context, id string) (*T, error) {
	oid, err := ParseID(id)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	raw, ok := r.docs[oid]
	if !ok {
		return nil, ErrNotFound
	}
	var doc T
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *MemoryRepository[T]) Create(_ context.Context, doc *T) error {
	m, err := toDocument(doc, r.now())
	if err != nil {
		return err
	}
	oid := m["_id"].(bson.ObjectID)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.docs[oid]; exists {
		return fmt.Errorf("memory: %w", apperror.ErrConflict)
	}
	if err := r.checkUnique(oid, m); err != nil {
		return err
	}
	raw, err := bson.Marshal(m)
	if err != nil {
		return err
	}
	r.docs[oid] = raw
	r.order = append(r.order, oid)
	return bson.Unmarshal(raw, doc)
}

func (r *MemoryRepository[T]) FindByIDAndUpdate(_ context.Context, id string, patch bson.M) (*T, error) {
	oid, err := ParseID(id)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	raw, ok := r.docs[oid]
	if !ok {
		return nil, ErrNotFound
	}
	m, err := decodeMap(raw)
	if err != nil {
		return nil, err
	}
	for k, v := range withUpdatedAt(patch, r.now()) {
		m[k] = v
	}
	if err := r.checkUnique(oid, m); err != nil {
		return nil, err
	}
	if raw, err = bson.Marshal(m); err != nil {
		return nil, err
	}
	r.docs[oid] = raw

	var doc T
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *MemoryRepository[T]) FindByIDAndDelete(_ context.Context, id string) (*T, error) {
	oid, err := ParseID(id)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	raw, ok := r.docs[oid]
	if !ok {
		return nil, ErrNotFound
	}
	var doc T
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	delete(r.docs, oid)
	for i, o := range r.order {
		if o == oid {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return &doc, nil
}

// mutate decodes one document, lets fn change it and stores the result when
// fn reports a change. It runs entirely under the write lock.
func (r *MemoryRepository[T]) mutate(id string, fn func(doc *T) bool) (bool, error) {
	oid, err := ParseID(id)
	if err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	raw, ok := r.docs[oid]
	if !ok {
		return false, ErrNotFound
	}
	var doc T
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return false, err
	}
	if !fn(&doc) {
		return false, nil
	}
	m, err := toDocumentKeepingCreated(&doc, raw, r.now())
	if err != nil {
		return false, err
	}
	if r.docs[oid], err = bson.Marshal(m); err != nil {
		return false, err
	}
	return true, nil
}

func (r *MemoryRepository[T]) checkUnique(self bson.ObjectID, m bson.M) error {
	for _, field := range r.unique {
		v, ok := m[field]
		if !ok || v == nil || v == "" {
			continue
		}
		for oid, raw := range r.docs {
			if oid == self {
				continue
			}
			other, err := decodeMap(raw)
			if err != nil {
				return err
			}
			if reflect.DeepEqual(other[field], v) {
				return fmt.Errorf("memory: duplicate %s: %w", field, apperror.ErrConflict)
			}
		}
	}
	return nil
}

func toDocumentKeepingCreated(doc any, prev []byte, now time.Time) (bson.M, error) {
	m, err := toDocument(doc, now)
	if err != nil {
		return nil, err
	}
	old, err := decodeMap(prev)
	if err != nil {
		return nil, err
	}
	m["_id"] = old["_id"]
	m["createdAt"] = old["createdAt"]
	return m, nil
}

func decodeMap(raw []byte) (bson.M, error) {
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func matches(doc, filter bson.M) bool {
	for k, want := range filter {
		got, ok := doc[k]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}
