package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/mamadbah2/fieldtrack/internal/blob"
)

// ObjectStore is a blob.Store kept in process memory.
type ObjectStore struct {
	mu      sync.RWMutex
	objects map[string]blob.Object
}

// NewObjectStore returns an empty object store.
func NewObjectStore() *ObjectStore {
	return &ObjectStore{objects: make(map[string]blob.Object)}
}

func (s *ObjectStore) Put(_ context.Context, path string, obj blob.Object) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[path] = blob.Object{Data: append([]byte(nil), obj.Data...), ContentType: obj.ContentType}
	return nil
}

func (s *ObjectStore) Get(_ context.Context, path string) (blob.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[path]
	if !ok {
		return blob.Object{}, fmt.Errorf("%s: %w", path, blob.ErrNotFound)
	}
	return blob.Object{Data: append([]byte(nil), obj.Data...), ContentType: obj.ContentType}, nil
}
