package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

type memoryObject struct {
	data        []byte
	contentType string
}

// MemoryStore keeps objects in process memory. It is meant for development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]memoryObject)}
}

func (s *MemoryStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read object body: %w", err)
	}
	if contentType == "" {
		contentType = defaultContentType
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = memoryObject{data: data, contentType: contentType}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, key string) (*Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return &Object{
		Body:        io.NopCloser(bytes.NewReader(obj.data)),
		ContentType: obj.contentType,
		Size:        int64(len(obj.data)),
	}, nil
}

// Delete is idempotent, like S3.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

// Has reports whether key is stored.
func (s *MemoryStore) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[key]
	return ok
}

// Len returns the number of stored objects.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
