package blob

import (
	"bytes"
	"context"
	"io"
	"sync"
)

// InMemoryStore backs tests and no-MinIO development.
type InMemoryStore struct {
	mutex   sync.RWMutex
	objects map[string][]byte
}

func InitInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		objects: make(map[string][]byte),
	}
}

func (s *InMemoryStore) Put(ctx context.Context, handle string, reader io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.objects[handle] = data
	return nil
}

func (s *InMemoryStore) Get(ctx context.Context, handle string) (io.ReadCloser, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	data, found := s.objects[handle]
	if !found {
		return nil, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *InMemoryStore) Delete(ctx context.Context, handle string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.objects, handle)
	return nil
}
