package memory

import (
	"context"
	"sync"

	"github.com/racanix/location-foreground-service/module/tracking/internal/repository/store"
)

var _ store.BlobStore = (*KVStore)(nil)

// KVStore keeps values in process memory. Used when no database is configured.
type KVStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewKVStore() *KVStore {
	return &KVStore{values: map[string]string{}}
}

func (s *KVStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[key], nil
}

func (s *KVStore) Put(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}
