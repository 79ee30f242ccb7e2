package session

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/knoguchi/supportagent/internal/model"
)

// MemoryStore keeps histories in process memory. Sessions expire after ttl
// without a write.
type MemoryStore struct {
	cache       *cache.Cache
	maxMessages int
}

// NewMemoryStore creates a store that purges expired sessions every ttl/6.
func NewMemoryStore(maxMessages int, ttl time.Duration) *MemoryStore {
	cleanup := ttl / 6
	if cleanup <= 0 {
		cleanup = 10 * time.Minute
	}
	return &MemoryStore{
		cache:       cache.New(ttl, cleanup),
		maxMessages: maxMessages,
	}
}

func (s *MemoryStore) Get(_ context.Context, sessionID string) ([]model.Turn, error) {
	x, found := s.cache.Get(sessionID)
	if !found {
		return []model.Turn{}, nil
	}
	// Return a copy to avoid sharing the cached slice
	return Trim(x.([]model.Turn), 0), nil
}

func (s *MemoryStore) Put(_ context.Context, sessionID string, turns []model.Turn) error {
	s.cache.Set(sessionID, Trim(turns, s.maxMessages), cache.DefaultExpiration)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionID string) (bool, error) {
	_, found := s.cache.Get(sessionID)
	s.cache.Delete(sessionID)
	return found, nil
}

func (s *MemoryStore) Count(context.Context) (int, error) {
	return s.cache.ItemCount(), nil
}

func (s *MemoryStore) Close() error {
	s.cache.Flush()
	return nil
}

var _ Store = (*MemoryStore)(nil)
