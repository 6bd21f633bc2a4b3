package audit

import (
	"context"
	"sync"
	"time"
)

// DefaultMemoryCapacity bounds the in-memory store so a chatty caller
// cannot grow it without limit. Oldest events are dropped first.
const DefaultMemoryCapacity = 1024

// MemoryStore keeps events in memory. It is the default store for tests
// and for embedders that only want the mirrored log stream.
type MemoryStore struct {
	mu     sync.RWMutex
	events []Event
	cap    int
}

// NewMemoryStore creates a bounded in-memory event store. A capacity of
// zero or less uses DefaultMemoryCapacity.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryStore{cap: capacity}
}

func (s *MemoryStore) SaveEvent(ctx context.Context, event *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, *event)
	if len(s.events) > s.cap {
		s.events = s.events[len(s.events)-s.cap:]
	}
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, filter Filter) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []Event
	// Newest first.
	for i := len(s.events) - 1; i >= 0; i-- {
		if filter.Matches(&s.events[i]) {
			matched = append(matched, s.events[i])
		}
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func (s *MemoryStore) Count(ctx context.Context, filter Filter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for i := range s.events {
		if filter.Matches(&s.events[i]) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.events[:0]
	var purged int64
	for i := range s.events {
		if s.events[i].CreatedAt.Before(olderThan) {
			purged++
			continue
		}
		kept = append(kept, s.events[i])
	}
	s.events = kept
	return purged, nil
}
