package usage

import (
	"context"
	"sync"
	"time"
)

const defaultMemoryCapacity = 10000

// memoryStore keeps the most recent events in a fixed-size ring.
type memoryStore struct {
	mu     sync.RWMutex
	events []Event
	next   int
	full   bool
}

func newMemoryStore(capacity int) *memoryStore {
	if capacity <= 0 {
		capacity = defaultMemoryCapacity
	}
	return &memoryStore{events: make([]Event, capacity)}
}

func (s *memoryStore) Insert(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[s.next] = e
	s.next = (s.next + 1) % len(s.events)
	if s.next == 0 {
		s.full = true
	}
	return nil
}

func (s *memoryStore) Summary(ctx context.Context, since time.Time) (Summary, error) {
	if err := ctx.Err(); err != nil {
		return Summary{}, err
	}
	out := newSummary(since)
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := s.next
	if s.full {
		n = len(s.events)
	}
	for i := 0; i < n; i++ {
		e := s.events[i]
		if e.CreatedAt.Before(since) {
			continue
		}
		out.add(e.Channel, e.Outcome, 1)
	}
	return out, nil
}
