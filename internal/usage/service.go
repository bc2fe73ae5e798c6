package usage

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

type store interface {
	Insert(ctx context.Context, e Event) error
	Summary(ctx context.Context, since time.Time) (Summary, error)
}

// Service records activity events via an underlying store.
type Service struct {
	store store
	now   func() time.Time
}

// NewService constructs a Service with in-memory store.
func NewService() *Service {
	return &Service{store: newMemoryStore(defaultMemoryCapacity), now: utcNow}
}

// NewPostgresService constructs a Service backed by Postgres.
func NewPostgresService(pgStore store) *Service {
	return &Service{store: pgStore, now: utcNow}
}

func utcNow() time.Time { return time.Now().UTC() }

// Record validates and stores e, filling ID and CreatedAt when absent.
func (s *Service) Record(ctx context.Context, e Event) (Event, error) {
	e.Action = strings.TrimSpace(e.Action)
	e.Outcome = strings.TrimSpace(e.Outcome)
	if e.Action == "" || e.Outcome == "" {
		return Event{}, ErrInvalidEvent
	}
	if e.Channel == "" {
		e.Channel = "unknown"
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	if e.DurationMs < 0 {
		e.DurationMs = 0
	}
	if err := s.store.Insert(ctx, e); err != nil {
		return Event{}, err
	}
	return e, nil
}

// Summary aggregates events recorded at or after since.
func (s *Service) Summary(ctx context.Context, since time.Time) (Summary, error) {
	return s.store.Summary(ctx, since)
}
