package usage

import (
	"context"
	"database/sql"
	"time"
)

type pgStore struct {
	DB *sql.DB
}

// NewPGStore constructs a Postgres-backed activity store.
func NewPGStore(db *sql.DB) *pgStore {
	return &pgStore{DB: db}
}

func (s *pgStore) Insert(ctx context.Context, e Event) error {
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO activity_events (id, owner_hash, channel, action, outcome, duration_ms, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.OwnerHash, e.Channel, e.Action, e.Outcome, e.DurationMs, e.CreatedAt)
	return err
}

func (s *pgStore) Summary(ctx context.Context, since time.Time) (Summary, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT channel, outcome, COUNT(*) FROM activity_events
WHERE created_at >= $1
GROUP BY channel, outcome`, since)
	if err != nil {
		return Summary{}, err
	}
	defer rows.Close()

	out := newSummary(since)
	for rows.Next() {
		var (
			channel string
			outcome string
			count   int
		)
		if err := rows.Scan(&channel, &outcome, &count); err != nil {
			return Summary{}, err
		}
		out.add(channel, outcome, count)
	}
	if err := rows.Err(); err != nil {
		return Summary{}, err
	}
	return out, nil
}
