package usage

import "time"

// Event records one orchestrator operation. Owners are stored as hashes only.
type Event struct {
	ID         string    `json:"id"`
	OwnerHash  string    `json:"ownerHash"`
	Channel    string    `json:"channel"`
	Action     string    `json:"action"`
	Outcome    string    `json:"outcome"`
	DurationMs int64     `json:"durationMs"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Summary aggregates events recorded since a point in time.
type Summary struct {
	Since     time.Time      `json:"since"`
	Total     int            `json:"total"`
	ByOutcome map[string]int `json:"byOutcome"`
	ByChannel map[string]int `json:"byChannel"`
}

func newSummary(since time.Time) Summary {
	return Summary{
		Since:     since,
		ByOutcome: map[string]int{},
		ByChannel: map[string]int{},
	}
}

func (s *Summary) add(channel, outcome string, n int) {
	s.Total += n
	s.ByOutcome[outcome] += n
	s.ByChannel[channel] += n
}
