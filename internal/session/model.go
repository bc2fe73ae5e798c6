package session

import (
	"time"

	"legal-ease-backend/internal/llm"
)

// State is the lifecycle position of a session.
type State string

const (
	StateEmpty     State = "empty"
	StateAnalyzing State = "analyzing"
	StateReady     State = "ready"
	StateFailed    State = "failed"
)

// Token identifies one reservation made by CreateOrReplace. Tokens are issued
// under the owner's shard lock, so an owner's tokens only grow.
type Token uint64

// Session is a snapshot of one owner's document session.
// Analysis is set only in StateReady.
type Session struct {
	Owner          string        `json:"-"`
	State          State         `json:"state"`
	Token          Token         `json:"-"`
	Filename       string        `json:"filename,omitempty"`
	DocumentText   string        `json:"-"`
	PageCount      int           `json:"pageCount,omitempty"`
	Analysis       *llm.Analysis `json:"analysis,omitempty"`
	FailureReason  string        `json:"failureReason,omitempty"`
	CreatedAt      time.Time     `json:"createdAt"`
	LastAccessedAt time.Time     `json:"lastAccessedAt"`
	ExpiresAt      time.Time     `json:"expiresAt"`
}

// Stats summarizes the store contents.
type Stats struct {
	Total   int           `json:"total"`
	ByState map[State]int `json:"byState"`
	Oldest  *time.Time    `json:"oldestCreatedAt,omitempty"`
	Newest  *time.Time    `json:"newestCreatedAt,omitempty"`
}
