package session

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	"legal-ease-backend/internal/llm"
	"legal-ease-backend/internal/shared/telemetry"
	"legal-ease-backend/internal/shared/util"
)

const defaultShards = 32

// Eviction reasons reported to Config.OnEvict.
const (
	EvictExpired  = "expired"
	EvictReplaced = "replaced"
	EvictReset    = "reset"
)

// Config controls a Store.
type Config struct {
	TTL     time.Duration
	Shards  int
	Now     func() time.Time
	OnEvict func(reason string)
}

// Store holds at most one session per owner. Owners are spread over
// independently locked shards so unrelated owners never contend.
type Store struct {
	shards  []*shard
	ttl     time.Duration
	now     func() time.Time
	onEvict func(string)
	gen     atomic.Uint64
	closed  atomic.Bool
}

type shard struct {
	mu    sync.Mutex
	items map[string]*Session
}

// NewStore constructs an empty Store.
func NewStore(cfg Config) *Store {
	n := cfg.Shards
	if n <= 0 {
		n = defaultShards
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	onEvict := cfg.OnEvict
	if onEvict == nil {
		onEvict = func(string) {}
	}
	s := &Store{
		shards:  make([]*shard, n),
		ttl:     ttl,
		now:     now,
		onEvict: onEvict,
	}
	for i := range s.shards {
		s.shards[i] = &shard{items: make(map[string]*Session)}
	}
	return s
}

// TTL returns the configured session lifetime.
func (s *Store) TTL() time.Duration { return s.ttl }

func (s *Store) shardFor(owner string) *shard {
	return s.shards[xxhash.Sum64String(owner)%uint64(len(s.shards))]
}

// expired is the single expiry test shared by lazy reads, commits, stats and
// the sweeper. A reservation still in StateAnalyzing gets one extra TTL so an
// in-flight analysis can commit; past that it is treated as abandoned.
func (s *Store) expired(sess *Session, now time.Time) bool {
	deadline := sess.ExpiresAt
	if sess.State == StateAnalyzing {
		deadline = deadline.Add(s.ttl)
	}
	return now.After(deadline)
}

// CreateOrReplace discards any session for owner and reserves a new one in
// StateAnalyzing. The returned token must accompany every later commit.
func (s *Store) CreateOrReplace(owner, filename string) (Session, error) {
	if s.closed.Load() {
		return Session{}, ErrStoreClosed
	}
	now := s.now()
	next := &Session{
		Owner:          owner,
		State:          StateAnalyzing,
		Filename:       strings.TrimSpace(filename),
		CreatedAt:      now,
		LastAccessedAt: now,
		ExpiresAt:      now.Add(s.ttl),
	}

	sh := s.shardFor(owner)
	sh.mu.Lock()
	next.Token = Token(s.gen.Add(1))
	prev, replaced := sh.items[owner]
	sh.items[owner] = next
	out := *next
	sh.mu.Unlock()

	if replaced {
		reason := EvictReplaced
		if s.expired(prev, now) {
			reason = EvictExpired
		}
		s.onEvict(reason)
		telemetry.Info("session.replaced", map[string]any{
			"owner_hash": util.HashUserKey(owner),
			"prev_state": string(prev.State),
			"token":      uint64(out.Token),
		})
	}
	return out, nil
}

// AttachText stores the extracted document text on the reservation identified by token.
func (s *Store) AttachText(owner string, token Token, text string, pageCount int) (Session, error) {
	return s.commit(owner, token, func(sess *Session) error {
		if sess.State != StateAnalyzing {
			return ErrInvalidTransition
		}
		sess.DocumentText = text
		sess.PageCount = pageCount
		return nil
	})
}

// MarkReady attaches the analysis and moves the session to StateReady.
func (s *Store) MarkReady(owner string, token Token, analysis llm.Analysis) (Session, error) {
	return s.commit(owner, token, func(sess *Session) error {
		if sess.State != StateAnalyzing {
			return ErrInvalidTransition
		}
		a := analysis
		sess.Analysis = &a
		sess.State = StateReady
		return nil
	})
}

// MarkFailed moves the session to StateFailed. Failed is terminal until the next upload.
func (s *Store) MarkFailed(owner string, token Token, reason string) (Session, error) {
	return s.commit(owner, token, func(sess *Session) error {
		if sess.State != StateAnalyzing {
			return ErrInvalidTransition
		}
		sess.State = StateFailed
		sess.FailureReason = reason
		return nil
	})
}

// commit applies fn only if owner's live session still carries token. A
// successful commit restarts the session lifetime.
func (s *Store) commit(owner string, token Token, fn func(*Session) error) (Session, error) {
	if s.closed.Load() {
		return Session{}, ErrStoreClosed
	}
	now := s.now()
	sh := s.shardFor(owner)
	sh.mu.Lock()
	sess, ok := sh.items[owner]
	if !ok {
		sh.mu.Unlock()
		return Session{}, ErrSessionNotFound
	}
	if s.expired(sess, now) {
		delete(sh.items, owner)
		sh.mu.Unlock()
		s.onEvict(EvictExpired)
		return Session{}, ErrSessionNotFound
	}
	if sess.Token != token {
		sh.mu.Unlock()
		return Session{}, ErrSessionNotFound
	}
	if err := fn(sess); err != nil {
		sh.mu.Unlock()
		return Session{}, err
	}
	sess.LastAccessedAt = now
	sess.ExpiresAt = now.Add(s.ttl)
	out := *sess
	sh.mu.Unlock()
	return out, nil
}

// Get returns the owner's live session and extends its lifetime.
// An expired session is evicted and reported as ErrSessionNotFound.
func (s *Store) Get(owner string) (Session, error) {
	if s.closed.Load() {
		return Session{}, ErrStoreClosed
	}
	now := s.now()
	sh := s.shardFor(owner)
	sh.mu.Lock()
	sess, ok := sh.items[owner]
	if !ok {
		sh.mu.Unlock()
		return Session{}, ErrSessionNotFound
	}
	if s.expired(sess, now) {
		delete(sh.items, owner)
		sh.mu.Unlock()
		s.onEvict(EvictExpired)
		return Session{}, ErrSessionNotFound
	}
	sess.LastAccessedAt = now
	sess.ExpiresAt = now.Add(s.ttl)
	out := *sess
	sh.mu.Unlock()
	return out, nil
}

// Clear removes the owner's session and reports whether one existed.
func (s *Store) Clear(owner string) (bool, error) {
	if s.closed.Load() {
		return false, ErrStoreClosed
	}
	sh := s.shardFor(owner)
	sh.mu.Lock()
	_, existed := sh.items[owner]
	delete(sh.items, owner)
	sh.mu.Unlock()
	if existed {
		s.onEvict(EvictReset)
	}
	return existed, nil
}

// Sweep evicts every expired session and returns how many were removed.
func (s *Store) Sweep() int {
	now := s.now()
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for owner, sess := range sh.items {
			if s.expired(sess, now) {
				delete(sh.items, owner)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	for i := 0; i < removed; i++ {
		s.onEvict(EvictExpired)
	}
	return removed
}

// Run sweeps on every tick until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				telemetry.Info("session.sweep", map[string]any{
					"removed":   n,
					"remaining": s.Len(),
				})
			}
		}
	}
}

// Len returns the number of stored sessions, including ones not yet swept.
func (s *Store) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.items)
		sh.mu.Unlock()
	}
	return n
}

// Stats reports counts by state and the creation time range of live sessions.
func (s *Store) Stats() Stats {
	now := s.now()
	st := Stats{ByState: map[State]int{}}
	for _, sh := range s.shards {
		sh.mu.Lock()
		for _, sess := range sh.items {
			if s.expired(sess, now) {
				continue
			}
			st.Total++
			st.ByState[sess.State]++
			created := sess.CreatedAt
			if st.Oldest == nil || created.Before(*st.Oldest) {
				st.Oldest = &created
			}
			if st.Newest == nil || created.After(*st.Newest) {
				c := created
				st.Newest = &c
			}
		}
		sh.mu.Unlock()
	}
	return st
}

// Close makes every later operation fail with ErrStoreClosed and drops all sessions.
func (s *Store) Close() {
	if s.closed.Swap(true) {
		return
	}
	for _, sh := range s.shards {
		sh.mu.Lock()
		sh.items = make(map[string]*Session)
		sh.mu.Unlock()
	}
}
