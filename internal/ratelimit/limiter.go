package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"legal-ease-backend/internal/shared/telemetry"
)

// Scope names a counter dimension: an action class or a channel ceiling.
type Scope string

const (
	ScopeUpload   Scope = "upload"
	ScopeQuestion Scope = "question"
)

// ChannelScope returns the aggregate scope for a channel, e.g. "channel:whatsapp".
func ChannelScope(channel string) Scope {
	return Scope("channel:" + channel)
}

// Rule admits Limit requests per fixed Window.
type Rule struct {
	Limit  int
	Window time.Duration
}

// Policy maps scopes to rules. Scopes without a rule are always admitted.
type Policy map[Scope]Rule

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed    bool
	Scope      Scope
	RetryAfter time.Duration
	Remaining  int
	ticket     ticket
}

type ticket struct {
	owner string
	scope Scope
	start time.Time
	valid bool
}

type key struct {
	owner string
	scope Scope
}

type window struct {
	start time.Time
	count int
}

type shard struct {
	mu      sync.Mutex
	windows map[key]*window
}

// Config controls a Limiter.
type Config struct {
	Policy Policy
	Shards int
	Now    func() time.Time
	OnDeny func(Scope)
}

// Limiter is a sharded fixed-window counter keyed by (owner, scope).
type Limiter struct {
	shards []*shard
	policy Policy
	now    func() time.Time
	onDeny func(Scope)
}

// New constructs a Limiter.
func New(cfg Config) *Limiter {
	n := cfg.Shards
	if n <= 0 {
		n = 32
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	onDeny := cfg.OnDeny
	if onDeny == nil {
		onDeny = func(Scope) {}
	}
	policy := make(Policy, len(cfg.Policy))
	for scope, rule := range cfg.Policy {
		if rule.Limit > 0 && rule.Window > 0 {
			policy[scope] = rule
		}
	}
	l := &Limiter{shards: make([]*shard, n), policy: policy, now: now, onDeny: onDeny}
	for i := range l.shards {
		l.shards[i] = &shard{windows: make(map[key]*window)}
	}
	return l
}

// Rule returns the configured rule for scope.
func (l *Limiter) Rule(scope Scope) (Rule, bool) {
	r, ok := l.policy[scope]
	return r, ok
}

func (l *Limiter) shardFor(k key) *shard {
	h := xxhash.Sum64String(k.owner + "|" + string(k.scope))
	return l.shards[h%uint64(len(l.shards))]
}

// TryAdmit counts one request against (owner, scope) if the current window has room.
func (l *Limiter) TryAdmit(owner string, scope Scope) Decision {
	rule, ok := l.policy[scope]
	if !ok {
		return Decision{Allowed: true, Scope: scope, Remaining: -1}
	}
	now := l.now()
	k := key{owner: owner, scope: scope}
	sh := l.shardFor(k)

	sh.mu.Lock()
	w, ok := sh.windows[k]
	if !ok {
		w = &window{start: now}
		sh.windows[k] = w
	}
	if now.Sub(w.start) >= rule.Window {
		w.start = now
		w.count = 0
	}
	if w.count < rule.Limit {
		w.count++
		d := Decision{
			Allowed:   true,
			Scope:     scope,
			Remaining: rule.Limit - w.count,
			ticket:    ticket{owner: owner, scope: scope, start: w.start, valid: true},
		}
		sh.mu.Unlock()
		return d
	}
	retry := rule.Window - now.Sub(w.start)
	sh.mu.Unlock()

	l.onDeny(scope)
	return Decision{Allowed: false, Scope: scope, RetryAfter: retry}
}

// Release returns a slot taken by an admitted decision, provided its window is still current.
func (l *Limiter) Release(d Decision) {
	if !d.Allowed || !d.ticket.valid {
		return
	}
	k := key{owner: d.ticket.owner, scope: d.ticket.scope}
	sh := l.shardFor(k)
	sh.mu.Lock()
	if w, ok := sh.windows[k]; ok && w.start.Equal(d.ticket.start) && w.count > 0 {
		w.count--
	}
	sh.mu.Unlock()
}

// AdmitAll admits only if every scope admits. Slots taken before a denial are released,
// so a denied request never consumes capacity.
func (l *Limiter) AdmitAll(owner string, scopes ...Scope) Decision {
	taken := make([]Decision, 0, len(scopes))
	for _, scope := range scopes {
		d := l.TryAdmit(owner, scope)
		if !d.Allowed {
			for _, prev := range taken {
				l.Release(prev)
			}
			return d
		}
		taken = append(taken, d)
	}
	out := Decision{Allowed: true, Remaining: -1}
	for _, d := range taken {
		if d.Remaining >= 0 && (out.Remaining < 0 || d.Remaining < out.Remaining) {
			out.Remaining = d.Remaining
			out.Scope = d.Scope
		}
	}
	return out
}

// Sweep drops windows whose period has elapsed; they would reset on next use anyway.
func (l *Limiter) Sweep() int {
	now := l.now()
	removed := 0
	for _, sh := range l.shards {
		sh.mu.Lock()
		for k, w := range sh.windows {
			rule, ok := l.policy[k.scope]
			if !ok || now.Sub(w.start) >= rule.Window {
				delete(sh.windows, k)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// Run sweeps on every tick until ctx is done.
func (l *Limiter) Run(ctx context.Context, interval time.Duration) error {
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
			if n := l.Sweep(); n > 0 {
				telemetry.Debug("ratelimit.sweep", map[string]any{"removed": n})
			}
		}
	}
}
