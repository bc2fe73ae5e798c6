package ratelimit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(c *clock, denied *[]Scope) *Limiter {
	return New(Config{
		Policy: Policy{
			ScopeUpload:              {Limit: 5, Window: 300 * time.Second},
			ScopeQuestion:            {Limit: 20, Window: 300 * time.Second},
			ChannelScope("whatsapp"): {Limit: 6, Window: 300 * time.Second},
		},
		Shards: 4,
		Now:    c.Now,
		OnDeny: func(s Scope) {
			if denied != nil {
				*denied = append(*denied, s)
			}
		},
	})
}

func TestFixedWindowAdmitsUpToLimit(t *testing.T) {
	c := &clock{now: time.Unix(1_700_000_000, 0)}
	l := newTestLimiter(c, nil)

	for i := 0; i < 5; i++ {
		d := l.TryAdmit("web:a", ScopeUpload)
		require.True(t, d.Allowed, "call %d", i+1)
		assert.Equal(t, 4-i, d.Remaining)
		c.Advance(10 * time.Second)
	}

	d := l.TryAdmit("web:a", ScopeUpload)
	require.False(t, d.Allowed)
	assert.Equal(t, ScopeUpload, d.Scope)
	assert.Equal(t, 250*time.Second, d.RetryAfter)
	assert.LessOrEqual(t, d.RetryAfter, 300*time.Second)

	c.Advance(250 * time.Second)
	require.True(t, l.TryAdmit("web:a", ScopeUpload).Allowed, "new window admits")
}

func TestScopesAndOwnersAreIndependent(t *testing.T) {
	c := &clock{now: time.Unix(1_700_000_000, 0)}
	l := newTestLimiter(c, nil)
	for i := 0; i < 5; i++ {
		require.True(t, l.TryAdmit("web:a", ScopeUpload).Allowed)
	}
	assert.False(t, l.TryAdmit("web:a", ScopeUpload).Allowed)
	assert.True(t, l.TryAdmit("web:a", ScopeQuestion).Allowed)
	assert.True(t, l.TryAdmit("web:b", ScopeUpload).Allowed)
}

func TestUnconfiguredScopeAlwaysAdmits(t *testing.T) {
	l := New(Config{})
	for i := 0; i < 100; i++ {
		require.True(t, l.TryAdmit("x", ScopeUpload).Allowed)
	}
}

func TestAdmitAllReleasesOnDenial(t *testing.T) {
	c := &clock{now: time.Unix(1_700_000_000, 0)}
	var denied []Scope
	l := newTestLimiter(c, &denied)
	channel := ChannelScope("whatsapp")

	// Fill the channel ceiling with questions.
	for i := 0; i < 6; i++ {
		require.True(t, l.AdmitAll("wa:1", ScopeQuestion, channel).Allowed)
	}
	d := l.AdmitAll("wa:1", ScopeUpload, channel)
	require.False(t, d.Allowed)
	assert.Equal(t, channel, d.Scope)
	assert.Equal(t, []Scope{channel}, denied)

	// The upload slot taken before the channel denial was handed back.
	for i := 0; i < 5; i++ {
		require.True(t, l.TryAdmit("wa:1", ScopeUpload).Allowed, "upload %d", i+1)
	}
}

func TestAdmitAllReportsTightestRemaining(t *testing.T) {
	c := &clock{now: time.Unix(1_700_000_000, 0)}
	l := newTestLimiter(c, nil)
	d := l.AdmitAll("wa:1", ScopeUpload, ChannelScope("whatsapp"))
	require.True(t, d.Allowed)
	assert.Equal(t, 4, d.Remaining)
	assert.Equal(t, ScopeUpload, d.Scope)
}

func TestReleaseIgnoresStaleWindow(t *testing.T) {
	c := &clock{now: time.Unix(1_700_000_000, 0)}
	l := newTestLimiter(c, nil)
	d := l.TryAdmit("web:a", ScopeUpload)
	require.True(t, d.Allowed)

	c.Advance(301 * time.Second)
	for i := 0; i < 5; i++ {
		require.True(t, l.TryAdmit("web:a", ScopeUpload).Allowed)
	}
	l.Release(d)
	assert.False(t, l.TryAdmit("web:a", ScopeUpload).Allowed)
}

func TestConcurrentAdmissionNeverExceedsLimit(t *testing.T) {
	c := &clock{now: time.Unix(1_700_000_000, 0)}
	l := newTestLimiter(c, nil)
	var admitted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.TryAdmit("web:a", ScopeQuestion).Allowed {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 20, admitted.Load())
}

func TestSweepDropsElapsedWindows(t *testing.T) {
	c := &clock{now: time.Unix(1_700_000_000, 0)}
	l := newTestLimiter(c, nil)
	l.TryAdmit("a", ScopeUpload)
	l.TryAdmit("b", ScopeQuestion)
	assert.Equal(t, 0, l.Sweep())
	c.Advance(300 * time.Second)
	assert.Equal(t, 2, l.Sweep())
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy([]byte(`
limits:
  upload: {limit: 3, window: 60s}
  WhatsApp:
    limit: 10
    window: 5m
`))
	require.NoError(t, err)
	assert.Equal(t, Rule{Limit: 3, Window: time.Minute}, p[ScopeUpload])
	assert.Equal(t, Rule{Limit: 10, Window: 5 * time.Minute}, p[ChannelScope("whatsapp")])

	merged := Policy{ScopeQuestion: {Limit: 20, Window: time.Minute}, ScopeUpload: {Limit: 5, Window: time.Minute}}.Merge(p)
	assert.Equal(t, 3, merged[ScopeUpload].Limit)
	assert.Equal(t, 20, merged[ScopeQuestion].Limit)

	_, err = ParsePolicy([]byte("limits:\n  upload: {limit: 0, window: 1m}\n"))
	require.Error(t, err)
	_, err = ParsePolicy([]byte("limits:\n  upload: {limit: 1, window: soon}\n"))
	require.Error(t, err)
}
