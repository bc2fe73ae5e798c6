package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"legal-ease-backend/internal/shared/telemetry"
)

// ResilienceConfig bounds how a backend call is timed out, retried, and circuit-broken.
type ResilienceConfig struct {
	Timeout             time.Duration
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	RetryMultiplier     float64

	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32
}

// DefaultResilienceConfig returns the settings used by the API server.
func DefaultResilienceConfig() ResilienceConfig {
	return ResilienceConfig{
		Timeout:                 60 * time.Second,
		RetryMaxAttempts:        3,
		RetryInitialBackoff:     200 * time.Millisecond,
		RetryMaxBackoff:         time.Second,
		RetryMultiplier:         2,
		BreakerMinRequests:      5,
		BreakerFailureRatio:     0.6,
		BreakerOpenTimeout:      30 * time.Second,
		BreakerHalfOpenMaxCalls: 1,
	}
}

func (c ResilienceConfig) normalize() ResilienceConfig {
	def := DefaultResilienceConfig()
	out := c
	if out.Timeout <= 0 {
		out.Timeout = def.Timeout
	}
	if out.RetryMaxAttempts <= 0 {
		out.RetryMaxAttempts = def.RetryMaxAttempts
	}
	if out.RetryInitialBackoff < 0 {
		out.RetryInitialBackoff = 0
	}
	if out.RetryMaxBackoff < out.RetryInitialBackoff {
		out.RetryMaxBackoff = out.RetryInitialBackoff
	}
	if out.RetryMultiplier < 1 {
		out.RetryMultiplier = def.RetryMultiplier
	}
	if out.BreakerMinRequests == 0 {
		out.BreakerMinRequests = def.BreakerMinRequests
	}
	if out.BreakerFailureRatio <= 0 || out.BreakerFailureRatio > 1 {
		out.BreakerFailureRatio = def.BreakerFailureRatio
	}
	if out.BreakerOpenTimeout <= 0 {
		out.BreakerOpenTimeout = def.BreakerOpenTimeout
	}
	if out.BreakerHalfOpenMaxCalls == 0 {
		out.BreakerHalfOpenMaxCalls = def.BreakerHalfOpenMaxCalls
	}
	return out
}

// Budget is the longest one wrapped call can take: every attempt running to
// its timeout plus the backoff sleeps between them.
func (c ResilienceConfig) Budget() time.Duration {
	c = c.normalize()
	total := time.Duration(c.RetryMaxAttempts) * c.Timeout
	backoff := c.RetryInitialBackoff
	for i := 1; i < c.RetryMaxAttempts; i++ {
		total += backoff
		backoff = time.Duration(float64(backoff) * c.RetryMultiplier)
		if backoff > c.RetryMaxBackoff {
			backoff = c.RetryMaxBackoff
		}
	}
	return total
}

// Resilient wraps a Client with per-call timeouts, bounded retries on transient
// errors, and one circuit breaker per operation.
type Resilient struct {
	base    Client
	cfg     ResilienceConfig
	analyze *gobreaker.CircuitBreaker[Analysis]
	answer  *gobreaker.CircuitBreaker[Answer]
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewResilient wraps base. A nil base yields nil.
func NewResilient(base Client, cfg ResilienceConfig) *Resilient {
	if base == nil {
		return nil
	}
	cfg = cfg.normalize()
	return &Resilient{
		base:    base,
		cfg:     cfg,
		analyze: gobreaker.NewCircuitBreaker[Analysis](breakerSettings("llm.analyze", cfg)),
		answer:  gobreaker.NewCircuitBreaker[Answer](breakerSettings("llm.answer", cfg)),
		sleep:   sleepCtx,
	}
}

func breakerSettings(name string, cfg ResilienceConfig) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.BreakerHalfOpenMaxCalls,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.BreakerMinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.BreakerFailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			telemetry.Warn("llm.circuit_state_change", map[string]any{
				"operation": name,
				"from":      from.String(),
				"to":        to.String(),
			})
		},
	}
}

// Analyze implements Client.
func (r *Resilient) Analyze(ctx context.Context, input AnalyzeInput) (Analysis, error) {
	return r.analyze.Execute(func() (Analysis, error) {
		var out Analysis
		err := r.withRetry(ctx, "analyze", func(callCtx context.Context) error {
			res, err := r.base.Analyze(callCtx, input)
			if err == nil {
				out = res
			}
			return err
		})
		return out, err
	})
}

// Answer implements Client.
func (r *Resilient) Answer(ctx context.Context, input AnswerInput) (Answer, error) {
	return r.answer.Execute(func() (Answer, error) {
		var out Answer
		err := r.withRetry(ctx, "answer", func(callCtx context.Context) error {
			res, err := r.base.Answer(callCtx, input)
			if err == nil {
				out = res
			}
			return err
		})
		return out, err
	})
}

func (r *Resilient) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	backoff := r.cfg.RetryInitialBackoff
	var err error
	for attempt := 1; attempt <= r.cfg.RetryMaxAttempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err != nil {
				return err
			}
			return ctxErr
		}
		callCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
		err = fn(callCtx)
		cancel()
		if err == nil {
			return nil
		}
		if !ShouldRetry(err) || attempt == r.cfg.RetryMaxAttempts {
			return err
		}
		telemetry.Warn("llm.retry", map[string]any{
			"operation":  op,
			"attempt":    attempt,
			"backoff_ms": backoff.Milliseconds(),
			"error":      err,
		})
		if sleepErr := r.sleep(ctx, backoff); sleepErr != nil {
			return err
		}
		backoff = time.Duration(float64(backoff) * r.cfg.RetryMultiplier)
		if backoff > r.cfg.RetryMaxBackoff {
			backoff = r.cfg.RetryMaxBackoff
		}
	}
	return err
}

// IsCircuitOpen reports whether err was produced by an open or saturated breaker.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// ShouldRetry reports whether a backend error is transient.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrMalformedResponse) || errors.Is(err, ErrEmptyText) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code == 429 || statusErr.Code >= 500
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "unexpected eof") {
		return true
	}
	return false
}

// StatusError is an HTTP-level failure reported by a backend.
type StatusError struct {
	Provider string
	Code     int
	Message  string
}

func (e *StatusError) Error() string {
	if strings.TrimSpace(e.Message) == "" {
		return fmt.Sprintf("%s: http status %d", e.Provider, e.Code)
	}
	return fmt.Sprintf("%s: http status %d: %s", e.Provider, e.Code, e.Message)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
