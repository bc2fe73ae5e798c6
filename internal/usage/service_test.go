package usage

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRecordFillsDefaults(t *testing.T) {
	svc := NewService()
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	e, err := svc.Record(context.Background(), Event{Action: "upload", Outcome: "analysis_ready", DurationMs: -5})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if e.ID == "" {
		t.Fatalf("expected generated id")
	}
	if !e.CreatedAt.Equal(fixed) {
		t.Fatalf("expected createdAt %s, got %s", fixed, e.CreatedAt)
	}
	if e.Channel != "unknown" {
		t.Fatalf("expected channel unknown, got %q", e.Channel)
	}
	if e.DurationMs != 0 {
		t.Fatalf("expected clamped duration, got %d", e.DurationMs)
	}
}

func TestRecordRejectsIncompleteEvent(t *testing.T) {
	svc := NewService()
	if _, err := svc.Record(context.Background(), Event{Action: "ask"}); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}
}

func TestMemorySummaryFiltersBySince(t *testing.T) {
	svc := NewService()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	events := []Event{
		{Channel: "web", Action: "upload", Outcome: "analysis_ready", CreatedAt: base.Add(-time.Hour)},
		{Channel: "web", Action: "ask", Outcome: "qa_answered", CreatedAt: base},
		{Channel: "whatsapp", Action: "ask", Outcome: "qa_answered", CreatedAt: base.Add(time.Minute)},
		{Channel: "whatsapp", Action: "upload", Outcome: "rate_limited", CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, e := range events {
		if _, err := svc.Record(ctx, e); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	sum, err := svc.Summary(ctx, base)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.Total != 3 {
		t.Fatalf("expected 3 events, got %d", sum.Total)
	}
	if sum.ByOutcome["qa_answered"] != 2 || sum.ByOutcome["rate_limited"] != 1 {
		t.Fatalf("unexpected outcomes: %v", sum.ByOutcome)
	}
	if sum.ByChannel["whatsapp"] != 2 || sum.ByChannel["web"] != 1 {
		t.Fatalf("unexpected channels: %v", sum.ByChannel)
	}
}

func TestMemoryStoreKeepsMostRecent(t *testing.T) {
	s := newMemoryStore(2)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, outcome := range []string{"a", "b", "c"} {
		if err := s.Insert(ctx, Event{Channel: "web", Outcome: outcome, CreatedAt: base.Add(time.Duration(i) * time.Second)}); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	sum, err := s.Summary(ctx, time.Time{})
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.Total != 2 || sum.ByOutcome["a"] != 0 {
		t.Fatalf("expected oldest event dropped, got %+v", sum)
	}
}
