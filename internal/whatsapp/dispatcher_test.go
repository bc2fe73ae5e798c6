package whatsapp

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherRejectsWhenFull(t *testing.T) {
	d := NewDispatcher(1, 2, func(context.Context, Message) {})
	require.NoError(t, d.Submit(Message{From: "a"}))
	require.NoError(t, d.Submit(Message{From: "b"}))
	assert.ErrorIs(t, d.Submit(Message{From: "c"}), ErrQueueFull)
	assert.Equal(t, 2, d.Pending())
}

func TestDispatcherProcessesAndDrains(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]bool{}
	d := NewDispatcher(2, 16, func(_ context.Context, m Message) {
		mu.Lock()
		seen[m.From] = true
		mu.Unlock()
	})

	for _, from := range []string{"a", "b", "c"} {
		require.NoError(t, d.Submit(Message{From: from}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 3
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop")
	}
	assert.ErrorIs(t, d.Submit(Message{From: "late"}), ErrDispatcherStopped)
}

func TestDispatcherDrainsQueueOnShutdown(t *testing.T) {
	var mu sync.Mutex
	count := 0
	d := NewDispatcher(1, 8, func(context.Context, Message) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	for i := 0; i < 5; i++ {
		require.NoError(t, d.Submit(Message{From: "x"}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, d.Run(ctx))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 5, count)
}

func TestDispatcherSurvivesPanics(t *testing.T) {
	calls := make(chan string, 2)
	d := NewDispatcher(1, 4, func(_ context.Context, m Message) {
		calls <- m.From
		if m.From == "boom" {
			panic("boom")
		}
	})
	require.NoError(t, d.Submit(Message{From: "boom"}))
	require.NoError(t, d.Submit(Message{From: "ok"}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = d.Run(ctx) }()

	assert.Equal(t, "boom", <-calls)
	select {
	case from := <-calls:
		assert.Equal(t, "ok", from)
	case <-time.After(time.Second):
		t.Fatal("worker did not continue after panic")
	}
}
