package poll

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/tradeonly/internal/common"
)

func newScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s := NewScheduler(common.NewSilentLogger())
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEvery_RunsUntilStopped(t *testing.T) {
	s := newScheduler(t)
	var runs atomic.Int32

	h, err := s.Every("tick", time.Second, func(ctx context.Context) { runs.Add(1) })
	require.NoError(t, err)
	assert.Equal(t, 1, s.Active())
	assert.Equal(t, "tick", h.Name())

	require.Eventually(t, func() bool { return runs.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)

	h.Stop()
	h.Stop()
	assert.Zero(t, s.Active())

	after := runs.Load()
	time.Sleep(1500 * time.Millisecond)
	assert.Equal(t, after, runs.Load(), "no runs after Stop")
}

func TestEvery_RejectsBadInterval(t *testing.T) {
	s := newScheduler(t)
	_, err := s.Every("bad", 0, func(context.Context) {})
	require.Error(t, err)
	assert.Zero(t, s.Active())
}

func TestStop_CancelsInFlightRun(t *testing.T) {
	s := newScheduler(t)
	started := make(chan struct{})
	cancelled := make(chan struct{})
	var once sync.Once

	h, err := s.Every("slow", time.Second, func(ctx context.Context) {
		once.Do(func() { close(started) })
		<-ctx.Done()
		close(cancelled)
	})
	require.NoError(t, err)

	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatalf("job never started")
	}
	h.Stop()

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatalf("in-flight run did not see cancellation")
	}
}

func TestClose_StopsEverything(t *testing.T) {
	s := NewScheduler(nil)
	for _, name := range []string{"a", "b", "c"} {
		_, err := s.Every(name, time.Second, func(context.Context) {})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, s.Active())

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Zero(t, s.Active())

	_, err := s.Every("late", time.Second, func(context.Context) {})
	assert.Error(t, err)
}

type countingFetcher struct {
	mu      sync.Mutex
	symbols []string
}

func (c *countingFetcher) FetchQuote(ctx context.Context, symbol string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.symbols = append(c.symbols, symbol)
	return nil
}

func (c *countingFetcher) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.symbols)
}

func TestWatchQuote_FetchesNowThenPolls(t *testing.T) {
	s := newScheduler(t)
	f := &countingFetcher{}

	h, err := WatchQuote(context.Background(), s, f, "TSLA", time.Second)
	require.NoError(t, err)
	defer h.Stop()

	assert.Equal(t, 1, f.count(), "fetches before the first tick")
	require.Eventually(t, func() bool { return f.count() >= 2 }, 3*time.Second, 20*time.Millisecond)
	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, "TSLA", f.symbols[1])
}

func TestWatchQuote_ContextCancelStopsHandle(t *testing.T) {
	s := newScheduler(t)
	f := &countingFetcher{}
	ctx, cancel := context.WithCancel(context.Background())

	h, err := WatchQuote(ctx, s, f, "AAPL", time.Second)
	require.NoError(t, err)
	require.Equal(t, 1, s.Active())

	cancel()
	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatalf("handle not stopped after context cancel")
	}
	require.Eventually(t, func() bool { return s.Active() == 0 }, time.Second, 10*time.Millisecond)
}
