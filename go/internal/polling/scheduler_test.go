package polling

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFetcher advances the fake clock by latency to simulate a slow request
// and tracks how many requests overlap.
type fakeFetcher struct {
	clock   *clockwork.FakeClock
	latency time.Duration
	body    []byte
	err     error

	mu        sync.Mutex
	starts    []time.Time
	endpoints []string
	inFlight  int
	maxFlight int
}

func (f *fakeFetcher) Fetch(ctx context.Context, endpoint string) ([]byte, error) {
	f.mu.Lock()
	f.starts = append(f.starts, f.clock.Now())
	f.endpoints = append(f.endpoints, endpoint)
	f.inFlight++
	if f.inFlight > f.maxFlight {
		f.maxFlight = f.inFlight
	}
	f.mu.Unlock()

	if f.latency > 0 {
		f.clock.Advance(f.latency)
	}

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()
	return f.body, f.err
}

func (f *fakeFetcher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.starts)
}

// blockingFetcher holds every request until released.
type blockingFetcher struct {
	started chan struct{}
	release chan struct{}
	body    []byte
}

func (b *blockingFetcher) Fetch(ctx context.Context, endpoint string) ([]byte, error) {
	b.started <- struct{}{}
	select {
	case <-b.release:
		return b.body, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestScheduler_SlowFetchNeverOverlaps(t *testing.T) {
	clock := clockwork.NewFakeClock()
	fetcher := &fakeFetcher{clock: clock, latency: 500 * time.Millisecond, body: []byte(`{}`)}
	s := NewScheduler(fetcher, WithClock(clock))
	defer s.Shutdown()

	var deliveries atomic.Int32
	cancelCh := make(chan CancelFunc, 1)
	_, cancel, err := s.Register(Static("/poll"), 300*time.Millisecond, func(json.RawMessage) {
		if deliveries.Add(1) == 4 {
			(<-cancelCh)()
		}
	})
	require.NoError(t, err)
	cancelCh <- cancel

	assert.Eventually(t, func() bool { return s.Active() == 0 }, time.Second, 5*time.Millisecond)

	fetcher.mu.Lock()
	defer fetcher.mu.Unlock()
	assert.Equal(t, 1, fetcher.maxFlight)
	require.Len(t, fetcher.starts, 4)
	for i := 1; i < len(fetcher.starts); i++ {
		assert.GreaterOrEqual(t, fetcher.starts[i].Sub(fetcher.starts[i-1]), 500*time.Millisecond)
	}
}

func TestScheduler_WaitsRemainderOfInterval(t *testing.T) {
	clock := clockwork.NewFakeClock()
	fetcher := &fakeFetcher{clock: clock, latency: 100 * time.Millisecond, body: []byte(`{}`)}
	s := NewScheduler(fetcher, WithClock(clock))
	defer s.Shutdown()

	ctx := t.Context()
	_, cancel, err := s.Register(Static("/poll"), 300*time.Millisecond, func(json.RawMessage) {})
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	assert.Equal(t, 1, fetcher.calls())

	clock.Advance(199 * time.Millisecond)
	assert.Equal(t, 1, fetcher.calls())

	clock.Advance(time.Millisecond)
	assert.Eventually(t, func() bool { return fetcher.calls() == 2 }, time.Second, 5*time.Millisecond)

	fetcher.mu.Lock()
	defer fetcher.mu.Unlock()
	assert.Equal(t, 300*time.Millisecond, fetcher.starts[1].Sub(fetcher.starts[0]))
}

func TestScheduler_CancelDuringFlightDiscardsResult(t *testing.T) {
	fetcher := &blockingFetcher{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
		body:    []byte(`{"teams":{}}`),
	}
	s := NewScheduler(fetcher, WithClock(clockwork.NewFakeClock()))
	defer s.Shutdown()

	var calls atomic.Int32
	_, cancel, err := s.Register(Static("/poll"), 300*time.Millisecond, func(json.RawMessage) {
		calls.Add(1)
	})
	require.NoError(t, err)

	<-fetcher.started
	cancel()
	assert.Zero(t, s.Active())
	close(fetcher.release)

	// give the loop a chance to (wrongly) deliver
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, calls.Load())
}

func TestScheduler_FailuresDoNotEndSubscription(t *testing.T) {
	clock := clockwork.NewFakeClock()
	fetcher := &fakeFetcher{clock: clock, err: errors.New("connection refused")}
	s := NewScheduler(fetcher, WithClock(clock))
	defer s.Shutdown()

	var calls atomic.Int32
	_, cancel, err := s.Register(Static("/poll"), 300*time.Millisecond, func(json.RawMessage) {
		calls.Add(1)
	})
	require.NoError(t, err)
	defer cancel()

	for i := 1; i <= 3; i++ {
		require.NoError(t, clock.BlockUntilContext(t.Context(), 1))
		assert.Equal(t, i, fetcher.calls())
		clock.Advance(300 * time.Millisecond)
	}

	assert.Zero(t, calls.Load())
	assert.Equal(t, 1, s.Active())
}

func TestScheduler_MalformedBodySkipsHandler(t *testing.T) {
	clock := clockwork.NewFakeClock()
	fetcher := &fakeFetcher{clock: clock, body: []byte(`not json`)}
	s := NewScheduler(fetcher, WithClock(clock))
	defer s.Shutdown()

	var calls atomic.Int32
	_, cancel, err := Subscribe(s, Static("/poll"), time.Second, func(struct{}) {
		calls.Add(1)
	})
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, clock.BlockUntilContext(t.Context(), 1))
	assert.Zero(t, calls.Load())
}

func TestScheduler_EndpointRecomputedEachCycle(t *testing.T) {
	clock := clockwork.NewFakeClock()
	fetcher := &fakeFetcher{clock: clock, body: []byte(`{"timestamp":"42"}`)}
	s := NewScheduler(fetcher, WithClock(clock))
	defer s.Shutdown()

	type payload struct {
		Timestamp string `json:"timestamp"`
	}

	var mu sync.Mutex
	cursor := "0"
	endpoint := func() string {
		mu.Lock()
		defer mu.Unlock()
		return "/poll?client_ts=" + cursor
	}
	_, cancel, err := Subscribe(s, endpoint, 300*time.Millisecond, func(p payload) {
		mu.Lock()
		cursor = p.Timestamp
		mu.Unlock()
	})
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, clock.BlockUntilContext(t.Context(), 1))
	clock.Advance(300 * time.Millisecond)
	assert.Eventually(t, func() bool { return fetcher.calls() == 2 }, time.Second, 5*time.Millisecond)

	fetcher.mu.Lock()
	defer fetcher.mu.Unlock()
	assert.Equal(t, []string{"/poll?client_ts=0", "/poll?client_ts=42"}, fetcher.endpoints)
}

func TestScheduler_EmptyEndpointEndsSubscription(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := NewScheduler(&fakeFetcher{clock: clock}, WithClock(clock))
	defer s.Shutdown()

	_, _, err := s.Register(Static(""), time.Second, func(json.RawMessage) {})
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return s.Active() == 0 }, time.Second, 5*time.Millisecond)
}

func TestScheduler_ShutdownRejectsNewSubscriptions(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := NewScheduler(&fakeFetcher{clock: clock, body: []byte(`{}`)}, WithClock(clock))

	_, _, err := s.Register(Static("/a"), time.Second, func(json.RawMessage) {})
	require.NoError(t, err)
	_, _, err = s.Register(Static("/b"), time.Second, func(json.RawMessage) {})
	require.NoError(t, err)
	assert.Equal(t, 2, s.Active())

	s.Shutdown()

	assert.Zero(t, s.Active())
	_, _, err = s.Register(Static("/c"), time.Second, func(json.RawMessage) {})
	assert.ErrorIs(t, err, ErrStopped)

	_, _, err = NewScheduler(nil).Register(nil, time.Second, nil)
	assert.ErrorIs(t, err, ErrNoEndpoint)
}

// instantFetcher answers every request immediately.
type instantFetcher struct{}

func (instantFetcher) Fetch(ctx context.Context, endpoint string) ([]byte, error) {
	return []byte(`{}`), nil
}

func TestScheduler_NoHandlerAfterCancelReturns(t *testing.T) {
	s := NewScheduler(instantFetcher{})
	defer s.Shutdown()

	late := 0
	for i := 0; i < 500; i++ {
		var cancelled, sawLate atomic.Bool
		delivered := make(chan struct{}, 1)
		_, cancel, err := s.Register(Static("/poll"), 0, func(json.RawMessage) {
			if cancelled.Load() {
				sawLate.Store(true)
			}
			select {
			case delivered <- struct{}{}:
			default:
			}
		})
		require.NoError(t, err)

		<-delivered
		cancel()
		cancelled.Store(true)

		// let the loop run past any result it was holding
		time.Sleep(time.Millisecond)
		if sawLate.Load() {
			late++
		}
	}
	assert.Zero(t, late)
}
