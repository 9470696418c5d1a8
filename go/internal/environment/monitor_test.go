package environment

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProber struct {
	reachable atomic.Bool
	calls     atomic.Int32
}

func (p *fakeProber) Ping(ctx context.Context) bool {
	p.calls.Add(1)
	return p.reachable.Load()
}

type panicProber struct{}

func (panicProber) Ping(ctx context.Context) bool { panic("boom") }

func goodHints() Hints {
	return Hints{Online: true, Type: "wifi", DownlinkMbps: f(20), RTTMillis: f(30)}
}

func TestMonitor_RefreshBuildsSnapshot(t *testing.T) {
	prober := &fakeProber{}
	prober.reachable.Store(true)
	clock := clockwork.NewFakeClock()
	m := NewMonitor(prober, NewStaticHints(goodHints()), WithClock(clock))

	snap := m.Refresh(t.Context())

	assert.True(t, snap.IsOnline)
	assert.True(t, snap.ServerOnline)
	assert.True(t, snap.Usable())
	assert.True(t, snap.IsWifi)
	assert.Equal(t, 0.97, snap.Quality)
	assert.Equal(t, 5, snap.QualityLevel)
	assert.Equal(t, clock.Now(), snap.ProbedAt)
}

func TestMonitor_UnavailableHintsDefaultToUnknownQuality(t *testing.T) {
	prober := &fakeProber{}
	prober.reachable.Store(true)
	hints := NewStaticHints(goodHints())
	hints.Unavailable()
	m := NewMonitor(prober, hints, WithClock(clockwork.NewFakeClock()))

	snap := m.Refresh(t.Context())

	assert.True(t, snap.Usable())
	assert.Zero(t, snap.Quality)
	assert.Zero(t, snap.QualityLevel)
}

func TestMonitor_ProbeFailureIsNegativeSignal(t *testing.T) {
	m := NewMonitor(&fakeProber{}, NewStaticHints(goodHints()), WithClock(clockwork.NewFakeClock()))

	snap := m.Refresh(t.Context())

	assert.True(t, snap.IsOnline)
	assert.False(t, snap.ServerOnline)
	assert.False(t, snap.Usable())
}

func TestMonitor_ProberPanicIsSwallowed(t *testing.T) {
	m := NewMonitor(panicProber{}, NewStaticHints(goodHints()), WithClock(clockwork.NewFakeClock()))

	var snap Snapshot
	require.NotPanics(t, func() { snap = m.Refresh(t.Context()) })
	assert.False(t, snap.ServerOnline)
}

func TestMonitor_RunProbesOnInterval(t *testing.T) {
	prober := &fakeProber{}
	prober.reachable.Store(true)
	clock := clockwork.NewFakeClock()
	m := NewMonitor(prober, NewStaticHints(goodHints()), WithClock(clock), WithProbeInterval(4500*time.Millisecond))

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	assert.Equal(t, int32(1), prober.calls.Load())

	prober.reachable.Store(false)
	clock.Advance(4500 * time.Millisecond)
	assert.Eventually(t, func() bool { return prober.calls.Load() == 2 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return !m.Snapshot().ServerOnline }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestMonitor_SubscribeNotifiesOnChange(t *testing.T) {
	prober := &fakeProber{}
	prober.reachable.Store(true)
	hints := NewStaticHints(goodHints())
	m := NewMonitor(prober, hints, WithClock(clockwork.NewFakeClock()))
	m.Refresh(t.Context())

	var mu sync.Mutex
	var got []Snapshot
	unsubscribe := m.Subscribe(func(s Snapshot) {
		mu.Lock()
		got = append(got, s)
		mu.Unlock()
	})

	// unchanged resample is not a change
	m.NotifyConnectivityChange()

	hints.SetOnline(false)
	m.NotifyConnectivityChange()

	unsubscribe()
	hints.SetOnline(true)
	m.NotifyConnectivityChange()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.False(t, got[0].IsOnline)
	assert.False(t, got[0].Usable())
	assert.Zero(t, got[0].QualityLevel)
}
