package environment

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/scoutsync/go/internal/metrics"
	"github.com/rs/zerolog/log"
)

const DefaultProbeInterval = 4500 * time.Millisecond

// Prober checks backend reachability. It must not block past its own timeout.
type Prober interface {
	Ping(ctx context.Context) bool
}

// Snapshot is the device's current belief about connectivity. ServerOnline
// is only as fresh as the last probe.
type Snapshot struct {
	IsOnline      bool      `json:"is_online"`
	ServerOnline  bool      `json:"server_online"`
	Quality       float64   `json:"quality"`
	QualityLevel  int       `json:"quality_level"`
	IsWifi        bool      `json:"is_wifi"`
	Type          string    `json:"type,omitempty"`
	EffectiveType string    `json:"effective_type,omitempty"`
	DownlinkMbps  *float64  `json:"downlink_mbps,omitempty"`
	RTTMillis     *float64  `json:"rtt_ms,omitempty"`
	SampledAt     time.Time `json:"sampled_at"`
	ProbedAt      time.Time `json:"probed_at"`
}

// Usable reports whether claim traffic should be attempted.
func (s Snapshot) Usable() bool {
	return s.IsOnline && s.ServerOnline
}

func (s Snapshot) differs(o Snapshot) bool {
	return s.IsOnline != o.IsOnline ||
		s.ServerOnline != o.ServerOnline ||
		s.QualityLevel != o.QualityLevel ||
		s.IsWifi != o.IsWifi
}

// Listener receives every snapshot that changes connectivity, level or link type.
type Listener func(Snapshot)

// Monitor keeps a best-effort connectivity snapshot current. It never returns
// errors; every failure becomes a negative signal.
type Monitor struct {
	clock    clockwork.Clock
	hints    ConnectionHints
	prober   Prober
	interval time.Duration
	metrics  metrics.Collector

	mu        sync.RWMutex
	snap      Snapshot
	listeners map[int]Listener
	nextID    int
}

type Option func(*Monitor)

func WithClock(c clockwork.Clock) Option {
	return func(m *Monitor) { m.clock = c }
}

func WithProbeInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

func WithMetrics(c metrics.Collector) Option {
	return func(m *Monitor) { m.metrics = metrics.OrNoOp(c) }
}

func NewMonitor(prober Prober, hints ConnectionHints, opts ...Option) *Monitor {
	m := &Monitor{
		clock:     clockwork.NewRealClock(),
		hints:     hints,
		prober:    prober,
		interval:  DefaultProbeInterval,
		metrics:   metrics.NoOp{},
		listeners: make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run samples and probes immediately, then again every probe interval until
// ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	m.sample()
	m.probe(ctx)

	ticker := m.clock.NewTicker(m.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", m.interval).Msg("environment monitor started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("environment monitor stopped")
			return
		case <-ticker.Chan():
			m.sample()
			m.probe(ctx)
		}
	}
}

// Refresh runs one sample and one probe synchronously.
func (m *Monitor) Refresh(ctx context.Context) Snapshot {
	m.sample()
	m.probe(ctx)
	return m.Snapshot()
}

// NotifyConnectivityChange resamples hints after the platform reports an
// online/offline transition.
func (m *Monitor) NotifyConnectivityChange() {
	m.sample()
}

// Snapshot returns the current snapshot.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap
}

// Subscribe registers fn for snapshot changes and returns its unsubscribe func.
func (m *Monitor) Subscribe(fn Listener) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

func (m *Monitor) sample() {
	var h Hints
	available := false
	if m.hints != nil {
		h, available = m.hints.Sample()
	}

	now := m.clock.Now()
	m.apply(func(s Snapshot) Snapshot {
		s.SampledAt = now
		if !available {
			// no hints: assume the link is up but of unknown quality
			s.IsOnline = true
			s.Quality = 0
			s.QualityLevel = 0
			s.IsWifi = false
			s.Type, s.EffectiveType = "", ""
			s.DownlinkMbps, s.RTTMillis = nil, nil
			return s
		}
		s.IsOnline = h.Online
		s.Quality = Quality(h)
		s.QualityLevel = Level(s.Quality, h.Online)
		s.IsWifi = IsWifi(h)
		s.Type = h.Type
		s.EffectiveType = h.EffectiveType
		s.DownlinkMbps = h.DownlinkMbps
		s.RTTMillis = h.RTTMillis
		return s
	})
}

func (m *Monitor) probe(ctx context.Context) {
	reachable := false
	if m.prober != nil {
		reachable = m.safePing(ctx)
	}

	now := m.clock.Now()
	snap := m.apply(func(s Snapshot) Snapshot {
		s.ServerOnline = reachable
		s.ProbedAt = now
		return s
	})
	m.metrics.RecordProbe(reachable, snap.Quality)
}

func (m *Monitor) safePing(ctx context.Context) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("reachability probe panicked")
			ok = false
		}
	}()
	return m.prober.Ping(ctx)
}

// apply replaces the snapshot with fn(prev) and notifies listeners outside
// the lock when anything they care about changed.
func (m *Monitor) apply(fn func(Snapshot) Snapshot) Snapshot {
	m.mu.Lock()
	prev := m.snap
	next := fn(prev)
	m.snap = next

	var notify []Listener
	if next.differs(prev) {
		notify = make([]Listener, 0, len(m.listeners))
		for _, l := range m.listeners {
			notify = append(notify, l)
		}
	}
	m.mu.Unlock()

	if len(notify) > 0 {
		log.Debug().
			Bool("online", next.IsOnline).
			Bool("server_online", next.ServerOnline).
			Int("quality_level", next.QualityLevel).
			Msg("environment changed")
	}
	for _, l := range notify {
		l(next)
	}
	return next
}
