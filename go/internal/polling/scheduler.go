package polling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/scoutsync/go/internal/metrics"
	"github.com/rs/zerolog/log"
)

const DefaultInterval = 300 * time.Millisecond

var (
	ErrNoEndpoint = errors.New("poll subscription requires an endpoint")
	ErrStopped    = errors.New("poll scheduler is shut down")
)

// Fetcher performs one GET against a backend-relative endpoint.
type Fetcher interface {
	Fetch(ctx context.Context, endpoint string) ([]byte, error)
}

// EndpointFunc yields the endpoint for the next cycle. Returning "" ends the
// subscription, the same as the caller cancelling it.
type EndpointFunc func() string

// Static wraps a fixed endpoint.
func Static(endpoint string) EndpointFunc {
	return func() string { return endpoint }
}

// CancelFunc stops a subscription. It never aborts a request already in
// flight; that request's result is discarded. If the handler is running it
// waits for it to return, so once CancelFunc returns the handler is never
// called again. A handler must not call its own CancelFunc; it ends its
// subscription by having the EndpointFunc return "".
type CancelFunc func()

type subscription struct {
	id       uuid.UUID
	endpoint EndpointFunc
	interval time.Duration
	decode   func([]byte) (func(), error)

	active atomic.Bool
	done   chan struct{}
	once   sync.Once

	// held while the active check and the handler run
	deliverMu sync.Mutex
}

func (s *subscription) cancel() {
	s.once.Do(func() {
		s.active.Store(false)
		close(s.done)
	})
	s.deliverMu.Lock()
	s.deliverMu.Unlock()
}

// deliver runs fn unless the subscription was cancelled first.
func (s *subscription) deliver(fn func()) bool {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	if !s.active.Load() {
		return false
	}
	fn()
	return true
}

// Scheduler runs every live-update subscription in the process. Each
// subscription owns one goroutine and at most one request in flight.
type Scheduler struct {
	fetcher Fetcher
	clock   clockwork.Clock
	metrics metrics.Collector

	ctx    context.Context
	stop   context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	subs   map[uuid.UUID]*subscription
	closed bool
}

type Option func(*Scheduler)

func WithClock(c clockwork.Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

func WithMetrics(c metrics.Collector) Option {
	return func(s *Scheduler) { s.metrics = metrics.OrNoOp(c) }
}

func NewScheduler(fetcher Fetcher, opts ...Option) *Scheduler {
	ctx, stop := context.WithCancel(context.Background())
	s := &Scheduler{
		fetcher: fetcher,
		clock:   clockwork.NewRealClock(),
		metrics: metrics.NoOp{},
		ctx:     ctx,
		stop:    stop,
		subs:    make(map[uuid.UUID]*subscription),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register starts polling endpoint, handing every well-formed JSON body to
// handler. Bodies that are not valid JSON are logged and skipped.
func (s *Scheduler) Register(endpoint EndpointFunc, interval time.Duration, handler func(json.RawMessage)) (uuid.UUID, CancelFunc, error) {
	return s.register(endpoint, interval, func(body []byte) (func(), error) {
		if !json.Valid(body) {
			return nil, fmt.Errorf("invalid JSON body (%d bytes)", len(body))
		}
		raw := json.RawMessage(body)
		return func() { handler(raw) }, nil
	})
}

// Subscribe is Register with the body decoded into T.
func Subscribe[T any](s *Scheduler, endpoint EndpointFunc, interval time.Duration, handler func(T)) (uuid.UUID, CancelFunc, error) {
	return s.register(endpoint, interval, func(body []byte) (func(), error) {
		var payload T
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, fmt.Errorf("failed to decode poll payload: %w", err)
		}
		return func() { handler(payload) }, nil
	})
}

func (s *Scheduler) register(endpoint EndpointFunc, interval time.Duration, decode func([]byte) (func(), error)) (uuid.UUID, CancelFunc, error) {
	if endpoint == nil {
		return uuid.Nil, nil, ErrNoEndpoint
	}
	if interval < 0 {
		interval = 0
	}

	sub := &subscription{
		id:       uuid.New(),
		endpoint: endpoint,
		interval: interval,
		decode:   decode,
		done:     make(chan struct{}),
	}
	sub.active.Store(true)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return uuid.Nil, nil, ErrStopped
	}
	s.subs[sub.id] = sub
	active := len(s.subs)
	s.wg.Add(1)
	s.mu.Unlock()

	s.metrics.SetActiveSubscriptions(active)
	log.Debug().Str("subscription_id", sub.id.String()).Dur("interval", interval).Msg("poll subscription registered")

	go s.run(sub)

	return sub.id, func() { s.Cancel(sub.id) }, nil
}

// Cancel stops the subscription with id. Unknown ids are ignored.
func (s *Scheduler) Cancel(id uuid.UUID) {
	s.mu.Lock()
	sub, ok := s.subs[id]
	if ok {
		delete(s.subs, id)
	}
	active := len(s.subs)
	s.mu.Unlock()

	if !ok {
		return
	}
	sub.cancel()
	s.metrics.SetActiveSubscriptions(active)
	log.Debug().Str("subscription_id", id.String()).Msg("poll subscription cancelled")
}

// Active returns the number of live subscriptions.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Shutdown cancels every subscription, aborts in-flight requests and waits
// for the loops to exit.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	s.closed = true
	subs := make([]*subscription, 0, len(s.subs))
	for id, sub := range s.subs {
		subs = append(subs, sub)
		delete(s.subs, id)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub.cancel()
	}
	s.stop()
	s.wg.Wait()
	s.metrics.SetActiveSubscriptions(0)
}

func (s *Scheduler) run(sub *subscription) {
	defer s.wg.Done()
	defer s.Cancel(sub.id)

	for sub.active.Load() {
		start := s.clock.Now()

		endpoint := sub.endpoint()
		if endpoint == "" {
			log.Debug().Str("subscription_id", sub.id.String()).Msg("poll endpoint cleared")
			return
		}

		s.cycle(sub, endpoint)

		elapsed := s.clock.Since(start)
		wait := sub.interval - elapsed
		if wait <= 0 {
			continue
		}
		select {
		case <-s.clock.After(wait):
		case <-sub.done:
			return
		}
	}
}

// cycle runs one fetch and delivers the result only if the subscription is
// still live when it completes.
func (s *Scheduler) cycle(sub *subscription, endpoint string) {
	start := s.clock.Now()
	body, err := s.fetcher.Fetch(s.ctx, endpoint)
	duration := s.clock.Since(start)

	if err != nil {
		s.metrics.RecordPoll(false, duration)
		log.Warn().Err(err).Str("endpoint", endpoint).Msg("poll fetch failed")
		return
	}

	deliver, err := sub.decode(body)
	if err != nil {
		s.metrics.RecordPoll(false, duration)
		log.Warn().Err(err).Str("endpoint", endpoint).Msg("poll decode failed")
		return
	}
	s.metrics.RecordPoll(true, duration)

	if !sub.deliver(deliver) {
		log.Debug().Str("subscription_id", sub.id.String()).Msg("discarding result for cancelled subscription")
	}
}
