package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/scoutsync/go/clients/scouting_client"
	"github.com/mcdev12/scoutsync/go/internal/metrics"
	"github.com/mcdev12/scoutsync/go/internal/models"
	"github.com/mcdev12/scoutsync/go/internal/polling"
	"github.com/rs/zerolog/log"
)

const DefaultRefreshInterval = 2 * time.Second

type Config struct {
	Addr             string
	RefreshInterval  time.Duration
	ConnectionConfig ConnectionConfig
}

func DefaultConfig() Config {
	return Config{
		Addr:             ":8090",
		RefreshInterval:  DefaultRefreshInterval,
		ConnectionConfig: DefaultConnectionConfig(),
	}
}

// Service relays the backend's status board to venue displays. It polls
// the bulk status endpoint through the shared scheduler, keeps the active
// entries and pushes them to websocket clients whenever they change.
type Service struct {
	cfg         Config
	scheduler   *polling.Scheduler
	connections *ConnectionManager
	collector   metrics.Collector
	clock       clockwork.Clock

	mu        sync.RWMutex
	entries   []Entry
	updatedAt time.Time
	seen      bool
}

type Option func(*Service)

func WithClock(c clockwork.Clock) Option {
	return func(s *Service) { s.clock = c }
}

func WithMetrics(c metrics.Collector) Option {
	return func(s *Service) { s.collector = metrics.OrNoOp(c) }
}

func NewService(cfg Config, scheduler *polling.Scheduler, opts ...Option) *Service {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = DefaultRefreshInterval
	}
	s := &Service{
		cfg:       cfg,
		scheduler: scheduler,
		collector: metrics.NoOp{},
		clock:     clockwork.NewRealClock(),
		entries:   []Entry{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.connections = NewConnectionManager(cfg.ConnectionConfig, s.collector)
	return s
}

// Start polls the board and serves displays until ctx is done.
func (s *Service) Start(ctx context.Context) error {
	log.Info().Dur("refresh", s.cfg.RefreshInterval).Msg("starting status monitor")

	_, cancel, err := polling.Subscribe(s.scheduler, polling.Static(scouting_client.AllStatusEndpoint), s.cfg.RefreshInterval, s.onBoard)
	if err != nil {
		return fmt.Errorf("failed to subscribe to status board: %w", err)
	}
	defer cancel()

	s.connections.Start(ctx)
	log.Info().Msg("status monitor stopped")
	return nil
}

// Board returns the current active entries.
func (s *Service) Board() BoardMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return BoardMessage{
		Type:      boardMessageType,
		Entries:   append([]Entry{}, s.entries...),
		UpdatedAt: s.updatedAt,
	}
}

// Connections exposes the display registry.
func (s *Service) Connections() *ConnectionManager {
	return s.connections
}

func (s *Service) onBoard(board models.StatusBoard) {
	entries := ActiveEntries(board)

	s.mu.Lock()
	s.updatedAt = s.clock.Now().UTC()
	if s.seen && sameEntries(s.entries, entries) {
		s.mu.Unlock()
		return
	}
	s.seen = true
	s.entries = entries
	s.mu.Unlock()

	payload, err := json.Marshal(s.Board())
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal status board")
		return
	}
	s.connections.Broadcast(payload)
	log.Debug().Int("active", len(entries)).Msg("status board changed")
}
