package main

import (
	"context"
	"fmt"

	"github.com/mcdev12/scoutsync/go/clients/scouting_client"
	"github.com/mcdev12/scoutsync/go/internal/claim"
	"github.com/mcdev12/scoutsync/go/internal/config"
	"github.com/mcdev12/scoutsync/go/internal/environment"
	"github.com/mcdev12/scoutsync/go/internal/events"
	"github.com/mcdev12/scoutsync/go/internal/metrics"
	"github.com/mcdev12/scoutsync/go/internal/polling"
	"github.com/mcdev12/scoutsync/go/internal/scouting"
	"github.com/mcdev12/scoutsync/go/internal/storage"
	"github.com/rs/zerolog/log"
)

type Services struct {
	Config      *config.Config
	Store       *storage.Store
	Client      *scouting_client.ScoutingClient
	Metrics     *metrics.Prometheus
	Scheduler   *polling.Scheduler
	Environment *environment.Monitor
	Publisher   events.Publisher

	closers []func()
}

func setupServices(cfg *config.Config) (*Services, error) {
	// Wire up dependency injection chain
	// Local store → Backend client → Poller/Environment → Claims/Flow

	store, err := setupDatabase(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	s := &Services{Config: cfg, Store: store, Metrics: metrics.NewPrometheus()}
	s.closers = append(s.closers, func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close local store")
		}
	})

	s.Client = scouting_client.NewScoutingClient(cfg.Backend.URL, store.Identity(),
		scouting_client.WithRequestTimeout(cfg.Backend.RequestTimeout),
		scouting_client.WithPingTimeout(cfg.Backend.PingTimeout),
		scouting_client.WithMetrics(s.Metrics),
	)

	s.Scheduler = polling.NewScheduler(s.Client, polling.WithMetrics(s.Metrics))
	s.closers = append(s.closers, s.Scheduler.Shutdown)

	var hints environment.ConnectionHints
	if cfg.Environment.Hints != nil {
		hints = environment.NewStaticHints(*cfg.Environment.Hints)
	}
	s.Environment = environment.NewMonitor(s.Client, hints,
		environment.WithProbeInterval(cfg.Environment.ProbeInterval),
		environment.WithMetrics(s.Metrics),
	)

	publisher, err := s.setupPublisher()
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Publisher = publisher

	return s, nil
}

func (s *Services) setupPublisher() (events.Publisher, error) {
	publishers := events.Fanout{events.LogPublisher{}}

	if s.Config.NATS.URL != "" {
		natsCfg := events.DefaultNATSConfig()
		natsCfg.URL = s.Config.NATS.URL
		natsCfg.StreamName = s.Config.NATS.StreamName
		if s.Config.NATS.SubjectPrefix != "" {
			natsCfg.SubjectPrefix = s.Config.NATS.SubjectPrefix
		}

		np, err := events.NewNATSPublisher(natsCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect claim event bus: %w", err)
		}
		s.closers = append(s.closers, np.Close)
		publishers = append(publishers, np)
	}

	return events.NewMetricPublisher(publishers, s.Metrics), nil
}

// newSynchronizer probes the environment first so the synchronizer starts
// from the device's real connectivity.
func (s *Services) newSynchronizer(ctx context.Context) *claim.Synchronizer {
	s.Environment.Refresh(ctx)

	synchronizer := claim.New(
		claim.Config{
			Scouter:      s.scouter(),
			PollInterval: s.Config.Claims.PollInterval,
			Debounce:     s.Config.Claims.Debounce,
		},
		s.Client, s.Environment, s.Scheduler,
		claim.WithPublisher(s.Publisher),
	)
	s.closers = append(s.closers, synchronizer.Close)
	return synchronizer
}

func (s *Services) newFlow(claims scouting.Claims) *scouting.Flow {
	return scouting.NewFlow(
		scouting.Config{
			Scouter:          s.scouter(),
			AutosaveInterval: s.Config.Scouting.AutosaveInterval,
		},
		s.Client, s.Store, claims, s.Environment,
	)
}

func (s *Services) scouter() string {
	if name := s.Client.ScouterName(); name != "" {
		return name
	}
	return "anonymous"
}

// Close releases everything in reverse order of setup.
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
