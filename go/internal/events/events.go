package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/scoutsync/go/internal/metrics"
	"github.com/mcdev12/scoutsync/go/internal/models"
)

// EventType names a claim lifecycle transition.
type EventType string

const (
	EventClaimed      EventType = "claimed"
	EventReleased     EventType = "released"
	EventPhaseChanged EventType = "phase_changed"
	EventSubmitted    EventType = "submitted"
	EventConflict     EventType = "conflict"
	EventOffline      EventType = "offline"
	EventOnline       EventType = "online"
)

// ClaimEvent records one transition of this device's claim state.
type ClaimEvent struct {
	ID        uuid.UUID        `json:"event_id"`
	Type      EventType        `json:"event_type"`
	MatchType models.MatchType `json:"match_type"`
	Match     int              `json:"match"`
	Alliance  models.Alliance  `json:"alliance"`
	Team      int              `json:"team,omitempty"`
	Scouter   string           `json:"scouter,omitempty"`
	// ClaimedBy is the other scouter reported by the backend on conflict.
	ClaimedBy string       `json:"claimed_by,omitempty"`
	Phase     models.Phase `json:"phase,omitempty"`
	At        time.Time    `json:"at"`
}

// New stamps a ClaimEvent with a fresh ID.
func New(eventType EventType, at time.Time) ClaimEvent {
	return ClaimEvent{
		ID:   uuid.New(),
		Type: eventType,
		At:   at.UTC(),
	}
}

// Publisher delivers claim events. Publish failures never affect claim state.
type Publisher interface {
	Publish(ctx context.Context, event ClaimEvent) error
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, event ClaimEvent) error { return nil }

// MetricPublisher wraps a Publisher with metrics collection
type MetricPublisher struct {
	publisher Publisher
	metrics   metrics.Collector
}

func NewMetricPublisher(publisher Publisher, m metrics.Collector) *MetricPublisher {
	return &MetricPublisher{
		publisher: publisher,
		metrics:   metrics.OrNoOp(m),
	}
}

func (p *MetricPublisher) Publish(ctx context.Context, event ClaimEvent) error {
	err := p.publisher.Publish(ctx, event)
	p.metrics.RecordEventPublished(string(event.Type), err == nil)
	return err
}

// Fanout publishes to every publisher and returns the first error.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, event ClaimEvent) error {
	var first error
	for _, p := range f {
		if err := p.Publish(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}
