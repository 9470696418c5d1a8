package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mcdev12/scoutsync/go/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	events []ClaimEvent
	err    error
}

func (r *recordingPublisher) Publish(ctx context.Context, event ClaimEvent) error {
	r.events = append(r.events, event)
	return r.err
}

func TestNew(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 30, 0, 0, time.FixedZone("PDT", -7*3600))
	a := New(EventClaimed, at)
	b := New(EventClaimed, at)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, time.UTC, a.At.Location())
	assert.True(t, a.At.Equal(at))
}

func TestFanout_PublishesToAllAndReturnsFirstError(t *testing.T) {
	boom := errors.New("boom")
	first := &recordingPublisher{err: boom}
	second := &recordingPublisher{}

	err := Fanout{first, second, NoopPublisher{}}.Publish(t.Context(), New(EventReleased, time.Now()))

	require.ErrorIs(t, err, boom)
	assert.Len(t, first.events, 1)
	assert.Len(t, second.events, 1)
}

func TestMetricPublisher_CountsOutcomes(t *testing.T) {
	m := metrics.NewPrometheus()
	inner := &recordingPublisher{}
	p := NewMetricPublisher(inner, m)

	require.NoError(t, p.Publish(t.Context(), New(EventClaimed, time.Now())))
	inner.err = errors.New("down")
	require.Error(t, p.Publish(t.Context(), New(EventClaimed, time.Now())))

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	var found bool
	for _, f := range families {
		if f.GetName() == "scoutsync_events_published_total" {
			found = true
			assert.Len(t, f.GetMetric(), 2)
		}
	}
	assert.True(t, found)

	count, err := testutil.GatherAndCount(m.Registry(), "scoutsync_events_published_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestNATSConfig_Subject(t *testing.T) {
	cfg := DefaultNATSConfig()
	cfg.SubjectPrefix = "venue.sfr"

	assert.Equal(t, "venue.sfr.claims.claimed", cfg.Subject(EventClaimed))
	assert.Equal(t, "venue.sfr.claims.phase_changed", cfg.Subject(EventPhaseChanged))
}
