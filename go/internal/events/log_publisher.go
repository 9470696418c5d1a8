package events

import (
	"context"

	"github.com/rs/zerolog/log"
)

// LogPublisher writes events to the global logger, for development and for
// devices with no venue bus.
type LogPublisher struct{}

func (LogPublisher) Publish(ctx context.Context, event ClaimEvent) error {
	log.Info().
		Str("event_id", event.ID.String()).
		Str("event_type", string(event.Type)).
		Str("match_type", string(event.MatchType)).
		Int("match", event.Match).
		Str("alliance", string(event.Alliance)).
		Int("team", event.Team).
		Str("scouter", event.Scouter).
		Str("claimed_by", event.ClaimedBy).
		Str("phase", string(event.Phase)).
		Msg("claim event")
	return nil
}
