package scouting_client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/mcdev12/scoutsync/go/internal/models"
	"github.com/rs/zerolog/log"
)

type rosterResponse struct {
	Teams json.RawMessage `json:"teams"`
}

// StatusResponse describes one (match, team) record.
type StatusResponse struct {
	Exists       bool         `json:"exists"`
	LastModified string       `json:"lastModified,omitempty"`
	Scouter      *string      `json:"scouter"`
	Status       models.Phase `json:"status"`
}

// TeamDelta is the claim state of one team inside a poll response.
type TeamDelta struct {
	Scouter *string `json:"scouter"`
}

// PollResponse is a sparse claim update since the client's watermark.
// Timestamp is nil when the backend has no modifications to report.
type PollResponse struct {
	Teams     map[string]TeamDelta `json:"teams"`
	Timestamp *string              `json:"timestamp"`
}

type pingResponse struct {
	Ping string `json:"ping"`
}

// GetTeamList fetches one alliance's roster annotated with current claims.
// A missing or malformed team array yields an empty roster, not a failure.
func (c *ScoutingClient) GetTeamList(ctx context.Context, match int, matchType models.MatchType, alliance models.Alliance) models.Roster {
	endpoint := fmt.Sprintf(RosterEndpointFmt, match, alliance, matchType)

	var resp rosterResponse
	if err := c.GetJSON(ctx, endpoint, &resp); err != nil {
		log.Warn().Err(err).Int("match", match).Str("alliance", string(alliance)).Msg("get team list failed")
		return models.Roster{}
	}

	var teams models.Roster
	if len(resp.Teams) == 0 || json.Unmarshal(resp.Teams, &teams) != nil || teams == nil {
		log.Error().Int("match", match).RawJSON("teams", nonEmpty(resp.Teams)).Msg("get team list: malformed response")
		return models.Roster{}
	}
	return teams
}

// GetAllStatuses returns the bulk status board, or nil on failure.
func (c *ScoutingClient) GetAllStatuses(ctx context.Context) models.StatusBoard {
	var board models.StatusBoard
	if err := c.GetJSON(ctx, AllStatusEndpoint, &board); err != nil {
		log.Warn().Err(err).Msg("get all statuses failed")
		return nil
	}
	if board == nil {
		board = models.StatusBoard{}
	}
	return board
}

// GetStatus returns the status of one (match, team) record, or nil on failure.
func (c *ScoutingClient) GetStatus(ctx context.Context, match, team int) *StatusResponse {
	var resp StatusResponse
	if err := c.GetJSON(ctx, fmt.Sprintf(StatusEndpointFmt, match, team), &resp); err != nil {
		log.Warn().Err(err).Int("match", match).Int("team", team).Msg("get status failed")
		return nil
	}
	return &resp
}

// Ping probes backend reachability under a bounded timeout. It never fails
// loudly: any error or an unexpected body reports unreachable.
func (c *ScoutingClient) Ping(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.pingTimeout)
	defer cancel()

	var resp pingResponse
	if err := c.GetJSON(ctx, PingEndpoint, &resp); err != nil {
		log.Debug().Err(err).Msg("ping failed")
		return false
	}
	return resp.Ping == Pong
}

// PollPath builds the long-poll endpoint for one alliance of one match.
func PollPath(match int, matchType models.MatchType, alliance models.Alliance, clientTS string) string {
	return fmt.Sprintf(PollEndpointFmt, match, matchType, alliance) + "?client_ts=" + url.QueryEscape(clientTS)
}

func nonEmpty(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("null")
	}
	return raw
}
