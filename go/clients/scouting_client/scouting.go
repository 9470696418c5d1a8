package scouting_client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/mcdev12/scoutsync/go/internal/models"
	"github.com/rs/zerolog/log"
)

// SubmitPayload is a finished scouting record. Data is flattened next to the
// metadata fields when sent.
type SubmitPayload struct {
	MatchType models.MatchType
	Alliance  models.Alliance
	Scouter   string
	Data      models.Answers
}

func (p SubmitPayload) body() map[string]any {
	body := make(map[string]any, len(p.Data)+3)
	for k, v := range p.Data {
		body[k] = v
	}
	body["match_type"] = p.MatchType
	body["alliance"] = p.Alliance
	body["scouter"] = p.Scouter
	return body
}

// ClaimUpdate is the mutation carried by a claim patch. A nil or empty Scouter
// is sent as the unclaim sentinel.
type ClaimUpdate struct {
	Scouter *string
	Phase   models.Phase
}

func (u ClaimUpdate) validate() error {
	if (u.Scouter == nil || *u.Scouter == "") && u.Phase == "" {
		return ErrNoClaimUpdate
	}
	return nil
}

// PatchResponse is the backend's acknowledgement of a claim or answers patch.
type PatchResponse struct {
	Status         string  `json:"status"`
	Scouter        *string `json:"scouter"`
	Phase          string  `json:"phase"`
	ChangedScouter bool    `json:"changed_scouter"`
}

// SubmitScouting finalizes one scouting record. Duplicate submission is a
// backend concern; this only reports whether the call succeeded.
func (c *ScoutingClient) SubmitScouting(ctx context.Context, match, team int, payload SubmitPayload) bool {
	endpoint := fmt.Sprintf(SubmitEndpointFmt, match, team)
	if err := c.SendJSON(ctx, http.MethodPost, endpoint, payload.body(), nil); err != nil {
		log.Error().Err(err).Int("match", match).Int("team", team).Msg("submit failed")
		c.metrics.RecordPatch("submit", false)
		return false
	}
	c.metrics.RecordPatch("submit", true)
	return true
}

// PatchClaim is the claim mutation primitive. It rejects an update naming
// neither a scouter nor a phase without touching the network.
func (c *ScoutingClient) PatchClaim(ctx context.Context, match, team int, matchType models.MatchType, update ClaimUpdate) bool {
	if err := update.validate(); err != nil {
		log.Warn().Err(err).Int("match", match).Int("team", team).Msg("patch claim called with no valid updates")
		return false
	}

	scouter := UnclaimScouter
	if update.Scouter != nil && *update.Scouter != "" {
		scouter = *update.Scouter
	}

	query := url.Values{}
	query.Set("scouter", scouter)
	if update.Phase != "" {
		query.Set("status", string(update.Phase))
	}

	endpoint := fmt.Sprintf(ClaimEndpointFmt, matchType, match, team) + "?" + query.Encode()
	var resp PatchResponse
	if err := c.SendJSON(ctx, http.MethodPatch, endpoint, nil, &resp); err != nil {
		log.Warn().
			Err(err).
			Str("match_type", string(matchType)).
			Int("match", match).
			Int("team", team).
			Str("scouter", scouter).
			Msg("patch claim failed")
		c.metrics.RecordPatch("claim", false)
		return false
	}

	log.Debug().
		Str("match_type", string(matchType)).
		Int("match", match).
		Int("team", team).
		Str("scouter", scouter).
		Bool("changed_scouter", resp.ChangedScouter).
		Msg("claim patched")
	c.metrics.RecordPatch("claim", true)
	return true
}

// ClaimTeam asserts scouter's claim on team in the pre-match phase.
func (c *ScoutingClient) ClaimTeam(ctx context.Context, match, team int, matchType models.MatchType, scouter string) bool {
	return c.PatchClaim(ctx, match, team, matchType, ClaimUpdate{Scouter: &scouter, Phase: models.PhasePre})
}

// UnclaimTeam releases any claim on team.
func (c *ScoutingClient) UnclaimTeam(ctx context.Context, match, team int, matchType models.MatchType) bool {
	unclaim := UnclaimScouter
	return c.PatchClaim(ctx, match, team, matchType, ClaimUpdate{Scouter: &unclaim, Phase: models.PhaseUnclaimed})
}

// UpdatePhase records scouter's progress through the data-entry phases.
func (c *ScoutingClient) UpdatePhase(ctx context.Context, match, team int, matchType models.MatchType, scouter string, phase models.Phase) bool {
	return c.PatchClaim(ctx, match, team, matchType, ClaimUpdate{Scouter: &scouter, Phase: phase})
}

// PatchAnswers merges partial form data into the backend's in-progress record.
// Callers treat it as fire-and-forget; failures are logged and not retried.
func (c *ScoutingClient) PatchAnswers(ctx context.Context, match, team int, matchType models.MatchType, scouter string, partial models.Answers) bool {
	endpoint := fmt.Sprintf(AnswersEndpointFmt, matchType, match, team, url.PathEscape(scouter))
	if err := c.SendJSON(ctx, http.MethodPatch, endpoint, partial, nil); err != nil {
		log.Warn().Err(err).Int("match", match).Int("team", team).Msg("patch answers failed")
		c.metrics.RecordPatch("answers", false)
		return false
	}
	c.metrics.RecordPatch("answers", true)
	return true
}

// GetCurrentEntry returns the caller's unfinished backend record, or nil.
func (c *ScoutingClient) GetCurrentEntry(ctx context.Context) map[string]any {
	var entry map[string]any
	if err := c.GetJSON(ctx, CurrentEndpoint, &entry); err != nil {
		log.Warn().Err(err).Msg("get current scouting entry failed")
		return nil
	}
	return entry
}
