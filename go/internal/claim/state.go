package claim

import (
	"errors"

	"github.com/mcdev12/scoutsync/go/internal/models"
)

// State is the claim state of one scouting session.
type State string

const (
	// Unbound: no team selected.
	Unbound State = "unbound"
	// Bound: a team is selected and this device believes it holds the claim.
	Bound State = "bound"
	// Reconciling: claim or release patches are in flight.
	Reconciling State = "reconciling"
	// OfflineBound: the device is offline; claim rules are suspended and
	// teams are entered by number.
	OfflineBound State = "offline_bound"
)

var (
	ErrNoContext      = errors.New("match type, match and alliance must be set before selecting a team")
	ErrNoTeam         = errors.New("no team selected")
	ErrClaimedByOther = errors.New("team is claimed by another scouter")
	ErrInvalidTeam    = errors.New("team number must be positive")
	ErrClosed         = errors.New("synchronizer is closed")
)

// Context is the match/alliance a session is scouting.
type Context struct {
	MatchType models.MatchType    `json:"match_type"`
	Match     int                 `json:"match"`
	Alliance  models.Alliance     `json:"alliance"`
	Mode      models.ScoutingMode `json:"mode"`
}

// Complete reports whether a roster can be fetched for c.
func (c Context) Complete() bool {
	return c.Match > 0 && c.MatchType.Valid() && c.Alliance.Valid()
}

// Active reports whether c is a context claim rules apply to at all.
func (c Context) Active() bool {
	if c.Mode == models.ModePit {
		return true
	}
	return c.Complete()
}

func (c Context) claims() bool {
	return c.Mode != models.ModePit && c.Complete()
}

// Status is a point-in-time view of a Synchronizer.
type Status struct {
	State     State        `json:"state"`
	Context   Context      `json:"context"`
	Team      *int         `json:"team"`
	Phase     models.Phase `json:"phase,omitempty"`
	Manual    bool         `json:"manual"`
	Online    bool         `json:"online"`
	Watermark string       `json:"watermark"`
}

// TeamView is one roster entry as the selection screen renders it.
type TeamView struct {
	Team           models.Team `json:"team"`
	Selected       bool        `json:"selected"`
	ClaimedBy      string      `json:"claimed_by,omitempty"`
	ClaimedByOther bool        `json:"claimed_by_other"`
	// Disabled teams cannot be selected: another scouter holds them.
	Disabled bool `json:"disabled"`
}

func deriveState(online bool, c Context, selected *int, pending int) State {
	switch {
	case pending > 0:
		return Reconciling
	case !online && c.Active():
		return OfflineBound
	case selected != nil:
		return Bound
	default:
		return Unbound
	}
}

func views(roster models.Roster, selected *int, self string) []TeamView {
	out := make([]TeamView, 0, len(roster))
	for _, t := range roster {
		v := TeamView{
			Team:      t,
			Selected:  selected != nil && *selected == t.Number,
			ClaimedBy: t.ClaimedBy(),
		}
		v.ClaimedByOther = t.Claimed() && t.ClaimedBy() != self
		v.Disabled = v.ClaimedByOther && !v.Selected
		out = append(out, v)
	}
	return out
}
