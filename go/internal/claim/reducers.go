package claim

import (
	"strconv"

	"github.com/mcdev12/scoutsync/go/clients/scouting_client"
	"github.com/mcdev12/scoutsync/go/internal/models"
)

// Roster reducers. Each returns a new roster and never mutates prev, so an
// update computed from one snapshot cannot clobber another.

func markClaimed(prev models.Roster, team int, scouter string) models.Roster {
	return mapTeam(prev, team, func(t models.Team) models.Team {
		return t.WithScouter(&scouter)
	})
}

func markUnclaimed(prev models.Roster, team int) models.Roster {
	return mapTeam(prev, team, func(t models.Team) models.Team {
		return t.WithScouter(nil)
	})
}

// applyDelta overwrites the scouter of exactly the teams named in delta. A nil
// roster stays nil: deltas never create entries.
func applyDelta(prev models.Roster, delta map[string]scouting_client.TeamDelta) models.Roster {
	if prev == nil {
		return nil
	}
	out := make(models.Roster, len(prev))
	for i, t := range prev {
		if d, ok := delta[strconv.Itoa(t.Number)]; ok {
			out[i] = t.WithScouter(d.Scouter)
			continue
		}
		out[i] = t
	}
	return out
}

func mapTeam(prev models.Roster, team int, fn func(models.Team) models.Team) models.Roster {
	if prev == nil {
		return nil
	}
	out := make(models.Roster, len(prev))
	for i, t := range prev {
		if t.Number == team {
			out[i] = fn(t)
			continue
		}
		out[i] = t
	}
	return out
}
