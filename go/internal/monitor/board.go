package monitor

import (
	"slices"
	"strconv"
	"time"

	"github.com/mcdev12/scoutsync/go/internal/models"
)

// Entry is one record a scout is actively working on.
type Entry struct {
	Match   string       `json:"match"`
	Team    int          `json:"team"`
	Status  models.Phase `json:"status"`
	Scouter *string      `json:"scouter"`
}

// BoardMessage is pushed to every display when the active set changes.
type BoardMessage struct {
	Type      string    `json:"type"`
	Entries   []Entry   `json:"entries"`
	UpdatedAt time.Time `json:"updated_at"`
}

const boardMessageType = "status_board"

// ActiveEntries flattens board, dropping records nobody is scouting
// (unclaimed) or that are finished locally (completed). Entries are ordered
// by match then team.
func ActiveEntries(board models.StatusBoard) []Entry {
	entries := make([]Entry, 0)
	for match, teams := range board {
		for teamStr, st := range teams {
			if st.Status == models.PhaseUnclaimed || st.Status == models.PhaseCompleted {
				continue
			}
			team, err := strconv.Atoi(teamStr)
			if err != nil {
				continue
			}
			entries = append(entries, Entry{Match: match, Team: team, Status: st.Status, Scouter: st.Scouter})
		}
	}

	slices.SortFunc(entries, func(a, b Entry) int {
		if a.Match != b.Match {
			return compareMatch(a.Match, b.Match)
		}
		return a.Team - b.Team
	})
	return entries
}

// compareMatch orders numeric match keys numerically and anything else after them.
func compareMatch(a, b string) int {
	ai, aErr := strconv.Atoi(a)
	bi, bErr := strconv.Atoi(b)
	switch {
	case aErr == nil && bErr == nil:
		return ai - bi
	case aErr == nil:
		return -1
	case bErr == nil:
		return 1
	}
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

func sameEntries(a, b []Entry) bool {
	return slices.EqualFunc(a, b, func(x, y Entry) bool {
		return x.Match == y.Match && x.Team == y.Team && x.Status == y.Status && ptrEqual(x.Scouter, y.Scouter)
	})
}

func ptrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
