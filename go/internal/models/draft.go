package models

import (
	"fmt"
	"time"
)

// ScoutingMode distinguishes match scouting from pit scouting.
type ScoutingMode string

const (
	ModeMatch ScoutingMode = "match"
	ModePit   ScoutingMode = "pit"
)

// ScoutingSession is the working state of one device's data-entry flow.
// TeamNumber is non-nil only while the device holds (or believes it holds) the claim.
type ScoutingSession struct {
	Match      int          `json:"match"`
	MatchType  MatchType    `json:"match_type"`
	Alliance   Alliance     `json:"alliance"`
	TeamNumber *int         `json:"teamNumber"`
	Scouter    string       `json:"scouter"`
	Phase      Phase        `json:"phase"`
	Mode       ScoutingMode `json:"mode"`
	Answers    Answers      `json:"answers"`
}

// DraftKey returns the composite key for the local draft store.
func DraftKey(matchType MatchType, match, team int) string {
	return fmt.Sprintf("%s|%d|%d", matchType, match, team)
}

// ScoutingDraft is an in-progress scouting record persisted on the device.
type ScoutingDraft struct {
	Key        string    `json:"key"`
	MatchType  MatchType `json:"match_type"`
	Match      int       `json:"match"`
	Alliance   Alliance  `json:"alliance"`
	TeamNumber int       `json:"teamNumber"`
	Scouter    string    `json:"scouter"`
	Status     Phase     `json:"status"`
	Answers    Answers   `json:"answers"`
	UpdatedAt  time.Time `json:"updated_at"`
}
