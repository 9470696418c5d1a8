package models

import (
	"fmt"
	"time"
)

// MatchType defines the competition stage of a match.
type MatchType string

const (
	MatchTypeQualification MatchType = "qm"
	MatchTypeSemifinal     MatchType = "sf"
	MatchTypeFinal         MatchType = "f"
)

// Valid reports whether m is a known match type.
func (m MatchType) Valid() bool {
	switch m {
	case MatchTypeQualification, MatchTypeSemifinal, MatchTypeFinal:
		return true
	}
	return false
}

// ParseMatchType converts s into a MatchType.
func ParseMatchType(s string) (MatchType, error) {
	m := MatchType(s)
	if !m.Valid() {
		return "", fmt.Errorf("invalid match type %q", s)
	}
	return m, nil
}

// Alliance defines the side of the field a team plays on.
type Alliance string

const (
	AllianceRed  Alliance = "red"
	AllianceBlue Alliance = "blue"
)

// Valid reports whether a is a known alliance.
func (a Alliance) Valid() bool {
	return a == AllianceRed || a == AllianceBlue
}

// ParseAlliance converts s into an Alliance.
func ParseAlliance(s string) (Alliance, error) {
	a := Alliance(s)
	if !a.Valid() {
		return "", fmt.Errorf("invalid alliance %q", s)
	}
	return a, nil
}

// Phase is the scouting status of a (match, team) record.
type Phase string

const (
	PhaseUnclaimed Phase = "unclaimed"
	PhasePre       Phase = "pre"
	PhaseAuto      Phase = "auto"
	PhaseTeleop    Phase = "teleop"
	PhasePost      Phase = "post"
	PhaseOffline   Phase = "offline"
	PhaseCompleted Phase = "completed"
	PhaseSubmitted Phase = "submitted"
)

// PhaseOrder is the data-entry sequence a scout walks through.
var PhaseOrder = []Phase{PhasePre, PhaseAuto, PhaseTeleop, PhasePost}

// InProgress reports whether p is one of the data-entry phases.
func (p Phase) InProgress() bool {
	for _, o := range PhaseOrder {
		if p == o {
			return true
		}
	}
	return false
}

// TeamClaim is the scouting-assignment state of one (match, team) as known to a client.
type TeamClaim struct {
	MatchType    MatchType `json:"match_type"`
	Match        int       `json:"match"`
	Alliance     Alliance  `json:"alliance"`
	TeamNumber   int       `json:"team_number"`
	Scouter      *string   `json:"scouter"`
	Status       Phase     `json:"status"`
	LastSeen     string    `json:"last_seen"`
	LastModified time.Time `json:"last_modified,omitempty"`
}

// TeamStatus is one cell of the bulk status board.
type TeamStatus struct {
	Status  Phase   `json:"status"`
	Scouter *string `json:"scouter"`
}

// StatusBoard maps match -> team number -> status, as served by /status/All/All.
type StatusBoard map[string]map[string]TeamStatus

// Lookup returns the status of team in match.
func (b StatusBoard) Lookup(match, team int) (TeamStatus, bool) {
	teams, ok := b[fmt.Sprint(match)]
	if !ok {
		return TeamStatus{}, false
	}
	st, ok := teams[fmt.Sprint(team)]
	return st, ok
}
