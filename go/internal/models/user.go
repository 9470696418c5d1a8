package models

// Permissions are the capability flags attached to a scouting session.
type Permissions struct {
	Dev           bool `json:"dev"`
	Admin         bool `json:"admin"`
	MatchScouting bool `json:"match_scouting"`
	PitScouting   bool `json:"pit_scouting"`
}

// CanScout reports whether the holder may enter match or pit data.
func (p Permissions) CanScout() bool {
	return p.MatchScouting || p.PitScouting
}
