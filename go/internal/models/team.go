package models

// Team is one roster entry for an alliance in a match, annotated with the
// scouter currently holding the claim (nil when unclaimed).
type Team struct {
	Number  int     `json:"number"`
	Name    string  `json:"name"`
	Logo    string  `json:"logo"`
	Scouter *string `json:"scouter"`
}

// Claimed reports whether any scouter holds the team.
func (t Team) Claimed() bool {
	return t.Scouter != nil
}

// ClaimedBy returns the claiming scouter or "" when unclaimed.
func (t Team) ClaimedBy() string {
	if t.Scouter == nil {
		return ""
	}
	return *t.Scouter
}

// WithScouter returns a copy of t claimed by scouter. A nil scouter unclaims.
func (t Team) WithScouter(scouter *string) Team {
	if scouter != nil {
		s := *scouter
		scouter = &s
	}
	t.Scouter = scouter
	return t
}

// Roster is the ordered team list for one alliance of one match.
type Roster []Team

// Clone returns a deep copy of r.
func (r Roster) Clone() Roster {
	if r == nil {
		return nil
	}
	out := make(Roster, len(r))
	for i, t := range r {
		out[i] = t.WithScouter(t.Scouter)
	}
	return out
}

// Find returns the entry for number and whether it exists.
func (r Roster) Find(number int) (Team, bool) {
	for _, t := range r {
		if t.Number == number {
			return t, true
		}
	}
	return Team{}, false
}

// StringPtr is a helper for optional scouter names.
func StringPtr(s string) *string {
	return &s
}
