package environment

import "sync"

// Hints are the ambient connection estimates a platform can report.
// Nil estimates mean the platform could not provide them.
type Hints struct {
	Online        bool     `json:"online" yaml:"online"`
	Type          string   `json:"type,omitempty" yaml:"type"`
	EffectiveType string   `json:"effective_type,omitempty" yaml:"effective_type"`
	DownlinkMbps  *float64 `json:"downlink_mbps,omitempty" yaml:"downlink_mbps"`
	RTTMillis     *float64 `json:"rtt_ms,omitempty" yaml:"rtt_ms"`
}

// ConnectionHints is a source of connection hints. Sample reports false when
// no estimate is available at all.
type ConnectionHints interface {
	Sample() (Hints, bool)
}

// StaticHints is a settable ConnectionHints, used by the CLI flags and tests.
type StaticHints struct {
	mu        sync.Mutex
	hints     Hints
	available bool
}

// NewStaticHints returns a source reporting h.
func NewStaticHints(h Hints) *StaticHints {
	return &StaticHints{hints: h, available: true}
}

func (s *StaticHints) Sample() (Hints, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hints, s.available
}

// Set replaces the reported hints.
func (s *StaticHints) Set(h Hints) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hints = h
	s.available = true
}

// SetOnline flips only the online flag.
func (s *StaticHints) SetOnline(online bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hints.Online = online
	s.available = true
}

// Unavailable makes Sample report no estimate.
func (s *StaticHints) Unavailable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.available = false
}
