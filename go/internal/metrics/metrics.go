package metrics

import (
	"time"
)

// Collector records sync-layer activity. Implementations must be safe for
// concurrent use.
type Collector interface {
	RecordPatch(kind string, success bool)
	RecordPoll(success bool, duration time.Duration)
	RecordProbe(reachable bool, quality float64)
	RecordEventPublished(eventType string, success bool)
	SetActiveSubscriptions(n int)
	SetMonitorClients(n int)
}

// NoOp is the collector used when metrics aren't needed
type NoOp struct{}

func (NoOp) RecordPatch(kind string, success bool)               {}
func (NoOp) RecordPoll(success bool, duration time.Duration)     {}
func (NoOp) RecordProbe(reachable bool, quality float64)         {}
func (NoOp) RecordEventPublished(eventType string, success bool) {}
func (NoOp) SetActiveSubscriptions(n int)                        {}
func (NoOp) SetMonitorClients(n int)                             {}

// OrNoOp returns c, or NoOp when c is nil.
func OrNoOp(c Collector) Collector {
	if c == nil {
		return NoOp{}
	}
	return c
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
