package environment

import "math"

const (
	// downlink at or above this many Mbps scores full bandwidth weight
	referenceDownlinkMbps = 10.0
	// round-trip time at or above this many ms scores zero latency weight
	referenceRTTMillis = 300.0

	bandwidthWeight = 0.7
	latencyWeight   = 0.3
)

// Quality scores a hints sample in [0,1]. Offline devices and samples without
// bandwidth or latency estimates score 0.
func Quality(h Hints) float64 {
	if !h.Online || h.DownlinkMbps == nil || h.RTTMillis == nil {
		return 0
	}

	bandwidth := math.Min(*h.DownlinkMbps/referenceDownlinkMbps, 1)
	latency := 1 - math.Min(*h.RTTMillis/referenceRTTMillis, 1)
	q := math.Min(1, bandwidth*bandwidthWeight+latency*latencyWeight)
	if q < 0 {
		q = 0
	}
	return math.Round(q*100) / 100
}

// Level buckets a quality score into six discrete levels, 0 (unusable) to 5.
func Level(quality float64, online bool) int {
	if !online {
		return 0
	}
	switch {
	case quality > 0.9:
		return 5
	case quality > 0.7:
		return 4
	case quality > 0.5:
		return 3
	case quality > 0.3:
		return 2
	case quality > 0.1:
		return 1
	default:
		return 0
	}
}

// IsWifi guesses whether the device sits on a fast local link.
func IsWifi(h Hints) bool {
	if h.Type == "wifi" || h.EffectiveType == "4g" {
		return true
	}
	return h.DownlinkMbps != nil && *h.DownlinkMbps > referenceDownlinkMbps
}
