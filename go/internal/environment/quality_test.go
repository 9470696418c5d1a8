package environment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func f(v float64) *float64 { return &v }

func TestQuality(t *testing.T) {
	tests := []struct {
		name  string
		hints Hints
		want  float64
	}{
		{name: "offline", hints: Hints{Online: false, DownlinkMbps: f(10), RTTMillis: f(0)}, want: 0},
		{name: "no downlink", hints: Hints{Online: true, RTTMillis: f(50)}, want: 0},
		{name: "no rtt", hints: Hints{Online: true, DownlinkMbps: f(10)}, want: 0},
		{name: "perfect", hints: Hints{Online: true, DownlinkMbps: f(50), RTTMillis: f(0)}, want: 1},
		{name: "capped latency", hints: Hints{Online: true, DownlinkMbps: f(10), RTTMillis: f(900)}, want: 0.7},
		{name: "half and half", hints: Hints{Online: true, DownlinkMbps: f(5), RTTMillis: f(150)}, want: 0.5},
		{name: "rounded", hints: Hints{Online: true, DownlinkMbps: f(1.234), RTTMillis: f(100)}, want: 0.29},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Quality(tt.hints), 1e-9)
		})
	}
}

func TestLevel(t *testing.T) {
	tests := []struct {
		quality float64
		online  bool
		want    int
	}{
		{1, false, 0},
		{1, true, 5},
		{0.91, true, 5},
		{0.9, true, 4},
		{0.71, true, 4},
		{0.7, true, 3},
		{0.51, true, 3},
		{0.5, true, 2},
		{0.31, true, 2},
		{0.3, true, 1},
		{0.11, true, 1},
		{0.1, true, 0},
		{0, true, 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Level(tt.quality, tt.online), "quality=%v online=%v", tt.quality, tt.online)
	}
}

func TestIsWifi(t *testing.T) {
	assert.True(t, IsWifi(Hints{Type: "wifi"}))
	assert.True(t, IsWifi(Hints{EffectiveType: "4g"}))
	assert.True(t, IsWifi(Hints{DownlinkMbps: f(10.5)}))
	assert.False(t, IsWifi(Hints{DownlinkMbps: f(10)}))
	assert.False(t, IsWifi(Hints{Type: "cellular", EffectiveType: "3g"}))
}
