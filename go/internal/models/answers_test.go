package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnswers_MergeKeepsJSONForm(t *testing.T) {
	base := Answers{"auto": map[string]any{"l1": 1, "moved": true}}

	got := base.Merge(Answers{
		"auto":   map[string]any{"l4": 2.0, "speed": 1.5},
		"teleop": map[string]any{"cycles": []int{3, 4}},
		"big":    uint64(math.MaxUint64),
	})

	assert.Equal(t, Answers{
		"auto":   map[string]any{"l1": int64(1), "moved": true, "l4": int64(2), "speed": 1.5},
		"teleop": map[string]any{"cycles": []any{int64(3), int64(4)}},
		"big":    float64(math.MaxUint64),
	}, got)
	// base is untouched
	assert.Equal(t, 1, base["auto"].(map[string]any)["l1"])
}

func TestDecodeAnswers_MatchesClone(t *testing.T) {
	decoded, err := DecodeAnswers([]byte(`{"a":{"n":9007199254740993,"f":0.5,"i":2.0},"list":[1,"x",null]}`))
	require.NoError(t, err)

	assert.Equal(t, Answers{
		"a":    map[string]any{"n": int64(9007199254740993), "f": 0.5, "i": int64(2)},
		"list": []any{int64(1), "x", nil},
	}, decoded)
	assert.Equal(t, decoded, decoded.Clone())

	empty, err := DecodeAnswers([]byte(`null`))
	require.NoError(t, err)
	assert.Equal(t, Answers{}, empty)

	_, err = DecodeAnswers([]byte(`[1]`))
	assert.Error(t, err)
}
