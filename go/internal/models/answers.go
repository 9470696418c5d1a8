package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// Answers holds nested scouting form data. The schema is season specific and
// opaque to everything except the form screens.
//
// Values are kept in their JSON form so a stored draft reloads identical:
// objects as map[string]any, arrays as []any, integral numbers as int64 and
// all other numbers as float64. Clone and Merge convert anything else.
type Answers map[string]any

// DecodeAnswers parses a JSON object into Answers in the form Clone produces.
func DecodeAnswers(data []byte) (Answers, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode answers: %w", err)
	}
	if raw == nil {
		return Answers{}, nil
	}
	return Answers(normalizeMap(raw)), nil
}

// Clone returns a deep copy of a.
func (a Answers) Clone() Answers {
	if a == nil {
		return nil
	}
	return normalizeMap(a)
}

// Merge returns a new Answers with partial merged over a. Nested maps are
// merged key by key; every other value in partial replaces the existing one.
func (a Answers) Merge(partial Answers) Answers {
	out := a.Clone()
	if out == nil {
		out = Answers{}
	}
	for k, v := range partial {
		src, srcIsMap := asMap(v)
		dst, dstIsMap := asMap(out[k])
		if srcIsMap && dstIsMap {
			out[k] = map[string]any(Answers(dst).Merge(src))
			continue
		}
		out[k] = normalize(v)
	}
	return out
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Answers:
		return m, true
	}
	return nil, false
}

func normalizeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalize(v)
	}
	return out
}

func normalize(v any) any {
	switch t := v.(type) {
	case nil, bool, string, int64:
		return t
	case int:
		return int64(t)
	case int8:
		return int64(t)
	case int16:
		return int64(t)
	case int32:
		return int64(t)
	case uint8:
		return int64(t)
	case uint16:
		return int64(t)
	case uint32:
		return int64(t)
	case float64:
		return normalizeFloat(t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return normalizeFloat(f)
		}
		return t.String()
	case map[string]any:
		return normalizeMap(t)
	case Answers:
		return normalizeMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	}
	return viaJSON(v)
}

// normalizeFloat maps integral values in int64 range to int64, matching what
// decoding their JSON text yields.
func normalizeFloat(f float64) any {
	if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
		return int64(f)
	}
	return f
}

// viaJSON converts any other value (typed slices and maps, structs, uint64,
// float32) to what its JSON encoding decodes to.
func viaJSON(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return v
	}
	return normalize(out)
}
