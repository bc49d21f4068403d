package scoring

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
)

// PointEpsilon is the distance under which two claims from the same player are merged.
const PointEpsilon = 1e-9

// SanitizePoints coerces a raw JSON claim list into a clean one. A payload that is not an array
// yields no claims; elements that are neither numbers nor numeric strings are dropped.
func SanitizePoints(raw json.RawMessage) []float64 {
	var items []any
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil {
		return []float64{}
	}

	values := make([]float64, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case float64:
			values = append(values, v)
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err == nil {
				values = append(values, f)
			}
		}
	}
	return Normalize(values)
}

// Normalize drops non-finite and out-of-range values, sorts ascending and merges values
// closer than PointEpsilon. Normalize(Normalize(x)) == Normalize(x).
func Normalize(values []float64) []float64 {
	kept := make([]float64, 0, len(values))
	for _, x := range values {
		if math.IsNaN(x) || math.IsInf(x, 0) || x < 0 || x > 1 {
			continue
		}
		kept = append(kept, x)
	}
	sort.Float64s(kept)

	unique := kept[:0]
	for _, x := range kept {
		if len(unique) == 0 || math.Abs(x-unique[len(unique)-1]) > PointEpsilon {
			unique = append(unique, x)
		}
	}
	return unique
}
