package scoring

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizePoints(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []float64
	}{
		{name: "sorted and merged", raw: `[0.7, 0.3, 0.3, 0.3000000000001]`, want: []float64{0.3, 0.7}},
		{name: "out of range dropped", raw: `[-0.1, 1.5, 0, 1]`, want: []float64{0, 1}},
		{name: "numeric strings accepted", raw: `["0.25", " 0.5 ", "abc", "NaN", "Infinity"]`, want: []float64{0.25, 0.5}},
		{name: "other types dropped", raw: `[null, true, {"x": 1}, [0.2], 0.4]`, want: []float64{0.4}},
		{name: "not an array", raw: `{"points": [0.1]}`, want: []float64{}},
		{name: "malformed json", raw: `[0.1,`, want: []float64{}},
		{name: "empty", raw: ``, want: []float64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizePoints(json.RawMessage(tt.raw))
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		raw := make([]float64, rng.Intn(12))
		for k := range raw {
			raw[k] = rng.Float64()*1.4 - 0.2
			if rng.Intn(4) == 0 && k > 0 {
				raw[k] = raw[k-1] + PointEpsilon/2
			}
		}

		once := Normalize(raw)
		twice := Normalize(append([]float64{}, once...))
		require.Equal(t, once, twice)

		for k, x := range once {
			assert.GreaterOrEqual(t, x, 0.0)
			assert.LessOrEqual(t, x, 1.0)
			if k > 0 {
				assert.Greater(t, x-once[k-1], PointEpsilon)
			}
		}
	}
}
