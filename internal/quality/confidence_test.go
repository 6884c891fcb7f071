package quality

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeConfidence(t *testing.T) {
	tests := []struct {
		name string
		p    float64
		want float64
	}{
		{"zero", 0, 0},
		{"half", 0.5, 50},
		{"sub-percent fraction kept", 0.1234, 12.34},
		{"truncated not rounded", 0.56789, 56.78},
		{"float noise", 0.29, 29},
		{"near certain", 0.99999, 99.99},
		{"certain", 1, MaxConfidence},
		{"above one", 1.5, MaxConfidence},
		{"negative", -0.2, 0},
		{"nan", math.NaN(), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, NormalizeConfidence(tt.p), 1e-9)
		})
	}
}

func TestNormalizeConfidence_IntegerPartIsFloor(t *testing.T) {
	for i := 0; i < 100; i++ {
		p := float64(i)/100 + 0.0037
		got := NormalizeConfidence(p)
		assert.Equal(t, float64(i), math.Floor(got), "p=%f", p)
	}
}

func TestNormalizeConfidence_Deterministic(t *testing.T) {
	assert.Equal(t, NormalizeConfidence(0.8765), NormalizeConfidence(0.8765))
}
