package contour

import (
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// legacyIndex is the round(v/100 × n) lookup the breakpoint table replaces.
func legacyIndex(v float64) int {
	i := int(math.Round(v * float64(len(intensityColors)) / maxIntensity))
	return max(0, min(i, len(intensityColors)-1))
}

func TestStyleFor_Thresholds(t *testing.T) {
	tests := []struct {
		threshold float64
		index     int
		opacity   float64
	}{
		{4, 1, 0.4},
		{10, 3, 0.4},
		{20, 6, 0.4},
		{50, 15, 0.4},
		{85, 26, 0.4},
		{90, 27, 0.4},
		{95, 29, 1},
		{97.5, 29, 1},
	}

	for _, tt := range tests {
		got := StyleFor(tt.threshold)
		assert.Equal(t, intensityColors[tt.index], got.Fill, "threshold %v", tt.threshold)
		assert.Equal(t, tt.opacity, got.Opacity, "threshold %v", tt.threshold)
	}
}

func TestScale_MatchesRoundedIndex(t *testing.T) {
	for v := 0.0; v <= 98; v += 0.25 {
		assert.Equal(t, intensityColors[legacyIndex(v)], intensityScale.Color(v), "v = %v", v)
	}
}

func TestScale_Clamps(t *testing.T) {
	assert.Equal(t, intensityColors[0], intensityScale.Color(-12))
	assert.Equal(t, intensityColors[len(intensityColors)-1], intensityScale.Color(100))
	assert.Equal(t, intensityColors[len(intensityColors)-1], intensityScale.Color(250))
}

func TestNewScale_CustomTable(t *testing.T) {
	red := color.NRGBA{R: 0xff, A: 0xff}
	blue := color.NRGBA{B: 0xff, A: 0xff}
	s := NewScale([]color.NRGBA{red, blue}, 10)

	assert.Equal(t, red, s.Color(0))
	assert.Equal(t, red, s.Color(2.4))
	assert.Equal(t, blue, s.Color(2.5))
	assert.Equal(t, blue, s.Color(9))
}
