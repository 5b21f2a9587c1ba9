package contour

import (
	"image/color"
	"sort"
)

// Intensity colours, clear-air cyan through to extreme magenta.
var intensityColors = []color.NRGBA{
	hex(0x40FFFD), hex(0x3BEEEC), hex(0x32D0D2), hex(0x2CB9BD), hex(0x229698),
	hex(0x1C827D), hex(0x1B8742), hex(0x229F44), hex(0x27B240), hex(0x2CC53B),
	hex(0x30D43E), hex(0x38EF46), hex(0x3BFB49), hex(0x59FA61), hex(0xFEFB63),
	hex(0xFDFA53), hex(0xFDEB50), hex(0xFDD74A), hex(0xFCC344), hex(0xFAB03F),
	hex(0xFAA23D), hex(0xFB8938), hex(0xFB7133), hex(0xF94C2D), hex(0xF9282A),
	hex(0xDD1423), hex(0xBE0F1D), hex(0xB21867), hex(0xD028A6), hex(0xF93DF5),
}

const (
	// maxIntensity is the value mapped to the top of the palette.
	maxIntensity = 100
	// opaqueAbove is the level past which contours are drawn fully opaque.
	opaqueAbove = 90

	translucent = 0.4
	opaque      = 1.0
)

// Style is how a contour is painted.
type Style struct {
	Fill    color.NRGBA
	Opacity float64
}

// Scale maps a continuous intensity onto a discrete colour through a sorted
// breakpoint table.
type Scale struct {
	// upper[i] is the exclusive upper bound of colors[i]. The last colour has
	// no upper bound.
	upper  []float64
	colors []color.NRGBA
}

// NewScale spreads colors evenly over [0, top]: colour i covers values that
// round to i after scaling by len(colors)/top. Values below zero clamp to the
// first colour and values past the last breakpoint clamp to the last.
func NewScale(colors []color.NRGBA, top float64) *Scale {
	n := len(colors)
	upper := make([]float64, n-1)
	for i := range upper {
		upper[i] = (float64(i) + 0.5) * top / float64(n)
	}
	return &Scale{upper: upper, colors: colors}
}

// Color returns the colour for value v.
func (s *Scale) Color(v float64) color.NRGBA {
	i := sort.Search(len(s.upper), func(i int) bool { return s.upper[i] > v })
	return s.colors[i]
}

var intensityScale = NewScale(intensityColors, maxIntensity)

// StyleFor returns the fill colour and opacity for a contour threshold.
func StyleFor(threshold float64) Style {
	opacity := translucent
	if threshold > opaqueAbove {
		opacity = opaque
	}
	return Style{Fill: intensityScale.Color(threshold), Opacity: opacity}
}

func hex(rgb uint32) color.NRGBA {
	return color.NRGBA{R: uint8(rgb >> 16), G: uint8(rgb >> 8), B: uint8(rgb), A: 0xff}
}
