// Package grid decodes the ASCII-encoded rainarea intensity field.
//
// # Encoding
//
// The upstream "radar" payload is a newline-delimited block of text, one line
// per grid row. Each character is one cell:
//
//	' ' (or any whitespace)  →  0, no echo
//	'!'                      →  0
//	'"'                      →  1
//	...                      →  code point − 33
//
// Rows are left-padded with spaces and trailing spaces are dropped by the
// encoder, so rows may be shorter than the grid width. Missing cells are
// zero. Values are not clamped here; keeping them in range is the encoder's
// job.
package grid

import (
	"math"
	"strings"
	"unicode"
)

// Offset is subtracted from each character's code point to obtain its intensity.
const Offset = 33

// Matrix is a row-major intensity field of Width×Height cells.
type Matrix struct {
	Width  int
	Height int
	Values []float64
}

// At returns the intensity at column x, row y.
func (m Matrix) At(x, y int) float64 {
	return m.Values[y*m.Width+x]
}

// Decode turns the encoded radar text into a Matrix. Rows beyond height and
// characters beyond width are ignored; short or missing rows stay zero.
func Decode(radar string, width, height int) Matrix {
	if width <= 0 || height <= 0 {
		return Matrix{}
	}

	m := Matrix{
		Width:  width,
		Height: height,
		Values: make([]float64, width*height),
	}

	rows := strings.Split(strings.TrimRightFunc(radar, unicode.IsSpace), "\n")
	for y, row := range rows {
		if y >= height {
			break
		}
		decodeRow(m.Values[y*width:(y+1)*width], row)
	}
	return m
}

// decodeRow writes one encoded row into dst, which is exactly one grid row wide.
func decodeRow(dst []float64, row string) {
	start := strings.IndexFunc(row, func(r rune) bool { return !unicode.IsSpace(r) })
	if start < 0 {
		return
	}

	x := len([]rune(row[:start]))
	for _, r := range row[start:] {
		if x >= len(dst) {
			return
		}
		if !unicode.IsSpace(r) {
			dst[x] = float64(r - Offset)
		}
		x++
	}
}

// Encode is the inverse of Decode for integral, non-negative values: zero
// becomes a space, anything else the character at value+Offset. Trailing
// spaces on each row are trimmed the way the upstream encoder does.
func Encode(m Matrix) string {
	var b strings.Builder
	row := make([]rune, m.Width)
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			v := int(math.Round(m.At(x, y)))
			if v <= 0 {
				row[x] = ' '
				continue
			}
			row[x] = rune(v + Offset)
		}
		if y > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strings.TrimRight(string(row), " "))
	}
	return b.String()
}
