// Package contour extracts isolines from an intensity matrix with marching
// squares.
//
// Each threshold is handled on its own: a contour is the boundary of the
// region whose cells are at or above the threshold, so the area of a higher
// threshold is also covered by every lower one. Callers paint contours in
// ascending order and rely on opacity to keep the stack readable.
//
// Cells are unit squares with their sample at the centre, so a W×H matrix
// produces rings inside [0,W]×[0,H]. The matrix is treated as if surrounded
// by a band of clear cells, which keeps every ring closed. Crossings on
// interior edges are linearly interpolated between the two neighbouring
// samples; no further smoothing is applied.
package contour

import (
	"slices"

	"github.com/couchcryptid/storm-radar-renderer/internal/geo"
	"github.com/couchcryptid/storm-radar-renderer/internal/grid"
)

// Thresholds are the intensity levels drawn on the radar frame.
var Thresholds = []float64{4, 10, 20, 30, 40, 50, 60, 70, 80, 85, 90, 95, 97.5}

// Ring is a closed sequence of points in grid coordinates; the first point
// is repeated at the end.
type Ring []geo.Point

// Contour holds every ring of one threshold.
type Contour struct {
	Threshold float64
	Rings     []Ring
}

// Empty reports whether the threshold produced no geometry.
func (c Contour) Empty() bool { return len(c.Rings) == 0 }

// Extractor computes contours for a fixed, ascending list of thresholds.
type Extractor struct {
	thresholds []float64
}

// NewExtractor returns an Extractor for the given thresholds, or for
// Thresholds when none are passed.
func NewExtractor(thresholds ...float64) *Extractor {
	if len(thresholds) == 0 {
		thresholds = Thresholds
	}
	sorted := slices.Clone(thresholds)
	slices.Sort(sorted)
	return &Extractor{thresholds: sorted}
}

// Thresholds returns the extractor's levels in paint order.
func (e *Extractor) Thresholds() []float64 {
	return slices.Clone(e.thresholds)
}

// Extract returns one Contour per threshold, ascending. The result depends
// only on the matrix values, so repeated calls give identical output.
func (e *Extractor) Extract(m grid.Matrix) []Contour {
	out := make([]Contour, 0, len(e.thresholds))
	for _, t := range e.thresholds {
		c := Contour{Threshold: t}
		if m.Width > 0 && m.Height > 0 {
			isorings(m, t, func(r Ring) {
				interpolate(r, m, t)
				c.Rings = append(c.Rings, r)
			})
		}
		out = append(out, c)
	}
	return out
}

// segment is a line inside one marching-squares cell, in cell-local units.
type segment [2]geo.Point

// cases maps the 4-bit corner mask (bit 0 bottom-left, 1 bottom-right,
// 2 top-right, 3 top-left) to the segments crossing that cell. Segments are
// oriented so the above-threshold side is consistent, which lets fragments
// be stitched end to start.
var cases = [16][]segment{
	{},
	{{{X: 1.0, Y: 1.5}, {X: 0.5, Y: 1.0}}},
	{{{X: 1.5, Y: 1.0}, {X: 1.0, Y: 1.5}}},
	{{{X: 1.5, Y: 1.0}, {X: 0.5, Y: 1.0}}},
	{{{X: 1.0, Y: 0.5}, {X: 1.5, Y: 1.0}}},
	{{{X: 1.0, Y: 1.5}, {X: 0.5, Y: 1.0}}, {{X: 1.0, Y: 0.5}, {X: 1.5, Y: 1.0}}},
	{{{X: 1.0, Y: 0.5}, {X: 1.0, Y: 1.5}}},
	{{{X: 1.0, Y: 0.5}, {X: 0.5, Y: 1.0}}},
	{{{X: 0.5, Y: 1.0}, {X: 1.0, Y: 0.5}}},
	{{{X: 1.0, Y: 1.5}, {X: 1.0, Y: 0.5}}},
	{{{X: 0.5, Y: 1.0}, {X: 1.0, Y: 0.5}}, {{X: 1.5, Y: 1.0}, {X: 1.0, Y: 1.5}}},
	{{{X: 1.5, Y: 1.0}, {X: 1.0, Y: 0.5}}},
	{{{X: 0.5, Y: 1.0}, {X: 1.5, Y: 1.0}}},
	{{{X: 1.0, Y: 1.5}, {X: 1.5, Y: 1.0}}},
	{{{X: 0.5, Y: 1.0}, {X: 1.0, Y: 1.5}}},
	{},
}

// fragment is an open chain of segments waiting to be joined or closed.
type fragment struct {
	start int
	end   int
	ring  Ring
}

// isorings walks the (W+1)×(H+1) cells around the samples and calls emit
// for every closed ring, in scan order.
func isorings(m grid.Matrix, threshold float64, emit func(Ring)) {
	dx, dy := m.Width, m.Height
	values := m.Values

	above := func(i int) int {
		if values[i] >= threshold {
			return 1
		}
		return 0
	}

	byStart := make(map[int]*fragment)
	byEnd := make(map[int]*fragment)

	// key is unique for half-unit points inside [0,dx]×[0,dy].
	key := func(p geo.Point) int {
		return int(p.X*2) + int(p.Y*2)*(2*dx+2)
	}

	var x, y int
	stitch := func(s segment) {
		start := geo.Point{X: s[0].X + float64(x), Y: s[0].Y + float64(y)}
		end := geo.Point{X: s[1].X + float64(x), Y: s[1].Y + float64(y)}
		si, ei := key(start), key(end)

		if f, ok := byEnd[si]; ok {
			if g, ok := byStart[ei]; ok {
				delete(byEnd, f.end)
				delete(byStart, g.start)
				if f == g {
					f.ring = append(f.ring, end)
					emit(f.ring)
					return
				}
				joined := &fragment{start: f.start, end: g.end, ring: append(f.ring, g.ring...)}
				byStart[joined.start] = joined
				byEnd[joined.end] = joined
				return
			}
			delete(byEnd, f.end)
			f.ring = append(f.ring, end)
			f.end = ei
			byEnd[ei] = f
			return
		}

		if f, ok := byStart[ei]; ok {
			delete(byStart, f.start)
			f.ring = append(Ring{start}, f.ring...)
			f.start = si
			byStart[si] = f
			return
		}

		f := &fragment{start: si, end: ei, ring: Ring{start, end}}
		byStart[si] = f
		byEnd[ei] = f
	}
	stitchCase := func(mask int) {
		for _, s := range cases[mask] {
			stitch(s)
		}
	}

	var t0, t1, t2, t3 int

	// First row: the virtual row above the grid is clear.
	x, y = -1, -1
	t1 = above(0)
	stitchCase(t1 << 1)
	for x = 0; x < dx-1; x++ {
		t0, t1 = t1, above(x+1)
		stitchCase(t0 | t1<<1)
	}
	stitchCase(t1)

	// Interior rows.
	for y = 0; y < dy-1; y++ {
		x = -1
		t1 = above(y*dx + dx)
		t2 = above(y * dx)
		stitchCase(t1<<1 | t2<<2)
		for x = 0; x < dx-1; x++ {
			t0, t1 = t1, above(y*dx+dx+x+1)
			t3, t2 = t2, above(y*dx+x+1)
			stitchCase(t0 | t1<<1 | t2<<2 | t3<<3)
		}
		stitchCase(t1 | t2<<3)
	}

	// Last row: the virtual row below the grid is clear.
	y = dy - 1
	x = -1
	t2 = above(y * dx)
	stitchCase(t2 << 2)
	for x = 0; x < dx-1; x++ {
		t3, t2 = t2, above(y*dx+x+1)
		stitchCase(t2<<2 | t3<<3)
	}
	stitchCase(t2 << 3)
}

// interpolate moves every vertex lying on an interior cell edge to the
// linear crossing point between the two samples it separates. Vertices on
// the outer frame stay put.
func interpolate(r Ring, m grid.Matrix, threshold float64) {
	dx, dy := m.Width, m.Height
	for i := range r {
		p := &r[i]
		x, y := p.X, p.Y
		xt, yt := int(x), int(y)

		if x > 0 && x < float64(dx) && float64(xt) == x {
			v0 := m.Values[yt*dx+xt-1]
			v1 := m.Values[yt*dx+xt]
			p.X = x + (threshold-v0)/(v1-v0) - 0.5
		}
		if y > 0 && y < float64(dy) && float64(yt) == y {
			v0 := m.Values[(yt-1)*dx+xt]
			v1 := m.Values[yt*dx+xt]
			p.Y = y + (threshold-v0)/(v1-v0) - 0.5
		}
	}
}
