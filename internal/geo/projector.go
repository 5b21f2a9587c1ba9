// Package geo maps latitude/longitude into the fixed radar canvas.
package geo

// Canvas size in logical units. Rasterizers apply their own device scale.
const (
	CanvasWidth  = 400
	CanvasHeight = 226
)

// Point is a position in canvas space; y grows downward.
type Point struct {
	X float64
	Y float64
}

// BoundingBox is the geographic extent covered by the canvas.
type BoundingBox struct {
	LowerLat float64
	UpperLat float64
	LowerLon float64
	UpperLon float64
}

// Projector is a flat affine projection of a small bounding box onto a canvas.
// No geodesic correction is applied.
type Projector struct {
	Box    BoundingBox
	Width  float64
	Height float64
}

// Singapore is the rainarea coverage of the upstream radar composite.
var Singapore = Projector{
	Box: BoundingBox{
		LowerLat: 1.156,
		UpperLat: 1.475,
		LowerLon: 103.565,
		UpperLon: 104.13,
	},
	Width:  CanvasWidth,
	Height: CanvasHeight,
}

// Project converts a longitude/latitude pair to canvas coordinates. Points
// outside the bounding box still project; clipping is left to the renderer.
func (p Projector) Project(lon, lat float64) Point {
	return Point{
		X: (lon - p.Box.LowerLon) / (p.Box.UpperLon - p.Box.LowerLon) * p.Width,
		Y: (p.Box.UpperLat - lat) / (p.Box.UpperLat - p.Box.LowerLat) * p.Height,
	}
}
