package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-radar-renderer/internal/contour"
	"github.com/couchcryptid/storm-radar-renderer/internal/domain"
	"github.com/couchcryptid/storm-radar-renderer/internal/geo"
)

func square(x0, y0, x1, y1 float64) contour.Ring {
	return contour.Ring{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}, {X: x0, Y: y0}}
}

func centre() domain.Observation {
	return domain.Observation{Lon: (103.565 + 104.13) / 2, Lat: (1.156 + 1.475) / 2}
}

func TestCompose_LayerOrder(t *testing.T) {
	obs := centre()
	obs.TemperatureCelsius = domain.Float(30.5)
	obs.WindDirectionDegrees = domain.Float(90)

	s := NewComposer(geo.Singapore).Compose(Input{
		Contours: []contour.Contour{
			{Threshold: 4, Rings: []contour.Ring{square(0, 0, 2, 2)}},
			{Threshold: 10},
			{Threshold: 95, Rings: []contour.Ring{square(1, 1, 2, 2)}},
		},
		GridWidth:    4,
		GridHeight:   2,
		Observations: []domain.Observation{obs},
		Label:        "2:30 PM",
	})

	require.Len(t, s.Elements, 6)
	fill0, ok := s.Elements[0].(*Fill)
	require.True(t, ok)
	assert.Equal(t, 4.0, fill0.Threshold)
	fill1, ok := s.Elements[1].(*Fill)
	require.True(t, ok)
	assert.Equal(t, 95.0, fill1.Threshold, "empty contours are skipped")

	_, ok = s.Elements[2].(*WindArrow)
	assert.True(t, ok)

	stroke, ok := s.Elements[3].(*Label)
	require.True(t, ok)
	assert.Equal(t, "30.5°", stroke.Text)
	assert.Zero(t, stroke.Fill.A, "outline pass is unfilled")
	assert.Equal(t, 3.0, stroke.StrokeWidth)

	fill, ok := s.Elements[4].(*Label)
	require.True(t, ok)
	assert.Equal(t, "30.5°", fill.Text)
	assert.Zero(t, fill.StrokeWidth)

	ts, ok := s.Elements[5].(*Label)
	require.True(t, ok)
	assert.Equal(t, "2:30 PM", ts.Text)
	assert.Equal(t, geo.Point{X: 384, Y: 210}, ts.At)
	assert.Equal(t, AnchorEnd, ts.Anchor)
	assert.Equal(t, 16.0, ts.Size)
}

func TestCompose_ScalesContoursToCanvas(t *testing.T) {
	s := NewComposer(geo.Singapore).Compose(Input{
		Contours:   []contour.Contour{{Threshold: 4, Rings: []contour.Ring{square(0, 0, 4, 2)}}},
		GridWidth:  4,
		GridHeight: 2,
	})

	require.Len(t, s.Elements, 1)
	f := s.Elements[0].(*Fill)
	require.Len(t, f.Rings, 1)
	assert.Equal(t, geo.Point{X: 400, Y: 226}, f.Rings[0][2])
	assert.Equal(t, 0.4, f.Opacity)
}

func TestCompose_OptionalFieldsOmitted(t *testing.T) {
	onlyWind := centre()
	onlyWind.WindDirectionDegrees = domain.Float(0)
	onlyTemp := centre()
	onlyTemp.TemperatureCelsius = domain.Float(27)

	s := NewComposer(geo.Singapore).Compose(Input{
		Observations: []domain.Observation{centre(), onlyWind, onlyTemp},
	})

	var arrows, labels int
	for _, e := range s.Elements {
		switch e.(type) {
		case *WindArrow:
			arrows++
		case *Label:
			labels++
		}
	}
	assert.Equal(t, 1, arrows, "zero degrees is a valid direction")
	assert.Equal(t, 2, labels, "one temperature, two passes, no timestamp")
}

func TestCompose_WindArrowPlacement(t *testing.T) {
	obs := centre()
	obs.WindDirectionDegrees = domain.Float(225)

	s := NewComposer(geo.Singapore).Compose(Input{Observations: []domain.Observation{obs}})
	require.Len(t, s.Elements, 1)

	a := s.Elements[0].(*WindArrow)
	assert.InDelta(t, 200, a.Center.X, 1e-9)
	assert.InDelta(t, 113, a.Center.Y, 1e-9)
	assert.Equal(t, 225.0, a.Degrees)
	assert.Equal(t, 0.5, a.Opacity)

	o := a.Origin()
	assert.InDelta(t, 180, o.X, 1e-9)
	assert.InDelta(t, 93, o.Y, 1e-9)
}

func TestCompose_EmptyInput(t *testing.T) {
	s := NewComposer(geo.Singapore).Compose(Input{})
	assert.Empty(t, s.Elements)
	assert.Equal(t, 400.0, s.Width)
	assert.Equal(t, 226.0, s.Height)
}
