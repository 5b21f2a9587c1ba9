package main

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/couchcryptid/storm-radar-renderer/internal/domain"
	"github.com/couchcryptid/storm-radar-renderer/internal/geo"
	"github.com/couchcryptid/storm-radar-renderer/internal/grid"
)

const (
	syntheticWidth  = 240
	syntheticHeight = 136
	syntheticID     = "202404261430"
)

// cell is one Gaussian storm cell in grid coordinates.
type cell struct {
	x, y   float64
	radius float64
	peak   float64
}

var syntheticCells = []cell{
	{x: 60, y: 40, radius: 18, peak: 92},
	{x: 150, y: 70, radius: 30, peak: 55},
	{x: 190, y: 110, radius: 10, peak: 75},
	{x: 100, y: 100, radius: 22, peak: 30},
}

// stormField sums the cells into an intensity matrix clamped to the
// encodable range.
func stormField() grid.Matrix {
	m := grid.Matrix{
		Width:  syntheticWidth,
		Height: syntheticHeight,
		Values: make([]float64, syntheticWidth*syntheticHeight),
	}
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			var v float64
			for _, c := range syntheticCells {
				dx, dy := float64(x)-c.x, float64(y)-c.y
				v += c.peak * math.Exp(-(dx*dx+dy*dy)/(2*c.radius*c.radius))
			}
			v = math.Round(v)
			if v < 1 {
				v = 0
			}
			m.Values[y*m.Width+x] = math.Min(v, '~'-grid.Offset)
		}
	}
	return m
}

// stations spreads readings over the canvas in a coarse lattice. Every third
// station omits its wind and every fourth its temperature.
func stations() []domain.Observation {
	box := geo.Singapore.Box
	var obs []domain.Observation
	i := 0
	for lat := box.LowerLat + 0.04; lat < box.UpperLat; lat += 0.07 {
		for lon := box.LowerLon + 0.05; lon < box.UpperLon; lon += 0.09 {
			o := domain.Observation{Lon: lon, Lat: lat}
			if i%4 != 0 {
				o.TemperatureCelsius = domain.Float(26 + float64(i%7))
			}
			if i%3 != 0 {
				o.WindDirectionDegrees = domain.Float(float64((i * 47) % 360))
			}
			obs = append(obs, o)
			i++
		}
	}
	return obs
}

func newSyntheticSource() *fileSource {
	return &fileSource{
		rain: domain.RainArea{
			ID:     syntheticID,
			Radar:  grid.Encode(stormField()),
			Width:  syntheticWidth,
			Height: syntheticHeight,
		},
		obs: stations(),
	}
}

func (s *fileSource) writeFixtures(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	if err := writeJSON(filepath.Join(dir, "rainarea.json"), s.rain); err != nil {
		return fmt.Errorf("write rainarea fixture: %w", err)
	}
	if err := writeJSON(filepath.Join(dir, "observations.json"), s.obs); err != nil {
		return fmt.Errorf("write observations fixture: %w", err)
	}
	return nil
}
