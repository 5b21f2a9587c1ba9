package scene

import (
	"image/color"
	"strconv"

	"github.com/couchcryptid/storm-radar-renderer/internal/contour"
	"github.com/couchcryptid/storm-radar-renderer/internal/domain"
	"github.com/couchcryptid/storm-radar-renderer/internal/geo"
)

// Layout of the overlay elements.
const (
	WindOpacity       = 0.5
	TemperatureSize   = 13
	TemperatureStroke = 3
	TimestampSize     = 16
	TimestampStroke   = 3
)

// TimestampPosition is the baseline end point of the timestamp label.
var TimestampPosition = geo.Point{X: 384, Y: 210}

var (
	// DefaultBackground is painted under the contours.
	DefaultBackground = color.NRGBA{R: 0x0c, G: 0x16, B: 0x24, A: 0xff}

	temperatureOutline = color.NRGBA{A: 0xff}
	temperatureFill    = color.NRGBA{R: 0xff, G: 0xff, A: 0xcc}
	timestampFill      = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	timestampOutline   = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0x40}
)

// Input is everything one frame is composed from.
type Input struct {
	Contours     []contour.Contour
	GridWidth    int
	GridHeight   int
	Observations []domain.Observation
	Label        string
}

// Composer lays out frames on the projector's canvas.
type Composer struct {
	projector  geo.Projector
	background color.NRGBA
}

// NewComposer returns a Composer drawing on p's canvas.
func NewComposer(p geo.Projector) *Composer {
	return &Composer{projector: p, background: DefaultBackground}
}

// Compose builds the scene. Layers are painted in this order: contour fills
// by ascending threshold, wind arrows, temperature labels, and finally the
// timestamp label. An observation without a temperature or wind direction
// contributes no element for that field.
func (c *Composer) Compose(in Input) Scene {
	s := Scene{
		Width:      c.projector.Width,
		Height:     c.projector.Height,
		Background: c.background,
	}

	s.Elements = append(s.Elements, c.fills(in)...)

	points := make([]geo.Point, len(in.Observations))
	for i, o := range in.Observations {
		points[i] = c.projector.Project(o.Lon, o.Lat)
	}

	for i, o := range in.Observations {
		if o.WindDirectionDegrees == nil {
			continue
		}
		s.Elements = append(s.Elements, &WindArrow{
			Center:  points[i],
			Degrees: *o.WindDirectionDegrees,
			Opacity: WindOpacity,
		})
	}

	for i, o := range in.Observations {
		if o.TemperatureCelsius == nil {
			continue
		}
		text := strconv.FormatFloat(*o.TemperatureCelsius, 'f', -1, 64) + "°"
		s.Elements = append(s.Elements,
			&Label{
				At: points[i], Text: text, Size: TemperatureSize,
				Anchor: AnchorMiddle, Baseline: BaselineMiddle,
				Stroke: temperatureOutline, StrokeWidth: TemperatureStroke,
			},
			&Label{
				At: points[i], Text: text, Size: TemperatureSize,
				Anchor: AnchorMiddle, Baseline: BaselineMiddle,
				Fill: temperatureFill,
			},
		)
	}

	if in.Label != "" {
		s.Elements = append(s.Elements, &Label{
			At: TimestampPosition, Text: in.Label, Size: TimestampSize,
			Anchor: AnchorEnd, Baseline: BaselineAlphabetic,
			Fill: timestampFill, Stroke: timestampOutline, StrokeWidth: TimestampStroke,
		})
	}
	return s
}

// fills scales each non-empty contour from grid to canvas coordinates.
func (c *Composer) fills(in Input) []Element {
	if in.GridWidth <= 0 || in.GridHeight <= 0 {
		return nil
	}
	sx := c.projector.Width / float64(in.GridWidth)
	sy := c.projector.Height / float64(in.GridHeight)

	var out []Element
	for _, con := range in.Contours {
		if con.Empty() {
			continue
		}
		style := contour.StyleFor(con.Threshold)
		rings := make([][]geo.Point, len(con.Rings))
		for i, r := range con.Rings {
			scaled := make([]geo.Point, len(r))
			for j, p := range r {
				scaled[j] = geo.Point{X: p.X * sx, Y: p.Y * sy}
			}
			rings[i] = scaled
		}
		out = append(out, &Fill{
			Threshold: con.Threshold,
			Rings:     rings,
			Color:     style.Fill,
			Opacity:   style.Opacity,
		})
	}
	return out
}
