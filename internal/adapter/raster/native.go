package raster

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"

	"github.com/couchcryptid/storm-radar-renderer/internal/geo"
	"github.com/couchcryptid/storm-radar-renderer/internal/scene"
)

// Native rasterizes scenes in-process. It holds no per-frame state and is
// safe for concurrent use.
type Native struct {
	scale   float64
	quality int
	font    *truetype.Font
}

// NewNative returns a Native rasterizer drawing at scale device pixels per
// canvas unit and encoding at the given JPEG quality.
func NewNative(scale float64, quality int) (*Native, error) {
	if scale <= 0 {
		return nil, fmt.Errorf("raster scale must be positive, got %v", scale)
	}
	if quality < 1 || quality > 100 {
		return nil, fmt.Errorf("jpeg quality must be 1-100, got %d", quality)
	}
	f, err := truetype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	return &Native{scale: scale, quality: quality, font: f}, nil
}

// Rasterize implements Rasterizer.
func (n *Native) Rasterize(ctx context.Context, s scene.Scene) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img := n.Draw(s)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(n.quality)); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// Draw paints the scene onto a new image of the scaled canvas size.
func (n *Native) Draw(s scene.Scene) image.Image {
	w := int(math.Round(s.Width * n.scale))
	h := int(math.Round(s.Height * n.scale))
	dc := gg.NewContext(w, h)

	dc.SetColor(s.Background)
	dc.Clear()

	// Faces are not safe for concurrent use, so each frame gets its own.
	faces := make(map[float64]font.Face)
	defer func() {
		for _, f := range faces {
			_ = f.Close()
		}
	}()
	face := func(size float64) font.Face {
		if f, ok := faces[size]; ok {
			return f
		}
		f := truetype.NewFace(n.font, &truetype.Options{Size: size * n.scale, DPI: 72, Hinting: font.HintingFull})
		faces[size] = f
		return f
	}

	for _, e := range s.Elements {
		switch el := e.(type) {
		case *scene.Fill:
			n.drawFill(dc, el)
		case *scene.WindArrow:
			n.drawArrow(dc, el)
		case *scene.Label:
			n.drawLabel(dc, el, face(el.Size))
		}
	}
	return dc.Image()
}

func (n *Native) drawFill(dc *gg.Context, f *scene.Fill) {
	dc.Push()
	defer dc.Pop()

	dc.Scale(n.scale, n.scale)
	dc.NewSubPath()
	for _, r := range f.Rings {
		if len(r) < 3 {
			continue
		}
		dc.MoveTo(r[0].X, r[0].Y)
		for _, p := range r[1:] {
			dc.LineTo(p.X, p.Y)
		}
		dc.ClosePath()
	}
	dc.SetFillRuleEvenOdd()
	dc.SetColor(withOpacity(f.Color, f.Opacity))
	dc.Fill()
}

func (n *Native) drawArrow(dc *gg.Context, a *scene.WindArrow) {
	dc.Push()
	defer dc.Pop()

	dc.Scale(n.scale, n.scale)
	dc.RotateAbout(gg.Radians(a.Degrees), a.Center.X, a.Center.Y)
	o := a.Origin()
	for i, p := range scene.ArrowShape {
		if i == 0 {
			dc.MoveTo(o.X+p.X, o.Y+p.Y)
			continue
		}
		dc.LineTo(o.X+p.X, o.Y+p.Y)
	}
	dc.ClosePath()

	alpha := uint8(math.Round(a.Opacity * 0xff))
	dc.SetFillRuleWinding()
	dc.SetColor(color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: alpha})
	dc.FillPreserve()
	dc.SetColor(color.NRGBA{A: alpha})
	dc.SetLineWidth(1)
	dc.Stroke()
}

// drawLabel paints text in device space: gg does not scale glyphs with the
// transform, so positions are scaled by hand and the face is sized for the
// device. The stroke is approximated by stamping the glyphs around a circle
// of the stroke radius, painted over the fill the way SVG orders them.
func (n *Native) drawLabel(dc *gg.Context, l *scene.Label, face font.Face) {
	dc.Push()
	defer dc.Pop()

	dc.Identity()
	dc.SetFontFace(face)

	x, y := l.At.X*n.scale, l.At.Y*n.scale
	ax, ay := anchors(l)

	if l.Fill.A > 0 {
		dc.SetColor(l.Fill)
		dc.DrawStringAnchored(l.Text, x, y, ax, ay)
	}
	if l.StrokeWidth > 0 && l.Stroke.A > 0 {
		dc.SetColor(l.Stroke)
		for _, off := range strokeOffsets(l.StrokeWidth / 2 * n.scale) {
			dc.DrawStringAnchored(l.Text, x+off.X, y+off.Y, ax, ay)
		}
	}
}

func anchors(l *scene.Label) (ax, ay float64) {
	switch l.Anchor {
	case scene.AnchorMiddle:
		ax = 0.5
	case scene.AnchorEnd:
		ax = 1
	}
	if l.Baseline == scene.BaselineMiddle {
		ay = 0.35
	}
	return ax, ay
}

// strokeOffsets samples a circle of radius r, one point per device pixel of
// circumference with a floor of eight.
func strokeOffsets(r float64) []geo.Point {
	steps := int(math.Max(8, math.Ceil(2*math.Pi*r)))
	out := make([]geo.Point, steps)
	for i := range out {
		a := 2 * math.Pi * float64(i) / float64(steps)
		out[i] = geo.Point{X: r * math.Cos(a), Y: r * math.Sin(a)}
	}
	return out
}

func withOpacity(c color.NRGBA, opacity float64) color.NRGBA {
	c.A = uint8(math.Round(float64(c.A) * math.Max(0, math.Min(1, opacity))))
	return c
}
