// Package scene builds the vector description of one radar frame and
// serializes it to SVG.
//
// A Scene is an ordered list of drawable elements in canvas space. Later
// elements paint over earlier ones. Rasterizers either consume the SVG or
// walk the elements directly.
package scene

import (
	"bytes"
	"fmt"
	"html"
	"image/color"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/couchcryptid/storm-radar-renderer/internal/geo"
)

// Anchor is the horizontal alignment of a label relative to its position.
type Anchor int

const (
	AnchorStart Anchor = iota
	AnchorMiddle
	AnchorEnd
)

func (a Anchor) svg() string {
	switch a {
	case AnchorMiddle:
		return "middle"
	case AnchorEnd:
		return "end"
	}
	return "start"
}

// Baseline is the vertical alignment of a label relative to its position.
type Baseline int

const (
	BaselineAlphabetic Baseline = iota
	BaselineMiddle
)

// Element is one drawable layer: *Fill, *WindArrow or *Label.
type Element interface {
	writeSVG(w *svgWriter)
}

// Fill is a filled contour. Rings are painted with the even-odd rule so a
// ring nested in another punches a hole.
type Fill struct {
	Threshold float64
	Rings     [][]geo.Point
	Color     color.NRGBA
	Opacity   float64
}

// WindArrow is the wind icon centred on Center, rotated clockwise by
// Degrees.
type WindArrow struct {
	Center  geo.Point
	Degrees float64
	Opacity float64
}

// Origin is the top-left corner of the unrotated icon.
func (a *WindArrow) Origin() geo.Point {
	return geo.Point{X: a.Center.X - ArrowSize/2, Y: a.Center.Y - ArrowSize/2}
}

// Label is a run of text. A zero-alpha Fill leaves the glyphs unfilled and
// a zero StrokeWidth leaves them unstroked.
type Label struct {
	At          geo.Point
	Text        string
	Size        float64
	Anchor      Anchor
	Baseline    Baseline
	Fill        color.NRGBA
	Stroke      color.NRGBA
	StrokeWidth float64
}

// Scene is a complete frame.
type Scene struct {
	Width      float64
	Height     float64
	Background color.NRGBA
	Elements   []Element
}

// ArrowSize is the edge of the square wind icon.
const ArrowSize = 40

// ArrowShape is the wind icon outline in icon space, pointing down: the wind
// blows from the top of the icon toward the bottom.
var ArrowShape = []geo.Point{
	{X: 18, Y: 4}, {X: 22, Y: 4}, {X: 22, Y: 25}, {X: 28, Y: 25},
	{X: 20, Y: 36}, {X: 12, Y: 25}, {X: 18, Y: 25},
}

// FontFamily is the typeface requested from SVG consumers.
const FontFamily = "Open Sans, Helvetica, Arial, sans-serif"

// SVG returns the scene as a standalone SVG document.
func (s Scene) SVG() []byte {
	var buf bytes.Buffer
	_ = s.WriteSVG(&buf)
	return buf.Bytes()
}

// WriteSVG serializes the scene to w. Text values are escaped here and only
// here.
func (s Scene) WriteSVG(w io.Writer) error {
	sw := &svgWriter{}
	sw.printf(`<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink" width="%s" height="%s" viewBox="0 0 %s %s">`+"\n",
		num(s.Width), num(s.Height), num(s.Width), num(s.Height))
	sw.printf(`<style>text { font-family: %s; font-weight: 700 }</style>`+"\n", FontFamily)
	sw.printf(`<defs><symbol id="w" width="%d" height="%d" viewBox="0 0 %d %d"><path d="%s" fill="#fff" stroke="#000" stroke-width="1"/></symbol></defs>`+"\n",
		ArrowSize, ArrowSize, ArrowSize, ArrowSize, pathData([][]geo.Point{ArrowShape}))
	sw.printf(`<rect width="%s" height="%s" fill="%s"/>`+"\n", num(s.Width), num(s.Height), hexColor(s.Background))
	for _, e := range s.Elements {
		e.writeSVG(sw)
	}
	sw.printf("</svg>\n")
	if sw.err != nil {
		return sw.err
	}
	_, err := w.Write(sw.buf.Bytes())
	return err
}

func (f *Fill) writeSVG(w *svgWriter) {
	d := pathData(f.Rings)
	if d == "" {
		return
	}
	w.printf(`<path d="%s" fill="%s" fill-opacity="%s" fill-rule="evenodd"/>`+"\n",
		d, hexColor(f.Color), num(f.Opacity))
}

func (a *WindArrow) writeSVG(w *svgWriter) {
	o := a.Origin()
	w.printf(`<use xlink:href="#w" x="%s" y="%s" transform="rotate(%s, %s, %s)" opacity="%s"/>`+"\n",
		num(o.X), num(o.Y), num(a.Degrees), num(a.Center.X), num(a.Center.Y), num(a.Opacity))
}

func (l *Label) writeSVG(w *svgWriter) {
	var attrs strings.Builder
	fmt.Fprintf(&attrs, `x="%s" y="%s" font-size="%s" text-anchor="%s"`,
		num(l.At.X), num(l.At.Y), num(l.Size), l.Anchor.svg())
	if l.Baseline == BaselineMiddle {
		attrs.WriteString(` dominant-baseline="central"`)
	}
	fmt.Fprintf(&attrs, ` fill="%s"`, paint(l.Fill))
	if l.StrokeWidth > 0 {
		fmt.Fprintf(&attrs, ` stroke="%s" stroke-width="%s"`, paint(l.Stroke), num(l.StrokeWidth))
	}
	w.printf("<text %s>%s</text>\n", attrs.String(), html.EscapeString(l.Text))
}

type svgWriter struct {
	buf bytes.Buffer
	err error
}

func (w *svgWriter) printf(format string, args ...any) {
	if w.err != nil {
		return
	}
	_, w.err = fmt.Fprintf(&w.buf, format, args...)
}

// pathData renders closed rings as SVG path data. Rings shorter than three
// points are skipped.
func pathData(rings [][]geo.Point) string {
	var b strings.Builder
	for _, r := range rings {
		if len(r) < 3 {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		for i, p := range r {
			if i == 0 {
				b.WriteByte('M')
			} else {
				b.WriteByte('L')
			}
			b.WriteString(num(p.X))
			b.WriteByte(',')
			b.WriteString(num(p.Y))
		}
		b.WriteByte('Z')
	}
	return b.String()
}

// num formats v with at most two decimals and no trailing zeros.
func num(v float64) string {
	r := math.Round(v*100) / 100
	if r == 0 {
		r = 0 // drop negative zero
	}
	return strconv.FormatFloat(r, 'f', -1, 64)
}

func hexColor(c color.NRGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func paint(c color.NRGBA) string {
	switch c.A {
	case 0:
		return "none"
	case 0xff:
		return hexColor(c)
	}
	return fmt.Sprintf("rgba(%d, %d, %d, %s)", c.R, c.G, c.B, num(float64(c.A)/0xff))
}
