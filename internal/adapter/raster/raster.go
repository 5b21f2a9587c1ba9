// Package raster turns a composed scene into a JPEG frame.
//
// Two surfaces are available: Native draws the scene elements with a pure-Go
// 2D canvas, and ChromePool loads the scene's SVG into a pool of headless
// browser tabs and screenshots it. Cached memoizes either one.
package raster

import (
	"context"

	"github.com/couchcryptid/storm-radar-renderer/internal/scene"
)

// ContentType is the media type every rasterizer produces.
const ContentType = "image/jpeg"

// Frames are rendered at 2x device scale and JPEG quality 80 by default.
const (
	DefaultScale   = 2.0
	DefaultQuality = 80
)

// Rasterizer encodes a scene as a JPEG image.
type Rasterizer interface {
	Rasterize(ctx context.Context, s scene.Scene) ([]byte, error)
}
