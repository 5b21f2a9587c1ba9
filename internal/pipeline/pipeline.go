// Package pipeline orchestrates one radar frame: fetch, decode, contour,
// compose, rasterize, and the cache policy for the response.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/storm-radar-renderer/internal/contour"
	"github.com/couchcryptid/storm-radar-renderer/internal/domain"
	"github.com/couchcryptid/storm-radar-renderer/internal/freshness"
	"github.com/couchcryptid/storm-radar-renderer/internal/geo"
	"github.com/couchcryptid/storm-radar-renderer/internal/grid"
	"github.com/couchcryptid/storm-radar-renderer/internal/observability"
	"github.com/couchcryptid/storm-radar-renderer/internal/scene"
	"github.com/couchcryptid/storm-radar-renderer/internal/timestamp"
)

// Rasterizer encodes a composed scene.
type Rasterizer interface {
	Rasterize(ctx context.Context, s scene.Scene) ([]byte, error)
}

// Publisher announces newly rendered frames.
type Publisher interface {
	Publish(ctx context.Context, event domain.FrameEvent) error
}

// Stage names recorded in the stage duration histogram.
const (
	stageFetch     = "fetch"
	stageDecode    = "decode"
	stageContour   = "contour"
	stageCompose   = "compose"
	stageRasterize = "rasterize"
)

// Frame is one composed radar frame and the cache policy for serving it.
type Frame struct {
	DatasetID    string
	Label        string
	Scene        scene.Scene
	Contours     []contour.Contour
	Observations int
	Policy       freshness.Policy

	// Body is the encoded frame: JPEG from Render, SVG from RenderSVG.
	Body []byte
}

// Options configure a Renderer. Zero values select the defaults.
type Options struct {
	Projector  geo.Projector
	Thresholds []float64
	// Publisher, when set, receives one event per newly seen dataset id.
	Publisher Publisher
	Clock     clockwork.Clock
}

// Renderer builds frames from the latest upstream data.
type Renderer struct {
	source     domain.WeatherSource
	rasterizer Rasterizer
	scheduler  *freshness.Scheduler
	extractor  *contour.Extractor
	composer   *scene.Composer
	publisher  Publisher
	clock      clockwork.Clock
	logger     *slog.Logger
	metrics    *observability.Metrics

	mu            sync.Mutex
	lastPublished string
}

// New creates a Renderer with the given collaborators and observability.
func New(source domain.WeatherSource, rasterizer Rasterizer, scheduler *freshness.Scheduler, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Renderer {
	if opts.Projector == (geo.Projector{}) {
		opts.Projector = geo.Singapore
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Renderer{
		source:     source,
		rasterizer: rasterizer,
		scheduler:  scheduler,
		extractor:  contour.NewExtractor(opts.Thresholds...),
		composer:   scene.NewComposer(opts.Projector),
		publisher:  opts.Publisher,
		clock:      opts.Clock,
		logger:     logger,
		metrics:    metrics,
	}
}

// CheckReadiness reports whether the rasterizer can serve frames.
func (r *Renderer) CheckReadiness(ctx context.Context) error {
	if rc, ok := r.rasterizer.(interface{ CheckReadiness(context.Context) error }); ok {
		return rc.CheckReadiness(ctx)
	}
	return nil
}

// Render composes the latest frame and encodes it as JPEG. requestedID is
// the dataset id the caller asked for, or empty for the latest frame.
func (r *Renderer) Render(ctx context.Context, requestedID string) (Frame, error) {
	f, err := r.render(ctx, requestedID)
	r.countRender("jpeg", err)
	return f, err
}

// RenderSVG composes the latest frame and returns its SVG serialization.
func (r *Renderer) RenderSVG(ctx context.Context, requestedID string) (Frame, error) {
	f, err := r.Compose(ctx, requestedID)
	if err == nil {
		f.Body = f.Scene.SVG()
	}
	r.countRender("svg", err)
	return f, err
}

func (r *Renderer) render(ctx context.Context, requestedID string) (Frame, error) {
	f, err := r.Compose(ctx, requestedID)
	if err != nil {
		return Frame{}, err
	}

	start := time.Now()
	img, err := r.rasterizer.Rasterize(ctx, f.Scene)
	r.observe(stageRasterize, start)
	if err != nil {
		return Frame{}, fmt.Errorf("rasterize frame %s: %w", f.DatasetID, err)
	}
	f.Body = img

	r.publishIfNew(ctx, f)
	return f, nil
}

// Compose fetches both upstream payloads concurrently and builds the scene
// and cache policy, without rasterizing.
func (r *Renderer) Compose(ctx context.Context, requestedID string) (Frame, error) {
	start := time.Now()
	obs, ra, err := r.fetch(ctx)
	r.observe(stageFetch, start)
	if err != nil {
		return Frame{}, err
	}

	start = time.Now()
	m := grid.Decode(ra.Radar, ra.Width, ra.Height)
	r.observe(stageDecode, start)

	start = time.Now()
	contours := r.extractor.Extract(m)
	r.observe(stageContour, start)

	start = time.Now()
	label := timestamp.Label(ra.ID)
	s := r.composer.Compose(scene.Input{
		Contours:     contours,
		GridWidth:    m.Width,
		GridHeight:   m.Height,
		Observations: obs,
		Label:        label,
	})
	r.observe(stageCompose, start)

	policy := r.scheduler.Policy(ra.ID, requestedID)

	r.logger.Debug("frame composed",
		"dataset_id", ra.ID,
		"observations", len(obs),
		"elements", len(s.Elements),
		"cache_control", policy.Header(),
	)

	return Frame{
		DatasetID:    ra.ID,
		Label:        label,
		Scene:        s,
		Contours:     contours,
		Observations: len(obs),
		Policy:       policy,
	}, nil
}

// fetch requests observations and the rain area together and waits for both.
func (r *Renderer) fetch(ctx context.Context) ([]domain.Observation, domain.RainArea, error) {
	var (
		obs []domain.Observation
		ra  domain.RainArea
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		obs, err = r.source.Observations(gctx)
		if err != nil {
			return fmt.Errorf("fetch observations: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		ra, err = r.source.RainArea(gctx)
		if err != nil {
			return fmt.Errorf("fetch rain area: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, domain.RainArea{}, err
	}
	return obs, ra, nil
}

// publishIfNew sends a frame event the first time a dataset id is rendered.
// A failed publish is logged and retried on the next render.
func (r *Renderer) publishIfNew(ctx context.Context, f Frame) {
	if r.publisher == nil || f.DatasetID == "" {
		return
	}

	r.mu.Lock()
	if f.DatasetID == r.lastPublished {
		r.mu.Unlock()
		return
	}
	previous := r.lastPublished
	r.lastPublished = f.DatasetID
	r.mu.Unlock()

	nonEmpty := 0
	for _, c := range f.Contours {
		if !c.Empty() {
			nonEmpty++
		}
	}
	event := domain.FrameEvent{
		DatasetID:    f.DatasetID,
		Label:        f.Label,
		Width:        int(f.Scene.Width),
		Height:       int(f.Scene.Height),
		Contours:     nonEmpty,
		Observations: f.Observations,
		CacheControl: f.Policy.Header(),
		RenderedAt:   r.clock.Now().UTC(),
	}
	if err := r.publisher.Publish(ctx, event); err != nil {
		r.logger.Warn("frame event not published", "dataset_id", f.DatasetID, "error", err)
		r.mu.Lock()
		if r.lastPublished == f.DatasetID {
			r.lastPublished = previous
		}
		r.mu.Unlock()
	}
}

func (r *Renderer) observe(stage string, start time.Time) {
	r.metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

func (r *Renderer) countRender(format string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	r.metrics.RendersTotal.WithLabelValues(format, outcome).Inc()
}
