package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-radar-renderer/internal/domain"
	"github.com/couchcryptid/storm-radar-renderer/internal/freshness"
	"github.com/couchcryptid/storm-radar-renderer/internal/grid"
	"github.com/couchcryptid/storm-radar-renderer/internal/observability"
	"github.com/couchcryptid/storm-radar-renderer/internal/pipeline"
	"github.com/couchcryptid/storm-radar-renderer/internal/scene"
)

const testDatasetID = "202404261000"

// --- mocks ---

type mockSource struct {
	obs     []domain.Observation
	ra      domain.RainArea
	obsErr  error
	rainErr error
	calls   atomic.Int32
}

func (m *mockSource) Observations(_ context.Context) ([]domain.Observation, error) {
	m.calls.Add(1)
	return m.obs, m.obsErr
}

func (m *mockSource) RainArea(_ context.Context) (domain.RainArea, error) {
	m.calls.Add(1)
	return m.ra, m.rainErr
}

type mockRasterizer struct {
	err    error
	scenes []scene.Scene
	ready  error
}

func (m *mockRasterizer) Rasterize(_ context.Context, s scene.Scene) ([]byte, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.scenes = append(m.scenes, s)
	return []byte("jpeg"), nil
}

func (m *mockRasterizer) CheckReadiness(context.Context) error { return m.ready }

type mockPublisher struct {
	mu     sync.Mutex
	events []domain.FrameEvent
	err    error
}

func (m *mockPublisher) Publish(_ context.Context, e domain.FrameEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, e)
	return nil
}

// --- helpers ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func blob() domain.RainArea {
	m := grid.Matrix{Width: 4, Height: 3, Values: []float64{
		0, 0, 0, 0,
		0, 50, 93, 0,
		0, 0, 0, 0,
	}}
	return domain.RainArea{ID: testDatasetID, Radar: grid.Encode(m), Width: 4, Height: 3}
}

func stations() []domain.Observation {
	return []domain.Observation{
		{Lon: 103.8, Lat: 1.3, TemperatureCelsius: domain.Float(30), WindDirectionDegrees: domain.Float(90)},
		{Lon: 103.9, Lat: 1.35},
	}
}

// fakeClock returns a clock reading 10:03 in Singapore.
func fakeClock(t *testing.T) (*clockwork.FakeClock, *time.Location) {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Singapore")
	require.NoError(t, err)
	return clockwork.NewFakeClockAt(time.Date(2024, time.April, 26, 10, 3, 0, 0, loc)), loc
}

func newRenderer(t *testing.T, src *mockSource, r *mockRasterizer, pub pipeline.Publisher) (*pipeline.Renderer, *observability.Metrics) {
	t.Helper()
	clock, loc := fakeClock(t)
	metrics := observability.NewMetricsForTesting()
	sched := freshness.NewScheduler(freshness.Options{Window: 6 * time.Minute, Location: loc}, clock, discardLogger())
	opts := pipeline.Options{Clock: clock}
	if pub != nil {
		opts.Publisher = pub
	}
	return pipeline.New(src, r, sched, discardLogger(), metrics, opts), metrics
}

// --- tests ---

func TestRenderer_Render_HappyPath(t *testing.T) {
	src := &mockSource{obs: stations(), ra: blob()}
	ras := &mockRasterizer{}
	r, metrics := newRenderer(t, src, ras, nil)

	f, err := r.Render(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, testDatasetID, f.DatasetID)
	assert.Equal(t, "10:00 AM", f.Label)
	assert.Equal(t, []byte("jpeg"), f.Body)
	assert.Equal(t, 2, f.Observations)
	assert.Equal(t, 180, f.Policy.MaxAgeSeconds)
	assert.Equal(t, "public, max-age=180", f.Policy.Header())
	assert.Equal(t, int32(2), src.calls.Load())

	require.Len(t, ras.scenes, 1)
	var fills, arrows, labels int
	for _, e := range ras.scenes[0].Elements {
		switch e.(type) {
		case *scene.Fill:
			fills++
		case *scene.WindArrow:
			arrows++
		case *scene.Label:
			labels++
		}
	}
	assert.Positive(t, fills)
	assert.Equal(t, 1, arrows)
	assert.Equal(t, 3, labels, "two temperature passes and the timestamp")

	assert.InDelta(t, 1, testutil.ToFloat64(metrics.RendersTotal.WithLabelValues("jpeg", "success")), 0)
}

func TestRenderer_Render_RequestedDatasetIsImmutable(t *testing.T) {
	r, _ := newRenderer(t, &mockSource{obs: stations(), ra: blob()}, &mockRasterizer{}, nil)

	f, err := r.Render(context.Background(), testDatasetID)
	require.NoError(t, err)
	assert.Equal(t, "public, max-age=31536000, immutable", f.Policy.Header())

	f, err = r.Render(context.Background(), "202404260954")
	require.NoError(t, err)
	assert.False(t, f.Policy.Immutable)
}

func TestRenderer_Render_UpstreamError(t *testing.T) {
	upstream := errors.New("connection refused")
	src := &mockSource{ra: blob(), obsErr: upstream}
	ras := &mockRasterizer{}
	r, metrics := newRenderer(t, src, ras, nil)

	_, err := r.Render(context.Background(), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, upstream)
	assert.Contains(t, err.Error(), "fetch observations")
	assert.Empty(t, ras.scenes, "nothing is rasterized after a failed fetch")
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.RendersTotal.WithLabelValues("jpeg", "error")), 0)
}

func TestRenderer_Render_RasterizerError(t *testing.T) {
	pub := &mockPublisher{}
	r, _ := newRenderer(t, &mockSource{obs: stations(), ra: blob()}, &mockRasterizer{err: errors.New("tab crashed")}, pub)

	_, err := r.Render(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rasterize frame "+testDatasetID)
	assert.Empty(t, pub.events)
}

func TestRenderer_RenderSVG(t *testing.T) {
	ras := &mockRasterizer{}
	r, metrics := newRenderer(t, &mockSource{obs: stations(), ra: blob()}, ras, nil)

	f, err := r.RenderSVG(context.Background(), "")
	require.NoError(t, err)

	doc := string(f.Body)
	assert.True(t, strings.HasPrefix(doc, "<svg "))
	assert.Contains(t, doc, "10:00 AM")
	assert.Contains(t, doc, "30°")
	assert.Empty(t, ras.scenes, "svg output skips the rasterizer")
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.RendersTotal.WithLabelValues("svg", "success")), 0)
}

func TestRenderer_Compose_MalformedRadarDegrades(t *testing.T) {
	src := &mockSource{ra: domain.RainArea{ID: "latest", Radar: "\x00\n~~~~~~~~~~", Width: 3, Height: 5}}
	r, _ := newRenderer(t, src, &mockRasterizer{}, nil)

	f, err := r.Compose(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, f.Label, "id without trailing digits has no label")
	assert.Equal(t, 360, f.Policy.MaxAgeSeconds, "unparseable dataset time falls back to the full window")
}

func TestRenderer_PublishesOncePerDataset(t *testing.T) {
	pub := &mockPublisher{}
	src := &mockSource{obs: stations(), ra: blob()}
	r, _ := newRenderer(t, src, &mockRasterizer{}, pub)

	for i := 0; i < 3; i++ {
		_, err := r.Render(context.Background(), "")
		require.NoError(t, err)
	}
	require.Len(t, pub.events, 1)

	e := pub.events[0]
	assert.Equal(t, testDatasetID, e.DatasetID)
	assert.Equal(t, "10:00 AM", e.Label)
	assert.Equal(t, 2, e.Observations)
	assert.Positive(t, e.Contours)
	assert.Equal(t, "public, max-age=180", e.CacheControl)
	assert.Equal(t, time.Date(2024, time.April, 26, 2, 3, 0, 0, time.UTC), e.RenderedAt)

	next := blob()
	next.ID = "202404261005"
	src.ra = next
	_, err := r.Render(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, pub.events, 2)
	assert.Equal(t, "202404261005", pub.events[1].DatasetID)
}

func TestRenderer_PublishFailureRetried(t *testing.T) {
	pub := &mockPublisher{err: errors.New("broker down")}
	r, _ := newRenderer(t, &mockSource{obs: stations(), ra: blob()}, &mockRasterizer{}, pub)

	_, err := r.Render(context.Background(), "")
	require.NoError(t, err, "publish failures do not fail the render")

	pub.mu.Lock()
	pub.err = nil
	pub.mu.Unlock()

	_, err = r.Render(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, pub.events, 1)
}

func TestRenderer_CheckReadiness(t *testing.T) {
	ras := &mockRasterizer{}
	r, _ := newRenderer(t, &mockSource{}, ras, nil)
	assert.NoError(t, r.CheckReadiness(context.Background()))

	ras.ready = errors.New("browser gone")
	assert.EqualError(t, r.CheckReadiness(context.Background()), "browser gone")
}
