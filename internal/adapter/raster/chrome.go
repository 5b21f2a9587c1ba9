package raster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/couchcryptid/storm-radar-renderer/internal/geo"
	"github.com/couchcryptid/storm-radar-renderer/internal/observability"
	"github.com/couchcryptid/storm-radar-renderer/internal/scene"
)

// ErrPoolClosed is returned by a ChromePool after Close.
var ErrPoolClosed = errors.New("chrome pool closed")

// ErrNoTabs is reported by CheckReadiness while every slot is waiting to be
// reopened.
var ErrNoTabs = errors.New("chrome pool has no open tabs")

const (
	healthCheckTimeout = 2 * time.Second
	renderTimeout      = 15 * time.Second
)

// ChromeOptions configure a ChromePool.
type ChromeOptions struct {
	// Size is the number of tabs kept open.
	Size int
	// ExecPath overrides the browser binary; empty searches the usual paths.
	ExecPath string
	Scale    float64
	Quality  int
}

// ChromePool screenshots scenes in a fixed set of headless browser tabs.
// A tab is checked out for the duration of one frame and health-checked
// before reuse; a tab that fails either is closed and replaced.
//
// The tabs channel always holds one entry per free slot. A nil entry is a
// slot whose tab could not be reopened; the next checkout of it retries.
type ChromePool struct {
	opts    ChromeOptions
	logger  *slog.Logger
	metrics *observability.Metrics

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	newTab        func() (*tab, error)

	tabs      chan *tab
	live      atomic.Int32
	closeOnce sync.Once
	closed    chan struct{}
}

type tab struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// NewChromePool launches a headless browser and opens opts.Size tabs.
func NewChromePool(ctx context.Context, opts ChromeOptions, metrics *observability.Metrics, logger *slog.Logger) (*ChromePool, error) {
	if opts.Size <= 0 {
		opts.Size = 1
	}
	if opts.Scale <= 0 {
		opts.Scale = DefaultScale
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = DefaultQuality
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Flag("hide-scrollbars", true),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	p := &ChromePool{
		opts:          opts,
		logger:        logger,
		metrics:       metrics,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		tabs:          make(chan *tab, opts.Size),
		closed:        make(chan struct{}),
	}
	p.newTab = p.openTab
	for i := 0; i < opts.Size; i++ {
		t, err := p.open()
		if err != nil {
			p.Close()
			return nil, err
		}
		p.checkin(t)
	}
	logger.Info("chrome pool started", "tabs", opts.Size, "scale", opts.Scale)
	return p, nil
}

// Rasterize implements Rasterizer.
func (p *ChromePool) Rasterize(ctx context.Context, s scene.Scene) ([]byte, error) {
	t, err := p.checkout(ctx)
	if err != nil {
		return nil, err
	}

	img, err := p.screenshot(ctx, t, s)
	if err != nil {
		p.replace(t)
		return nil, err
	}
	p.checkin(t)
	return img, nil
}

// CheckReadiness reports whether the browser is still running and at least
// one tab is open.
func (p *ChromePool) CheckReadiness(_ context.Context) error {
	select {
	case <-p.closed:
		return ErrPoolClosed
	default:
	}
	if err := p.browserCtx.Err(); err != nil {
		return fmt.Errorf("browser gone: %w", err)
	}
	if p.live.Load() <= 0 {
		return ErrNoTabs
	}
	return nil
}

// Close shuts down every tab and the browser.
func (p *ChromePool) Close() {
	p.closeOnce.Do(func() {
		close(p.closed)
		for len(p.tabs) > 0 {
			if t := <-p.tabs; t != nil {
				p.discard(t)
			}
		}
		p.browserCancel()
		p.allocCancel()
		p.metrics.ChromeTabsIdle.Set(0)
	})
}

func (p *ChromePool) openTab() (*tab, error) {
	ctx, cancel := chromedp.NewContext(p.browserCtx)
	err := chromedp.Run(ctx,
		chromedp.EmulateViewport(geo.CanvasWidth, geo.CanvasHeight, chromedp.EmulateScale(p.opts.Scale)),
		chromedp.Navigate("about:blank"),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open tab: %w", err)
	}
	return &tab{ctx: ctx, cancel: cancel}, nil
}

// open opens a tab and counts it as live.
func (p *ChromePool) open() (*tab, error) {
	t, err := p.newTab()
	if err != nil {
		return nil, err
	}
	p.live.Add(1)
	return t, nil
}

func (p *ChromePool) discard(t *tab) {
	t.cancel()
	p.live.Add(-1)
}

// checkout takes a free slot. An empty slot is reopened and an idle tab that
// fails its health check is replaced. When no tab can be opened the slot is
// handed back empty and the error returned.
func (p *ChromePool) checkout(ctx context.Context) (*tab, error) {
	var t *tab
	select {
	case <-p.closed:
		return nil, ErrPoolClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	case t = <-p.tabs:
	}

	if t != nil {
		p.metrics.ChromeTabsIdle.Dec()
		err := healthy(t)
		if err == nil {
			return t, nil
		}
		p.logger.Warn("chrome tab failed health check, replacing", "error", err)
		p.metrics.ChromeTabsRecycle.Inc()
		p.discard(t)
	}

	fresh, err := p.open()
	if err != nil {
		p.checkin(nil)
		return nil, err
	}
	return fresh, nil
}

// checkin returns a slot to the pool; nil marks it empty.
func (p *ChromePool) checkin(t *tab) {
	select {
	case <-p.closed:
		if t != nil {
			p.discard(t)
		}
	case p.tabs <- t:
		if t != nil {
			p.metrics.ChromeTabsIdle.Inc()
		}
	}
}

// replace discards a tab after a failed render and returns a fresh one to
// the pool so its size holds. If no tab opens, the slot goes back empty.
func (p *ChromePool) replace(t *tab) {
	p.metrics.ChromeTabsRecycle.Inc()
	p.discard(t)
	fresh, err := p.open()
	if err != nil {
		p.logger.Error("chrome tab could not be replaced", "error", err)
	}
	p.checkin(fresh)
}

func healthy(t *tab) error {
	ctx, cancel := context.WithTimeout(t.ctx, healthCheckTimeout)
	defer cancel()

	var state string
	if err := chromedp.Run(ctx, chromedp.Evaluate(`document.readyState`, &state)); err != nil {
		return err
	}
	if state != "complete" {
		return fmt.Errorf("tab not ready: %s", state)
	}
	return nil
}

func (p *ChromePool) screenshot(reqCtx context.Context, t *tab, s scene.Scene) ([]byte, error) {
	ctx, cancel := context.WithTimeout(t.ctx, renderTimeout)
	defer cancel()
	stop := context.AfterFunc(reqCtx, cancel)
	defer stop()

	doc := pageHTML(s)
	var buf []byte
	err := chromedp.Run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, doc).Do(ctx)
		}),
		chromedp.FullScreenshot(&buf, p.opts.Quality),
	)
	if err != nil {
		if reqErr := reqCtx.Err(); reqErr != nil {
			return nil, reqErr
		}
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return buf, nil
}

// pageHTML wraps the scene SVG in a page with no margins, so the screenshot
// is exactly the canvas.
func pageHTML(s scene.Scene) string {
	var b strings.Builder
	b.WriteString(`<!DOCTYPE html><html><head><meta charset="utf-8"><style>html,body{margin:0;padding:0;overflow:hidden}svg{display:block}</style></head><body>`)
	b.Write(s.SVG())
	b.WriteString(`</body></html>`)
	return b.String()
}
