package raster

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-radar-renderer/internal/observability"
)

var errBrowserMissing = errors.New(`exec: "google-chrome": executable file not found`)

// handBuiltPool assembles a pool around the given tabs without launching a
// browser. Tabs are opened with open.
func handBuiltPool(t *testing.T, size int, open func() (*tab, error), tabs ...*tab) *ChromePool {
	t.Helper()
	p := &ChromePool{
		opts:          ChromeOptions{Size: size, Scale: DefaultScale, Quality: DefaultQuality},
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics:       observability.NewMetricsForTesting(),
		allocCancel:   func() {},
		browserCtx:    context.Background(),
		browserCancel: func() {},
		newTab:        open,
		tabs:          make(chan *tab, size),
		closed:        make(chan struct{}),
	}
	for _, tb := range tabs {
		p.live.Add(1)
		p.checkin(tb)
	}
	t.Cleanup(p.Close)
	return p
}

// deadTab fails every health check: its context carries no browser.
func deadTab() *tab {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return &tab{ctx: ctx, cancel: func() {}}
}

func TestChromePool_FailedReopenKeepsSlot(t *testing.T) {
	p := handBuiltPool(t, 1, func() (*tab, error) { return nil, errBrowserMissing }, deadTab())
	require.NoError(t, p.CheckReadiness(context.Background()))

	_, err := p.Rasterize(context.Background(), labelled("2:30 PM"))
	require.ErrorIs(t, err, errBrowserMissing)

	assert.Len(t, p.tabs, 1, "slot should be handed back empty")
	require.ErrorIs(t, p.CheckReadiness(context.Background()), ErrNoTabs)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = p.Rasterize(ctx, labelled("2:30 PM"))
	require.ErrorIs(t, err, errBrowserMissing, "second render should retry the slot, not wait for the deadline")
}

func TestChromePool_EmptySlotReopensWhenBrowserReturns(t *testing.T) {
	available := false
	p := handBuiltPool(t, 1, func() (*tab, error) {
		if !available {
			return nil, errBrowserMissing
		}
		return &tab{ctx: context.Background(), cancel: func() {}}, nil
	}, deadTab())

	_, err := p.checkout(context.Background())
	require.ErrorIs(t, err, errBrowserMissing)

	available = true
	tb, err := p.checkout(context.Background())
	require.NoError(t, err)
	require.NotNil(t, tb)
	require.NoError(t, p.CheckReadiness(context.Background()))

	p.checkin(tb)
	assert.Len(t, p.tabs, 1)
}

func TestChromePool_ReplaceWithoutBrowser(t *testing.T) {
	p := handBuiltPool(t, 2, func() (*tab, error) { return nil, errBrowserMissing })
	p.live.Add(1)

	p.replace(&tab{ctx: context.Background(), cancel: func() {}})

	assert.Len(t, p.tabs, 1)
	assert.Nil(t, <-p.tabs)
	assert.ErrorIs(t, p.CheckReadiness(context.Background()), ErrNoTabs)
}

func TestChromePool_ClosedPool(t *testing.T) {
	p := handBuiltPool(t, 1, func() (*tab, error) { return nil, errBrowserMissing })
	p.Close()

	_, err := p.Rasterize(context.Background(), labelled("x"))
	require.ErrorIs(t, err, ErrPoolClosed)
	assert.ErrorIs(t, p.CheckReadiness(context.Background()), ErrPoolClosed)
}
