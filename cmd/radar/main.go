package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/storm-radar-renderer/internal/adapter/checkweather"
	httpadapter "github.com/couchcryptid/storm-radar-renderer/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/storm-radar-renderer/internal/adapter/kafka"
	"github.com/couchcryptid/storm-radar-renderer/internal/adapter/raster"
	"github.com/couchcryptid/storm-radar-renderer/internal/config"
	"github.com/couchcryptid/storm-radar-renderer/internal/freshness"
	"github.com/couchcryptid/storm-radar-renderer/internal/observability"
	"github.com/couchcryptid/storm-radar-renderer/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var surface raster.Rasterizer
	switch cfg.Rasterizer {
	case config.RasterizerChrome:
		pool, err := raster.NewChromePool(ctx, raster.ChromeOptions{
			Size:     cfg.ChromePoolSize,
			ExecPath: cfg.ChromePath,
			Scale:    cfg.RasterScale,
			Quality:  cfg.JPEGQuality,
		}, metrics, logger)
		if err != nil {
			logger.Error("failed to start chrome pool", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		surface = pool
	default:
		native, err := raster.NewNative(cfg.RasterScale, cfg.JPEGQuality)
		if err != nil {
			logger.Error("failed to create native rasterizer", "error", err)
			os.Exit(1)
		}
		surface = native
	}
	rasterizer := raster.NewCached(surface, cfg.FrameCacheSize, metrics)
	logger.Info("rasterizer ready", "kind", cfg.Rasterizer, "scale", cfg.RasterScale, "quality", cfg.JPEGQuality)

	clock := clockwork.NewRealClock()
	scheduler := freshness.NewScheduler(freshness.Options{
		Window:               cfg.FreshnessWindow,
		StaleMode:            cfg.StaleMode,
		StaleWhileRevalidate: cfg.StaleWhileRevalidate,
		ParseFallback:        cfg.ParseFallback,
		Location:             cfg.Location,
	}, clock, logger)

	source := checkweather.NewClient(cfg.UpstreamBaseURL, cfg.UpstreamTimeout, metrics, logger)

	opts := pipeline.Options{Clock: clock}
	var publisher *kafkaadapter.FramePublisher
	if cfg.KafkaEnabled {
		publisher = kafkaadapter.NewFramePublisher(cfg, metrics, logger)
		opts.Publisher = publisher
		logger.Info("frame events enabled", "topic", cfg.KafkaFrameTopic, "brokers", cfg.KafkaBrokers)
	} else {
		logger.Info("frame events disabled")
	}

	renderer := pipeline.New(source, rasterizer, scheduler, logger, metrics, opts)
	srv := httpadapter.NewServer(cfg.HTTPAddr, renderer, renderer, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
