package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/storm-radar-renderer/internal/freshness"
)

// Rasterizer names accepted by RASTERIZER.
const (
	RasterizerNative = "native"
	RasterizerChrome = "chrome"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Upstream API.
	UpstreamBaseURL string
	UpstreamTimeout time.Duration

	// Rasterization.
	Rasterizer     string
	RasterScale    float64
	JPEGQuality    int
	ChromePoolSize int
	ChromePath     string
	FrameCacheSize int

	// Cache policy. The default stale mode grants a frame whose clock reads
	// ahead of TIMEZONE's wall clock more than one window of max-age, up to
	// twelve hours; FRESHNESS_STALE_MODE=skew serves such frames as stale.
	FreshnessWindow      time.Duration
	StaleMode            freshness.StaleMode
	StaleWhileRevalidate time.Duration
	ParseFallback        freshness.ParseFallback
	Location             *time.Location

	// Frame events.
	KafkaEnabled    bool
	KafkaBrokers    []string
	KafkaFrameTopic string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	upstreamTimeout, err := parseDuration("UPSTREAM_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	if upstreamTimeout <= 0 {
		return nil, errors.New("invalid UPSTREAM_TIMEOUT: must be positive")
	}

	rasterizer := strings.ToLower(sharedcfg.EnvOrDefault("RASTERIZER", RasterizerNative))
	if rasterizer != RasterizerNative && rasterizer != RasterizerChrome {
		return nil, fmt.Errorf("invalid RASTERIZER %q: want %s or %s", rasterizer, RasterizerNative, RasterizerChrome)
	}

	scale, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("RASTER_SCALE", "2"), 64)
	if err != nil || scale <= 0 || scale > 8 {
		return nil, errors.New("invalid RASTER_SCALE: must be a number in (0, 8]")
	}

	quality, err := parseInt("JPEG_QUALITY", "80", 1, 100)
	if err != nil {
		return nil, err
	}
	poolSize, err := parseInt("CHROME_POOL_SIZE", "2", 1, 64)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parseInt("FRAME_CACHE_SIZE", "16", 1, 10000)
	if err != nil {
		return nil, err
	}

	window, err := parseDuration("FRESHNESS_WINDOW", "6m")
	if err != nil {
		return nil, err
	}
	if window < time.Minute || window%time.Minute != 0 {
		return nil, errors.New("invalid FRESHNESS_WINDOW: must be a positive whole number of minutes")
	}

	staleMode, err := freshness.ParseStaleMode(sharedcfg.EnvOrDefault("FRESHNESS_STALE_MODE", "revalidate"))
	if err != nil {
		return nil, fmt.Errorf("invalid FRESHNESS_STALE_MODE: %w", err)
	}

	swr, err := parseDuration("FRESHNESS_SWR", "0s")
	if err != nil {
		return nil, err
	}
	if swr < 0 {
		return nil, errors.New("invalid FRESHNESS_SWR: must not be negative")
	}

	fallback, err := freshness.ParseFallbackMode(sharedcfg.EnvOrDefault("FRESHNESS_PARSE_FALLBACK", "zero"))
	if err != nil {
		return nil, fmt.Errorf("invalid FRESHNESS_PARSE_FALLBACK: %w", err)
	}

	tz := sharedcfg.EnvOrDefault("TIMEZONE", "Asia/Singapore")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", tz, err)
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		UpstreamBaseURL: sharedcfg.EnvOrDefault("UPSTREAM_BASE_URL", "https://api.checkweather.sg/v2"),
		UpstreamTimeout: upstreamTimeout,

		Rasterizer:     rasterizer,
		RasterScale:    scale,
		JPEGQuality:    quality,
		ChromePoolSize: poolSize,
		ChromePath:     sharedcfg.EnvOrDefault("CHROME_PATH", ""),
		FrameCacheSize: cacheSize,

		FreshnessWindow:      window,
		StaleMode:            staleMode,
		StaleWhileRevalidate: swr,
		ParseFallback:        fallback,
		Location:             loc,

		KafkaEnabled:    sharedcfg.EnvOrDefault("KAFKA_ENABLED", "false") == "true",
		KafkaBrokers:    sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaFrameTopic: sharedcfg.EnvOrDefault("KAFKA_FRAME_TOPIC", "radar-frames"),
	}

	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if cfg.KafkaFrameTopic == "" {
			return nil, errors.New("KAFKA_FRAME_TOPIC is required when KAFKA_ENABLED is true")
		}
	}

	return cfg, nil
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func parseInt(key, def string, lo, hi int) (int, error) {
	n, err := strconv.Atoi(sharedcfg.EnvOrDefault(key, def))
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("invalid %s: must be an integer in [%d, %d]", key, lo, hi)
	}
	return n, nil
}
