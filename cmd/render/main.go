// Command render produces a single radar frame without starting the server.
//
// Frames can be rendered from the live upstream, from JSON fixtures saved
// from it, or from a synthetic storm field that needs no network at all.
//
// Usage:
//
//	go run ./cmd/render -live -out frame.jpg
//	go run ./cmd/render -rainarea testdata/rainarea.json -observations testdata/observations.json -out frame.svg
//	go run ./cmd/render -synthetic -fixtures testdata -out frame.jpg
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/couchcryptid/storm-radar-renderer/internal/adapter/checkweather"
	"github.com/couchcryptid/storm-radar-renderer/internal/adapter/raster"
	"github.com/couchcryptid/storm-radar-renderer/internal/domain"
	"github.com/couchcryptid/storm-radar-renderer/internal/freshness"
	"github.com/couchcryptid/storm-radar-renderer/internal/observability"
	"github.com/couchcryptid/storm-radar-renderer/internal/pipeline"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	live := fs.Bool("live", false, "fetch the latest frame from the upstream API")
	baseURL := fs.String("base-url", checkweather.DefaultBaseURL, "upstream API base URL for -live")
	rainPath := fs.String("rainarea", "", "rainarea JSON fixture")
	obsPath := fs.String("observations", "", "observations JSON fixture (optional)")
	synthetic := fs.Bool("synthetic", false, "render a generated storm field")
	fixtures := fs.String("fixtures", "", "with -synthetic, also write the generated payloads to this directory")
	out := fs.String("out", "frame.jpg", "output path; a .svg extension writes the vector scene")
	dt := fs.String("dt", "", "dataset id the caller asked for, for the printed cache policy")
	scale := fs.Float64("scale", raster.DefaultScale, "device pixels per canvas unit")
	quality := fs.Int("quality", raster.DefaultQuality, "JPEG quality")
	window := fs.Duration("window", 6*time.Minute, "freshness window")
	tz := fs.String("tz", "Asia/Singapore", "timezone of the dataset clock")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	metrics := observability.NewMetricsWithRegistry(prometheus.NewRegistry())

	var source domain.WeatherSource
	switch {
	case *live:
		source = checkweather.NewClient(*baseURL, 10*time.Second, metrics, logger)
	case *synthetic:
		src := newSyntheticSource()
		if *fixtures != "" {
			if err := src.writeFixtures(*fixtures); err != nil {
				return err
			}
		}
		source = src
	case *rainPath != "":
		src, err := loadFixtures(*rainPath, *obsPath)
		if err != nil {
			return err
		}
		source = src
	default:
		fs.Usage()
		return errors.New("one of -live, -synthetic or -rainarea is required")
	}

	loc, err := time.LoadLocation(*tz)
	if err != nil {
		return fmt.Errorf("load timezone: %w", err)
	}
	native, err := raster.NewNative(*scale, *quality)
	if err != nil {
		return err
	}

	clock := clockwork.NewRealClock()
	scheduler := freshness.NewScheduler(freshness.Options{Window: *window, Location: loc}, clock, logger)
	renderer := pipeline.New(source, native, scheduler, logger, metrics, pipeline.Options{Clock: clock})

	ctx := context.Background()
	var frame pipeline.Frame
	if strings.EqualFold(filepath.Ext(*out), ".svg") {
		frame, err = renderer.RenderSVG(ctx, *dt)
	} else {
		frame, err = renderer.Render(ctx, *dt)
	}
	if err != nil {
		return err
	}

	if err := os.WriteFile(*out, frame.Body, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", *out, err)
	}

	fmt.Fprintf(stdout, "dataset:       %s\n", frame.DatasetID)
	fmt.Fprintf(stdout, "label:         %s\n", frame.Label)
	fmt.Fprintf(stdout, "observations:  %d\n", frame.Observations)
	fmt.Fprintf(stdout, "elements:      %d\n", len(frame.Scene.Elements))
	fmt.Fprintf(stdout, "cache-control: %s\n", frame.Policy.Header())
	fmt.Fprintf(stdout, "wrote %s (%d bytes)\n", *out, len(frame.Body))
	return nil
}

// fileSource serves payloads previously saved from the upstream API.
type fileSource struct {
	rain domain.RainArea
	obs  []domain.Observation
}

func loadFixtures(rainPath, obsPath string) (*fileSource, error) {
	src := &fileSource{}
	if err := readJSON(rainPath, &src.rain); err != nil {
		return nil, err
	}
	if obsPath != "" {
		if err := readJSON(obsPath, &src.obs); err != nil {
			return nil, err
		}
	}
	return src, nil
}

func (s *fileSource) Observations(context.Context) ([]domain.Observation, error) { return s.obs, nil }
func (s *fileSource) RainArea(context.Context) (domain.RainArea, error)          { return s.rain, nil }

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
