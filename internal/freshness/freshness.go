// Package freshness decides how long a rendered radar frame may be cached.
//
// The upstream radar publishes a new frame every few minutes. A frame
// captured at 10:00 with a six-minute window is fresh until 10:06, so a
// response built at 10:03 may be cached for three minutes. A request that
// names the dataset id it wants gets an immutable response when that id is
// the one being served.
package freshness

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/storm-radar-renderer/internal/timestamp"
	"github.com/jonboulle/clockwork"
)

// ImmutableMaxAge is the max-age of a response pinned to its dataset id.
const ImmutableMaxAge = 365 * 24 * time.Hour

// StaleMode selects when a frame counts as stale.
type StaleMode int

const (
	// StaleWhenExpired marks a frame stale once its window has elapsed. A
	// dataset clock ahead of the wall clock lengthens max-age, by up to twelve
	// hours when the timezone is wrong; Policy logs a warning when it happens.
	StaleWhenExpired StaleMode = iota
	// StaleOnSkew also treats a frame that appears to come from the future
	// (remaining time longer than the window) as stale.
	StaleOnSkew
)

// ParseFallback selects the policy used when a clock string cannot be parsed.
type ParseFallback int

const (
	// FallbackZeroDistance assumes the frame was captured just now and grants
	// the full window.
	FallbackZeroDistance ParseFallback = iota
	// FallbackRevalidate serves the response as stale.
	FallbackRevalidate
)

// Policy is the cache directive for one response.
type Policy struct {
	MaxAgeSeconds               int
	Immutable                   bool
	MustRevalidate              bool
	StaleWhileRevalidateSeconds int
}

// Header renders the policy as a public Cache-Control value.
func (p Policy) Header() string {
	parts := []string{"public", "max-age=" + strconv.Itoa(p.MaxAgeSeconds)}
	if p.Immutable {
		parts = append(parts, "immutable")
	}
	if p.MustRevalidate {
		parts = append(parts, "must-revalidate")
	}
	if p.StaleWhileRevalidateSeconds > 0 {
		parts = append(parts, "stale-while-revalidate="+strconv.Itoa(p.StaleWhileRevalidateSeconds))
	}
	return strings.Join(parts, ", ")
}

// Options configure a Scheduler.
type Options struct {
	// Window is the upstream refresh interval, in whole minutes.
	Window time.Duration
	// StaleMode decides whether clock skew counts as stale.
	StaleMode StaleMode
	// StaleWhileRevalidate, when positive, replaces must-revalidate on stale
	// frames with a stale-while-revalidate allowance.
	StaleWhileRevalidate time.Duration
	// ParseFallback applies when either clock cannot be parsed.
	ParseFallback ParseFallback
	// Location is the timezone the dataset clock is written in.
	Location *time.Location
}

// Scheduler computes cache policies against a wall clock.
type Scheduler struct {
	opts   Options
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewScheduler creates a Scheduler. A nil clock uses real time and a nil
// location uses UTC.
func NewScheduler(opts Options, clock clockwork.Clock, logger *slog.Logger) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Scheduler{opts: opts, clock: clock, logger: logger}
}

// Policy returns the cache policy for serving datasetID to a caller that
// asked for requestedID (empty when the caller asked for the latest frame).
func (s *Scheduler) Policy(datasetID, requestedID string) Policy {
	if requestedID != "" && requestedID == datasetID {
		return Policy{MaxAgeSeconds: int(ImmutableMaxAge / time.Second), Immutable: true}
	}

	now := s.clock.Now().In(s.opts.Location).Format("15:04")
	p, err := s.Evaluate(timestamp.Clock(datasetID), now)
	switch {
	case err != nil:
		s.logger.Warn("dataset time unreadable, applying fallback cache policy",
			"dataset_id", datasetID,
			"now", now,
			"fallback", s.opts.ParseFallback.String(),
			"error", err,
		)
	case time.Duration(p.MaxAgeSeconds)*time.Second > s.opts.Window:
		s.logger.Warn("dataset clock ahead of wall clock, check TIMEZONE",
			"dataset_id", datasetID,
			"now", now,
			"location", s.opts.Location.String(),
			"max_age", p.MaxAgeSeconds,
		)
	}
	return p
}

// Evaluate returns the policy for a frame captured at datasetClock when the
// wall clock reads currentClock, both as "HH:MM". A dataset clock more than
// twelve hours ahead of the wall clock is taken to be from the previous day.
// On a parse error the configured fallback policy is returned along with
// the error.
func (s *Scheduler) Evaluate(datasetClock, currentClock string) (Policy, error) {
	elapsed, err := timestamp.MinutesBetween(currentClock, datasetClock)
	if err != nil {
		if s.opts.ParseFallback == FallbackRevalidate {
			return s.stale(), err
		}
		return s.policyFor(0), err
	}
	if elapsed < -12*60 {
		elapsed += 24 * 60
	}
	return s.policyFor(elapsed), nil
}

func (s *Scheduler) policyFor(elapsedMinutes int) Policy {
	window := int(s.opts.Window / time.Minute)
	remaining := window - elapsedMinutes
	if remaining <= 0 || (s.opts.StaleMode == StaleOnSkew && remaining > window) {
		return s.stale()
	}
	return Policy{MaxAgeSeconds: remaining * 60}
}

func (s *Scheduler) stale() Policy {
	if s.opts.StaleWhileRevalidate > 0 {
		return Policy{StaleWhileRevalidateSeconds: int(s.opts.StaleWhileRevalidate / time.Second)}
	}
	return Policy{MustRevalidate: true}
}

// ParseStaleMode reads "revalidate" or "skew".
func ParseStaleMode(s string) (StaleMode, error) {
	switch strings.ToLower(s) {
	case "revalidate", "expired":
		return StaleWhenExpired, nil
	case "skew":
		return StaleOnSkew, nil
	}
	return 0, fmt.Errorf("unknown stale mode %q", s)
}

// ParseFallbackMode reads "zero" or "revalidate".
func ParseFallbackMode(s string) (ParseFallback, error) {
	switch strings.ToLower(s) {
	case "zero":
		return FallbackZeroDistance, nil
	case "revalidate":
		return FallbackRevalidate, nil
	}
	return 0, fmt.Errorf("unknown parse fallback %q", s)
}

func (f ParseFallback) String() string {
	if f == FallbackRevalidate {
		return "revalidate"
	}
	return "zero"
}
