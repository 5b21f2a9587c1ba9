package checkweather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/couchcryptid/storm-radar-renderer/internal/domain"
	"github.com/couchcryptid/storm-radar-renderer/internal/observability"
)

// DefaultBaseURL is the public checkweather.sg v2 API.
const DefaultBaseURL = "https://api.checkweather.sg/v2"

// ErrUpstreamStatus is wrapped when the API answers with a non-200 status.
var ErrUpstreamStatus = errors.New("checkweather: unexpected status")

const (
	endpointObservations = "observations"
	endpointRainArea     = "rainarea"
)

// Client implements domain.WeatherSource using the checkweather.sg API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a checkweather client. An empty baseURL uses DefaultBaseURL.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		metrics: metrics,
		logger:  logger,
	}
}

// Observations returns the latest station readings.
func (c *Client) Observations(ctx context.Context) ([]domain.Observation, error) {
	var obs []domain.Observation
	if err := c.get(ctx, endpointObservations, &obs); err != nil {
		return nil, err
	}
	return obs, nil
}

// RainArea returns the latest radar frame.
func (c *Client) RainArea(ctx context.Context) (domain.RainArea, error) {
	var ra domain.RainArea
	if err := c.get(ctx, endpointRainArea, &ra); err != nil {
		return domain.RainArea{}, err
	}
	return ra, nil
}

func (c *Client) get(ctx context.Context, endpoint string, into any) (err error) {
	start := time.Now()
	defer func() {
		c.metrics.UpstreamDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		c.metrics.UpstreamRequests.WithLabelValues(endpoint, outcome).Inc()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn("upstream returned error status",
			"endpoint", endpoint,
			"status", resp.StatusCode,
		)
		return fmt.Errorf("%w: %s status %d: %s", ErrUpstreamStatus, endpoint, resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}
