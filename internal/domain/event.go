package domain

import (
	"context"
	"time"
)

// Observation is one weather station reading.
type Observation struct {
	Lon                  float64  `json:"lng"`
	Lat                  float64  `json:"lat"`
	TemperatureCelsius   *float64 `json:"temp_celcius,omitempty"`
	WindDirectionDegrees *float64 `json:"wind_direction,omitempty"`
}

// RainArea is one radar frame as published upstream.
type RainArea struct {
	ID     string `json:"id"`
	Radar  string `json:"radar"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// WeatherSource supplies the latest radar frame and station readings.
type WeatherSource interface {
	Observations(ctx context.Context) ([]Observation, error)
	RainArea(ctx context.Context) (RainArea, error)
}

// FrameEvent announces that a new radar frame has been rendered.
type FrameEvent struct {
	DatasetID    string    `json:"dataset_id"`
	Label        string    `json:"label"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	Contours     int       `json:"contours"`
	Observations int       `json:"observations"`
	CacheControl string    `json:"cache_control"`
	RenderedAt   time.Time `json:"rendered_at"`
}

// OutputEvent is the serialized form destined for the frame topic.
type OutputEvent struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// Float returns a pointer to v, for optional observation fields.
func Float(v float64) *float64 { return &v }
