// Package ephemeris calls the stateless Nocturna calculation service.
// No astrology is computed locally.
package ephemeris

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/astrapersonal/astra-api/pkg/logger"
)

// Defaults used when birth data is incomplete
const (
	DefaultLatitude  = 41.9
	DefaultLongitude = 12.5
	DefaultTimezone  = "Europe/Rome"
	DefaultTime      = "12:00:00"
	DefaultDate      = "1990-01-01"
)

// Chart is the raw JSON payload returned by the service
type Chart map[string]any

// BirthData is the natal input accepted by the service
type BirthData struct {
	Date      string   `json:"date"`
	Time      string   `json:"time"`
	Latitude  *float64 `json:"-"`
	Longitude *float64 `json:"-"`
	Timezone  string   `json:"timezone"`
}

type chartRequest struct {
	Date      string  `json:"date"`
	Time      string  `json:"time"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  string  `json:"timezone"`
}

type transitRequest struct {
	NatalChart  chartRequest `json:"natal_chart"`
	TransitDate string       `json:"transit_date"`
	TransitTime string       `json:"transit_time"`
}

// Client talks to the ephemeris service
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     logger.Logger
}

// NewClient creates a new ephemeris client
func NewClient(baseURL, token string, log logger.Logger) *Client {
	if log == nil {
		log = logger.Default()
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: log,
	}
}

// NatalChart returns the natal chart for b, or an empty chart on any failure
func (c *Client) NatalChart(ctx context.Context, b BirthData) Chart {
	return c.post(ctx, "/api/stateless/natal-chart", b.request())
}

// Transits returns the transits over the natal chart b on date at noon,
// or an empty chart on any failure
func (c *Client) Transits(ctx context.Context, b BirthData, date string) Chart {
	return c.post(ctx, "/api/stateless/transits", transitRequest{
		NatalChart:  b.request(),
		TransitDate: date,
		TransitTime: DefaultTime,
	})
}

func (c *Client) post(ctx context.Context, path string, body any) Chart {
	payload, err := json.Marshal(body)
	if err != nil {
		return Chart{}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.logger.Warn("ephemeris request build failed", "path", path, "error", err)
		return Chart{}
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("ephemeris request failed", "path", path, "error", err)
		return Chart{}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("ephemeris returned error", "path", path, "status", resp.StatusCode)
		return Chart{}
	}

	var chart Chart
	if err := json.NewDecoder(resp.Body).Decode(&chart); err != nil {
		c.logger.Warn("ephemeris response decode failed", "path", path, "error", err)
		return Chart{}
	}
	if chart == nil {
		chart = Chart{}
	}
	return chart
}

func (b BirthData) request() chartRequest {
	r := chartRequest{
		Date:      b.Date,
		Time:      NormalizeTime(b.Time),
		Latitude:  DefaultLatitude,
		Longitude: DefaultLongitude,
		Timezone:  b.Timezone,
	}
	if r.Date == "" {
		r.Date = DefaultDate
	}
	if b.Latitude != nil && *b.Latitude != 0 {
		r.Latitude = *b.Latitude
	}
	if b.Longitude != nil && *b.Longitude != 0 {
		r.Longitude = *b.Longitude
	}
	if r.Timezone == "" {
		r.Timezone = DefaultTimezone
	}
	return r
}

// NormalizeTime turns "HH:MM" or "HH:MM:SS" into "HH:MM:SS"; empty means noon
func NormalizeTime(t string) string {
	switch len(t) {
	case 0:
		return DefaultTime
	case 5:
		return t + ":00"
	case 8:
		return t
	}
	if len(t) > 8 {
		return t[:8]
	}
	return fmt.Sprintf("%s:00", t)
}

// IsEmpty reports whether the service returned nothing usable
func (c Chart) IsEmpty() bool {
	return len(c) == 0
}
