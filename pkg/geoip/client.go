// Package geoip resolves a client IP to an approximate location through ipapi.co
package geoip

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

var (
	// ErrLookupFailed is returned when the provider cannot resolve the address
	ErrLookupFailed = errors.New("geo-ip lookup failed")
)

// Location is the subset of the provider response kept for the CRM
type Location struct {
	City        string   `json:"city"`
	Region      string   `json:"region"`
	CountryCode string   `json:"country_code"`
	Postal      string   `json:"postal"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	Org         string   `json:"org"`
	Error       bool     `json:"error"`
	Reason      string   `json:"reason"`
}

// Client queries ipapi.co
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a geo-ip client. apiKey may be empty (free tier).
func NewClient(apiKey string) *Client {
	return &Client{
		baseURL: "https://ipapi.co",
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// WithBaseURL points the client at another host
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = baseURL
	return c
}

// Lookup resolves ip
func (c *Client) Lookup(ctx context.Context, ip string) (*Location, error) {
	endpoint := fmt.Sprintf("%s/%s/json/", c.baseURL, url.PathEscape(ip))
	if c.apiKey != "" {
		endpoint += "?key=" + url.QueryEscape(c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrLookupFailed, resp.StatusCode)
	}

	var loc Location
	if err := json.NewDecoder(resp.Body).Decode(&loc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	if loc.Error {
		return nil, fmt.Errorf("%w: %s", ErrLookupFailed, loc.Reason)
	}

	return &loc, nil
}
