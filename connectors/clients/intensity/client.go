// Package intensity is a forecast provider backed by a remote carbon
// intensity API.
package intensity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/kilianp07/greenplace/auth"
	"github.com/kilianp07/greenplace/core/factory"
	"github.com/kilianp07/greenplace/core/prediction"
)

// Config configures the remote provider.
type Config struct {
	URL             string    `json:"url"`
	TimeoutSeconds  int       `json:"timeout_seconds"`
	MaxHorizonHours int       `json:"max_horizon_hours"`
	Auth            auth.Conf `json:"auth"`
}

// Response is the body of GET {url}/forecast.
type Response struct {
	Region string    `json:"region"`
	Values []float64 `json:"values"`
}

// Client implements prediction.Provider over HTTP.
type Client struct {
	base       string
	maxHorizon int
	http       *http.Client
}

// New returns a Client. Requests carry credentials when cfg.Auth is
// enabled.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("intensity: url is required")
	}
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, fmt.Errorf("intensity: invalid url: %w", err)
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 10
	}
	if cfg.MaxHorizonHours <= 0 {
		cfg.MaxHorizonHours = prediction.DefaultMaxHorizon
	}
	hc := &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second}
	if cfg.Auth.Enabled() {
		t, err := auth.NewTransport(cfg.Auth, nil)
		if err != nil {
			return nil, fmt.Errorf("intensity: %w", err)
		}
		hc.Transport = t
	}
	return &Client{base: cfg.URL, maxHorizon: cfg.MaxHorizonHours, http: hc}, nil
}

// MaxHorizon implements prediction.Provider.
func (c *Client) MaxHorizon() int { return c.maxHorizon }

// Forecast implements prediction.Provider.
func (c *Client) Forecast(ctx context.Context, region string, horizonHours int) ([]float64, error) {
	q := url.Values{}
	q.Set("region", region)
	q.Set("hours", strconv.Itoa(horizonHours))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/forecast?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, body)
	}
	var r Response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return r.Values, nil
}

func init() {
	_ = prediction.RegisterProvider("http", func(conf map[string]any) (prediction.Provider, error) {
		var cfg Config
		if err := factory.Decode(conf, &cfg); err != nil {
			return nil, err
		}
		return New(cfg)
	})
}
