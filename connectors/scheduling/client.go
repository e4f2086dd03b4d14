// Package scheduling is the HTTP client of the scheduling service.
package scheduling

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kilianp07/greenplace/core/model"
)

const (
	// DefaultDeadlineHours is sent when the caller leaves the deadline unset.
	DefaultDeadlineHours = 48
	// DefaultTimeout bounds a single scheduling call.
	DefaultTimeout = 5 * time.Second
)

// Request is the body of POST /schedule.
type Request struct {
	VMSpec      VMSpec          `json:"vm_spec"`
	Constraints ConstraintsBody `json:"constraints"`
}

// VMSpec carries the workload size.
type VMSpec struct {
	DurationHours int `json:"duration_hours"`
}

// ConstraintsBody carries the eligible regions and deadline.
type ConstraintsBody struct {
	EligibleRegions []string `json:"eligible_regions"`
	DeadlineHours   int      `json:"deadline_hours"`
}

// Response is the success body of POST /schedule.
type Response struct {
	Region                string   `json:"region"`
	StartTimeUTC          string   `json:"startTimeUTC"`
	EstimatedAvgIntensity *float64 `json:"estimatedAvgIntensity"`
}

// ErrorResponse is the failure body of the scheduling service.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Config configures the client.
type Config struct {
	URL            string `json:"url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.URL == "" {
		c.URL = "http://localhost:5001/schedule"
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = int(DefaultTimeout / time.Second)
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if !strings.HasPrefix(c.URL, "http://") && !strings.HasPrefix(c.URL, "https://") {
		return fmt.Errorf("scheduler_client.url must be an http(s) URL, got %q", c.URL)
	}
	return nil
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// Client calls the scheduling service. It performs a single attempt per
// request.
type Client struct {
	url     string
	timeout time.Duration
	http    *http.Client
}

// NewClient returns a Client posting to url.
func NewClient(url string, opts ...Option) *Client {
	c := &Client{url: url, timeout: DefaultTimeout, http: &http.Client{}}
	for _, o := range opts {
		o(c)
	}
	return c
}

// NewFromConfig builds a Client from cfg.
func NewFromConfig(cfg Config, opts ...Option) *Client {
	cfg.SetDefaults()
	opts = append([]Option{WithTimeout(time.Duration(cfg.TimeoutSeconds) * time.Second)}, opts...)
	return NewClient(cfg.URL, opts...)
}

// RequestSchedule asks the service for the best window. Every failure is an
// *model.RPCError.
func (c *Client) RequestSchedule(ctx context.Context, req model.WorkloadRequest, cons model.Constraints) (model.ScheduleDecision, error) {
	deadline := cons.DeadlineHours
	if deadline <= 0 {
		deadline = DefaultDeadlineHours
	}
	body, err := json.Marshal(Request{
		VMSpec:      VMSpec{DurationHours: req.DurationHours},
		Constraints: ConstraintsBody{EligibleRegions: cons.EligibleRegions, DeadlineHours: deadline},
	})
	if err != nil {
		return model.ScheduleDecision{}, &model.RPCError{Err: fmt.Errorf("encode request: %w", err)}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return model.ScheduleDecision{}, &model.RPCError{Err: fmt.Errorf("create request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return model.ScheduleDecision{}, &model.RPCError{Err: fmt.Errorf("send request: %w", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return model.ScheduleDecision{}, &model.RPCError{Status: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e ErrorResponse
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return model.ScheduleDecision{}, &model.RPCError{Status: resp.StatusCode, Err: errors.New(msg)}
	}
	return parseResponse(resp.StatusCode, raw)
}

func parseResponse(status int, raw []byte) (model.ScheduleDecision, error) {
	var r Response
	if err := json.Unmarshal(raw, &r); err != nil {
		return model.ScheduleDecision{}, &model.RPCError{Status: status, Err: fmt.Errorf("decode response: %w", err)}
	}
	var missing []string
	if r.Region == "" {
		missing = append(missing, "region")
	}
	if r.StartTimeUTC == "" {
		missing = append(missing, "startTimeUTC")
	}
	if r.EstimatedAvgIntensity == nil {
		missing = append(missing, "estimatedAvgIntensity")
	}
	if len(missing) > 0 {
		return model.ScheduleDecision{}, &model.RPCError{Status: status, Err: fmt.Errorf("response missing %s", strings.Join(missing, ", "))}
	}
	start, err := time.Parse(time.RFC3339, r.StartTimeUTC)
	if err != nil {
		return model.ScheduleDecision{}, &model.RPCError{Status: status, Err: fmt.Errorf("parse startTimeUTC: %w", err)}
	}
	return model.ScheduleDecision{
		Region:       r.Region,
		AvgIntensity: *r.EstimatedAvgIntensity,
		StartTime:    start.UTC(),
	}, nil
}
