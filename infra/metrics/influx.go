package metrics

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/kilianp07/greenplace/core/events"
	coremetrics "github.com/kilianp07/greenplace/core/metrics"
	"github.com/kilianp07/greenplace/infra/logger"
)

// InfluxSink writes placement events to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// InfluxConfig configures the influx decision sink.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
	// HealthTimeoutSeconds bounds the startup health check (default 5).
	HealthTimeoutSeconds int `json:"health_timeout_seconds"`
	// Required turns an unhealthy instance into a startup error instead of
	// a silent NopSink.
	Required bool `json:"required"`
}

// Validate checks the fields needed to address a bucket.
func (c InfluxConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("influx sink: url is required")
	}
	if c.Bucket == "" {
		return fmt.Errorf("influx sink: bucket is required")
	}
	return nil
}

// OpenInfluxSink checks the instance health and returns the sink. An
// unhealthy instance yields a NopSink unless the config marks it required.
func OpenInfluxSink(c InfluxConfig) (coremetrics.MetricsSink, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.HealthTimeoutSeconds <= 0 {
		c.HealthTimeoutSeconds = 5
	}
	sink := NewInfluxSink(c.URL, c.Token, c.Org, c.Bucket)
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(c.HealthTimeoutSeconds)*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err == nil && health.Status != "pass" {
		err = fmt.Errorf("status %s", health.Status)
	}
	if err == nil {
		return sink, nil
	}
	sink.client.Close()
	if c.Required {
		return nil, fmt.Errorf("influx sink %s: %w", c.URL, err)
	}
	sink.log.Errorf("influx unhealthy, decisions will not be written: %v", err)
	return coremetrics.NopSink{}, nil
}

// PlacementPoint builds the line protocol point of a placement event.
func PlacementPoint(ev events.PlacementEvent) *write.Point {
	p := write.NewPointWithMeasurement("placement_decision").
		AddTag("allowed", strconv.FormatBool(ev.Allowed)).
		AddTag("error_kind", ev.ErrorKind).
		AddTag("component", "webhook")
	if ev.Region != "" {
		p = p.AddTag("region", ev.Region)
	}
	p = p.AddField("uid", ev.UID).
		AddField("eligible_regions", len(ev.Eligible)).
		AddField("latency_ms", round3(ev.Latency.Seconds()*1000))
	if ev.Allowed {
		p = p.AddField("avg_intensity", round3(ev.AvgIntensity)).
			AddField("start_time", ev.StartTime.UTC().Format(time.RFC3339))
	} else {
		p = p.AddField("reason", ev.Reason)
	}
	return p.SetTime(ev.Time)
}

// RecordPlacement writes the placement as a line protocol point.
func (s *InfluxSink) RecordPlacement(ev events.PlacementEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, PlacementPoint(ev))
}

// RecordSchedule writes one scheduling request outcome.
func (s *InfluxSink) RecordSchedule(ev events.ScheduleEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("schedule_request").
		AddTag("error_kind", ev.ErrorKind).
		AddTag("component", "scheduler")
	if ev.Region != "" {
		p = p.AddTag("region", ev.Region)
	}
	p = p.AddField("duration_hours", ev.DurationHours).
		AddField("horizon_hours", ev.HorizonHours).
		AddField("regions", ev.Regions).
		AddField("avg_intensity", round3(ev.AvgIntensity)).
		AddField("latency_ms", round3(ev.Latency.Seconds()*1000)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordForecastFetch writes one region fetch.
func (s *InfluxSink) RecordForecastFetch(ev events.ForecastFetchEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("forecast_fetch").
		AddTag("region", ev.Region).
		AddTag("ok", strconv.FormatBool(ev.Err == nil)).
		AddField("latency_ms", round3(ev.Latency.Seconds()*1000)).
		SetTime(time.Now())
	return s.writeAPI.WritePoint(ctx, p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
