// Package history reads past carbon-intensity measurements from InfluxDB.
package history

import (
	"context"
	"fmt"
	"net/http"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/kilianp07/greenplace/core/factory"
	"github.com/kilianp07/greenplace/core/prediction"
)

// Config selects the InfluxDB bucket and measurement holding hourly
// intensity values tagged by region.
type Config struct {
	URL         string `json:"url"`
	Token       string `json:"token"`
	Org         string `json:"org"`
	Bucket      string `json:"bucket"`
	Measurement string `json:"measurement"`
	Field       string `json:"field"`
}

func (c *Config) setDefaults() {
	if c.Measurement == "" {
		c.Measurement = "carbon_intensity"
	}
	if c.Field == "" {
		c.Field = "gco2_per_kwh"
	}
}

// InfluxSource implements prediction.HistorySource with a Flux query.
type InfluxSource struct {
	client   influxdb2.Client
	queryAPI api.QueryAPI
	cfg      Config
}

// NewInfluxSource connects to the configured InfluxDB instance.
func NewInfluxSource(cfg Config) (*InfluxSource, error) {
	if cfg.URL == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("influx history: url and bucket are required")
	}
	cfg.setDefaults()
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 10 * time.Second}))
	return &InfluxSource{client: client, queryAPI: client.QueryAPI(cfg.Org), cfg: cfg}, nil
}

// Close releases the underlying client.
func (s *InfluxSource) Close() error {
	s.client.Close()
	return nil
}

// Query returns the Flux query reading hours of history for region.
func (s *InfluxSource) Query(region string, hours int) string {
	return fmt.Sprintf(`from(bucket: %q)
  |> range(start: -%dh)
  |> filter(fn: (r) => r._measurement == %q and r._field == %q and r.region == %q)
  |> aggregateWindow(every: 1h, fn: mean, createEmpty: false)
  |> sort(columns: ["_time"])`, s.cfg.Bucket, hours, s.cfg.Measurement, s.cfg.Field, region)
}

// History implements prediction.HistorySource.
func (s *InfluxSource) History(ctx context.Context, region string, hours int) ([]prediction.Sample, error) {
	res, err := s.queryAPI.Query(ctx, s.Query(region, hours))
	if err != nil {
		return nil, fmt.Errorf("influx query: %w", err)
	}
	defer res.Close()
	var out []prediction.Sample
	for res.Next() {
		rec := res.Record()
		v, ok := toFloat(rec.Value())
		if !ok {
			continue
		}
		out = append(out, prediction.Sample{Time: rec.Time(), Value: v})
	}
	if err := res.Err(); err != nil {
		return nil, fmt.Errorf("influx result: %w", err)
	}
	return out, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

func init() {
	_ = prediction.RegisterHistorySource("influx", func(conf map[string]any) (prediction.HistorySource, error) {
		var cfg Config
		if err := factory.Decode(conf, &cfg); err != nil {
			return nil, err
		}
		return NewInfluxSource(cfg)
	})
}
