package e2e

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// InfluxClient seeds intensity history and reads back placement points for
// the end-to-end suite.
type InfluxClient struct {
	bucket string
	client influxdb2.Client
	write  api.WriteAPIBlocking
	query  api.QueryAPI
}

// NewInfluxClient creates a client for a running InfluxDB instance.
func NewInfluxClient(url, org, bucket, token string) *InfluxClient {
	c := influxdb2.NewClient(url, token)
	return &InfluxClient{
		bucket: bucket,
		client: c,
		write:  c.WriteAPIBlocking(org, bucket),
		query:  c.QueryAPI(org),
	}
}

// SeedIntensity writes one hourly carbon_intensity point per hour for the
// given number of hours before now.
func (c *InfluxClient) SeedIntensity(ctx context.Context, region string, value float64, hours int) error {
	end := time.Now().UTC().Truncate(time.Hour)
	for h := hours; h > 0; h-- {
		p := influxdb2.NewPoint("carbon_intensity",
			map[string]string{"region": region},
			map[string]interface{}{"gco2_per_kwh": value},
			end.Add(-time.Duration(h)*time.Hour))
		if err := c.write.WritePoint(ctx, p); err != nil {
			return fmt.Errorf("seed %s: %w", region, err)
		}
	}
	return nil
}

// PlacementRegions returns the region tag of every placement_decision point
// written in the last hour.
func (c *InfluxClient) PlacementRegions(ctx context.Context) ([]string, error) {
	flux := fmt.Sprintf(`from(bucket: %q)
  |> range(start: -1h)
  |> filter(fn: (r) => r._measurement == "placement_decision" and r._field == "uid")`, c.bucket)
	res, err := c.query.Query(ctx, flux)
	if err != nil {
		return nil, err
	}
	defer res.Close()
	var regions []string
	for res.Next() {
		if r, ok := res.Record().ValueByKey("region").(string); ok {
			regions = append(regions, r)
		}
	}
	return regions, res.Err()
}

// Close releases the underlying client resources.
func (c *InfluxClient) Close() { c.client.Close() }
