package prediction

import (
	"context"
	"io"
	"time"
)

// DefaultMaxHorizon is the longest horizon, in hours, a provider supports
// unless configured otherwise.
const DefaultMaxHorizon = 96

// Provider forecasts hourly carbon intensity for a region.
type Provider interface {
	// Forecast returns exactly horizonHours non-negative values, the first
	// one covering the current hour.
	Forecast(ctx context.Context, region string, horizonHours int) ([]float64, error)
	// MaxHorizon returns the longest supported horizon in hours.
	MaxHorizon() int
}

// Sample is one historical intensity observation.
type Sample struct {
	Time  time.Time
	Value float64
}

// HistorySource returns the most recent hourly observations of a region,
// oldest first.
type HistorySource interface {
	History(ctx context.Context, region string, hours int) ([]Sample, error)
}

// Close releases what p holds open, such as a database backed history
// source. Providers without resources are left alone.
func Close(p Provider) error {
	if c, ok := p.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
