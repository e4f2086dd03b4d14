package prediction

import (
	"context"
	"fmt"
	"io"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// DefaultContextHours is the history length read before forecasting.
const DefaultContextHours = 1024

// SeasonalProvider forecasts each future hour as the mean of past
// observations at the same hour of day plus the linear trend of the whole
// history.
type SeasonalProvider struct {
	source       HistorySource
	contextHours int
	maxHorizon   int
	now          func() time.Time
}

// NewSeasonalProvider returns a SeasonalProvider reading contextHours of
// history from source. Zero values select the package defaults.
func NewSeasonalProvider(source HistorySource, contextHours, maxHorizon int) *SeasonalProvider {
	if contextHours <= 0 {
		contextHours = DefaultContextHours
	}
	if maxHorizon <= 0 {
		maxHorizon = DefaultMaxHorizon
	}
	return &SeasonalProvider{source: source, contextHours: contextHours, maxHorizon: maxHorizon, now: time.Now}
}

// MaxHorizon implements Provider.
func (p *SeasonalProvider) MaxHorizon() int { return p.maxHorizon }

// Close closes the history source when it holds a connection.
func (p *SeasonalProvider) Close() error {
	if c, ok := p.source.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Forecast implements Provider.
func (p *SeasonalProvider) Forecast(ctx context.Context, region string, horizonHours int) ([]float64, error) {
	if horizonHours <= 0 || horizonHours > p.maxHorizon {
		return nil, fmt.Errorf("horizon %d outside 1..%d", horizonHours, p.maxHorizon)
	}
	hist, err := p.source.History(ctx, region, p.contextHours)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	if len(hist) == 0 {
		return nil, fmt.Errorf("no history for region %s", region)
	}

	var byHour [24][]float64
	xs := make([]float64, len(hist))
	ys := make([]float64, len(hist))
	first := hist[0].Time
	for i, s := range hist {
		v := sanitize(s.Value)
		byHour[s.Time.UTC().Hour()] = append(byHour[s.Time.UTC().Hour()], v)
		xs[i] = s.Time.Sub(first).Hours()
		ys[i] = v
	}
	level := stat.Mean(ys, nil)
	meanX := stat.Mean(xs, nil)
	slope := 0.0
	if len(hist) > 1 {
		_, beta := stat.LinearRegression(xs, ys, nil, false)
		if !math.IsNaN(beta) && !math.IsInf(beta, 0) {
			slope = beta
		}
	}

	start := p.now().UTC().Truncate(time.Hour)
	offset := start.Sub(first).Hours()
	out := make([]float64, horizonHours)
	for h := range out {
		ts := start.Add(time.Duration(h) * time.Hour)
		seasonal := level
		if bucket := byHour[ts.Hour()]; len(bucket) > 0 {
			seasonal = stat.Mean(bucket, nil)
		}
		v := seasonal + slope*(offset+float64(h)-meanX)
		out[h] = math.Max(0, sanitize(v))
	}
	return out, nil
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
