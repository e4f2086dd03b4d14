package prediction

import (
	"context"
	"fmt"
)

// StaticProvider returns preconfigured series. It is used in tests and demos.
type StaticProvider struct {
	Series map[string][]float64
	Errors map[string]error
	Max    int
}

// NewStaticProvider returns a StaticProvider. A non-positive maxHorizon selects
// DefaultMaxHorizon.
func NewStaticProvider(series map[string][]float64, maxHorizon int) *StaticProvider {
	if maxHorizon <= 0 {
		maxHorizon = DefaultMaxHorizon
	}
	return &StaticProvider{Series: series, Max: maxHorizon}
}

// Forecast returns a copy of the first horizonHours values of the region
// series. Shorter series are returned unchanged.
func (p *StaticProvider) Forecast(ctx context.Context, region string, horizonHours int) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := p.Errors[region]; ok {
		return nil, err
	}
	s, ok := p.Series[region]
	if !ok {
		return nil, fmt.Errorf("no series for region %s", region)
	}
	n := len(s)
	if horizonHours < n {
		n = horizonHours
	}
	out := make([]float64, n)
	copy(out, s[:n])
	return out, nil
}

// MaxHorizon implements Provider.
func (p *StaticProvider) MaxHorizon() int {
	if p.Max <= 0 {
		return DefaultMaxHorizon
	}
	return p.Max
}
