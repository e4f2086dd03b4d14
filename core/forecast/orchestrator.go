// Package forecast fetches the intensity forecasts of every eligible region
// for one scheduling request.
package forecast

import (
	"context"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/greenplace/core/logger"
	"github.com/kilianp07/greenplace/core/model"
	"github.com/kilianp07/greenplace/core/prediction"
)

// FetchObserver is notified of each completed region fetch.
type FetchObserver interface {
	ObserveFetch(region string, d time.Duration, err error)
}

// Orchestrator fans out one provider call per region and joins them before
// returning. It is safe for concurrent use.
type Orchestrator struct {
	provider prediction.Provider
	log      logger.Logger
	observer FetchObserver
}

// NewOrchestrator returns an Orchestrator using the shared provider. obs may
// be nil.
func NewOrchestrator(p prediction.Provider, log logger.Logger, obs FetchObserver) *Orchestrator {
	return &Orchestrator{provider: p, log: log, observer: obs}
}

// ClampHorizon limits a requested deadline to the provider's maximum horizon.
func (o *Orchestrator) ClampHorizon(deadlineHours int) int {
	if limit := o.provider.MaxHorizon(); deadlineHours > limit {
		return limit
	}
	return deadlineHours
}

// FetchAll returns one forecast per region, in the order of regions. The
// first failing region aborts the whole call and cancels the remaining
// fetches; no partial result is returned.
func (o *Orchestrator) FetchAll(ctx context.Context, regions []string, horizon int) ([]model.RegionForecast, error) {
	if len(regions) == 0 {
		return nil, &model.PolicyError{Reason: "no eligible regions"}
	}
	if horizon <= 0 {
		return nil, fmt.Errorf("forecast: horizon must be positive, got %d", horizon)
	}
	out := make([]model.RegionForecast, len(regions))
	g, gctx := errgroup.WithContext(ctx)
	for i, region := range regions {
		g.Go(func() error {
			values, err := o.fetch(gctx, region, horizon)
			if err != nil {
				return err
			}
			out[i] = model.RegionForecast{Region: region, Values: values}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (o *Orchestrator) fetch(ctx context.Context, region string, horizon int) ([]float64, error) {
	start := time.Now()
	o.log.Debugf("fetching %dh forecast for %s", horizon, region)
	values, err := o.provider.Forecast(ctx, region, horizon)
	if err == nil {
		err = validate(values, horizon)
	}
	if o.observer != nil {
		o.observer.ObserveFetch(region, time.Since(start), err)
	}
	if err != nil {
		return nil, &model.ProviderError{Region: region, Err: err}
	}
	return values, nil
}

func validate(values []float64, horizon int) error {
	if len(values) != horizon {
		return fmt.Errorf("expected %d values, got %d", horizon, len(values))
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("value %d is not finite", i)
		}
		if v < 0 {
			return fmt.Errorf("negative intensity at hour %d", i)
		}
	}
	return nil
}
