package scheduler

import (
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/greenplace/core/model"
)

// Optimizer searches the minimum-average contiguous window.
type Optimizer struct {
	now func() time.Time
}

// NewOptimizer returns an Optimizer stamping decisions with the wall clock.
func NewOptimizer() *Optimizer {
	return &Optimizer{now: time.Now}
}

// NewOptimizerWithClock returns an Optimizer using now for start timestamps.
func NewOptimizerWithClock(now func() time.Time) *Optimizer {
	return &Optimizer{now: now}
}

// Optimize scans regions in the given order and offsets 0..horizon-duration
// for each, keeping the first window with the strictly lowest mean. A region
// whose series is shorter than the horizon contributes no window.
func (o *Optimizer) Optimize(forecasts []model.RegionForecast, duration, horizon int) (model.ScheduleDecision, error) {
	if duration <= 0 || duration > horizon {
		return model.ScheduleDecision{}, model.ErrNoScheduleFound
	}
	var (
		best  model.ScheduleDecision
		found bool
	)
	for _, f := range forecasts {
		if len(f.Values) < horizon {
			continue
		}
		for off := 0; off+duration <= horizon; off++ {
			avg := stat.Mean(f.Values[off:off+duration], nil)
			if !found || avg < best.AvgIntensity {
				best = model.ScheduleDecision{Region: f.Region, StartOffset: off, AvgIntensity: avg}
				found = true
			}
		}
	}
	if !found {
		return model.ScheduleDecision{}, model.ErrNoScheduleFound
	}
	best.StartTime = o.now().UTC().Add(time.Duration(best.StartOffset) * time.Hour)
	return best, nil
}
