package metrics

import (
	"context"

	"github.com/kilianp07/greenplace/core/events"
	coremetrics "github.com/kilianp07/greenplace/core/metrics"
	"github.com/kilianp07/greenplace/infra/logger"
)

// StartEventCollector subscribes to the event bus and records metrics for events.
// It stops when the context is canceled or the bus is closed.
func StartEventCollector(ctx context.Context, bus events.Bus, sink coremetrics.MetricsSink) {
	if bus == nil || sink == nil {
		return
	}
	log := logger.New("metrics-collector")
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if err := record(sink, ev); err != nil {
					log.Warnf("record %s event: %v", ev.Kind(), err)
				}
			}
		}
	}()
}

func record(sink coremetrics.MetricsSink, ev events.Event) error {
	switch e := ev.(type) {
	case events.PlacementEvent:
		return sink.RecordPlacement(e)
	case events.ScheduleEvent:
		if r, ok := sink.(coremetrics.ScheduleRecorder); ok {
			return r.RecordSchedule(e)
		}
	case events.ForecastFetchEvent:
		if r, ok := sink.(coremetrics.ForecastFetchRecorder); ok {
			return r.RecordForecastFetch(e)
		}
	}
	return nil
}
