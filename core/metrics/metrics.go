package metrics

import "github.com/kilianp07/greenplace/core/events"

// MetricsSink records placement decisions for observability purposes.
type MetricsSink interface {
	RecordPlacement(ev events.PlacementEvent) error
}

// ScheduleRecorder records scheduling service outcomes.
type ScheduleRecorder interface {
	RecordSchedule(ev events.ScheduleEvent) error
}

// ForecastFetchRecorder records per-region forecast fetches.
type ForecastFetchRecorder interface {
	RecordForecastFetch(ev events.ForecastFetchEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordPlacement(events.PlacementEvent) error         { return nil }
func (NopSink) RecordSchedule(events.ScheduleEvent) error           { return nil }
func (NopSink) RecordForecastFetch(events.ForecastFetchEvent) error { return nil }
