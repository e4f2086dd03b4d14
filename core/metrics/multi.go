package metrics

import (
	"errors"

	"github.com/kilianp07/greenplace/core/events"
)

// MultiSink fans events out to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordPlacement forwards the event to all sinks and joins their errors.
func (m *MultiSink) RecordPlacement(ev events.PlacementEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		errs = append(errs, s.RecordPlacement(ev))
	}
	return errors.Join(errs...)
}

// RecordSchedule forwards to sinks implementing ScheduleRecorder.
func (m *MultiSink) RecordSchedule(ev events.ScheduleEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(ScheduleRecorder); ok {
			errs = append(errs, r.RecordSchedule(ev))
		}
	}
	return errors.Join(errs...)
}

// RecordForecastFetch forwards to sinks implementing ForecastFetchRecorder.
func (m *MultiSink) RecordForecastFetch(ev events.ForecastFetchEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(ForecastFetchRecorder); ok {
			errs = append(errs, r.RecordForecastFetch(ev))
		}
	}
	return errors.Join(errs...)
}
