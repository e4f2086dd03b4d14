package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/greenplace/core/events"
	coremetrics "github.com/kilianp07/greenplace/core/metrics"
)

// PromSink records placement events in Prometheus metrics.
type PromSink struct {
	placements *prometheus.CounterVec
	intensity  *prometheus.HistogramVec
	schedules  *prometheus.CounterVec
	fetch      *prometheus.HistogramVec
}

// NewPromSink registers placement metrics on the default Prometheus registerer.
// The Prometheus server is started separately with StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	placements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "greenplace_placements_total",
		Help: "Admission reviews handled, by outcome",
	}, []string{"allowed", "region", "error_kind"})
	intensity := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "greenplace_window_intensity_gco2_kwh",
		Help:    "Average forecast intensity of the selected execution window",
		Buckets: prometheus.LinearBuckets(0, 50, 16),
	}, []string{"region"})
	schedules := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "greenplace_schedule_requests_total",
		Help: "Scheduling service requests, by outcome",
	}, []string{"error_kind"})
	fetch := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "greenplace_forecast_fetch_seconds",
		Help:    "Latency of one region forecast fetch",
		Buckets: prometheus.DefBuckets,
	}, []string{"region", "ok"})

	var err error
	if placements, err = register(reg, placements); err != nil {
		return nil, err
	}
	if intensity, err = register(reg, intensity); err != nil {
		return nil, err
	}
	if schedules, err = register(reg, schedules); err != nil {
		return nil, err
	}
	if fetch, err = register(reg, fetch); err != nil {
		return nil, err
	}
	return &PromSink{placements: placements, intensity: intensity, schedules: schedules, fetch: fetch}, nil
}

// register returns the already registered collector when c was registered
// before, so several sinks can share one registry.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordPlacement counts the review and observes the chosen window intensity.
func (s *PromSink) RecordPlacement(ev events.PlacementEvent) error {
	s.placements.WithLabelValues(strconv.FormatBool(ev.Allowed), ev.Region, ev.ErrorKind).Inc()
	if ev.Allowed {
		s.intensity.WithLabelValues(ev.Region).Observe(ev.AvgIntensity)
	}
	return nil
}

// RecordSchedule counts scheduling requests.
func (s *PromSink) RecordSchedule(ev events.ScheduleEvent) error {
	s.schedules.WithLabelValues(ev.ErrorKind).Inc()
	if ev.ErrorKind == "none" {
		s.intensity.WithLabelValues(ev.Region).Observe(ev.AvgIntensity)
	}
	return nil
}

// RecordForecastFetch observes the fetch latency.
func (s *PromSink) RecordForecastFetch(ev events.ForecastFetchEvent) error {
	s.fetch.WithLabelValues(ev.Region, strconv.FormatBool(ev.Err == nil)).Observe(ev.Latency.Seconds())
	return nil
}

var (
	_ coremetrics.ScheduleRecorder      = (*PromSink)(nil)
	_ coremetrics.ForecastFetchRecorder = (*PromSink)(nil)
)
