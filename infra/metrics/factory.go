package metrics

import (
	"github.com/kilianp07/greenplace/core/factory"
	coremetrics "github.com/kilianp07/greenplace/core/metrics"
	"github.com/kilianp07/greenplace/infra/mqtt"
)

// init registers the decision sinks: nop, prometheus, influx and mqtt.
func init() {
	_ = coremetrics.RegisterMetricsSink("nop", func(map[string]any) (coremetrics.MetricsSink, error) {
		return coremetrics.NopSink{}, nil
	})

	_ = coremetrics.RegisterMetricsSink("prometheus", func(map[string]any) (coremetrics.MetricsSink, error) {
		return NewPromSink()
	})

	_ = coremetrics.RegisterMetricsSink("influx", func(conf map[string]any) (coremetrics.MetricsSink, error) {
		var c InfluxConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return OpenInfluxSink(c)
	})

	_ = coremetrics.RegisterMetricsSink("mqtt", func(conf map[string]any) (coremetrics.MetricsSink, error) {
		var c mqtt.Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		cli, err := mqtt.NewPahoClient(c)
		if err != nil {
			return nil, err
		}
		c.SetDefaults()
		return mqtt.NewDecisionPublisher(cli, c.TopicPrefix), nil
	})
}
