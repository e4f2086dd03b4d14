package metrics

// Package metrics defines interfaces for recording placement metrics. Sinks
// like PromSink and InfluxSink record placement decisions, scheduling
// outcomes and forecast fetch latency, and can be combined with
// NewMultiSink. The factory helpers return a MultiSink automatically when
// multiple sinks are configured.
