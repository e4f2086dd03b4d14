package mqtt

import (
	"encoding/json"
	"time"

	"github.com/kilianp07/greenplace/core/events"
	coremqtt "github.com/kilianp07/greenplace/core/mqtt"
)

// DecisionMessage is the JSON payload of a placement notification.
type DecisionMessage struct {
	UID          string    `json:"uid"`
	Allowed      bool      `json:"allowed"`
	Region       string    `json:"region,omitempty"`
	StartTime    string    `json:"start_time,omitempty"`
	AvgIntensity float64   `json:"avg_intensity,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// DecisionPublisher publishes placement decisions to
// <prefix>/decisions/<region>; denials go to <prefix>/decisions/denied.
type DecisionPublisher struct {
	pub    coremqtt.Publisher
	prefix string
}

// NewDecisionPublisher returns a sink publishing through pub.
func NewDecisionPublisher(pub coremqtt.Publisher, prefix string) *DecisionPublisher {
	if prefix == "" {
		prefix = "greenplace"
	}
	return &DecisionPublisher{pub: pub, prefix: prefix}
}

// Topic returns the topic a placement event is published to.
func (d *DecisionPublisher) Topic(ev events.PlacementEvent) string {
	if !ev.Allowed || ev.Region == "" {
		return d.prefix + "/decisions/denied"
	}
	return d.prefix + "/decisions/" + ev.Region
}

// RecordPlacement implements core/metrics.MetricsSink.
func (d *DecisionPublisher) RecordPlacement(ev events.PlacementEvent) error {
	msg := DecisionMessage{
		UID:       ev.UID,
		Allowed:   ev.Allowed,
		Region:    ev.Region,
		Reason:    ev.Reason,
		Timestamp: ev.Time,
	}
	if ev.Allowed {
		msg.StartTime = ev.StartTime.UTC().Format(time.RFC3339)
		msg.AvgIntensity = ev.AvgIntensity
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return d.pub.Publish(d.Topic(ev), payload)
}
