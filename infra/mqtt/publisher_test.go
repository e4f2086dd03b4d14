package mqtt

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/greenplace/core/events"
)

type capturePublisher struct {
	topics   []string
	payloads [][]byte
}

func (c *capturePublisher) Publish(topic string, payload []byte) error {
	c.topics = append(c.topics, topic)
	c.payloads = append(c.payloads, payload)
	return nil
}

func TestDecisionPublisherAllowed(t *testing.T) {
	pub := &capturePublisher{}
	d := NewDecisionPublisher(pub, "")
	start := time.Date(2025, 6, 1, 15, 0, 0, 0, time.UTC)
	err := d.RecordPlacement(events.PlacementEvent{
		UID: "u1", Allowed: true, Region: "us-east-1", StartTime: start, AvgIntensity: 88.5, Time: start,
	})
	require.NoError(t, err)
	require.Len(t, pub.topics, 1)
	assert.Equal(t, "greenplace/decisions/us-east-1", pub.topics[0])

	var msg DecisionMessage
	require.NoError(t, json.Unmarshal(pub.payloads[0], &msg))
	assert.Equal(t, "u1", msg.UID)
	assert.Equal(t, "2025-06-01T15:00:00Z", msg.StartTime)
	assert.Equal(t, 88.5, msg.AvgIntensity)
}

func TestDecisionPublisherDenied(t *testing.T) {
	pub := &capturePublisher{}
	d := NewDecisionPublisher(pub, "cluster-a")
	require.NoError(t, d.RecordPlacement(events.PlacementEvent{UID: "u2", Reason: "policy: no eligible regions"}))
	assert.Equal(t, "cluster-a/decisions/denied", pub.topics[0])

	var msg DecisionMessage
	require.NoError(t, json.Unmarshal(pub.payloads[0], &msg))
	assert.False(t, msg.Allowed)
	assert.Empty(t, msg.StartTime)
	assert.Equal(t, "policy: no eligible regions", msg.Reason)
}
