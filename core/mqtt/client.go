package mqtt

// Publisher sends payloads to an MQTT broker.
type Publisher interface {
	// Publish sends payload to topic, retrying transient failures.
	Publish(topic string, payload []byte) error
}
