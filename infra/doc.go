// Package infra holds the technical adapters of the placement services:
// InfluxDB history and metrics, Prometheus, MQTT decision publishing, Sentry
// and zerolog. Adapters depend only on interfaces declared under core.
package infra
