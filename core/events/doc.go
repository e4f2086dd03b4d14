// Package events defines the placement events emitted on the event bus.
//
// Available event types:
//   - PlacementEvent: outcome of one intercepted object (webhook)
//   - ScheduleEvent: outcome of one scheduling request (scheduler)
//   - ForecastFetchEvent: latency and outcome of one region forecast fetch
package events
