package events

import "github.com/kilianp07/greenplace/internal/eventbus"

// Event is implemented by every value published on the placement bus.
type Event interface {
	Kind() string
}

// Kind implements Event.
func (PlacementEvent) Kind() string { return "placement" }

// Kind implements Event.
func (ScheduleEvent) Kind() string { return "schedule" }

// Kind implements Event.
func (ForecastFetchEvent) Kind() string { return "forecast_fetch" }

// Bus carries placement, schedule and forecast fetch events.
type Bus = eventbus.EventBus[Event]

// NewBus returns a bus with the default subscriber buffer.
func NewBus() *eventbus.Bus[Event] { return eventbus.New[Event](eventbus.DefaultBuffer) }
