package events

import "time"

// ForecastFetchEvent is published once per region forecast fetch.
type ForecastFetchEvent struct {
	Region  string
	Latency time.Duration
	Err     error
}

// FetchPublisher forwards forecast fetch observations to a bus.
type FetchPublisher struct {
	Bus Bus
}

// ObserveFetch publishes a ForecastFetchEvent. A nil bus drops the event.
func (p FetchPublisher) ObserveFetch(region string, d time.Duration, err error) {
	if p.Bus == nil {
		return
	}
	p.Bus.Publish(ForecastFetchEvent{Region: region, Latency: d, Err: err})
}
