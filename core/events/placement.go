package events

import "time"

// PlacementEvent is published by the webhook for every admission review.
type PlacementEvent struct {
	UID          string
	Allowed      bool
	Region       string
	StartTime    time.Time
	AvgIntensity float64
	Eligible     []string
	ErrorKind    string
	Reason       string
	Latency      time.Duration
	Time         time.Time
}

// ScheduleEvent is published by the scheduling service for every request.
type ScheduleEvent struct {
	Region        string
	DurationHours int
	HorizonHours  int
	Regions       int
	AvgIntensity  float64
	ErrorKind     string
	Latency       time.Duration
	Time          time.Time
}
