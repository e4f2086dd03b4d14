package model

import "time"

// WorkloadRequest describes the placement needs of one intercepted object.
type WorkloadRequest struct {
	// DurationHours is the expected run time of the workload.
	DurationHours int
	// GPUType is the requested accelerator type. Empty means no GPU.
	GPUType string
	// LatencyOrigin is the region the workload must stay close to. Empty means
	// no latency constraint.
	LatencyOrigin string
	// Labels are the object labels; residency is read from them.
	Labels map[string]string
}

// Validate checks the request invariants.
func (r WorkloadRequest) Validate() error {
	if r.DurationHours <= 0 {
		return &ValidationError{Field: "duration_hours", Reason: "must be a positive number of hours"}
	}
	return nil
}

// Constraints is the search space handed to the scheduling service.
type Constraints struct {
	// EligibleRegions keeps the order produced by the policy filter; the
	// optimizer breaks ties on that order.
	EligibleRegions []string
	// DeadlineHours bounds the start of the execution window.
	DeadlineHours int
}

// RegionForecast is a fixed-horizon intensity sequence for one region.
type RegionForecast struct {
	Region string
	Values []float64
}

// ScheduleDecision is the selected region and execution slot.
type ScheduleDecision struct {
	Region       string
	StartOffset  int
	AvgIntensity float64
	StartTime    time.Time
}

// StartTimeUTC formats the start time the way both the scheduling API and the
// JSON patch expect it.
func (d ScheduleDecision) StartTimeUTC() string {
	return d.StartTime.UTC().Format(time.RFC3339)
}

// PatchOperation is a single JSON Patch operation.
type PatchOperation struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value"`
}

// MutationResponse is the outcome of one interception before it is wrapped in
// the admission envelope.
type MutationResponse struct {
	UID     string
	Allowed bool
	Patch   []PatchOperation
	Reason  string
}
