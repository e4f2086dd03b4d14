package model

import (
	"errors"
	"fmt"
)

// ErrNoScheduleFound is returned when no window of the requested duration fits
// in the horizon of any eligible region.
var ErrNoScheduleFound = errors.New("no schedule found")

// PolicyError reports a hard policy failure: an unsupported GPU type or an
// empty eligible region set.
type PolicyError struct {
	Reason string
}

func (e *PolicyError) Error() string { return "policy: " + e.Reason }

// ProviderError reports a missing or malformed forecast for a region.
type ProviderError struct {
	Region string
	Err    error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("forecast for %s: %v", e.Region, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// RPCError reports a failed call to the scheduling service. Status is zero
// when no HTTP response was received.
type RPCError struct {
	Status int
	Err    error
}

func (e *RPCError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("scheduling rpc: status %d: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("scheduling rpc: %v", e.Err)
}

func (e *RPCError) Unwrap() error { return e.Err }

// ValidationError reports a malformed inbound request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid request: " + e.Reason
	}
	return fmt.Sprintf("invalid request: %s %s", e.Field, e.Reason)
}

// Kind names the error class for metrics labels and audit records.
func Kind(err error) string {
	var (
		pe *PolicyError
		fe *ProviderError
		re *RPCError
		ve *ValidationError
	)
	switch {
	case err == nil:
		return "none"
	case errors.As(err, &pe):
		return "policy"
	case errors.As(err, &fe):
		return "provider"
	case errors.As(err, &re):
		return "rpc"
	case errors.As(err, &ve):
		return "validation"
	case errors.Is(err, ErrNoScheduleFound):
		return "no_schedule"
	default:
		return "internal"
	}
}
