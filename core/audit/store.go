// Package audit persists one record per placement decision and serves them
// back by time range, region and outcome.
package audit

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/greenplace/core/policy"
)

// Record captures one intercepted workload and what was decided for it.
type Record struct {
	ID            string            `json:"id"`
	Timestamp     time.Time         `json:"timestamp"`
	UID           string            `json:"uid"`
	DurationHours int               `json:"duration_hours,omitempty"`
	GPUType       string            `json:"gpu_type,omitempty"`
	LatencyOrigin string            `json:"latency_origin,omitempty"`
	Labels        map[string]string `json:"labels,omitempty"`
	Stages        []policy.Stage    `json:"stages,omitempty"`
	Allowed       bool              `json:"allowed"`
	Region        string            `json:"region,omitempty"`
	StartTime     string            `json:"start_time,omitempty"`
	AvgIntensity  float64           `json:"avg_intensity,omitempty"`
	ErrorKind     string            `json:"error_kind,omitempty"`
	Reason        string            `json:"reason,omitempty"`
}

// NewRecord returns a record with a fresh ID stamped at now.
func NewRecord(uid string, now time.Time) Record {
	return Record{ID: uuid.NewString(), Timestamp: now.UTC(), UID: uid}
}

// Eligible returns the region set left after the last policy stage.
func (r Record) Eligible() []string {
	if len(r.Stages) == 0 {
		return nil
	}
	return r.Stages[len(r.Stages)-1].Regions
}

// Query filters stored records. Zero fields match everything.
type Query struct {
	Start   time.Time
	End     time.Time
	Region  string
	Allowed *bool
}

// Matches reports whether r satisfies every set filter.
func (q Query) Matches(r Record) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.Allowed != nil && r.Allowed != *q.Allowed {
		return false
	}
	if q.Region != "" && r.Region != q.Region && !slices.Contains(r.Eligible(), q.Region) {
		return false
	}
	return true
}

// Store persists Records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// NopStore drops every record.
type NopStore struct{}

func (NopStore) Append(context.Context, Record) error          { return nil }
func (NopStore) Query(context.Context, Query) ([]Record, error) { return nil, nil }
func (NopStore) Close() error                                   { return nil }
