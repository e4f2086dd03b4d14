// Package policy reduces the candidate region set of a workload through the
// GPU, data residency and latency stages.
package policy

import (
	"strings"

	"github.com/kilianp07/greenplace/core/logger"
	"github.com/kilianp07/greenplace/core/model"
)

// Reasons carried by PolicyError.
const (
	ReasonUnsupportedGPU = "unsupported GPU type"
	ReasonNoRegions      = "no eligible regions"
	ReasonUnknownOrigin  = "unknown latency origin"
)

// Filter applies the placement policy. It holds no per-request state and is
// safe for concurrent use.
type Filter struct {
	cfg Config
	log logger.Logger
}

// NewFilter returns a Filter for cfg. Missing tables are filled with defaults.
func NewFilter(cfg Config, log logger.Logger) *Filter {
	cfg.SetDefaults()
	return &Filter{cfg: cfg, log: log}
}

// Stage is the region set left after one policy stage.
type Stage struct {
	Name    string   `json:"name"`
	Regions []string `json:"regions"`
}

// Apply returns the regions of base (or the configured defaults when base is
// empty) that satisfy every stage. The order of base is kept.
func (f *Filter) Apply(uid string, base []string, req model.WorkloadRequest) ([]string, error) {
	regions, _, err := f.Trace(uid, base, req)
	return regions, err
}

// Trace is Apply that also returns the set after every stage that ran, in
// order. The trace is returned on failure too.
func (f *Filter) Trace(uid string, base []string, req model.WorkloadRequest) ([]string, []Stage, error) {
	var trace []Stage
	audit := func(stage string, regions []string) {
		trace = append(trace, Stage{Name: stage, Regions: regions})
		f.log.Debugw("policy stage applied", map[string]any{
			"uid":     uid,
			"stage":   stage,
			"regions": regions,
		})
	}

	regions := base
	if len(regions) == 0 {
		regions = f.cfg.DefaultRegions
	}
	regions = dedupe(regions)
	audit("base", regions)

	if req.GPUType != "" {
		supported, ok := f.cfg.GPUAvailability[req.GPUType]
		if !ok {
			f.log.Warnf("[uid %s] unsupported gpu type %q", uid, req.GPUType)
			return nil, trace, &model.PolicyError{Reason: ReasonUnsupportedGPU}
		}
		regions = intersect(regions, supported)
		audit("gpu", regions)
		if len(regions) == 0 {
			return nil, trace, &model.PolicyError{Reason: ReasonNoRegions}
		}
	}

	if prefix, ok := f.cfg.Residency.Markers[req.Labels[f.cfg.Residency.Label]]; ok {
		regions = withPrefix(regions, prefix)
		audit("residency", regions)
		if len(regions) == 0 {
			return nil, trace, &model.PolicyError{Reason: ReasonNoRegions}
		}
	}

	if req.LatencyOrigin != "" {
		zone, ok := f.cfg.LatencyZones[req.LatencyOrigin]
		switch {
		case ok:
			regions = intersect(regions, zone)
			audit("latency", regions)
		case f.cfg.UnknownLatencyOrigin == UnknownOriginDeny:
			return nil, trace, &model.PolicyError{Reason: ReasonUnknownOrigin}
		default:
			f.log.Warnf("[uid %s] no latency zone for origin %q, skipping latency stage", uid, req.LatencyOrigin)
		}
	}

	if len(regions) == 0 {
		return nil, trace, &model.PolicyError{Reason: ReasonNoRegions}
	}
	return regions, trace, nil
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, r := range in {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}

func intersect(regions, allowed []string) []string {
	set := make(map[string]struct{}, len(allowed))
	for _, r := range allowed {
		set[r] = struct{}{}
	}
	out := make([]string, 0, len(regions))
	for _, r := range regions {
		if _, ok := set[r]; ok {
			out = append(out, r)
		}
	}
	return out
}

func withPrefix(regions []string, prefix string) []string {
	out := make([]string, 0, len(regions))
	for _, r := range regions {
		if strings.HasPrefix(r, prefix) {
			out = append(out, r)
		}
	}
	return out
}
