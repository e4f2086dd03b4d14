package policy

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kilianp07/greenplace/core/model"
	"github.com/kilianp07/greenplace/infra/logger"
)

func newTestFilter(mut func(*Config)) *Filter {
	cfg := DefaultConfig()
	if mut != nil {
		mut(&cfg)
	}
	return NewFilter(cfg, logger.NopLogger{})
}

func policyReason(t *testing.T, err error) string {
	t.Helper()
	var pe *model.PolicyError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PolicyError, got %v", err)
	}
	return pe.Reason
}

func TestApplyNoConstraintsReturnsDefaults(t *testing.T) {
	f := newTestFilter(nil)
	got, err := f.Apply("uid", nil, model.WorkloadRequest{DurationHours: 1})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if diff := cmp.Diff(DefaultConfig().DefaultRegions, got); diff != "" {
		t.Fatalf("regions mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyGPU(t *testing.T) {
	f := newTestFilter(nil)
	base := []string{"eu-central-1", "us-west-2", "ap-south-1", "us-east-1"}
	got, err := f.Apply("uid", base, model.WorkloadRequest{GPUType: "nvidia-tesla-t4"})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	want := []string{"eu-central-1", "us-west-2", "us-east-1"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("gpu stage mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyUnsupportedGPU(t *testing.T) {
	f := newTestFilter(nil)
	_, err := f.Apply("uid", nil, model.WorkloadRequest{GPUType: "tpu-v5"})
	if reason := policyReason(t, err); reason != ReasonUnsupportedGPU {
		t.Fatalf("reason %q", reason)
	}
}

func TestApplyGPUEmptyIntersection(t *testing.T) {
	f := newTestFilter(nil)
	_, err := f.Apply("uid", []string{"eu-west-1"}, model.WorkloadRequest{GPUType: "nvidia-a100"})
	if reason := policyReason(t, err); reason != ReasonNoRegions {
		t.Fatalf("reason %q", reason)
	}
}

func TestApplyResidency(t *testing.T) {
	f := newTestFilter(nil)
	cases := []struct {
		label string
		want  []string
	}{
		{"gdpr", []string{"eu-central-1", "eu-west-1", "eu-west-2"}},
		{"usa", []string{"us-east-1", "us-east-2", "us-west-2"}},
		{"apac", DefaultConfig().DefaultRegions},
		{"", DefaultConfig().DefaultRegions},
	}
	for _, c := range cases {
		req := model.WorkloadRequest{Labels: map[string]string{"data_residency": c.label}}
		got, err := f.Apply("uid", nil, req)
		if err != nil {
			t.Fatalf("%s: %v", c.label, err)
		}
		if diff := cmp.Diff(c.want, got); diff != "" {
			t.Errorf("%s mismatch (-want +got):\n%s", c.label, diff)
		}
	}
}

func TestApplyResidencyAbsentLabels(t *testing.T) {
	f := newTestFilter(nil)
	got, err := f.Apply("uid", []string{"ap-south-1"}, model.WorkloadRequest{})
	if err != nil || len(got) != 1 {
		t.Fatalf("unexpected %v %v", got, err)
	}
}

func TestApplyGPUThenGDPRIsEmpty(t *testing.T) {
	f := newTestFilter(nil)
	req := model.WorkloadRequest{GPUType: "nvidia-a100", Labels: map[string]string{"data_residency": "gdpr"}}
	_, err := f.Apply("uid", nil, req)
	if reason := policyReason(t, err); reason != ReasonNoRegions {
		t.Fatalf("reason %q", reason)
	}
}

func TestApplyLatency(t *testing.T) {
	f := newTestFilter(nil)
	got, err := f.Apply("uid", nil, model.WorkloadRequest{LatencyOrigin: "ap-southeast-1"})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	want := []string{"ap-south-1", "ap-northeast-1", "ap-southeast-2"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("latency mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyLatencyEmptyIntersection(t *testing.T) {
	f := newTestFilter(nil)
	req := model.WorkloadRequest{LatencyOrigin: "ap-southeast-1", Labels: map[string]string{"data_residency": "usa"}}
	_, err := f.Apply("uid", nil, req)
	if reason := policyReason(t, err); reason != ReasonNoRegions {
		t.Fatalf("reason %q", reason)
	}
}

func TestApplyUnknownLatencyOriginFailsOpen(t *testing.T) {
	f := newTestFilter(nil)
	got, err := f.Apply("uid", []string{"eu-west-1"}, model.WorkloadRequest{LatencyOrigin: "sa-east-1"})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if diff := cmp.Diff([]string{"eu-west-1"}, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyUnknownLatencyOriginDeny(t *testing.T) {
	f := newTestFilter(func(c *Config) { c.UnknownLatencyOrigin = UnknownOriginDeny })
	_, err := f.Apply("uid", nil, model.WorkloadRequest{LatencyOrigin: "sa-east-1"})
	if reason := policyReason(t, err); reason != ReasonUnknownOrigin {
		t.Fatalf("reason %q", reason)
	}
}

func TestApplyDeduplicatesBase(t *testing.T) {
	f := newTestFilter(nil)
	got, err := f.Apply("uid", []string{"eu-west-1", "eu-west-1", "us-east-1"}, model.WorkloadRequest{})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if diff := cmp.Diff([]string{"eu-west-1", "us-east-1"}, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	bad := DefaultConfig()
	bad.UnknownLatencyOrigin = "maybe"
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected error for unknown latency policy")
	}
	bad = DefaultConfig()
	bad.GPUAvailability["h100"] = nil
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected error for empty gpu regions")
	}
	bad = DefaultConfig()
	bad.LatencyZones["ap-southeast-1"] = []string{}
	if err := bad.Validate(); err == nil || !strings.Contains(err.Error(), "latency zone ap-southeast-1") {
		t.Fatalf("expected error for empty latency zone, got %v", err)
	}
	var empty Config
	empty.SetDefaults()
	if err := empty.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}
