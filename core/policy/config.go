package policy

import "fmt"

// Latency origin handling when the origin has no configured zone.
const (
	UnknownOriginAllow = "allow"
	UnknownOriginDeny  = "deny"
)

// ResidencyConfig maps a jurisdiction label value to the region prefix it
// allows.
type ResidencyConfig struct {
	Label   string            `json:"label"`
	Markers map[string]string `json:"markers"`
}

// Config is the static placement policy.
type Config struct {
	DefaultRegions  []string            `json:"default_regions"`
	GPUAvailability map[string][]string `json:"gpu_availability"`
	LatencyZones    map[string][]string `json:"latency_zones"`
	Residency       ResidencyConfig     `json:"residency"`
	// UnknownLatencyOrigin is "allow" (skip the latency stage) or "deny".
	UnknownLatencyOrigin string `json:"unknown_latency_origin"`
}

// DefaultConfig returns the built-in region catalogue.
func DefaultConfig() Config {
	return Config{
		DefaultRegions: []string{
			"us-east-1", "us-east-2", "us-west-2",
			"eu-central-1", "eu-west-1", "eu-west-2",
			"ap-south-1", "ap-northeast-1", "ap-southeast-2",
		},
		GPUAvailability: map[string][]string{
			"nvidia-tesla-t4": {"us-east-1", "us-west-2", "eu-central-1"},
			"nvidia-a100":     {"us-east-1"},
		},
		LatencyZones: map[string][]string{
			"ap-southeast-1": {"ap-south-1", "ap-northeast-1", "ap-southeast-2"},
		},
		Residency: ResidencyConfig{
			Label:   "data_residency",
			Markers: map[string]string{"gdpr": "eu-", "usa": "us-"},
		},
		UnknownLatencyOrigin: UnknownOriginAllow,
	}
}

// SetDefaults fills empty fields from DefaultConfig.
func (c *Config) SetDefaults() {
	def := DefaultConfig()
	if len(c.DefaultRegions) == 0 {
		c.DefaultRegions = def.DefaultRegions
	}
	if c.GPUAvailability == nil {
		c.GPUAvailability = def.GPUAvailability
	}
	if c.LatencyZones == nil {
		c.LatencyZones = def.LatencyZones
	}
	if c.Residency.Label == "" {
		c.Residency.Label = def.Residency.Label
	}
	if c.Residency.Markers == nil {
		c.Residency.Markers = def.Residency.Markers
	}
	if c.UnknownLatencyOrigin == "" {
		c.UnknownLatencyOrigin = UnknownOriginAllow
	}
}

// Validate checks the policy tables.
func (c Config) Validate() error {
	if len(c.DefaultRegions) == 0 {
		return fmt.Errorf("policy: default_regions is empty")
	}
	for gpu, regions := range c.GPUAvailability {
		if len(regions) == 0 {
			return fmt.Errorf("policy: gpu %s has no regions", gpu)
		}
	}
	for origin, regions := range c.LatencyZones {
		if len(regions) == 0 {
			return fmt.Errorf("policy: latency zone %s has no regions", origin)
		}
	}
	for marker, prefix := range c.Residency.Markers {
		if prefix == "" {
			return fmt.Errorf("policy: residency marker %s has empty prefix", marker)
		}
	}
	switch c.UnknownLatencyOrigin {
	case UnknownOriginAllow, UnknownOriginDeny:
	default:
		return fmt.Errorf("policy: unknown_latency_origin must be %q or %q", UnknownOriginAllow, UnknownOriginDeny)
	}
	return nil
}
