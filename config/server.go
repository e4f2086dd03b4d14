package config

import (
	"fmt"

	"github.com/kilianp07/greenplace/core/scheduler"
)

// WebhookConfig configures the admission webhook server.
type WebhookConfig struct {
	Addr string `json:"addr"`
	// TLSCertFile and TLSKeyFile enable HTTPS; the API server only calls
	// webhooks over TLS.
	TLSCertFile           string `json:"tls_cert_file"`
	TLSKeyFile            string `json:"tls_key_file"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds"`
	// DefaultDurationHours applies when the object has no duration.
	DefaultDurationHours int `json:"default_duration_hours"`
	// DeadlineHours is sent to the scheduling service with every request.
	DeadlineHours int `json:"deadline_hours"`
}

func (c *WebhookConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8443"
	}
	if c.RequestTimeoutSeconds <= 0 {
		c.RequestTimeoutSeconds = 10
	}
	if c.DefaultDurationHours <= 0 {
		c.DefaultDurationHours = 4
	}
	if c.DeadlineHours <= 0 {
		c.DeadlineHours = 48
	}
}

func (c WebhookConfig) Validate() error {
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return fmt.Errorf("tls_cert_file and tls_key_file must be set together")
	}
	return nil
}

// SchedulerConfig configures the scheduling service.
type SchedulerConfig struct {
	Addr                  string `json:"addr"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds"`
	// ConfigFile optionally points at a standalone YAML or JSON file holding
	// the scheduling defaults. Inline defaults take precedence.
	ConfigFile string           `json:"config_file"`
	Defaults   scheduler.Config `json:"defaults"`
}

func (c *SchedulerConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":5001"
	}
	if c.RequestTimeoutSeconds <= 0 {
		c.RequestTimeoutSeconds = 30
	}
	c.Defaults.SetDefaults()
}

func (c SchedulerConfig) Validate() error {
	return c.Defaults.Validate()
}

func (c *SchedulerConfig) loadDefaultsFile(path string) error {
	file, err := scheduler.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("scheduler config file: %w", err)
	}
	d := &c.Defaults
	if d.MaxHorizonHours <= 0 {
		d.MaxHorizonHours = file.MaxHorizonHours
	}
	if d.DefaultDeadlineHours <= 0 {
		d.DefaultDeadlineHours = file.DefaultDeadlineHours
	}
	if d.DefaultDurationHours <= 0 {
		d.DefaultDurationHours = file.DefaultDurationHours
	}
	if len(d.DefaultRegions) == 0 {
		d.DefaultRegions = file.DefaultRegions
	}
	return nil
}
