// Package config loads the greenplace configuration from a YAML or JSON file
// with GP_ environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/greenplace/connectors/scheduling"
	"github.com/kilianp07/greenplace/core/audit"
	"github.com/kilianp07/greenplace/core/factory"
	"github.com/kilianp07/greenplace/core/metrics"
	"github.com/kilianp07/greenplace/core/policy"
	"github.com/kilianp07/greenplace/infra/mqtt"
)

// EnvPrefix prefixes environment overrides. GP_WEBHOOK__ADDR sets webhook.addr.
const EnvPrefix = "GP_"

type Config struct {
	Webhook         WebhookConfig     `json:"webhook"`
	Scheduler       SchedulerConfig   `json:"scheduler"`
	SchedulerClient scheduling.Config `json:"scheduler_client"`
	Policy          policy.Config     `json:"policy"`
	// Provider selects the forecast provider: seasonal, static or http.
	Provider factory.ModuleConfig `json:"provider"`
	Metrics  metrics.Config       `json:"metrics"`
	Audit    audit.Config         `json:"audit"`
	MQTT     mqtt.Config          `json:"mqtt"`
	Sentry   SentryConfig         `json:"sentry"`
}

// Load reads path (YAML or JSON by extension) and applies environment
// overrides. An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		ext := strings.ToLower(filepath.Ext(path))
		var parser koanf.Parser
		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	if err := cfg.finish(filepath.Dir(path)); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps GP_SCHEDULER_CLIENT__TIMEOUT_SECONDS to
// scheduler_client.timeout_seconds.
func envKey(s string) string {
	s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// finish applies defaults and validates every section.
func (c *Config) finish(baseDir string) error {
	if c.Scheduler.ConfigFile != "" {
		p := c.Scheduler.ConfigFile
		if !filepath.IsAbs(p) && baseDir != "" {
			if _, err := os.Stat(p); err != nil {
				p = filepath.Join(baseDir, p)
			}
		}
		if err := c.Scheduler.loadDefaultsFile(p); err != nil {
			return err
		}
	}
	c.Webhook.SetDefaults()
	c.Scheduler.SetDefaults()
	c.SchedulerClient.SetDefaults()
	c.Policy.SetDefaults()
	c.Audit.SetDefaults()
	c.Sentry.SetDefaults()
	if c.MQTT.Enabled() {
		c.MQTT.SetDefaults()
	}
	return c.Validate()
}

// Validate checks each section and the cross-section constraints.
func (c Config) Validate() error {
	if err := c.Webhook.Validate(); err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	if err := c.Scheduler.Validate(); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	if err := c.SchedulerClient.Validate(); err != nil {
		return err
	}
	if c.SchedulerClient.TimeoutSeconds >= c.Webhook.RequestTimeoutSeconds {
		return fmt.Errorf("scheduler_client.timeout_seconds (%d) must be lower than webhook.request_timeout_seconds (%d)",
			c.SchedulerClient.TimeoutSeconds, c.Webhook.RequestTimeoutSeconds)
	}
	if err := c.Policy.Validate(); err != nil {
		return err
	}
	if err := c.Audit.Validate(); err != nil {
		return fmt.Errorf("audit: %w", err)
	}
	return nil
}
