package scheduler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the scheduling service defaults.
type Config struct {
	MaxHorizonHours      int      `json:"max_horizon_hours" yaml:"max_horizon_hours"`
	DefaultDeadlineHours int      `json:"default_deadline_hours" yaml:"default_deadline_hours"`
	DefaultDurationHours int      `json:"default_duration_hours" yaml:"default_duration_hours"`
	DefaultRegions       []string `json:"default_regions" yaml:"default_regions"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.MaxHorizonHours <= 0 {
		c.MaxHorizonHours = 96
	}
	if c.DefaultDeadlineHours <= 0 {
		c.DefaultDeadlineHours = 24
	}
	if c.DefaultDurationHours <= 0 {
		c.DefaultDurationHours = 4
	}
	if len(c.DefaultRegions) == 0 {
		c.DefaultRegions = []string{"eu-west-1", "us-east-2", "ap-northeast-1"}
	}
}

// Validate checks the configured defaults.
func (c Config) Validate() error {
	if c.DefaultDurationHours > c.MaxHorizonHours {
		return fmt.Errorf("default_duration_hours %d exceeds max_horizon_hours %d", c.DefaultDurationHours, c.MaxHorizonHours)
	}
	for _, r := range c.DefaultRegions {
		if strings.TrimSpace(r) == "" {
			return errors.New("default_regions contains an empty region")
		}
	}
	return nil
}

// LoadConfig loads Config from a JSON or YAML file.
func LoadConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return DecodeConfig(f, ext)
}

// DecodeConfig reads from r to decode a Config. Defaults are applied to the
// result.
func DecodeConfig(r io.Reader, format string) (Config, error) {
	var cfg Config
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.NewDecoder(r).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return cfg, err
		}
	case "json":
		if err := json.NewDecoder(r).Decode(&cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config format: %s", format)
	}
	cfg.SetDefaults()
	return cfg, cfg.Validate()
}
