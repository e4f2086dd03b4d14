package prediction

import (
	"fmt"

	"github.com/kilianp07/greenplace/core/factory"
)

var (
	providerRegistry = factory.NewRegistry[Provider]()
	sourceRegistry   = factory.NewRegistry[HistorySource]()
)

// RegisterProvider adds a provider factory identified by name.
func RegisterProvider(name string, f factory.Factory[Provider]) error {
	return providerRegistry.Register(name, f)
}

// RegisterHistorySource adds a history source factory identified by name.
func RegisterHistorySource(name string, f factory.Factory[HistorySource]) error {
	return sourceRegistry.Register(name, f)
}

// NewProvider creates the provider described by cfg. An empty type selects
// the seasonal provider over the synthetic source.
func NewProvider(cfg factory.ModuleConfig) (Provider, error) {
	if cfg.Type == "" {
		cfg.Type = "seasonal"
	}
	p, err := providerRegistry.Create(cfg)
	if err != nil {
		return nil, fmt.Errorf("forecast provider: %w", err)
	}
	return p, nil
}

type seasonalConf struct {
	Source       factory.ModuleConfig `json:"source"`
	ContextHours int                  `json:"context_hours"`
	MaxHorizon   int                  `json:"max_horizon_hours"`
}

type staticConf struct {
	Series     map[string][]float64 `json:"series"`
	MaxHorizon int                  `json:"max_horizon_hours"`
}

func init() {
	_ = RegisterHistorySource("synthetic", func(conf map[string]any) (HistorySource, error) {
		var c struct {
			Base float64 `json:"base"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewSyntheticSource(c.Base), nil
	})

	_ = RegisterProvider("seasonal", func(conf map[string]any) (Provider, error) {
		var c seasonalConf
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Source.Type == "" {
			c.Source.Type = "synthetic"
		}
		src, err := sourceRegistry.Create(c.Source)
		if err != nil {
			return nil, fmt.Errorf("history source: %w", err)
		}
		return NewSeasonalProvider(src, c.ContextHours, c.MaxHorizon), nil
	})

	_ = RegisterProvider("static", func(conf map[string]any) (Provider, error) {
		var c staticConf
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewStaticProvider(c.Series, c.MaxHorizon), nil
	})
}
