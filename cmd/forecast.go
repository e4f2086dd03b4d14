package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/greenplace/core/forecast"
	"github.com/kilianp07/greenplace/core/model"
	"github.com/kilianp07/greenplace/core/prediction"
	"github.com/kilianp07/greenplace/core/scheduler"
	"github.com/kilianp07/greenplace/infra/logger"
	"github.com/kilianp07/greenplace/pkg/export"

	_ "github.com/kilianp07/greenplace/connectors/clients/intensity"
	_ "github.com/kilianp07/greenplace/infra/history"
)

var forecastOpts struct {
	regions  []string
	hours    int
	duration int
	format   string
	chart    string
}

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Print region forecasts from the configured provider",
	Long: `Fetch the intensity forecast of each region with the configured provider and
print it as CSV or JSON. --chart also writes an HTML line chart with the best
window for --duration hours.`,
	RunE: runForecast,
}

func init() {
	f := forecastCmd.Flags()
	f.StringSliceVar(&forecastOpts.regions, "regions", nil, "regions to forecast (default: scheduler default regions)")
	f.IntVar(&forecastOpts.hours, "hours", 24, "forecast horizon in hours")
	f.IntVar(&forecastOpts.duration, "duration", 4, "workload duration used to pick the best window")
	f.StringVar(&forecastOpts.format, "format", "csv", "output format: csv or json")
	f.StringVar(&forecastOpts.chart, "chart", "", "write an HTML chart to this file")
	rootCmd.AddCommand(forecastCmd)
}

func runForecast(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	provider, err := prediction.NewProvider(cfg.Provider)
	if err != nil {
		return err
	}
	defer func() { _ = prediction.Close(provider) }()
	regions := forecastOpts.regions
	if len(regions) == 0 {
		regions = cfg.Scheduler.Defaults.DefaultRegions
	}
	orch := forecast.NewOrchestrator(provider, logger.New("forecast"), nil)
	horizon := orch.ClampHorizon(forecastOpts.hours)

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()
	start := time.Now().UTC().Truncate(time.Hour)
	forecasts, err := orch.FetchAll(ctx, regions, horizon)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch forecastOpts.format {
	case "csv":
		err = export.WriteCSV(out, forecasts, start)
	case "json":
		err = export.WriteJSON(out, forecasts, start)
	default:
		return fmt.Errorf("unknown format %q", forecastOpts.format)
	}
	if err != nil || forecastOpts.chart == "" {
		return err
	}

	var best *model.ScheduleDecision
	opt := scheduler.NewOptimizerWithClock(func() time.Time { return start })
	if d, err := opt.Optimize(forecasts, forecastOpts.duration, horizon); err == nil {
		best = &d
	}
	f, err := os.Create(forecastOpts.chart)
	if err != nil {
		return err
	}
	if err := export.WriteChartHTML(f, forecasts, start, best); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
