package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/greenplace/config"
	coremon "github.com/kilianp07/greenplace/core/monitoring"
	"github.com/kilianp07/greenplace/infra/logger"
	"github.com/kilianp07/greenplace/infra/monitoring"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:          "greenplace",
	Short:        "Carbon-aware placement webhook and scheduling service",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

// loadConfig reads the configuration and installs the error monitor. A
// missing default config file falls back to defaults and environment.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := cfgPath
	if _, err := os.Stat(path); os.IsNotExist(err) && !cmd.Flags().Changed("config") {
		path = ""
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		logger.New("main").Warnf("sentry disabled: %v", err)
	} else {
		coremon.Init(mon)
	}
	return cfg, nil
}

type service interface {
	Run(ctx context.Context) error
	Close() error
}

// runService runs svc until SIGINT or SIGTERM.
func runService(svc service, name string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer coremon.Flush(2 * time.Second)
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("%s close: %v", name, err)
		}
	}()
	return svc.Run(ctx)
}
