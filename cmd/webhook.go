package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kilianp07/greenplace/app"
)

var webhookCmd = &cobra.Command{
	Use:   "webhook",
	Short: "Run the mutating admission webhook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		svc, err := app.NewWebhook(cfg)
		if err != nil {
			return err
		}
		return runService(svc, "webhook")
	},
}

var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run the carbon-aware scheduling service",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		svc, err := app.NewScheduler(cfg)
		if err != nil {
			return err
		}
		return runService(svc, "scheduler")
	},
}

func init() {
	rootCmd.AddCommand(webhookCmd, schedulerCmd)
}
