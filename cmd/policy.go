package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kilianp07/greenplace/core/model"
	"github.com/kilianp07/greenplace/core/policy"
	"github.com/kilianp07/greenplace/infra/logger"
)

var policyOpts struct {
	gpu       string
	latency   string
	residency string
	labels    []string
}

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Show the eligible regions for a workload",
	RunE:  runPolicy,
}

func init() {
	f := policyCmd.Flags()
	f.StringVar(&policyOpts.gpu, "gpu", "", "requested GPU type")
	f.StringVar(&policyOpts.latency, "latency-from", "", "latency origin region")
	f.StringVar(&policyOpts.residency, "residency", "", "data residency marker, e.g. gdpr")
	f.StringSliceVar(&policyOpts.labels, "label", nil, "object label as key=value, repeatable")
	rootCmd.AddCommand(policyCmd)
}

func runPolicy(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	req := model.WorkloadRequest{
		DurationHours: 1,
		GPUType:       policyOpts.gpu,
		LatencyOrigin: policyOpts.latency,
		Labels:        map[string]string{},
	}
	for _, l := range policyOpts.labels {
		k, v, ok := strings.Cut(l, "=")
		if !ok {
			return fmt.Errorf("label %q is not key=value", l)
		}
		req.Labels[k] = v
	}
	if policyOpts.residency != "" {
		req.Labels[cfg.Policy.Residency.Label] = policyOpts.residency
	}
	f := policy.NewFilter(cfg.Policy, logger.New("policy"))
	regions, stages, err := f.Trace("cli", nil, req)
	out := cmd.OutOrStdout()
	for _, s := range stages {
		fmt.Fprintf(out, "%-10s %s\n", s.Name, strings.Join(s.Regions, ","))
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%-10s %s\n", "eligible", strings.Join(regions, ","))
	return nil
}
