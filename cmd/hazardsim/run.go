package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/hazard-sim/internal/domain"
	"github.com/couchcryptid/hazard-sim/internal/observability"
)

var strict bool

func init() {
	runCmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when any scenario does not succeed")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scenario catalog once and publish the results",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runOnce(ctx)
	},
}

func runOnce(ctx context.Context) error {
	g, cat, err := loadInputs()
	if err != nil {
		return err
	}
	a, err := newApp(observability.NewMetrics())
	if err != nil {
		return err
	}
	defer a.close()

	res, err := a.pipeline.Run(ctx, g, cat)
	if err != nil {
		return err
	}

	report := res.Report()
	fmt.Printf("run %s: %d succeeded, %d failed, %d rejected, %d cancelled; results in %s\n",
		report.RunID,
		report.Count(domain.StatusSucceeded),
		report.Count(domain.StatusFailed),
		report.Count(domain.StatusRejected),
		report.Count(domain.StatusCancelled),
		cfg.OutputDir,
	)
	if strict && report.Count(domain.StatusSucceeded) != len(report.Results) {
		return fmt.Errorf("run %s: %d of %d scenarios did not succeed",
			report.RunID, len(report.Results)-report.Count(domain.StatusSucceeded), len(report.Results))
	}
	return nil
}
