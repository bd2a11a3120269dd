// Command hazardsim runs flood, wind and thermal comfort scenarios over an
// urban grid domain and publishes the results.
//
// Usage:
//
//	hazardsim run                         # one batch, results under OUTPUT_DIR
//	hazardsim serve --interval 1h         # batch on a schedule behind the HTTP API
//	hazardsim validate-catalog scenarios.yaml
//	hazardsim history flood cloudburst    # outcomes of one scenario, needs DB_PATH
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/hazard-sim/internal/config"
	"github.com/couchcryptid/hazard-sim/internal/observability"
)

var (
	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "hazardsim",
	Short:         "Urban multi-hazard scenario simulator",
	Long:          "Simulates pluvial flooding, pedestrian-level wind and outdoor thermal comfort over a gridded urban domain.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		logger = observability.NewLogger(cfg)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd, serveCmd, validateCatalogCmd, historyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("hazardsim failed", "error", err)
		os.Exit(1)
	}
}
