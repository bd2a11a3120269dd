package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/hazard-sim/internal/adapter/sqlite"
	"github.com/couchcryptid/hazard-sim/internal/domain"
)

var historyLimit int

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 10, "number of entries to show")
}

var historyCmd = &cobra.Command{
	Use:   "history [module key]",
	Short: "Show recorded runs, or the outcomes of one scenario across runs",
	Long:  "Reads the SQLite run history at DB_PATH.",
	Args: cobra.MatchAll(cobra.RangeArgs(0, 2), func(_ *cobra.Command, args []string) error {
		if len(args) == 1 {
			return errors.New("give both a module and a scenario key, or neither")
		}
		return nil
	}),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.DBPath == "" {
			return errors.New("DB_PATH is not set")
		}
		if historyLimit < 1 {
			return fmt.Errorf("invalid --limit %d", historyLimit)
		}
		db, err := sqlite.Open(cfg.DBPath, logger)
		if err != nil {
			return err
		}
		defer db.Close()

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		if len(args) == 0 {
			runs, err := db.RecentRuns(cmd.Context(), historyLimit)
			if err != nil {
				return err
			}
			fmt.Fprintln(tw, "RUN\tFINISHED\tLOCATION\tSUCCEEDED\tFAILED\tREJECTED\tCANCELLED")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
					r.RunID, r.FinishedAt.Format(time.RFC3339), r.Location, r.Succeeded, r.Failed, r.Rejected, r.Cancelled)
			}
			return tw.Flush()
		}

		m, err := domain.ParseModule(args[0])
		if err != nil {
			return err
		}
		rows, err := db.ScenarioHistory(cmd.Context(), m, domain.Slug(args[1]), historyLimit)
		if err != nil {
			return err
		}
		fmt.Fprintln(tw, "RUN\tFINISHED\tSTATUS\tITERATIONS\tDURATION\tERROR")
		for _, r := range rows {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
				r.RunID, r.FinishedAt.Format(time.RFC3339), r.Status, r.Iterations,
				time.Duration(r.DurationMS)*time.Millisecond, r.Error)
		}
		return tw.Flush()
	},
}
