package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/hazard-sim/internal/domain"
)

var validateCatalogCmd = &cobra.Command{
	Use:   "validate-catalog [catalog.yaml]",
	Short: "Check a scenario catalog without running it",
	Long: "Parses the catalog (SCENARIO_CATALOG when no path is given) and checks every " +
		"scenario against its forcing ranges and the reference wind scenario.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		path := cfg.ScenarioCatalog
		if len(args) == 1 {
			path = args[0]
		}
		cat, err := loadCatalog(path)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "MODULE\tKEY\tNAME\tRESULT")
		invalid := 0
		for _, s := range cat.Scenarios {
			result := "ok"
			if err := s.Validate(); err != nil {
				result = err.Error()
				invalid++
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Module(), s.Key(), s.Name, result)
		}
		if err := tw.Flush(); err != nil {
			return err
		}

		if len(cat.ByModule(domain.ModuleThermal)) > 0 {
			ref := cat.ReferenceWindKey()
			if _, ok := cat.Find(domain.ModuleWind, ref); !ok {
				invalid++
				fmt.Printf("\nthermal scenarios need a wind field: reference wind scenario %q is not in the catalog\n", ref)
			}
		}

		if invalid > 0 {
			return fmt.Errorf("%d of %d catalog entries are invalid", invalid, len(cat.Scenarios))
		}
		fmt.Printf("\n%d scenarios valid\n", len(cat.Scenarios))
		return nil
	},
}
