package main

import (
	"fmt"
	"os"

	"github.com/aretw0/s3conform"
	"github.com/aretw0/s3conform/internal/expansion"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load, expand and check suites without running them",
	Long: `Decodes every suite source and prints how many linear suites each one expands to.
Every case is then checked for a configured clientName and an operation the
target service supports.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		runner, err := s3conform.New(cfg, s3conform.WithLogger(logger))
		if err != nil {
			return err
		}
		defer runner.Close()

		sources, err := runner.Loader().Load(cmd.Context())
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetStyle(table.StyleRounded)
		t.AppendHeader(table.Row{"Service", "Source", "Suites"})
		total := 0
		for _, src := range sources {
			n := len(expansion.Linearize(expansion.IDPrefix(src.Service, src.Name), src.Name, src.Definition))
			total += n
			t.AppendRow(table.Row{src.Service, src.Name, n})
		}
		t.AppendFooter(table.Row{"", "Total", total})
		t.Render()

		if total == 0 {
			return fmt.Errorf("no suites found under %s", cfg.SuitesDir)
		}
		if err := runner.Validate(cmd.Context(), sources); err != nil {
			return err
		}
		fmt.Println("All suites are valid.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
