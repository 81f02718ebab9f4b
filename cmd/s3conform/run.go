package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/s3conform"
	"github.com/aretw0/s3conform/internal/presentation/tui"
	"github.com/aretw0/s3conform/pkg/observability"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every configured suite",
	Long: `Loads the suites, runs them service by service, prints the summary and a
digest of the failures, writes the mind-map report and stores one run report
per service. Exits with status 1 when any suite failed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		includes, _ := cmd.Flags().GetStringArray("include")
		excludes, _ := cmd.Flags().GetStringArray("exclude")
		noColor, _ := cmd.Flags().GetBool("no-color")

		opts := []s3conform.Option{
			s3conform.WithLogger(logger),
			s3conform.WithHooks(observability.LogHooks(logger)),
			s3conform.WithFilters(includes, excludes),
		}
		if cmd.Flags().Changed("concurrency") {
			n, _ := cmd.Flags().GetInt("concurrency")
			opts = append(opts, s3conform.WithConcurrency(n))
		}
		runner, err := s3conform.New(cfg, opts...)
		if err != nil {
			return err
		}
		defer runner.Close()

		interactive := tui.IsInteractive(os.Stdout) && !noColor
		if interactive {
			tui.PrintBanner(os.Stdout)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		res, err := runner.Run(ctx)
		if err != nil {
			return err
		}

		tui.RenderSummary(os.Stdout, res.Reports, interactive)
		if digest := tui.FailureDigest(res.Reports); digest != "" {
			out := digest
			if interactive {
				if rendered, err := tui.NewRenderer(tui.Width(os.Stdout))(digest); err == nil {
					out = rendered
				}
			}
			fmt.Fprintln(os.Stdout, out)
		}
		if res.ExportPath != "" {
			fmt.Fprintf(os.Stdout, "Report written to %s\n", res.ExportPath)
		}
		for _, r := range res.Reports {
			fmt.Fprintf(os.Stdout, "Stored report %s (%s)\n", r.ID, r.Service)
		}

		if res.Failed() {
			runner.Close()
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringArray("include", nil, "Only run suites whose path matches this regular expression (repeatable)")
	runCmd.Flags().StringArray("exclude", nil, "Skip suites whose path matches this regular expression (repeatable)")
	runCmd.Flags().IntP("concurrency", "n", 0, "Number of suites running at once (overrides concurrency)")
	runCmd.Flags().Bool("no-color", false, "Disable colors and markdown rendering")
}
