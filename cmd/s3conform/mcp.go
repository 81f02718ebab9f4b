package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/s3conform"
	"github.com/aretw0/s3conform/pkg/adapters/mcp"
	"github.com/aretw0/s3conform/pkg/domain"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Exposes list_suites, run_suites and get_report as MCP tools, over stdio by
default or over SSE with --sse.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sse, _ := cmd.Flags().GetBool("sse")
		port, _ := cmd.Flags().GetInt("port")

		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		runner, err := s3conform.New(cfg, s3conform.WithLogger(logger))
		if err != nil {
			return err
		}
		defer runner.Close()

		run := func(ctx context.Context) ([]*domain.RunReport, error) {
			res, err := runner.Run(ctx)
			if res == nil {
				return nil, err
			}
			return res.Reports, err
		}
		server := mcp.NewServer(runner.Loader(), runner.Store(), run, s3conform.Version)

		if !sse {
			return server.ServeStdio()
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return server.ServeSSE(ctx, port)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().Bool("sse", false, "Serve over SSE instead of stdio")
	mcpCmd.Flags().Int("port", 8081, "Port for the SSE transport")
}
