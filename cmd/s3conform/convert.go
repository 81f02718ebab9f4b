package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aretw0/s3conform/internal/loader"
	"github.com/aretw0/s3conform/internal/mindmap"
	"github.com/aretw0/s3conform/pkg/adapters/xmind"
	"github.com/aretw0/s3conform/pkg/domain"
	"github.com/spf13/cobra"
)

var convertCmd = &cobra.Command{
	Use:   "convert <in.xmind> <out-dir>",
	Short: "Convert a mind-map archive into YAML suite files",
	Long: `Imports every sheet of the archive and writes one list-form suite file per
service under <out-dir>/<service>/integration_tests.yaml.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		service, _ := cmd.Flags().GetString("service")
		buckets, _ := cmd.Flags().GetStringSlice("buckets")
		for i := range buckets {
			buckets[i] = strings.ToUpper(strings.TrimSpace(buckets[i]))
		}

		sheets, err := xmind.ReadFile(args[0])
		if err != nil {
			return err
		}
		name := filepath.Base(args[0])
		var sources []*domain.SuiteSource
		for _, sheet := range sheets {
			def, err := mindmap.ImportSheet(sheet, buckets)
			if err != nil {
				return fmt.Errorf("sheet %q: %w", sheet.Title, err)
			}
			sources = append(sources, &domain.SuiteSource{Service: service, Name: name, Definition: def})
		}
		if err := loader.Export(args[1], sources); err != nil {
			return err
		}
		fmt.Printf("Converted %d sheet(s) into %s\n", len(sheets), filepath.Join(args[1], service, loader.ExportFileName))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(convertCmd)
	convertCmd.Flags().String("service", "s3", "Service the imported suites belong to")
	convertCmd.Flags().StringSlice("buckets", []string{domain.BucketPass, domain.BucketFailed, domain.BucketSkipped}, "Report buckets to import")
}
