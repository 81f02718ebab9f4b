package main

import (
	"fmt"

	"github.com/aretw0/s3conform"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("s3conform version %s\n", s3conform.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
