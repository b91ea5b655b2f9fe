// cmd/intrawatch/main.go
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set at build time with -ldflags "-X main.version=...".
var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "intrawatch",
	Short: "intrawatch watches intranet projects for file changes",
	Long: `intrawatch polls the intranet for the projects you are registered to,
keeps a snapshot of every file it has seen and posts a webhook message when a
file appears or its size or timestamps change.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default $INTRAWATCH_CONFIG or config.json)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(onceCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(statusCmd)

	snapshotCmd.AddCommand(snapshotShowCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
