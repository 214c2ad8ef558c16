package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "speechgate",
	Short: "Metered gateway for pay-per-use speech synthesis",
	Long: `Speechgate fronts a metered speech-synthesis provider with usage
accounting, monthly quotas, per-client rate limiting, and retry handling.

Quick start:
  speechgate serve      # Start the gateway server

Management:
  speechgate usage      # Show recorded usage per tier
  speechgate voices     # List available voices
  speechgate validate   # Validate configuration`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "speechgate.yaml", "config file path")
}
