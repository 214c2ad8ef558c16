package main

import (
	"fmt"

	"github.com/artpar/speechgate/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}

	fmt.Println("Configuration valid")
	fmt.Printf("  Provider: %s\n", cfg.Provider.BaseURL)
	fmt.Printf("  Ledger:   %s (%s)\n", cfg.Ledger.Backend, cfg.Ledger.Path)
	fmt.Printf("  Tiers:    %d (default: %s)\n", len(cfg.Tiers), cfg.Default)
	return nil
}
