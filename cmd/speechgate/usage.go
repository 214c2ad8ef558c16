package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/artpar/speechgate/adapters/jsonfile"
	"github.com/artpar/speechgate/adapters/sqlite"
	"github.com/artpar/speechgate/config"
	"github.com/artpar/speechgate/domain/usage"
	"github.com/artpar/speechgate/domain/voice"
	"github.com/artpar/speechgate/ports"
	"github.com/spf13/cobra"
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show recorded usage per tier",
	Long: `Show recorded usage against monthly caps.

Examples:
  speechgate usage
  speechgate usage --period=2026-07`,
	RunE: runUsage,
}

var usagePeriod string

func init() {
	rootCmd.AddCommand(usageCmd)

	usageCmd.Flags().StringVar(&usagePeriod, "period", "", "billing period to show (YYYY-MM, default: current)")
}

func runUsage(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, cleanup, err := openLedgerStore(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ledger, err := store.Read(context.Background())
	if err != nil {
		return fmt.Errorf("read ledger: %w", err)
	}

	period := usagePeriod
	if period == "" {
		period = usage.PeriodKey(time.Now())
	}

	registry := registryFromConfig(cfg)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "TIER\tUNIT\tUSAGE\tCAP\tREMAINING\n")
	for _, tier := range registry.Tiers() {
		used := ledger.Get(period, tier.Name)
		remaining := "unlimited"
		capCol := "-"
		if tier.MonthlyCap > 0 {
			capCol = fmt.Sprintf("%d", tier.MonthlyCap)
			left := tier.MonthlyCap - used
			if left < 0 {
				left = 0
			}
			remaining = fmt.Sprintf("%d", left)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", tier.Name, tier.Unit, used, capCol, remaining)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\nPeriod: %s\n", period)
	return nil
}

func openLedgerStore(cfg *config.Config) (ports.LedgerStore, func(), error) {
	switch cfg.Ledger.Backend {
	case "sqlite":
		db, err := sqlite.Open(cfg.Ledger.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		return sqlite.NewLedgerStore(db), func() { db.Close() }, nil
	case "memory":
		return nil, nil, fmt.Errorf("memory backend holds no persisted usage")
	default:
		return jsonfile.NewLedgerStore(cfg.Ledger.Path), func() {}, nil
	}
}

func registryFromConfig(cfg *config.Config) voice.Registry {
	if len(cfg.Tiers) == 0 {
		return voice.Default()
	}
	tiers := make([]voice.Tier, 0, len(cfg.Tiers))
	for _, t := range cfg.Tiers {
		tiers = append(tiers, voice.Tier{
			Name:       t.Name,
			Unit:       voice.Unit(t.Unit),
			MonthlyCap: t.MonthlyCap,
		})
	}
	return voice.NewRegistry(tiers, cfg.Default)
}
