package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/artpar/speechgate/adapters/googletts"
	"github.com/artpar/speechgate/config"
	"github.com/artpar/speechgate/domain/cost"
	"github.com/spf13/cobra"
)

var voicesCmd = &cobra.Command{
	Use:   "voices",
	Short: "List available voices",
	Long: `List the provider's voice catalog with the billing tier each voice
resolves to.

Examples:
  speechgate voices
  speechgate voices --language=en-US`,
	RunE: runVoices,
}

var voicesLanguage string

func init() {
	rootCmd.AddCommand(voicesCmd)

	voicesCmd.Flags().StringVar(&voicesLanguage, "language", "", "filter by BCP-47 language code")
}

func runVoices(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	client, err := googletts.New(googletts.Config{
		BaseURL: cfg.Provider.BaseURL,
		APIKey:  cfg.Provider.APIKey,
		Timeout: cfg.Provider.Timeout,
	})
	if err != nil {
		return fmt.Errorf("init provider client: %w", err)
	}

	voices, err := client.ListVoices(context.Background(), voicesLanguage)
	if err != nil {
		return fmt.Errorf("list voices: %w", err)
	}

	registry := registryFromConfig(cfg)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "VOICE\tLANGUAGES\tGENDER\tTIER\tUNIT\n")
	for _, v := range voices {
		tier, _ := registry.Resolve(v.ID)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			v.ID, strings.Join(v.LanguageCodes, ","), v.Gender, tier.Name, tier.Unit)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\n%d voices\n", len(voices))
	return nil
}

// estimateCmd computes the billable cost of text without synthesizing it.
var estimateCmd = &cobra.Command{
	Use:   "estimate [text]",
	Short: "Estimate the billable cost of text",
	Args:  cobra.ExactArgs(1),
	RunE:  runEstimate,
}

var (
	estimateVoice string
	estimateSSML  bool
)

func init() {
	rootCmd.AddCommand(estimateCmd)

	estimateCmd.Flags().StringVar(&estimateVoice, "voice", "", "voice ID the text would be synthesized with")
	estimateCmd.Flags().BoolVar(&estimateSSML, "ssml", false, "treat the text as speech markup")
}

func runEstimate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	registry := registryFromConfig(cfg)
	est := cost.Count(args[0], estimateVoice, estimateSSML, registry)

	fmt.Printf("Tier:  %s\n", est.Tier.Name)
	fmt.Printf("Cost:  %d %s\n", est.Count, est.Unit)
	return nil
}
