package main

import (
	"fmt"
	"os"

	"github.com/artpar/speechgate/bootstrap"
	"github.com/artpar/speechgate/config"
	"github.com/spf13/cobra"
)

var (
	hotReload bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway server",
	Long: `Start the speechgate server.

The server will:
  - Load configuration from speechgate.yaml (or --config)
  - Or load configuration from SPEECHGATE_* environment variables
  - Open the usage ledger store
  - Serve synthesis requests with rate limiting, quota checks, and retries

Environment variables (for Docker deployments):
  SPEECHGATE_PROVIDER_URL      - Speech provider base URL (required)
  SPEECHGATE_PROVIDER_API_KEY  - Provider API key
  SPEECHGATE_SERVER_PORT       - Server port (default: 8080)
  SPEECHGATE_LEDGER_BACKEND    - Ledger backend: file, sqlite, memory
  SPEECHGATE_LOG_LEVEL         - Log level: debug, info, warn, error

Examples:
  speechgate serve
  speechgate serve --config /etc/speechgate/config.yaml
  speechgate serve --hot-reload=false

  # Docker (env vars only):
  SPEECHGATE_PROVIDER_URL=https://texttospeech.googleapis.com speechgate serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&hotReload, "hot-reload", true, "enable hot reload of configuration")
}

func runServe(cmd *cobra.Command, args []string) error {
	hasConfigFile := false
	if _, err := os.Stat(cfgFile); err == nil {
		hasConfigFile = true
	}

	hasEnvConfig := os.Getenv("SPEECHGATE_PROVIDER_URL") != ""

	if !hasConfigFile && !hasEnvConfig {
		fmt.Println("No configuration found.")
		fmt.Println()
		fmt.Printf("Option 1: Create %s\n", cfgFile)
		fmt.Println("Option 2: Set SPEECHGATE_PROVIDER_URL environment variable")
		fmt.Println()
		fmt.Println("Example (env vars):")
		fmt.Println("  SPEECHGATE_PROVIDER_URL=https://texttospeech.googleapis.com speechgate serve")
		return nil
	}

	var app *bootstrap.App
	var err error

	if hasConfigFile && hotReload {
		// Hot reload only works with a config file
		app, err = bootstrap.NewWithHotReload(cfgFile)
	} else {
		cfg, loadErr := config.LoadWithFallback(cfgFile)
		if loadErr != nil {
			return fmt.Errorf("error loading config: %w", loadErr)
		}

		if !hasConfigFile {
			fmt.Println("Running with environment variables (no config file)")
		}

		app, err = bootstrap.New(cfg)
	}

	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}

	// Run (blocks until shutdown)
	return app.Run()
}
