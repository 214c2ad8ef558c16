// Package bootstrap wires all dependencies and starts the application.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/artpar/speechgate/adapters/clock"
	"github.com/artpar/speechgate/adapters/googletts"
	gatehttp "github.com/artpar/speechgate/adapters/http"
	"github.com/artpar/speechgate/adapters/idgen"
	"github.com/artpar/speechgate/adapters/jsonfile"
	"github.com/artpar/speechgate/adapters/memory"
	"github.com/artpar/speechgate/adapters/metrics"
	"github.com/artpar/speechgate/adapters/sqlite"
	"github.com/artpar/speechgate/app"
	"github.com/artpar/speechgate/config"
	"github.com/artpar/speechgate/domain/ratelimit"
	"github.com/artpar/speechgate/domain/voice"
	"github.com/artpar/speechgate/ports"
	"github.com/rs/zerolog"
)

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	Holder     *config.Holder
	HTTPServer *http.Server
	Metrics    *metrics.Collector

	Ledger    *app.Ledger
	Synthesis *app.Synthesis

	db      *sqlite.DB
	limiter ports.RateLimitStore
}

// New wires the application from an already-loaded configuration.
// Hot reload is unavailable in this mode.
func New(cfg *config.Config) (*App, error) {
	return buildWithConfig(nil, cfg)
}

// NewWithHotReload creates and wires the application from a config file,
// watching it for changes.
func NewWithHotReload(configPath string) (*App, error) {
	holder, err := config.NewHolder(configPath, zerolog.Nop())
	if err != nil {
		return nil, err
	}
	return buildWithConfig(holder, holder.Get())
}

func buildWithConfig(holder *config.Holder, cfg *config.Config) (*App, error) {
	logger := setupLogger(cfg.Logging)

	a := &App{
		Logger: logger,
		Holder: holder,
	}

	if cfg.Metrics.Enabled {
		a.Metrics = metrics.New()
		logger.Info().Msg("prometheus metrics enabled")
	}

	registry := buildRegistry(cfg)
	clk := clock.Real{}

	store, err := a.buildLedgerStore(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init ledger store: %w", err)
	}

	a.Ledger = app.NewLedger(app.LedgerConfig{
		Store:    store,
		Registry: registry,
		Clock:    clk,
		Logger:   logger,
		Metrics:  a.Metrics,
	})

	a.limiter = memory.NewRateLimitStore(memory.RateLimitStoreConfig{
		SweepInterval: cfg.RateLimit.SweepInterval,
	})

	provider, err := googletts.New(googletts.Config{
		BaseURL: cfg.Provider.BaseURL,
		APIKey:  cfg.Provider.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("init provider client: %w", err)
	}

	invoker := app.NewInvoker(app.InvokerConfig{
		Timeout:     cfg.Provider.Timeout,
		MaxAttempts: cfg.Provider.Retry.MaxAttempts,
		BaseDelay:   cfg.Provider.Retry.BaseDelay,
		Logger:      logger,
		Metrics:     a.Metrics,
	})

	a.Synthesis = app.NewSynthesis(app.SynthesisConfig{
		Provider:  provider,
		Limiter:   a.limiter,
		RateLimit: buildRateLimit(cfg),
		Registry:  registry,
		Ledger:    a.Ledger,
		Invoker:   invoker,
		Clock:     clk,
		IDs:       idgen.UUID{},
		Logger:    logger,
		Metrics:   a.Metrics,
	})

	handler := gatehttp.NewHandler(a.Synthesis, a.Ledger, logger)
	router := gatehttp.NewRouter(handler, logger, gatehttp.RouterConfig{
		RequestTimeout: cfg.Server.WriteTimeout,
	})

	a.HTTPServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if holder != nil {
		a.watchConfig()
	}

	return a, nil
}

// buildRegistry maps configured tiers onto the voice registry, preserving
// configuration order for matching.
func buildRegistry(cfg *config.Config) voice.Registry {
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

// buildRateLimit maps the admission settings; a zero value disables
// admission control.
func buildRateLimit(cfg *config.Config) ratelimit.Config {
	if !cfg.RateLimit.Enabled {
		return ratelimit.Config{}
	}
	return ratelimit.Config{
		MaxRequests: cfg.RateLimit.MaxRequests,
		Window:      cfg.RateLimit.Window,
	}
}

func (a *App) buildLedgerStore(cfg *config.Config, logger zerolog.Logger) (ports.LedgerStore, error) {
	switch cfg.Ledger.Backend {
	case "sqlite":
		db, err := sqlite.Open(cfg.Ledger.Path)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		a.db = db
		logger.Info().Str("path", cfg.Ledger.Path).Msg("using sqlite ledger store")
		return sqlite.NewLedgerStore(db), nil
	case "memory":
		logger.Warn().Msg("using in-memory ledger store, usage resets on restart")
		return memory.NewLedgerStore(), nil
	default:
		logger.Info().Str("path", cfg.Ledger.Path).Msg("using file ledger store")
		return jsonfile.NewLedgerStore(cfg.Ledger.Path), nil
	}
}

// watchConfig wires hot reload: file watch plus SIGHUP. The fields in
// config.ReloadableFields take effect on reload; transport and storage
// wiring needs a restart.
func (a *App) watchConfig() {
	a.Holder.OnChange(func(cfg *config.Config) {
		level, err := zerolog.ParseLevel(cfg.Logging.Level)
		if err == nil {
			zerolog.SetGlobalLevel(level)
		}

		registry := buildRegistry(cfg)
		a.Synthesis.ApplyConfig(buildRateLimit(cfg), registry)
		a.Ledger.SetRegistry(registry)

		if a.Metrics != nil {
			a.Metrics.ConfigReloads.Inc()
		}
	})

	if err := a.Holder.WatchFile(); err != nil {
		a.Logger.Warn().Err(err).Msg("config file watching unavailable")
		if a.Metrics != nil {
			a.Metrics.ConfigReloadErrors.Inc()
		}
	}
	a.Holder.WatchSignals()
}

// Run starts the HTTP server and blocks until interrupted.
func (a *App) Run() error {
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().
			Str("addr", a.HTTPServer.Addr).
			Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the application.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown failed")
		}
	}

	if a.Ledger != nil {
		a.Ledger.Close()
	}
	if a.limiter != nil {
		if err := a.limiter.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("rate limit store close failed")
		}
	}
	if a.Holder != nil {
		a.Holder.Stop()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("database close failed")
		}
	}

	a.Logger.Info().Msg("shutdown complete")
	return nil
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}

	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
