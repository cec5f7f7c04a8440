/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the points bank server.
  Handles configuration, dependency injection, and graceful shutdown.

COMMANDS:
  serve     Run the HTTP server (default)
  migrate   Apply database migrations and exit

STARTUP SEQUENCE:
  1. Load .env, then config file, then POINTS_* environment overrides
  2. Open the store and apply migrations
  3. Load the catalog (built-in unless catalog.path is set)
  4. Build the economy service and API handler
  5. Start the prune scheduler and HTTP server with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the scheduler and close the database
  4. Exit

EXAMPLES:
  # Run with defaults (./points.db)
  ./points-server serve

  # Run in memory on another port
  POINTS_DATABASE_DSN=":memory:" POINTS_SERVER_PORT=3000 ./points-server

  # PostgreSQL
  POINTS_DATABASE_DRIVER=postgres \
  POINTS_DATABASE_DSN="postgres://points@localhost/points?sslmode=disable" \
  ./points-server migrate

SEE ALSO:
  - config/config.go: Keys, defaults and environment names
  - api/server.go: Router configuration
  - store/sqlstore/store.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/warp/points-engine/api"
	"github.com/warp/points-engine/bank"
	"github.com/warp/points-engine/config"
	"github.com/warp/points-engine/economy"
	"github.com/warp/points-engine/factory"
	"github.com/warp/points-engine/logging"
	"github.com/warp/points-engine/store/sqlstore"
)

var configPath string

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	root := &cobra.Command{
		Use:           "points-server",
		Short:         "Family points bank server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./points.{yaml,toml,json})")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE:  runServe,
	})
	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE:  runMigrate,
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// COMMANDS
// =============================================================================

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	catalog, err := factory.LoadFile(cfg.Catalog.Path)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	calendar, err := bank.NewCalendar(bank.SystemClock{}, cfg.Economy.Timezone)
	if err != nil {
		return err
	}

	svc := economy.NewService(store, calendar, economy.Config{
		Catalog:          catalog,
		ExchangeCost:     cfg.Economy.ExchangeCost,
		DailyExchangeCap: cfg.Economy.DailyExchangeCap,
		RetryAttempts:    cfg.Economy.RetryAttempts,
		Logger:           logger,
	})
	handler := api.NewHandler(svc, store, calendar, logger)

	scheduler := api.NewPruneScheduler(svc, logger)
	scheduler.Interval = cfg.Scheduler.PruneInterval
	scheduler.RetainDays = cfg.Scheduler.RetainDays
	scheduler.Start()
	defer scheduler.Stop()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.NewRouter(handler, cfg.Server.AllowedOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "port", cfg.Server.Port, "driver", cfg.Database.Driver, "timezone", cfg.Economy.Timezone)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-done:
	}
	logger.Info("server stopping")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	logger.Info("migrations applied", "driver", cfg.Database.Driver)
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger := logging.Setup(cfg.LogLevel)
	return cfg, logger, nil
}

// openStore connects and migrates. SQLite DSNs are plain paths.
func openStore(cfg *config.Config) (*sqlstore.Store, error) {
	var (
		store *sqlstore.Store
		err   error
	)
	switch sqlstore.Dialect(cfg.Database.Driver) {
	case sqlstore.DialectSQLite:
		store, err = sqlstore.OpenSQLite(cfg.Database.DSN)
	default:
		store, err = sqlstore.Open(sqlstore.Dialect(cfg.Database.Driver), cfg.Database.DSN)
	}
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return store, nil
}
