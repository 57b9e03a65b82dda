package cli

import (
	"GDALedger/internal/config"
	"GDALedger/internal/observability"
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "gdaledger",
	Short: "GDALedger - gradual Dutch auction pricing and settlement ledger",
	Long: `GDALedger prices and settles gradual Dutch auctions: listings whose
per-unit price rises with every unit sold and decays with time. Commands are
taken over gRPC, HTTP and NATS JetStream, applied one at a time against a
pebble store, and written to a Postgres event log with read projections.`,
	SilenceUsage: true,
}

// Execute runs the root command. It is called by main.main().
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "configuration file path (toml, yaml or json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level, overrides log.level")
}

// loadConfig loads the configuration named by --config and builds the
// process logger from it.
func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	log := observability.NewLoggerWithLevel("gdaledger", observability.ParseLogLevel(cfg.Log.Level))
	return cfg, log, nil
}

func openDB(ctx context.Context, pg config.PostgresConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", pg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}
	db.SetMaxOpenConns(pg.MaxOpenConns)
	db.SetMaxIdleConns(pg.MaxIdleConns)
	db.SetConnMaxLifetime(pg.ConnMaxLifetime)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return db, nil
}
