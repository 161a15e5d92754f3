// Command migrate moves the database schema along the revision chain.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"gacha-bot/internal/config"
	"gacha-bot/internal/migrate"
	"gacha-bot/internal/pkg/db"
	"gacha-bot/internal/pkg/logging"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "migrate",
	Short:         "Manage the gacha bot database schema",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config", "directory holding config.yaml")
}

// withPool loads config and opens the pool for the duration of fn.
func withPool(ctx context.Context, fn func(cfg *config.Config, pool *db.Pool) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logging.Setup(cfg.Log)

	pool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(cfg, pool)
}

// withRunner hands fn a runner over the default chain.
func withRunner(ctx context.Context, fn func(r *migrate.Runner) error) error {
	return withPool(ctx, func(cfg *config.Config, pool *db.Pool) error {
		ledger, err := migrate.NewDefaultLedger()
		if err != nil {
			return err
		}
		opts := migrate.Options{DefaultGroupChatID: cfg.Migration.DefaultGroupChatID}
		return fn(migrate.NewRunner(pool.SQLDB(), ledger, opts, logStep))
	})
}

func logStep(revision, direction string, elapsed time.Duration, err error) {
	ev := log.Info()
	if err != nil {
		ev = log.Error().Err(err)
	}
	ev.Str("revision", revision).Str("direction", direction).Dur("elapsed", elapsed).Msg("Migration step")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("Migration command failed")
		stop()
		os.Exit(1)
	}
}
