// Package main is the entry point for the gacha bot and its HTTP API.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"gacha-bot/internal/bot"
	"gacha-bot/internal/config"
	"gacha-bot/internal/httpapi"
	"gacha-bot/internal/imagestore"
	"gacha-bot/internal/jobs"
	"gacha-bot/internal/metrics"
	"gacha-bot/internal/migrate"
	"gacha-bot/internal/pkg/db"
	"gacha-bot/internal/pkg/logging"
	"gacha-bot/internal/repository"
	"gacha-bot/internal/service"
	"gacha-bot/internal/token"
)

const limiterIdle = 15 * time.Minute

func main() {
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Setup(cfg.Log)

	log.Info().Msg("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Error().Err(err).Msg("Shutting down with error")
		os.Exit(1)
	}
	log.Info().Msg("Stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config) error {
	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	defer dbPool.Close()

	m := metrics.New()

	if cfg.Migration.AutoMigrate {
		log.Info().Msg("Running database migrations...")
		opts := migrate.Options{DefaultGroupChatID: cfg.Migration.DefaultGroupChatID}
		if err := migrate.UpgradeToHead(ctx, dbPool.SQLDB(), opts, m.MigrationStep); err != nil {
			return err
		}
	}

	// Services
	balances := service.NewBalances(dbPool, cfg.Balance, m)
	rolls := service.NewRollService(dbPool, cfg.Balance.RollCooldown)
	achievements := service.NewAchievementService(dbPool, service.DefaultCatalogue())
	if err := achievements.Seed(ctx); err != nil {
		return err
	}
	events := service.NewEventService(dbPool, achievements)
	cards := service.NewCardService(dbPool, balances, rolls, events, nil)
	slots := service.NewSlotService(dbPool, balances, events)
	profiles := service.NewProfileService(dbPool, balances, achievements)

	sessions := token.NewSessions(cfg.Security.JWTSecret, cfg.Security.SessionTTL)
	downloads := token.NewDownloads(cfg.Security.SigningSecret, cfg.Security.DownloadTTL)

	images, err := imagestore.New(ctx, cfg.Storage, dbPool)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	// Bot
	var otpSender service.OTPSender = bot.DisabledSender{}
	if cfg.Bot.Enabled {
		telegramBot, err := bot.New(&bot.Dependencies{
			Config:   cfg,
			Balances: balances,
			Rolls:    rolls,
			Cards:    cards,
			Slots:    slots,
			Profiles: profiles,
			Chats:    repository.NewChatRepository(dbPool),
		})
		if err != nil {
			return err
		}
		otpSender = bot.NewOTPSender(telegramBot.GetBot())
		g.Go(func() error { return telegramBot.Run(gctx) })
	} else {
		log.Warn().Msg("Telegram bot disabled, admin login codes cannot be delivered")
	}

	auth := service.NewAdminAuthService(dbPool, otpSender, sessions, cfg.Security.OTPTTL)

	// HTTP API
	serverCfg := httpapi.ServerConfigFrom(cfg.HTTP)
	limiter := httpapi.NewRateLimiter(serverCfg.RateLimitRPS, serverCfg.RateLimitBurst)
	router := httpapi.NewRouter(serverCfg, &httpapi.Dependencies{
		Symbols:   slots,
		Profiles:  profiles,
		Cards:     cards,
		Images:    images,
		Downloads: downloads,
		Admin:     auth,
		Sets:      repository.NewSetRepository(dbPool),
		Health:    dbPool,
		Metrics:   m,
	}, limiter)
	server := httpapi.NewServer(serverCfg, router)
	g.Go(func() error { return server.Run(gctx) })

	// Housekeeping
	scheduler := jobs.NewScheduler(m, time.Minute)
	for _, job := range []jobs.Job{
		jobs.PurgeOTPs(auth),
		jobs.PruneLimiters(limiter, limiterIdle),
	} {
		if err := scheduler.Add(job); err != nil {
			return err
		}
	}
	g.Go(func() error { return scheduler.Run(gctx) })

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
