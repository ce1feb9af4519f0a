package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nomasclub/nomas-backend/internal/bookings"
	"github.com/nomasclub/nomas-backend/internal/cron"
	"github.com/nomasclub/nomas-backend/internal/memberships"
	"github.com/nomasclub/nomas-backend/internal/payments"
	"github.com/nomasclub/nomas-backend/internal/profiles"
	"github.com/nomasclub/nomas-backend/internal/webhooklogs"
	"github.com/nomasclub/nomas-backend/pkg/config"
	"github.com/nomasclub/nomas-backend/pkg/db"
	"github.com/nomasclub/nomas-backend/pkg/logger"
	"github.com/nomasclub/nomas-backend/pkg/metrics"
	"github.com/nomasclub/nomas-backend/pkg/migrate"
	"github.com/nomasclub/nomas-backend/pkg/outbox"
	"github.com/nomasclub/nomas-backend/pkg/redis"
	"github.com/nomasclub/nomas-backend/pkg/stripe"
)

const lockKeyFormat = "nomas:cron-worker:lock:%s"

func main() {
	once := flag.Bool("once", false, "run a single cycle and exit")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	outboxRepo := outbox.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outboxRepo, logg)

	sweeper, err := memberships.NewSweeper(memberships.SweeperParams{
		Profiles:          profiles.NewRepository(dbClient.DB()),
		TransactionRunner: dbClient,
		Outbox:            outboxService,
		Audit:             webhooklogs.NewWriter(webhooklogs.NewRepository(dbClient.DB()), logg),
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create expiry sweeper", err)
		os.Exit(1)
	}

	cleaner, err := payments.NewPendingBookingCleaner(payments.CleanerParams{
		Bookings:          bookings.NewRepository(dbClient.DB()),
		Intents:           payments.NewStripeClient(stripeClient),
		TransactionRunner: dbClient,
		Outbox:            outboxService,
		Logger:            logg,
		TTL:               cfg.Bookings.PendingTTL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create pending booking cleaner", err)
		os.Exit(1)
	}

	expiryJob, err := cron.NewMembershipExpiryJob(cron.MembershipExpiryJobParams{
		Logger:  logg,
		Sweeper: sweeper,
		Metrics: metricsCollector,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create membership expiry job", err)
		os.Exit(1)
	}
	pendingJob, err := cron.NewPendingBookingJob(cron.PendingBookingJobParams{
		Logger:  logg,
		Cleaner: cleaner,
		Metrics: metricsCollector,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create pending booking job", err)
		os.Exit(1)
	}
	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:      logg,
		DB:          dbClient,
		Repository:  outboxRepo,
		Retention:   cfg.Outbox.Retention,
		MinAttempts: cfg.Outbox.MaxAttempts,
		Metrics:     metricsCollector,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry(expiryJob, pendingJob, retentionJob)
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"interval":    cfg.Cron.Interval.String(),
	})

	if *once {
		logg.Info(ctx, "running single cron cycle")
		if err := service.RunOnce(ctx); err != nil {
			logg.Error(ctx, "cron cycle failed", err)
			os.Exit(1)
		}
		return
	}

	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
