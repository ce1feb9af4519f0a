package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/nomasclub/nomas-backend/api/routes"
	"github.com/nomasclub/nomas-backend/internal/bookings"
	"github.com/nomasclub/nomas-backend/internal/memberships"
	"github.com/nomasclub/nomas-backend/internal/payments"
	"github.com/nomasclub/nomas-backend/internal/plans"
	"github.com/nomasclub/nomas-backend/internal/profiles"
	"github.com/nomasclub/nomas-backend/internal/webhooklogs"
	stripewebhook "github.com/nomasclub/nomas-backend/internal/webhooks/stripe"
	"github.com/nomasclub/nomas-backend/pkg/config"
	"github.com/nomasclub/nomas-backend/pkg/db"
	"github.com/nomasclub/nomas-backend/pkg/logger"
	"github.com/nomasclub/nomas-backend/pkg/metrics"
	"github.com/nomasclub/nomas-backend/pkg/migrate"
	"github.com/nomasclub/nomas-backend/pkg/outbox"
	"github.com/nomasclub/nomas-backend/pkg/redis"
	"github.com/nomasclub/nomas-backend/pkg/stripe"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	catalog, err := plans.Load(context.Background(), plans.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to load membership plans", err)
		os.Exit(1)
	}

	profileRepo := profiles.NewRepository(dbClient.DB())
	bookingRepo := bookings.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	auditWriter := webhooklogs.NewWriter(webhooklogs.NewRepository(dbClient.DB()), logg)

	bookingService, err := bookings.NewService(bookings.ServiceParams{
		Repo:              bookingRepo,
		Profiles:          profileRepo,
		TransactionRunner: dbClient,
		Outbox:            outboxService,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create booking service", err)
		os.Exit(1)
	}

	paymentService, err := payments.NewService(payments.ServiceParams{
		Bookings: bookingService,
		Profiles: profileRepo,
		Catalog:  catalog,
		Stripe:   payments.NewStripeClient(stripeClient),
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment service", err)
		os.Exit(1)
	}

	membershipService, err := memberships.NewService(profileRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create membership service", err)
		os.Exit(1)
	}

	sweeper, err := memberships.NewSweeper(memberships.SweeperParams{
		Profiles:          profileRepo,
		TransactionRunner: dbClient,
		Outbox:            outboxService,
		Audit:             auditWriter,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create expiry sweeper", err)
		os.Exit(1)
	}

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Profiles:          profileRepo,
		Bookings:          bookingService,
		Catalog:           catalog,
		TransactionRunner: dbClient,
		Outbox:            outboxService,
		Audit:             auditWriter,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe webhook service", err)
		os.Exit(1)
	}

	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Webhooks.IdempotencyTTL, "stripe-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe webhook guard", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	webhookMetrics := metrics.NewWebhookMetrics(reg)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":        cfg.App.Env,
		"addr":       addr,
		"instance":   id,
		"stripe_env": stripeClient.Environment(),
		"plans":      len(catalog.Active()),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			reg,
			bookingService,
			paymentService,
			membershipService,
			catalog,
			sweeper,
			stripeClient,
			webhookService,
			webhookGuard,
			webhookMetrics,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}
