package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sakibsarkar/docvia-backend/api/routes"
	"github.com/sakibsarkar/docvia-backend/internal/apps"
	"github.com/sakibsarkar/docvia-backend/internal/billing"
	"github.com/sakibsarkar/docvia-backend/internal/checkout"
	"github.com/sakibsarkar/docvia-backend/internal/entitlements"
	"github.com/sakibsarkar/docvia-backend/internal/users"
	stripewebhook "github.com/sakibsarkar/docvia-backend/internal/webhooks/stripe"
	"github.com/sakibsarkar/docvia-backend/pkg/config"
	"github.com/sakibsarkar/docvia-backend/pkg/db"
	"github.com/sakibsarkar/docvia-backend/pkg/logger"
	"github.com/sakibsarkar/docvia-backend/pkg/metrics"
	"github.com/sakibsarkar/docvia-backend/pkg/migrate"
	"github.com/sakibsarkar/docvia-backend/pkg/redis"
	"github.com/sakibsarkar/docvia-backend/pkg/stripe"
)

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
		logg.Error(context.Background(), "failed to bootstrap stripe client", err)
		os.Exit(1)
	}

	userRepo := users.NewRepository(dbClient.DB())
	billingRepo := billing.NewRepository(dbClient.DB())
	appRepo := apps.NewRepository(dbClient.DB())

	usersService, err := users.NewService(users.ServiceParams{
		Repo:           userRepo,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create users service", err)
		os.Exit(1)
	}

	entitlementService, err := entitlements.NewService(entitlements.ServiceParams{
		BillingRepo:      billingRepo,
		UserRepo:         userRepo,
		Logger:           logg,
		FreePlanAppLimit: cfg.Billing.FreePlanAppLimit,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create entitlement service", err)
		os.Exit(1)
	}

	appsService, err := apps.NewService(apps.ServiceParams{
		Repo:     appRepo,
		Resolver: entitlementService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create apps service", err)
		os.Exit(1)
	}

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		BillingRepo: billingRepo,
		UserRepo:    userRepo,
		Stripe:      stripeClient,
		Logger:      logg,
		JWTConfig:   cfg.JWT,
		Billing:     cfg.Billing,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	enforcer, err := entitlements.NewEnforcer(appRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create entitlement enforcer", err)
		os.Exit(1)
	}

	webhookMetrics := metrics.NewWebhookMetrics(prometheus.DefaultRegisterer)
	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		BillingRepo:       billingRepo,
		UserRepo:          userRepo,
		Enforcer:          enforcer,
		TransactionRunner: dbClient,
		Logger:            logg,
		Metrics:           webhookMetrics,
		FreePlanAppLimit:  cfg.Billing.FreePlanAppLimit,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Billing.WebhookIdempotencyTTL, "stripe-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook idempotency guard", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			usersService,
			appsService,
			billingRepo,
			entitlementService,
			checkoutService,
			stripeClient,
			webhookService,
			webhookGuard,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
