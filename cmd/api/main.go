package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/clipclash/clipclash-backend/api/routes"
	"github.com/clipclash/clipclash-backend/internal/catalog"
	checkoutsvc "github.com/clipclash/clipclash-backend/internal/checkout"
	"github.com/clipclash/clipclash-backend/internal/cosmetics"
	"github.com/clipclash/clipclash-backend/internal/fulfillment"
	"github.com/clipclash/clipclash-backend/internal/ledger"
	"github.com/clipclash/clipclash-backend/internal/spend"
	subscriptionsvc "github.com/clipclash/clipclash-backend/internal/subscriptions"
	"github.com/clipclash/clipclash-backend/internal/tips"
	"github.com/clipclash/clipclash-backend/internal/users"
	"github.com/clipclash/clipclash-backend/internal/wallet"
	stripewebhook "github.com/clipclash/clipclash-backend/internal/webhooks/stripe"
	"github.com/clipclash/clipclash-backend/pkg/config"
	"github.com/clipclash/clipclash-backend/pkg/db"
	"github.com/clipclash/clipclash-backend/pkg/logger"
	"github.com/clipclash/clipclash-backend/pkg/metrics"
	"github.com/clipclash/clipclash-backend/pkg/migrate"
	"github.com/clipclash/clipclash-backend/pkg/redis"
	pkgstripe "github.com/clipclash/clipclash-backend/pkg/stripe"
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

	stripeClient, err := pkgstripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe client", err)
		os.Exit(1)
	}

	priceCatalog, err := catalog.New(cfg.Catalog.EntriesJSON)
	if err != nil {
		logg.Error(context.Background(), "failed to load price catalog", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	ledgerMetrics := metrics.NewLedgerMetrics(registry)

	walletRepo := wallet.NewRepository(dbClient.DB())
	userRepo := users.NewRepository(dbClient.DB())
	tipRepo := tips.NewRepository(dbClient.DB())
	cosmeticRepo := cosmetics.NewRepository(dbClient.DB())

	ledgerService, err := ledger.NewService(ledger.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	subscriptionService, err := subscriptionsvc.NewService(subscriptionsvc.ServiceParams{
		Repo:         subscriptionsvc.NewRepository(dbClient.DB()),
		StripeClient: subscriptionsvc.NewStripeClient(stripeClient),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create subscription service", err)
		os.Exit(1)
	}

	checkoutService, err := checkoutsvc.NewService(checkoutsvc.ServiceParams{
		Catalog:      priceCatalog,
		Users:        userRepo,
		StripeClient: checkoutsvc.NewStripeClient(stripeClient),
		SuccessURL:   stripeClient.SuccessURL(),
		CancelURL:    stripeClient.CancelURL(),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	engine, err := fulfillment.NewEngine(fulfillment.EngineParams{
		Catalog:       priceCatalog,
		Ledger:        ledgerService,
		Wallets:       walletRepo,
		Tips:          tipRepo,
		Cosmetics:     cosmeticRepo,
		Subscriptions: subscriptionService,
		StripeClient:  checkoutsvc.NewStripeClient(stripeClient),
		TxRunner:      dbClient,
		Metrics:       ledgerMetrics,
		Logger:        logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create fulfillment engine", err)
		os.Exit(1)
	}

	spendService, err := spend.NewService(spend.ServiceParams{
		Wallets:  walletRepo,
		Ledger:   ledgerService,
		TxRunner: dbClient,
		Metrics:  ledgerMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create spend service", err)
		os.Exit(1)
	}

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Engine: engine,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Webhook.EventIdempotencyTTL, "stripe")
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
		Handler: routes.NewRouter(routes.Deps{
			Config:       cfg,
			Logger:       logg,
			DBPinger:     dbClient,
			CachePinger:  redisClient,
			Wallets:      walletRepo,
			Ledger:       ledgerService,
			Spend:        spendService,
			Checkout:     checkoutService,
			Engine:       engine,
			Tips:         tipRepo,
			StripeClient: stripeClient,
			WebhookSvc:   webhookService,
			WebhookGuard: webhookGuard,
			Registry:     registry,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
