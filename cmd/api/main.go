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

	"github.com/angelmondragon/revo-backend/api/routes"
	"github.com/angelmondragon/revo-backend/internal/cart"
	"github.com/angelmondragon/revo-backend/internal/catalog"
	"github.com/angelmondragon/revo-backend/internal/checkout"
	"github.com/angelmondragon/revo-backend/internal/evaluations"
	"github.com/angelmondragon/revo-backend/internal/history"
	"github.com/angelmondragon/revo-backend/internal/ledger"
	"github.com/angelmondragon/revo-backend/internal/orders"
	"github.com/angelmondragon/revo-backend/internal/payments"
	"github.com/angelmondragon/revo-backend/internal/tradein"
	stripewebhook "github.com/angelmondragon/revo-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/revo-backend/pkg/config"
	"github.com/angelmondragon/revo-backend/pkg/db"
	"github.com/angelmondragon/revo-backend/pkg/logger"
	"github.com/angelmondragon/revo-backend/pkg/metrics"
	"github.com/angelmondragon/revo-backend/pkg/migrate"
	"github.com/angelmondragon/revo-backend/pkg/outbox"
	"github.com/angelmondragon/revo-backend/pkg/redis"
	"github.com/angelmondragon/revo-backend/pkg/storage/s3store"
	"github.com/angelmondragon/revo-backend/pkg/stripe"
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
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	mediaStore, err := s3store.New(ctx, cfg.AWS, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap s3 media store", err)
		os.Exit(1)
	}

	stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap stripe client", err)
		os.Exit(1)
	}
	gateway, err := stripe.NewGateway(stripeClient, cfg.Checkout.GatewayTimeout)
	if err != nil {
		logg.Error(ctx, "failed to create payment gateway", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	httpMetrics := metrics.NewHTTPMetrics(registry)
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)
	webhookMetrics := metrics.NewWebhookMetrics(registry)

	gdb := dbClient.DB()
	emitter := outbox.NewService(outbox.NewRepository(gdb), logg)
	catalogRepo := catalog.NewRepository(gdb)
	cartRepo := cart.NewRepository(gdb)
	ordersRepo := orders.NewRepository(gdb)
	pickupRepo := tradein.NewRepository(gdb)

	ledgerService, err := ledger.NewService(ledger.NewRepository(gdb))
	exitOnErr(ctx, logg, err, "failed to create ledger service")

	cartService, err := cart.NewService(cartRepo, catalogRepo, dbClient, cfg.Checkout.Currency)
	exitOnErr(ctx, logg, err, "failed to create cart service")

	pricing, err := checkout.PricingFromConfig(cfg.Checkout)
	exitOnErr(ctx, logg, err, "failed to parse checkout pricing")

	checkoutService, err := checkout.NewService(checkout.Dependencies{
		Tx:      dbClient,
		Carts:   cartRepo,
		Catalog: catalogRepo,
		Orders:  ordersRepo,
		Gateway: gateway,
		Outbox:  emitter,
		Ledger:  ledgerService,
		Metrics: checkoutMetrics,
		Logger:  logg,
	}, pricing)
	exitOnErr(ctx, logg, err, "failed to create checkout service")

	ordersService, err := orders.NewService(ordersRepo, dbClient, emitter, ledgerService)
	exitOnErr(ctx, logg, err, "failed to create orders service")

	paymentsService, err := payments.NewService(ordersRepo, dbClient, gateway, emitter, ledgerService, logg)
	exitOnErr(ctx, logg, err, "failed to create payments service")

	tradeInService, err := tradein.NewService(tradein.Dependencies{
		Tx:        dbClient,
		Repo:      pickupRepo,
		Brands:    catalogRepo,
		Media:     mediaStore,
		Outbox:    emitter,
		Ledger:    ledgerService,
		Limits:    tradein.PhotoLimits{MaxPhotos: cfg.Media.MaxPhotos, MaxBytes: cfg.Media.MaxPhotoBytes},
		KeyPrefix: cfg.Media.KeyPrefix,
		Logger:    logg,
	})
	exitOnErr(ctx, logg, err, "failed to create trade-in service")

	evaluationService, err := evaluations.NewService(evaluations.NewRepository(gdb), pickupRepo, dbClient, emitter, ledgerService, logg)
	exitOnErr(ctx, logg, err, "failed to create evaluation service")

	historyService, err := history.NewService(ordersService, tradeInService)
	exitOnErr(ctx, logg, err, "failed to create history service")

	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Eventing.WebhookIdempotencyTTL)
	exitOnErr(ctx, logg, err, "failed to create webhook guard")

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Payments: paymentsService,
		Metrics:  webhookMetrics,
		Logger:   logg,
	})
	exitOnErr(ctx, logg, err, "failed to create stripe webhook service")

	handler := routes.NewRouter(routes.Dependencies{
		Config:        cfg,
		Logger:        logg,
		DBPinger:      dbClient,
		RedisPinger:   redisClient,
		StoragePinger: mediaStore,
		Idempotency:   redisClient,
		RateLimiter:   redisClient,
		Gatherer:      registry,
		HTTPMetrics:   httpMetrics,
		Cart:          cartService,
		Checkout:      checkoutService,
		Orders:        ordersService,
		Payments:      paymentsService,
		TradeIn:       tradeInService,
		Evaluations:   evaluationService,
		History:       historyService,
		StripeSigner:  stripeClient,
		StripeWebhook: webhookService,
		WebhookGuard:  webhookGuard,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	serverCtx := logg.WithFields(ctx, map[string]any{
		"env":        cfg.App.Env,
		"addr":       addr,
		"stripe_env": stripeClient.Environment(),
	})
	logg.Info(serverCtx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(serverCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(serverCtx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(serverCtx, "graceful shutdown failed", err)
		}
	}
}

func exitOnErr(ctx context.Context, logg *logger.Logger, err error, msg string) {
	if err == nil {
		return
	}
	logg.Error(ctx, msg, err)
	os.Exit(1)
}
