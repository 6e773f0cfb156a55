package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/boddenberg/portal-membros-go/internal/config"
	"github.com/boddenberg/portal-membros-go/internal/domain"
	"github.com/boddenberg/portal-membros-go/internal/handler"
	"github.com/boddenberg/portal-membros-go/internal/infra/cache"
	"github.com/boddenberg/portal-membros-go/internal/infra/memstore"
	"github.com/boddenberg/portal-membros-go/internal/infra/mercadopago"
	"github.com/boddenberg/portal-membros-go/internal/infra/notify"
	"github.com/boddenberg/portal-membros-go/internal/infra/observability"
	"github.com/boddenberg/portal-membros-go/internal/infra/postgres"
	"github.com/boddenberg/portal-membros-go/internal/infra/resilience"
	"github.com/boddenberg/portal-membros-go/internal/infra/stripe"
	"github.com/boddenberg/portal-membros-go/internal/infra/supabase"
	"github.com/boddenberg/portal-membros-go/internal/port"
	"github.com/boddenberg/portal-membros-go/internal/service"
)

const serviceName = "portal-membros-api"

func main() {
	// --- Config ---
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel, serviceName)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("store_backend", cfg.StoreBackend),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Bool("redis_cache", cfg.RedisURL != ""),
		zap.Bool("stripe_enabled", cfg.StripeEnabled()),
		zap.Bool("mercadopago_signed", cfg.MercadoPagoWebhookSecret != ""),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, serviceName)
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	// --- Store ---
	store, closeStore, err := openStore(cfg, httpClient, resilienceCfg, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.String("backend", cfg.StoreBackend), zap.Error(err))
	}
	defer closeStore()

	// --- Cache ---
	var configCache port.Cache[*domain.SystemConfig]
	if cfg.RedisURL != "" {
		redisClient, err := cache.NewRedisClient(cfg.RedisURL)
		if err != nil {
			logger.Fatal("invalid REDIS_URL", zap.Error(err))
		}
		defer redisClient.Close()
		configCache = cache.NewRedis[*domain.SystemConfig](redisClient, "portal:", cfg.CacheTTL, logger)
		logger.Info("using Redis cache")
	} else {
		memCache := cache.New[*domain.SystemConfig](cfg.CacheTTL)
		defer memCache.Close()
		configCache = memCache
	}
	configCache = cache.WithMetrics(configCache, "system_config", metrics)

	// --- Outbound notifications ---
	dispatcher, err := notify.New(notify.Config{
		Secret:         cfg.OutboundWebhookSecret,
		Timeout:        cfg.NotifyTimeout,
		MaxConcurrency: cfg.MaxConcurrency,
	}, metrics, logger)
	if err != nil {
		logger.Fatal("failed to create notification dispatcher", zap.Error(err))
	}

	// --- Payment providers ---
	var checkoutProvider port.CheckoutProvider
	var stripeParser port.WebhookParser
	if cfg.StripeEnabled() {
		gateway := stripe.NewGateway(
			stripe.NewAPI(cfg.StripeSecretKey, "", httpClient),
			cfg.StripeWebhookSecret,
			resilience.NewCircuitBreaker("stripe", logger),
			logger,
		)
		checkoutProvider = gateway
		stripeParser = gateway
		logger.Info("stripe checkout enabled")
	} else {
		logger.Warn("stripe not configured, checkout and stripe webhook unavailable")
	}
	mercadoPagoParser := mercadopago.NewParser(cfg.MercadoPagoWebhookSecret)

	// --- Services ---
	configSvc := service.NewSystemConfigService(store, configCache, logger)
	if _, err := configSvc.EnsureExists(context.Background()); err != nil {
		logger.Warn("system config not initialised", zap.Error(err))
	}

	svc := &handler.Services{
		Tokens:   service.NewTokenVerifier(cfg.SupabaseJWTSecret),
		Access:   service.NewAccessService(store, cfg.BootstrapAdminEmail, logger),
		Tickets:  service.NewTicketService(store, configSvc, dispatcher, logger),
		CRM:      service.NewCRMService(store, metrics, logger),
		Payments: service.NewPaymentService(store, stripeParser, mercadoPagoParser, metrics, logger),
		Checkout: service.NewCheckoutService(checkoutProvider, store, service.CheckoutConfig{
			PriceID:    cfg.StripePriceID,
			SuccessURL: cfg.CheckoutSuccessURL,
			CancelURL:  cfg.CheckoutCancelURL,
		}, logger),
		Config:    configSvc,
		Contact:   service.NewContactService(configSvc, dispatcher, logger),
		Store:     store,
		StoreName: cfg.StoreBackend,
	}

	// --- Router ---
	router := handler.NewRouter(svc, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced shutdown", zap.Error(err))
	}
	if err := dispatcher.Close(ctx); err != nil {
		logger.Warn("pending notifications abandoned", zap.Error(err))
	}

	logger.Info("server stopped")
}

// openStore builds the configured persistence backend.
func openStore(cfg *config.Config, httpClient *http.Client, resilienceCfg resilience.Config, logger *zap.Logger) (port.Store, func(), error) {
	noop := func() {}

	switch cfg.StoreBackend {
	case config.StorePostgres:
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, noop, err
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, noop, err
		}
		logger.Info("using Postgres as data backend")
		return postgres.New(db, logger), func() { _ = db.Close() }, nil

	case config.StoreMemory:
		logger.Warn("using in-memory store, data is lost on restart")
		return memstore.New(), noop, nil

	default:
		logger.Info("using Supabase as data backend", zap.String("supabase_url", cfg.SupabaseURL))
		client := supabase.NewClient(
			httpClient,
			cfg.SupabaseURL,
			cfg.SupabaseServiceKey,
			resilience.NewCircuitBreaker("supabase", logger),
			resilienceCfg,
			logger,
		)
		return client, noop, nil
	}
}
