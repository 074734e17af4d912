package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/quickshop/storefront/internal/domain"
	"github.com/quickshop/storefront/internal/gateway"
	"github.com/quickshop/storefront/internal/handlers"
	"github.com/quickshop/storefront/internal/platform/config"
	"github.com/quickshop/storefront/internal/platform/idempotency"
	"github.com/quickshop/storefront/internal/platform/observability"
	"github.com/quickshop/storefront/internal/services"
)

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("storefront")
	ctx = observability.WithLogger(ctx, logger)

	cfg, err := config.Load()
	if err != nil {
		var validationErr *config.ValidationError
		if errors.As(err, &validationErr) {
			logger.Fatal("invalid configuration", zap.Strings("fields", validationErr.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	pricing := domain.PricingConfig{
		TaxRateBps:            cfg.Pricing.TaxRateBps,
		FreeShippingThreshold: cfg.Pricing.FreeShippingThreshold,
		FlatShippingFee:       cfg.Pricing.FlatShippingFee,
	}
	events := observability.EventLogger(logger)

	var client *gateway.Client
	if baseURL := strings.TrimSpace(cfg.Upstream.BaseURL); baseURL != "" {
		client, err = gateway.NewClient(gateway.ClientDeps{
			BaseURL:     baseURL,
			Tokens:      gateway.NewTokenStore(),
			CallTimeout: cfg.Upstream.CallTimeout,
			Logger:      events,
		})
		if err != nil {
			logger.Fatal("failed to initialise upstream client", zap.Error(err))
		}
		logger.Info("upstream sync enabled", zap.String("base_url", baseURL))
	} else {
		logger.Info("no upstream configured; running with local state and fallbacks")
	}

	var cartBackend services.CartBackend
	var checkoutBackend services.CheckoutBackend
	var orderLookup handlers.RemoteOrderLookup
	if client != nil {
		cartBackend = client
		checkoutBackend = client
		orderLookup = client
	}

	cart := services.NewCartStore(services.CartStoreDeps{
		Backend: cartBackend,
		Pricing: pricing,
		Logger:  events,
	})
	archive := services.NewMemoryOrderArchive()
	checkout, err := services.NewCheckoutStore(services.CheckoutStoreDeps{
		Cart:    cart,
		Backend: checkoutBackend,
		Archive: archive,
		Pricing: pricing,
		Logger:  events,
	})
	if err != nil {
		logger.Fatal("failed to initialise checkout store", zap.Error(err))
	}
	wizard, err := services.NewWizard(checkout)
	if err != nil {
		logger.Fatal("failed to initialise checkout wizard", zap.Error(err))
	}

	if client != nil {
		cart.Load(ctx)
	}

	router := handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger),
			observability.TraceMiddleware(),
			observability.RequestLoggerMiddleware(),
			observability.RecoveryMiddleware(logger),
			idempotency.Middleware(
				idempotency.NewMemoryStore(),
				idempotency.WithMethods(http.MethodPost),
				idempotency.WithLogger(zap.NewStdLog(logger)),
			),
		),
		handlers.WithCartRoutes(handlers.NewCartHandlers(cart).Routes),
		handlers.WithCheckoutRoutes(handlers.NewCheckoutHandlers(
			checkout, wizard,
			handlers.WithPaymentIntents(cfg.Features.EnablePaymentIntents),
		).Routes),
		handlers.WithOrderRoutes(handlers.NewOrderHandlers(archive, orderLookup).Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("storefront session api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
