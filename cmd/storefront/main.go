package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jafarshop/storefront/internal/api"
	"github.com/jafarshop/storefront/internal/app"
	"github.com/jafarshop/storefront/internal/cart"
	"github.com/jafarshop/storefront/internal/config"
	"github.com/jafarshop/storefront/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx := context.Background()
	backends, err := app.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open storage", zap.Error(err))
	}
	defer backends.Close()

	services := service.NewServices(backends.Repos, backends.KV, service.Options{
		Pricing: service.NewPricing(cfg.Checkout),
		Orders: service.OrderOptions{
			Currency:       cfg.Checkout.Currency,
			DecrementStock: cfg.Checkout.DecrementStock,
			Events:         backends.Events,
		},
		Carts: cart.RegistryOptions{Size: cfg.Carts.CacheSize, IdleTTL: cfg.Carts.IdleTTL},
	}, logger)

	if n, err := services.Catalog.SeedSampleProducts(ctx); err != nil {
		logger.Warn("Failed to seed sample products", zap.Error(err))
	} else if n > 0 {
		logger.Info("Catalog was empty, sample products added", zap.Int("count", n))
	}

	if cfg.Admin.Email != "" {
		if _, err := services.Auth.CreateAdmin(ctx, "Admin", cfg.Admin.Email, cfg.Admin.Password); err != nil {
			logger.Warn("Failed to seed admin", zap.String("email", cfg.Admin.Email), zap.Error(err))
		}
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(cfg, services, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		logger.Info("Storefront listening",
			zap.String("port", cfg.Port),
			zap.String("storage", cfg.Storage.Backend),
			zap.String("orders", cfg.Storage.OrderBackend),
			zap.String("catalog", cfg.Storage.CatalogBackend),
			zap.Bool("order_events", cfg.Events.Enabled()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to serve", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down storefront...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
	logger.Info("Storefront stopped")
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
	}

	zapCfg := zap.NewDevelopmentConfig()
	if cfg.IsProduction() {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}
