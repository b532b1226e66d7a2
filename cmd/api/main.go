package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/solentpay/payment-reconciler/internal/config"
	"github.com/solentpay/payment-reconciler/internal/handler"
	"github.com/solentpay/payment-reconciler/internal/logging"
	"github.com/solentpay/payment-reconciler/internal/middleware"
	"github.com/solentpay/payment-reconciler/internal/provider"
	"github.com/solentpay/payment-reconciler/internal/reconcile"
	"github.com/solentpay/payment-reconciler/internal/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Init("payment-reconciler", cfg.LogLevel, cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := repository.NewPostgresDB(ctx, cfg.DatabaseURL, repository.PoolConfig{
		MaxOpenConns:     cfg.DBMaxOpenConns,
		MaxIdleConns:     cfg.DBMaxIdleConns,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
	})
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	payments := repository.NewPaymentRepository(db)
	captures := repository.NewCaptureRepository(db)
	refunds := repository.NewRefundRepository(db)
	sessions := repository.NewPaymentSessionRepository(db)
	collections := repository.NewPaymentCollectionRepository(db)
	notifications := repository.NewNotificationRepository(db)

	saga := reconcile.NewService(payments, captures, refunds, sessions, collections, logger)

	providerClient := provider.NewRetryClient(
		provider.NewHTTPClient(cfg.ProviderAPIURL, cfg.ProviderAPIKey),
		time.Duration(cfg.ProviderRetryMaxElapsedS)*time.Second,
	)
	modifications := reconcile.NewModificationService(payments, providerClient)

	worker := reconcile.NewWorker(
		notifications, saga, logger,
		time.Duration(cfg.ReconcileIntervalMS)*time.Millisecond,
		cfg.ReconcileBatchSize,
	)
	go worker.Start(ctx)

	webhookHandler := handler.NewWebhookHandler(notifications, cfg.WebhookSecret)
	modificationHandler := handler.NewModificationHandler(modifications)
	healthHandler := handler.NewHealthHandler(db)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhooks/provider", webhookHandler.ReceiveNotifications)
	mux.HandleFunc("POST /payments/{id}/capture", modificationHandler.Capture)
	mux.HandleFunc("POST /payments/{id}/refund", modificationHandler.Refund)
	mux.HandleFunc("POST /payments/{id}/cancel", modificationHandler.Cancel)
	mux.HandleFunc("GET /health/live", healthHandler.Liveness)
	mux.HandleFunc("GET /health/ready", healthHandler.Readiness)

	chain := middleware.RequestID(middleware.Logging(middleware.Recovery(mux)))

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           chain,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("server started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
