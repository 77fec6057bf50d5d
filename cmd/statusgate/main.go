package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"

	"github.com/neomorfeo/statusgate/internal/adapter/fsm"
	handler "github.com/neomorfeo/statusgate/internal/adapter/http"
	oteladapter "github.com/neomorfeo/statusgate/internal/adapter/otel"
	riveradapter "github.com/neomorfeo/statusgate/internal/adapter/river"
	"github.com/neomorfeo/statusgate/internal/adapter/sqlite"
	"github.com/neomorfeo/statusgate/internal/adapter/validator"
	"github.com/neomorfeo/statusgate/internal/app"
	"github.com/neomorfeo/statusgate/internal/config"
	"github.com/neomorfeo/statusgate/internal/domain"
)

const (
	serviceName    = "statusgate"
	serviceVersion = "0.1.0"
)

func main() {
	if err := run(); err != nil {
		slog.Error("statusgate stopped", "error", err)
		os.Exit(1)
	}
}

// run wires every adapter, serves HTTP until SIGINT or SIGTERM, then shuts
// down the server, the job queue and telemetry in that order.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger := cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Telemetry ---
	providers, err := oteladapter.Setup(ctx, oteladapter.ConfigFromEnv())
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Error("otel shutdown", "error", err)
		}
	}()

	// --- Adapters (out) ---
	db, err := oteladapter.OpenDB(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()

	store, err := sqlite.NewFromDB(db)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}

	queue, err := riveradapter.Setup(ctx, db, riveradapter.Options{
		MaxWorkers: cfg.RiverWorkers,
		Notifier:   riveradapter.LogNotifier{Logger: logger},
	})
	if err != nil {
		return fmt.Errorf("river: %w", err)
	}
	store.UseOutbox(oteladapter.NewTracingOutbox(riveradapter.NewOutbox(queue)))

	repo, err := oteladapter.NewTracingRepository(store)
	if err != nil {
		return fmt.Errorf("otel repository: %w", err)
	}

	payload, err := validator.New(func() time.Time { return time.Now().UTC() })
	if err != nil {
		return fmt.Errorf("payload validator: %w", err)
	}

	// --- Application ---
	registry := domain.DefaultRegistry()
	svc := app.NewEntityService(registry, repo, fsm.New(registry), payload, logger)

	// --- Adapters (in) ---
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(otelchi.Middleware(serviceName, otelchi.WithChiRoutes(router)))

	api := humachi.New(router, huma.DefaultConfig(serviceName, serviceVersion))
	handler.Register(api, svc)

	// The queue outlives the signal context so Stop can drain it.
	if err := queue.Start(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("river start: %w", err)
	}

	// --- Server ---
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("statusgate listening", "addr", srv.Addr, "docs", "http://localhost:"+cfg.Port+"/docs")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serveErr:
		stopQueue(queue, cfg.ShutdownTimeout, logger)
		return fmt.Errorf("server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	stopQueue(queue, cfg.ShutdownTimeout, logger)

	logger.Info("stopped")
	return nil
}

// stopQueue lets running jobs finish; pending ones stay queued for the next start.
func stopQueue(queue *riveradapter.Client, timeout time.Duration, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := queue.Stop(ctx); err != nil {
		logger.Error("river shutdown", "error", err)
	}
}
