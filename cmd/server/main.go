// Command server starts the quantum-tasks HTTP submission/query surface
// described in spec.md §4.6: POST /tasks, GET /tasks/{task_id}, GET /health.
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

	amqpbroker "github.com/fairyhunter13/quantum-tasks/internal/adapter/broker/amqp"
	httpserver "github.com/fairyhunter13/quantum-tasks/internal/adapter/httpserver"
	"github.com/fairyhunter13/quantum-tasks/internal/adapter/observability"
	"github.com/fairyhunter13/quantum-tasks/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/quantum-tasks/internal/app"
	"github.com/fairyhunter13/quantum-tasks/internal/config"
	"github.com/fairyhunter13/quantum-tasks/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)
	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx := context.Background()

	pool, err := postgres.NewPoolWithLimits(ctx, cfg.DatabaseURL, cfg.DBPoolMaxConns, cfg.DBPoolMinConns)
	if err != nil {
		slog.Error("db connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	store := postgres.NewTaskStore(pool)

	broker, err := amqpbroker.Dial(ctx, amqpbroker.Config{
		URL:             cfg.RabbitMQURL,
		QueueName:       cfg.QueueName,
		Prefetch:        cfg.BrokerPrefetch,
		ConnectInitial:  cfg.BrokerConnectInitialInterval,
		ConnectMax:      cfg.BrokerConnectMaxInterval,
		ConnectMaxRetry: cfg.BrokerConnectMaxRetries,
		ConnectTimeout:  cfg.BrokerConnectTimeout,
	})
	if err != nil {
		slog.Error("broker connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := broker.Close(); err != nil {
			slog.Error("failed to close broker connection", slog.Any("error", err))
		}
	}()

	coordinator := usecase.NewCoordinator(store, broker)
	dbCheck, brokerCheck := app.BuildReadinessChecks(store, broker)
	srv := httpserver.NewServer(coordinator, dbCheck, brokerCheck)

	handler := app.BuildRouter(cfg, srv)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port))
		errCh <- srvHTTP.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = srvHTTP.Shutdown(shutdownCtx)
}
