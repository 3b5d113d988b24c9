// Command worker runs the long-lived consumer loop described in spec.md
// §4.5: consume from the quantum_tasks queue, claim, execute the circuit,
// commit the outcome, and acknowledge.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	amqpbroker "github.com/fairyhunter13/quantum-tasks/internal/adapter/broker/amqp"
	"github.com/fairyhunter13/quantum-tasks/internal/adapter/observability"
	"github.com/fairyhunter13/quantum-tasks/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/quantum-tasks/internal/adapter/simulator/stub"
	"github.com/fairyhunter13/quantum-tasks/internal/config"
	"github.com/fairyhunter13/quantum-tasks/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)
	observability.InitMetrics()

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(":9090", mux); err != nil { //nolint:gosec // internal metrics endpoint, no external exposure expected
			slog.Error("worker metrics server error", slog.Any("error", err))
		}
	}()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	slog.Info("starting worker", slog.String("env", cfg.Environment))

	ctx := context.Background()

	pool, err := postgres.NewPoolWithLimits(ctx, cfg.DatabaseURL, cfg.DBPoolMaxConns, cfg.DBPoolMinConns)
	if err != nil {
		slog.Error("database connection failed", slog.Any("error", err))
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

	// The simulator backend is out of scope per spec.md §1 (an opaque
	// synchronous execute(circuit, shots) function); this process wires a
	// deterministic in-process stand-in so the pipeline runs end to end.
	// Swap for a real binding behind the same domain.Simulator port.
	simulator := stub.New()

	w := worker.New(broker, store, simulator, worker.Config{
		PoolSize:        cfg.WorkerPoolSize,
		ShutdownTimeout: cfg.WorkerShutdownTimeout,
	})
	w.Start(ctx)

	slog.Info("worker started successfully, waiting for shutdown signal",
		slog.Int("pool_size", cfg.WorkerPoolSize))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh
	slog.Info("signal received, shutting down", slog.String("signal", sig.String()))

	w.Stop(context.Background())
	slog.Info("worker stopped")
}
