// The worker watches consult lifecycle events and surfaces the professional
// review queue: every degraded consult is logged and counted so a vet can
// pick it up.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/myvet-app/triage-assistant/internal/bootstrap"
	"github.com/myvet-app/triage-assistant/internal/config"
	"github.com/myvet-app/triage-assistant/internal/core/domain"
	"github.com/myvet-app/triage-assistant/internal/observability/logging"
)

const serviceName = "triage-worker"

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	worker, err := bootstrap.NewWorker(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer worker.Close()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           metricsMux(worker),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics_server_failed", "error", err)
		}
	}()

	slog.Info("worker_started", "subject", cfg.NATSSubject)
	err = worker.Queue.SubscribeConsultCreated(ctx, func(ctx context.Context, consultID string, outcome domain.SubmitOutcome) error {
		return handleConsultCreated(ctx, worker, consultID, outcome)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("subscription_failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("metrics_server_shutdown_failed", "error", err)
	}
	slog.Info("worker_stopped")
}

func metricsMux(worker *bootstrap.Worker) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", worker.Metrics.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func handleConsultCreated(ctx context.Context, worker *bootstrap.Worker, consultID string, outcome domain.SubmitOutcome) error {
	start := time.Now()
	record, err := worker.Consults.GetByID(ctx, consultID)
	worker.Metrics.FinishEvent(serviceName, time.Since(start), err)
	if err != nil {
		return err
	}

	worker.Metrics.ObserveQueueLag(serviceName, time.Since(record.CreatedAt))

	if record.Note != "" || outcome != domain.OutcomeOK {
		worker.Metrics.RecordReviewFlag(serviceName, record.Note)
		slog.Info("consult_needs_review",
			"consult_id", record.ID,
			"outcome", string(outcome),
			"note", record.Note,
			"species", record.Species,
			"created_at", record.CreatedAt,
		)
		return nil
	}

	slog.Debug("consult_recorded", "consult_id", record.ID, "outcome", string(outcome))
	return nil
}
