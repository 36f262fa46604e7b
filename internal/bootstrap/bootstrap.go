// Package bootstrap composes the triage assistant processes from
// configuration: shared infrastructure first, then the pipeline, then the
// process-specific surface.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	httpadapter "github.com/myvet-app/triage-assistant/internal/adapters/http"
	"github.com/myvet-app/triage-assistant/internal/config"
	"github.com/myvet-app/triage-assistant/internal/core/usecase"
	"github.com/myvet-app/triage-assistant/internal/infrastructure/corpus/localfs"
	"github.com/myvet-app/triage-assistant/internal/infrastructure/export/excel"
	"github.com/myvet-app/triage-assistant/internal/infrastructure/index/jsonfile"
	"github.com/myvet-app/triage-assistant/internal/infrastructure/llm/openai"
	natsqueue "github.com/myvet-app/triage-assistant/internal/infrastructure/queue/nats"
	"github.com/myvet-app/triage-assistant/internal/infrastructure/repository/postgres"
	"github.com/myvet-app/triage-assistant/internal/infrastructure/resilience"
	"github.com/myvet-app/triage-assistant/internal/observability/metrics"
)

// API is the fully wired HTTP process.
type API struct {
	Handler  http.Handler
	Consults *postgres.ConsultRepository

	db    interface{ Close() error }
	queue *natsqueue.Queue
}

func NewAPI(ctx context.Context, cfg config.Config) (*API, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	consults := postgres.NewConsultRepository(db)
	if err := consults.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	queue, err := natsqueue.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, natsqueue.Options{
		ResilienceExecutor: resilience.NewExecutor(resilience.DefaultConfig()),
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect queue: %w", err)
	}

	executor := resilience.NewExecutor(providerResilienceConfig(cfg))
	client := openai.New(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.EmbedModel, cfg.ModelCandidates, executor)
	embedder := openai.NewEmbedder(client)
	generator := openai.NewGenerator(client)

	corpus := localfs.New(cfg.CorpusDir, usecase.NormalizeSpecies)
	indexStore := jsonfile.New(cfg.IndexPath)
	index := usecase.NewIndexService(corpus, indexStore, embedder, cfg.EmbeddingsEnabled)

	fallback, err := fallbackEngine(cfg)
	if err != nil {
		queue.Close()
		db.Close()
		return nil, err
	}

	orchestrator := usecase.NewConsultOrchestrator(
		index,
		embedder,
		generator,
		consults,
		queue,
		usecase.NewSchemaValidator(),
		fallback,
		usecase.TriageOptions{
			TopK:                    cfg.TriageTopK,
			SpeciesGatingEnabled:    cfg.SpeciesGatingEnabled,
			SchemaValidationEnabled: cfg.SchemaValidationEnabled,
			EmbeddingsEnabled:       cfg.EmbeddingsEnabled,
			InvalidOutputPolicy:     cfg.InvalidOutputPolicy,
		},
	)

	router := httpadapter.NewRouter(
		orchestrator,
		index,
		consults,
		excel.NewExporter(),
		metrics.NewHTTPServerMetrics("triage-api"),
		httpadapter.RouterConfig{
			RateLimitRPS:     cfg.APIRateLimitRPS,
			RateLimitBurst:   cfg.APIRateLimitBurst,
			ConsultListLimit: cfg.ConsultListLimit,
		},
	)

	slog.Info("api_bootstrap_complete",
		"corpus_dir", cfg.CorpusDir,
		"embeddings_enabled", cfg.EmbeddingsEnabled,
		"species_gating_enabled", cfg.SpeciesGatingEnabled,
		"invalid_output_policy", cfg.InvalidOutputPolicy,
		"provider_configured", cfg.OpenAIAPIKey != "",
	)

	return &API{
		Handler:  router.Handler(),
		Consults: consults,
		db:       db,
		queue:    queue,
	}, nil
}

func (a *API) Close() {
	if a.queue != nil {
		a.queue.Close()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			slog.Warn("db_close_failed", "error", err)
		}
	}
}

// Worker is the review-watch process: it consumes consult events and keeps
// the professional review queue visible.
type Worker struct {
	Consults *postgres.ConsultRepository
	Queue    *natsqueue.Queue
	Metrics  *metrics.WorkerMetrics

	db interface{ Close() error }
}

func NewWorker(ctx context.Context, cfg config.Config) (*Worker, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	consults := postgres.NewConsultRepository(db)
	if err := consults.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	queue, err := natsqueue.New(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect queue: %w", err)
	}

	return &Worker{
		Consults: consults,
		Queue:    queue,
		Metrics:  metrics.NewWorkerMetrics("triage-worker"),
		db:       db,
	}, nil
}

func (w *Worker) Close() {
	if w.Queue != nil {
		w.Queue.Close()
	}
	if w.db != nil {
		if err := w.db.Close(); err != nil {
			slog.Warn("db_close_failed", "error", err)
		}
	}
}

func providerResilienceConfig(cfg config.Config) resilience.Config {
	out := resilience.DefaultConfig()
	out.RetryMaxAttempts = cfg.RetryMaxAttempts
	out.RetryInitialBackoff = time.Duration(cfg.RetryInitialBackoffMs) * time.Millisecond
	out.RetryMaxBackoff = time.Duration(cfg.RetryMaxBackoffMs) * time.Millisecond
	out.RetryJitter = time.Duration(cfg.RetryJitterMs) * time.Millisecond
	out.BreakerEnabled = cfg.BreakerEnabled
	return out
}

func fallbackEngine(cfg config.Config) (*usecase.FallbackEngine, error) {
	if cfg.FallbackRulesPath == "" {
		return usecase.NewFallbackEngine(), nil
	}
	engine, err := usecase.NewFallbackEngineFromFile(cfg.FallbackRulesPath)
	if err != nil {
		return nil, fmt.Errorf("load fallback rules: %w", err)
	}
	return engine, nil
}
