// Package bootstrap is the composition root: it resolves configuration
// into concrete infrastructure and hands the wired application to the
// entrypoints.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/ybolotov/deep-research/internal/config"
	"github.com/ybolotov/deep-research/internal/core/domain"
	"github.com/ybolotov/deep-research/internal/core/ports"
	"github.com/ybolotov/deep-research/internal/core/usecase"
	"github.com/ybolotov/deep-research/internal/infrastructure/acquire"
	"github.com/ybolotov/deep-research/internal/infrastructure/chunking"
	"github.com/ybolotov/deep-research/internal/infrastructure/fetchers"
	"github.com/ybolotov/deep-research/internal/infrastructure/llm/ollama"
	"github.com/ybolotov/deep-research/internal/infrastructure/queue/nats"
	"github.com/ybolotov/deep-research/internal/infrastructure/repository/postgres"
	"github.com/ybolotov/deep-research/internal/infrastructure/rerank"
	"github.com/ybolotov/deep-research/internal/infrastructure/resilience"
	"github.com/ybolotov/deep-research/internal/infrastructure/storage/localfs"
	"github.com/ybolotov/deep-research/internal/infrastructure/vector/flat"
	"github.com/ybolotov/deep-research/internal/observability/metrics"
)

type App struct {
	Config config.Config

	Queue       *nats.Queue
	Research    ports.ResearchService
	Transcripts ports.TranscriptStore
	Archive     *localfs.Archive

	HTTPMetrics    *metrics.HTTPServerMetrics
	SessionMetrics *metrics.SessionMetrics

	closeFn func()
}

// New wires the application for the given service name ("api", "worker"
// or "mcp"). The name only labels observability output.
func New(ctx context.Context, service string, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	transcripts := postgres.NewTranscriptRepository(db)
	if err := transcripts.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, executor)
	planner := ollama.NewPlanner(ollamaClient)
	writer := ollama.NewWriter(ollamaClient)
	evaluator := ollama.NewEvaluator(ollamaClient)
	embedder := ollama.NewEmbedder(ollamaClient)

	var reranker ports.Reranker
	if cfg.RerankURL != "" {
		reranker = rerank.New(cfg.RerankURL, cfg.RerankModel)
	}

	var archive *localfs.Archive
	if cfg.ArtifactsDir != "" {
		archive, err = localfs.New(cfg.ArtifactsDir)
		if err != nil {
			queue.Close()
			_ = db.Close()
			return nil, fmt.Errorf("init report archive: %w", err)
		}
	}

	sessionMetrics := metrics.NewSessionMetrics(service)

	research := usecase.NewResearch(usecase.Deps{
		Planner:      planner,
		Writer:       writer,
		Evaluator:    evaluator,
		Fetchers:     buildFetchers(cfg),
		Acquirer:     acquire.New(time.Duration(cfg.AcquirePauseMS) * time.Millisecond),
		Chunker:      chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		IndexFactory: indexFactory(cfg, embedder),
		Reranker:     reranker,
		Transcript:   transcripts,
		Observer:     &metricsObserver{metrics: sessionMetrics, service: service},
	}, usecase.Config{
		MaxRefinements:      cfg.MaxRefinements,
		MaxDispatches:       cfg.MaxDispatches,
		RetrievalK:          cfg.RetrievalK,
		MaxContextChunks:    cfg.MaxContextChunks,
		SimilarityThreshold: cfg.SimilarityThreshold,
		RerankThreshold:     cfg.RerankThreshold,
	})

	return &App{
		Config:         cfg,
		Queue:          queue,
		Research:       research,
		Transcripts:    transcripts,
		Archive:        archive,
		HTTPMetrics:    metrics.NewHTTPServerMetrics(service),
		SessionMetrics: sessionMetrics,
		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func buildFetchers(cfg config.Config) map[domain.SourceID]ports.SourceFetcher {
	out := map[domain.SourceID]ports.SourceFetcher{
		domain.SourceArxiv:           fetchers.NewArxiv("", cfg.SourceMaxResults),
		domain.SourceOpenAlex:        fetchers.NewOpenAlex("", cfg.ContactEmail, cfg.SourceMaxResults),
		domain.SourcePubMed:          fetchers.NewPubMed("", cfg.ContactEmail, cfg.SourceMaxResults),
		domain.SourceSemanticScholar: fetchers.NewSemanticScholar("", cfg.SemanticScholarKey, cfg.SourceMaxResults),
	}
	if cfg.MaterialsAPIKey != "" {
		out[domain.SourceMaterials] = fetchers.NewMaterials("", cfg.MaterialsAPIKey, cfg.SourceMaxResults)
	}
	return out
}

// indexFactory builds a fresh per-session index. Persistence is only
// enabled when both paths are configured; with one path set the factory
// still starts memory-only rather than writing half a pair.
func indexFactory(cfg config.Config, embedder ports.Embedder) func() ports.VectorIndex {
	return func() ports.VectorIndex {
		if cfg.IndexPath != "" && cfg.IndexStorePath != "" {
			idx, err := flat.Open(embedder, cfg.IndexPath, cfg.IndexStorePath)
			if err == nil {
				return idx
			}
		}
		return flat.New(embedder)
	}
}

type metricsObserver struct {
	metrics *metrics.SessionMetrics
	service string
}

func (o *metricsObserver) SessionStarted() {
	o.metrics.StartSession()
}

func (o *metricsObserver) SessionFinished(outcome string, duration time.Duration, refinements int) {
	o.metrics.FinishSession(o.service, outcome, duration, refinements)
}

func (o *metricsObserver) CapabilityDispatched(capability string) {
	o.metrics.RecordDispatch(o.service, capability)
}

func (o *metricsObserver) AcquireFailed(source string) {
	o.metrics.RecordAcquireFailure(o.service, source)
}

func (o *metricsObserver) ChunksIndexed(count int) {
	o.metrics.RecordIndexedChunks(o.service, count)
}

func (o *metricsObserver) ContextAssembled(kept int) {
	o.metrics.RecordContextChunks(o.service, kept)
}
