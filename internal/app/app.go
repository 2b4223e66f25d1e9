package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/contexta/internal/api/handlers"
	"github.com/markdave123-py/contexta/internal/config"
	"github.com/markdave123-py/contexta/internal/core"
	db "github.com/markdave123-py/contexta/internal/core/database"
	"github.com/markdave123-py/contexta/internal/core/ingestion_engine"
	"github.com/markdave123-py/contexta/internal/core/llm"
	objectclient "github.com/markdave123-py/contexta/internal/core/object-client"
	"github.com/markdave123-py/contexta/internal/core/retrieval"
	"github.com/markdave123-py/contexta/internal/services"
)

const shutdownTimeout = 30 * time.Second

// App owns every long-lived client. Nothing is global: each collaborator is
// constructed here and passed down explicitly.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	Runner    *ingestion_engine.Runner
	Documents *services.DocumentService
	Answers   *services.AnswerService
	Server    *Server

	closers []func() error
}

// components are the external clients the app is assembled from.
type components struct {
	db       core.DbClient
	pool     handlers.PoolStats
	objects  core.ObjectClient
	embedder core.QueryEmbedder
	llm      core.LLMProvider
}

func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	var closers []func() error
	fail := func(err error) (*App, error) {
		closeAll(closers, logger)
		return nil, err
	}

	dbClient, err := db.NewDatabaseClient(appCtx, cfg, logger)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, dbClient.Close)

	objClient, err := objectclient.NewS3Client(appCtx, cfg, logger)
	if err != nil {
		return fail(err)
	}
	logger.Info("object client initialized", "bucket", cfg.BucketName)

	provider, generator, providerClosers, err := newProviders(appCtx, cfg)
	closers = append(closers, providerClosers...)
	if err != nil {
		return fail(err)
	}

	opts := []llm.BatchOption{
		llm.WithBatchSize(cfg.EmbedBatchSize),
		llm.WithRateLimit(cfg.EmbedRPS),
	}
	if cfg.EmbedCacheDir != "" {
		cache, err := llm.OpenEmbeddingCache(cfg.EmbedCacheDir, cfg.EmbedModel)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, cache.Close)
		opts = append(opts, llm.WithCache(cache))
	}
	embedder, err := llm.NewBatchEmbedder(provider, cfg.EmbedDim, opts...)
	if err != nil {
		return fail(err)
	}

	a, err := assemble(cfg, components{
		db:       dbClient,
		pool:     dbClient,
		objects:  objClient,
		embedder: embedder,
		llm:      llm.NewRetryingLLM(generator, llm.GenerateRetryPolicy()),
	}, logger)
	if err != nil {
		return fail(err)
	}
	a.closers = append(closers, a.closers...)
	return a, nil
}

// newProviders picks the embedding and generation backends named by AI_PROVIDER.
func newProviders(ctx context.Context, cfg *config.Config) (core.EmbeddingProvider, core.LLMProvider, []func() error, error) {
	gen := llm.GenerationOptions{
		Temperature: float32(cfg.GenTemperature),
		MaxTokens:   int32(cfg.GenMaxTokens),
	}

	switch cfg.AIProvider {
	case "openai":
		p, err := llm.NewOpenAIProvider(llm.OpenAIConfig{
			APIKey:     cfg.AIAPIKey,
			BaseURL:    cfg.AIBaseURL,
			EmbedModel: cfg.EmbedModel,
			GenModel:   cfg.GenModel,
			Generation: gen,
		})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("couldn't initialize the openai provider: %w", err)
		}
		return p, p, nil, nil
	default:
		p, err := llm.NewGeminiProvider(ctx, llm.GeminiConfig{
			APIKey:     cfg.AIAPIKey,
			EmbedModel: cfg.EmbedModel,
			GenModel:   cfg.GenModel,
			Generation: gen,
		})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("couldn't initialize the gemini provider: %w", err)
		}
		return p, p, []func() error{p.Close}, nil
	}
}

// assemble builds the pipeline, services and HTTP server on top of comps.
func assemble(cfg *config.Config, comps components, logger *slog.Logger) (*App, error) {
	chunker, err := ingestion_engine.NewChunker(cfg.Chunker, cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	ingestor, err := ingestion_engine.NewDocumentIngestor(
		comps.db, comps.objects, comps.embedder,
		ingestion_engine.NewDocconvExtractor(false),
		chunker,
		ingestion_engine.IngestConfig{Bucket: cfg.BucketName, MaxFileBytes: cfg.MaxUploadBytes},
		logger,
	)
	if err != nil {
		return nil, err
	}
	runner, err := ingestion_engine.NewRunner(ingestor, cfg.IngestWorkers, logger)
	if err != nil {
		return nil, err
	}

	retriever, err := retrieval.NewRetriever(comps.embedder, comps.db, logger)
	if err != nil {
		return nil, err
	}
	sim, err := retrieval.NewSimilarity(cfg.Similarity)
	if err != nil {
		return nil, err
	}
	answers, err := services.NewAnswerService(retriever, retrieval.NewReranker(sim), comps.llm, logger)
	if err != nil {
		return nil, err
	}
	documents, err := services.NewDocumentService(comps.db, runner)
	if err != nil {
		return nil, err
	}

	router := NewRouter(
		handlers.NewDocumentHandler(documents, cfg.MaxUploadBytes, logger),
		handlers.NewChatHandler(answers, logger),
		handlers.NewHealthHandler(comps.pool, runner),
	)

	return &App{
		cfg:       cfg,
		logger:    logger,
		Runner:    runner,
		Documents: documents,
		Answers:   answers,
		Server:    NewServer(cfg.Port, router, logger),
		closers:   []func() error{func() error { return runner.Close(shutdownTimeout) }},
	}, nil
}

// RunOptions selects what Run keeps alive.
type RunOptions struct {
	Serve       bool
	WatchDir    string
	WatchUserID string // owner recorded on documents picked up from WatchDir
}

// Run serves HTTP and/or watches a folder until ctx is canceled or one of
// them fails.
func (a *App) Run(ctx context.Context, opts RunOptions) error {
	if !opts.Serve && opts.WatchDir == "" {
		return errors.New("nothing to run")
	}
	g, gctx := errgroup.WithContext(ctx)

	if opts.Serve {
		g.Go(a.Server.Start)
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return a.Server.Shutdown(shutdownCtx)
		})
	}
	if opts.WatchDir != "" {
		w, err := ingestion_engine.NewWatcher(a.Runner, ingestion_engine.WatcherOptions{UserID: opts.WatchUserID, Logger: a.logger})
		if err != nil {
			return err
		}
		g.Go(func() error {
			return w.Watch(gctx, opts.WatchDir)
		})
	}
	return g.Wait()
}

// Close releases clients in reverse order of creation.
func (a *App) Close() {
	closeAll(a.closers, a.logger)
	a.closers = nil
}

func closeAll(closers []func() error, logger *slog.Logger) {
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			logger.Warn("close failed", "err", err)
		}
	}
}
