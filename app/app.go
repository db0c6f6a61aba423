// Package app wires configuration into a ready analysis service. The HTTP
// server and the CLI share it so both run the same pipeline.
package app

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"leasecheck-backend/answer"
	"leasecheck-backend/config"
	"leasecheck-backend/extract"
	"leasecheck-backend/models"
	"leasecheck-backend/repository"
	"leasecheck-backend/retrieval"
	"leasecheck-backend/rules"
	"leasecheck-backend/service"
	"leasecheck-backend/storage"
)

// App holds the long-lived dependencies of a running process
type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	Storage storage.Storage
	DB      *pgxpool.Pool
	Gemini  *genai.Client
	Table   *rules.Table
	Service *service.AnalysisService

	retriever *retrieval.Retriever
}

// New builds the analysis service described by cfg. Any failure to load the
// rule table aborts: the service never runs with an undefined rule set.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	var err error
	a.Storage, err = storage.NewStorage(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	a.Table, err = LoadRuleTable(ctx, a.Storage, cfg.RuleTablePath)
	if err != nil {
		return nil, err
	}
	logger.Info("Rule table loaded",
		zap.String("version", a.Table.Version()),
		zap.Int("jurisdictions", len(a.Table.Jurisdictions())))

	if cfg.UsesDatabase() {
		a.DB, err = OpenPostgres(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, err
		}
	}

	if cfg.Backend == config.BackendGemini {
		a.Gemini, err = genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize Gemini: %w", err)
		}
		logger.Info("Gemini client initialized")
	}

	index, err := a.buildIndex(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.retriever = retrieval.New(index,
		retrieval.WithLogger(logger),
		retrieval.WithTopK(cfg.RetrievalTopK))

	opts := []service.AnalysisServiceOption{
		service.WithRetriever(a.retriever),
		service.WithLogger(logger),
		service.WithConcurrency(cfg.AnalysisConcurrency),
		service.WithDefaultJurisdiction(cfg.DefaultJurisdiction),
	}
	if a.Gemini != nil {
		opts = append(opts, service.WithExtractor(extract.NewGeminiExtractor(a.Gemini, cfg.GenerationModel)))
		opts = append(opts, service.WithAnswerer(answer.NewGeminiGenerator(a.Gemini, cfg.GenerationModel)))
	}
	if a.DB != nil {
		opts = append(opts, service.WithJobStore(repository.NewAnalysisJobRepository(a.DB)))
	}
	if cfg.ArchiveReports {
		opts = append(opts, service.WithReportArchive(a.Storage))
	}

	a.Service = service.NewAnalysisService(rules.NewEngine(a.Table), opts...)
	return a, nil
}

// buildIndex picks the pgvector index when both Postgres and Gemini are
// configured and the in-memory sample corpus otherwise
func (a *App) buildIndex(ctx context.Context) (retrieval.Index, error) {
	if a.DB != nil && a.Gemini != nil {
		a.Logger.Info("Using pgvector legislation index")
		embedder := retrieval.NewGeminiEmbedder(a.Gemini, a.Config.EmbeddingModel)
		return retrieval.NewPgIndex(embedder, repository.NewLegalChunkRepository(a.DB)), nil
	}

	chunks, err := LoadCorpus(ctx, a.Storage, a.Config.CorpusPath)
	if err != nil {
		return nil, err
	}
	a.Logger.Info("Using in-memory legislation index", zap.Int("chunks", len(chunks)))
	return retrieval.NewMemoryIndex(chunks), nil
}

// Close releases every held resource
func (a *App) Close() {
	if a.retriever != nil {
		if err := a.retriever.Close(); err != nil {
			a.Logger.Warn("Failed to close retriever", zap.Error(err))
		}
	}
	if a.Gemini != nil {
		if err := a.Gemini.Close(); err != nil {
			a.Logger.Warn("Failed to close Gemini client", zap.Error(err))
		}
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

// LoadRuleTable reads the rule table at key from store, or the embedded
// default when key is empty
func LoadRuleTable(ctx context.Context, store storage.Storage, key string) (*rules.Table, error) {
	if key == "" {
		return rules.DefaultTable()
	}

	rc, err := store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule table %s: %w", key, err)
	}
	defer rc.Close()

	table, err := rules.LoadTable(rc)
	if err != nil {
		return nil, fmt.Errorf("rule table %s: %w", key, err)
	}
	return table, nil
}

// LoadCorpus reads a legislation corpus YAML from store, or the embedded
// sample corpus when key is empty
func LoadCorpus(ctx context.Context, store storage.Storage, key string) ([]models.LegalChunk, error) {
	if key == "" {
		return retrieval.DefaultCorpus()
	}

	rc, err := store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus %s: %w", key, err)
	}
	defer rc.Close()

	chunks, err := retrieval.LoadCorpus(rc)
	if err != nil {
		return nil, fmt.Errorf("corpus %s: %w", key, err)
	}
	return chunks, nil
}

// OpenPostgres connects to Postgres and enables pgvector
func OpenPostgres(ctx context.Context, connString string, logger *zap.Logger) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	// Enable pgvector extension
	if _, err := pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		logger.Warn("Failed to create pgvector extension; it may already exist or need superuser privileges",
			zap.Error(err))
	}

	logger.Info("Postgres connection established with pgvector support")
	return pool, nil
}
