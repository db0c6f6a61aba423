package main

import (
	"context"
	"log"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"leasecheck-backend/app"
	"leasecheck-backend/config"
	"leasecheck-backend/logging"
	"leasecheck-backend/repository"
	"leasecheck-backend/retrieval"
	"leasecheck-backend/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.GeminiAPIKey == "" {
		log.Fatal("GEMINI_API_KEY environment variable is required")
	}
	if !cfg.UsesDatabase() {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	logger, err := logging.New(cfg.LogLevel, "console")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx := context.Background()

	pool, err := app.OpenPostgres(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	// Verify table exists
	var tableExists bool
	err = pool.QueryRow(ctx, "SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_name = 'legal_chunks')").Scan(&tableExists)
	if err != nil {
		logger.Fatal("Failed to check table existence", zap.Error(err))
	}
	if !tableExists {
		logger.Fatal("legal_chunks table does not exist. Please run: go run ./cmd/create-schema")
	}

	store, err := storage.NewStorage(cfg.Storage)
	if err != nil {
		logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	chunks, err := app.LoadCorpus(ctx, store, cfg.CorpusPath)
	if err != nil {
		logger.Fatal("Failed to load corpus", zap.Error(err))
	}
	logger.Info("Corpus loaded", zap.Int("chunks", len(chunks)))

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		logger.Fatal("Failed to initialize Gemini", zap.Error(err))
	}
	defer client.Close()

	embedder := retrieval.NewGeminiDocumentEmbedder(client, cfg.EmbeddingModel)

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		// the citation is embedded with the text so section names are searchable
		texts[i] = c.SourceCitation + "\n" + c.Text
	}

	logger.Info("Generating embeddings")
	vectors, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		logger.Fatal("Failed to generate embeddings", zap.Error(err))
	}

	repo := repository.NewLegalChunkRepository(pool)
	stored := 0
	for i, chunk := range chunks {
		if err := repo.Insert(ctx, chunk, vectors[i]); err != nil {
			logger.Error("Failed to store chunk", zap.String("id", chunk.ID), zap.Error(err))
			continue
		}
		stored++
	}

	total, err := repo.Count(ctx)
	if err != nil {
		logger.Fatal("Failed to count chunks", zap.Error(err))
	}
	logger.Info("Legislation index built",
		zap.Int("stored", stored),
		zap.Int("failed", len(chunks)-stored),
		zap.Int("total_in_index", total))
}
