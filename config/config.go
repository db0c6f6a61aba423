// Package config reads service settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"leasecheck-backend/storage"
)

// Backend selects the extraction and embedding implementation
type Backend string

const (
	BackendMock   Backend = "mock"
	BackendGemini Backend = "gemini"
)

// ErrInvalidConfig wraps every validation failure
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all runtime settings
type Config struct {
	Port        string
	DatabaseURL string

	Backend         Backend
	GeminiAPIKey    string
	GenerationModel string
	EmbeddingModel  string

	// RuleTablePath is a storage key for a rule table YAML. Empty uses the
	// embedded default table.
	RuleTablePath string
	// CorpusPath is a storage key for the legislation corpus used by the
	// in-memory index. Empty uses the embedded sample corpus.
	CorpusPath string

	Storage        storage.StorageConfig
	ArchiveReports bool

	RetrievalTopK       int
	AnalysisConcurrency int
	DefaultJurisdiction string

	LogLevel  string
	LogFormat string
}

// Load reads .env (current directory, then the project root relative to
// cmd/<name>/) and then the environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		_ = godotenv.Load("../../.env")
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables only
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:            getenv("PORT", "8080"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		Backend:         Backend(strings.ToLower(getenv("ANALYSIS_BACKEND", string(BackendMock)))),
		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		GenerationModel: os.Getenv("GEMINI_MODEL"),
		EmbeddingModel:  os.Getenv("GEMINI_EMBEDDING_MODEL"),
		RuleTablePath:   os.Getenv("RULE_TABLE_PATH"),
		CorpusPath:      os.Getenv("CORPUS_PATH"),
		Storage: storage.StorageConfig{
			Type:         storage.StorageType(strings.ToLower(getenv("STORAGE_TYPE", string(storage.StorageTypeLocal)))),
			LocalPath:    getenv("STORAGE_LOCAL_PATH", "./storage/files"),
			S3Bucket:     os.Getenv("AWS_S3_BUCKET"),
			S3Region:     getenv("AWS_REGION", "us-east-1"),
			S3Prefix:     os.Getenv("AWS_S3_PREFIX"),
			AWSAccessKey: os.Getenv("AWS_ACCESS_KEY_ID"),
			AWSSecretKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		},
		DefaultJurisdiction: strings.ToUpper(getenv("DEFAULT_JURISDICTION", "NSW")),
		LogLevel:            getenv("LOG_LEVEL", "info"),
		LogFormat:           getenv("LOG_FORMAT", "json"),
	}

	var err error
	if cfg.ArchiveReports, err = getBool("ARCHIVE_REPORTS", false); err != nil {
		return nil, err
	}
	if cfg.RetrievalTopK, err = getInt("RETRIEVAL_TOP_K", 5); err != nil {
		return nil, err
	}
	if cfg.AnalysisConcurrency, err = getInt("ANALYSIS_CONCURRENCY", 8); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that cannot be defaulted
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMock:
	case BackendGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY is required for the gemini backend", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown ANALYSIS_BACKEND %q", ErrInvalidConfig, c.Backend)
	}

	switch c.Storage.Type {
	case storage.StorageTypeLocal:
	case storage.StorageTypeS3:
		if c.Storage.S3Bucket == "" {
			return fmt.Errorf("%w: AWS_S3_BUCKET is required for S3 storage", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown STORAGE_TYPE %q", ErrInvalidConfig, c.Storage.Type)
	}

	if c.RetrievalTopK <= 0 {
		return fmt.Errorf("%w: RETRIEVAL_TOP_K must be positive", ErrInvalidConfig)
	}
	if c.AnalysisConcurrency <= 0 {
		return fmt.Errorf("%w: ANALYSIS_CONCURRENCY must be positive", ErrInvalidConfig)
	}
	return nil
}

// UsesDatabase reports whether a Postgres connection is configured
func (c *Config) UsesDatabase() bool {
	return c.DatabaseURL != ""
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer: %v", ErrInvalidConfig, key, err)
	}
	return n, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be a boolean: %v", ErrInvalidConfig, key, err)
	}
	return b, nil
}
