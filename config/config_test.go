package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leasecheck-backend/storage"
)

var configKeys = []string{
	"PORT", "DATABASE_URL", "ANALYSIS_BACKEND", "GEMINI_API_KEY", "GEMINI_MODEL",
	"GEMINI_EMBEDDING_MODEL", "RULE_TABLE_PATH", "CORPUS_PATH", "STORAGE_TYPE",
	"STORAGE_LOCAL_PATH", "AWS_S3_BUCKET", "AWS_REGION", "AWS_S3_PREFIX",
	"AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY", "ARCHIVE_REPORTS", "RETRIEVAL_TOP_K",
	"ANALYSIS_CONCURRENCY", "DEFAULT_JURISDICTION", "LOG_LEVEL", "LOG_FORMAT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, BackendMock, cfg.Backend)
	assert.False(t, cfg.UsesDatabase())
	assert.Equal(t, storage.StorageTypeLocal, cfg.Storage.Type)
	assert.Equal(t, "./storage/files", cfg.Storage.LocalPath)
	assert.Equal(t, "us-east-1", cfg.Storage.S3Region)
	assert.False(t, cfg.ArchiveReports)
	assert.Equal(t, 5, cfg.RetrievalTopK)
	assert.Equal(t, 8, cfg.AnalysisConcurrency)
	assert.Equal(t, "NSW", cfg.DefaultJurisdiction)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://localhost/leasecheck")
	t.Setenv("ANALYSIS_BACKEND", "Gemini")
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("STORAGE_TYPE", "s3")
	t.Setenv("AWS_S3_BUCKET", "leasecheck-reports")
	t.Setenv("ARCHIVE_REPORTS", "true")
	t.Setenv("RETRIEVAL_TOP_K", "3")
	t.Setenv("DEFAULT_JURISDICTION", "vic")
	t.Setenv("RULE_TABLE_PATH", "rules/2025.yaml")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.True(t, cfg.UsesDatabase())
	assert.Equal(t, BackendGemini, cfg.Backend)
	assert.Equal(t, storage.StorageTypeS3, cfg.Storage.Type)
	assert.Equal(t, "leasecheck-reports", cfg.Storage.S3Bucket)
	assert.True(t, cfg.ArchiveReports)
	assert.Equal(t, 3, cfg.RetrievalTopK)
	assert.Equal(t, "VIC", cfg.DefaultJurisdiction)
	assert.Equal(t, "rules/2025.yaml", cfg.RuleTablePath)
}

func TestFromEnvValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"gemini without key", map[string]string{"ANALYSIS_BACKEND": "gemini"}},
		{"unknown backend", map[string]string{"ANALYSIS_BACKEND": "openai"}},
		{"s3 without bucket", map[string]string{"STORAGE_TYPE": "s3"}},
		{"unknown storage", map[string]string{"STORAGE_TYPE": "ftp"}},
		{"bad top k", map[string]string{"RETRIEVAL_TOP_K": "many"}},
		{"zero top k", map[string]string{"RETRIEVAL_TOP_K": "0"}},
		{"negative concurrency", map[string]string{"ANALYSIS_CONCURRENCY": "-2"}},
		{"bad bool", map[string]string{"ARCHIVE_REPORTS": "sometimes"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := FromEnv()
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}
