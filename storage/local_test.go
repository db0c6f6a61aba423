package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoragePutGetDelete(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	s, err := NewLocalStorage(base)
	require.NoError(t, err)

	key := ReportKey("job-1")
	require.NoError(t, s.Put(ctx, key, strings.NewReader(`{"risk_level":"HIGH"}`), "application/json"))
	assert.FileExists(t, filepath.Join(base, "reports", "job-1.json"))

	rc, err := s.Get(ctx, key)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, `{"risk_level":"HIGH"}`, string(data))

	// overwrite
	require.NoError(t, s.Put(ctx, key, strings.NewReader("{}"), ""))
	rc, err = s.Get(ctx, key)
	require.NoError(t, err)
	data, _ = io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "{}", string(data))

	require.NoError(t, s.Delete(ctx, key))
	_, err = s.Get(ctx, key)
	assert.True(t, errors.Is(err, ErrNotFound))

	// deleting twice is fine
	assert.NoError(t, s.Delete(ctx, key))

	entries, err := os.ReadDir(filepath.Join(base, "reports"))
	require.NoError(t, err)
	assert.Empty(t, entries, "no temp files left behind")
}

func TestLocalStorageRejectsBadKeys(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "/etc/passwd", "../outside.json", "a/../../b", "."} {
		err := s.Put(ctx, key, strings.NewReader("x"), "")
		assert.True(t, errors.Is(err, ErrInvalidKey), "key %q", key)
	}
}

func TestCleanKey(t *testing.T) {
	got, err := cleanKey(`rules\default.yaml`)
	require.NoError(t, err)
	assert.Equal(t, "rules/default.yaml", got)

	got, err = cleanKey("reports/./a/../b.json")
	require.NoError(t, err)
	assert.Equal(t, "reports/b.json", got)
}

func TestNewStorage(t *testing.T) {
	s, err := NewStorage(StorageConfig{Type: StorageTypeLocal, LocalPath: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalStorage{}, s)

	_, err = NewStorage(StorageConfig{Type: StorageTypeS3})
	assert.Error(t, err)

	_, err = NewStorage(StorageConfig{Type: "ftp"})
	assert.Error(t, err)
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "application/json", contentTypeFor("reports/a.json"))
	assert.Equal(t, "application/yaml", contentTypeFor("rules.yml"))
	assert.Equal(t, "application/octet-stream", contentTypeFor("blob"))
}
