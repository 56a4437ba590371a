package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ModeRelease, cfg.Mode)
	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 8742, cfg.Port)
	assert.True(t, cfg.EnableProviders)
	assert.Contains(t, cfg.AudiobookExtensions, ".m4b")
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("mode: debug\nport: 9001\n"), 0o644))

	cfg, err := Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, ModeDebug, cfg.Mode)
	assert.Equal(t, 9001, cfg.Port)
	assert.Equal(t, "http://127.0.0.1:9001", cfg.BackendURL())
}

func TestLoadRejectsUnknownMode(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("mode: production\n"), 0o644))

	_, err := Load(cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid mode")
}

func TestModeFromEnvironment(t *testing.T) {
	t.Setenv("MEDIA_ORGANIZER_MODE", "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ModeDebug, cfg.Mode)
}

func TestKeysLoadedFromFiles(t *testing.T) {
	dir := t.TempDir()
	keysDir := filepath.Join(dir, "keys")
	require.NoError(t, os.MkdirAll(keysDir, 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(keysDir, "google_books_api_key.txt"), []byte("abc123\n"), 0o600))

	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath,
		[]byte("mode: debug\nkeys_dir: "+keysDir+"\n"), 0o644))

	cfg, err := Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "abc123", cfg.GoogleBooksAPIKey)
	assert.Empty(t, cfg.GeminiAPIKey)
}

func TestEnsureDataDir(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{
		DataDir:      filepath.Join(dir, "data"),
		DatabasePath: filepath.Join(dir, "data", "media_organizer.db"),
	}

	dbPath, err := cfg.EnsureDataDir()
	require.NoError(t, err)
	assert.Equal(t, cfg.DatabasePath, dbPath)
	assert.DirExists(t, filepath.Dir(dbPath))
}
