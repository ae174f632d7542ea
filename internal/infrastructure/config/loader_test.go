package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rootassets "github.com/doeshing/vrelay/assets"
	"github.com/doeshing/vrelay/internal/domain"
)

func TestLoadWritesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	loader := NewFileLoader(path).WithEnvFiles()

	cfg, err := loader.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "groq-llama3", cfg.Preferences.DefaultModel)
	model, err := cfg.GetDefaultModel()
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderOpenAI, model.ResolvedProvider())
	assert.Equal(t, 3, cfg.GetMaxRetries())
	assert.Equal(t, []string{"exit", "quit", "stop"}, cfg.GetExitPhrases())
	assert.True(t, filepath.IsAbs(cfg.Cache.Path))

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, rootassets.DefaultConfigYAML, written)
}

func TestLoadHydratesPartialConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("models:\n  - name: local\n    provider: http\n    endpoint: http://localhost:8080\n"), 0o600))

	cfg, err := NewFileLoader(path).WithEnvFiles().Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "local", cfg.Preferences.DefaultModel)
	assert.Equal(t, "sqlite", cfg.History.Backend)
	assert.Equal(t, "stdin", cfg.Speech.Source)
	assert.Equal(t, domain.DefaultMaxHistoryRecords, cfg.History.MaxRecords)
	assert.Equal(t, 30, cfg.Execution.TimeoutSeconds)
}

func TestLoadRejectsInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("models: [unterminated"), 0o600))

	_, err := NewFileLoader(path).WithEnvFiles().Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), path)
}

func TestPathHonoursEnvironment(t *testing.T) {
	custom := filepath.Join(t.TempDir(), "custom.yaml")
	t.Setenv(EnvConfigPath, custom)
	assert.Equal(t, custom, NewFileLoader("").Path())
	assert.Equal(t, "/explicit.yaml", NewFileLoader("/explicit.yaml").Path())
}

func TestLoadReadsEnvFiles(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("VRELAY_LOADER_TEST_KEY=from-dotenv\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("VRELAY_LOADER_TEST_KEY") })

	loader := NewFileLoader(filepath.Join(dir, "config.yaml")).WithEnvFiles(envFile, filepath.Join(dir, "missing.env"))
	_, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", os.Getenv("VRELAY_LOADER_TEST_KEY"))
}

func TestDefaultAndMarshalRoundTrip(t *testing.T) {
	cfg := Default()
	raw, err := Marshal(cfg)
	require.NoError(t, err)
	again, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, cfg.Models, again.Models)
	assert.Len(t, cfg.Models, 3)
}
