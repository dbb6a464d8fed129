package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points HOME at a temp dir and clears every override.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".skillctx"), 0o755))
	return home
}

func writeHomeFile(t *testing.T, home, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(home, ".skillctx", name), []byte(content), 0o600))
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	home := isolate(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ".", cfg.CorpusRoot)
	assert.Equal(t, 8000, cfg.DefaultBudgetTokens)
	assert.Equal(t, 1.0, cfg.MinConfidence)
	assert.Equal(t, 0.8, cfg.RelativeMargin)
	assert.Equal(t, 3, cfg.MaxMatches)
	assert.Equal(t, runtime.GOMAXPROCS(0), cfg.Workers)
	assert.Equal(t, 30*time.Second, cfg.RescanTimeout)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, filepath.Join(home, ".skillctx", "cache"), cfg.CacheDir)
	assert.NotEmpty(t, cfg.Patterns)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	home := isolate(t)
	writeHomeFile(t, home, "skillctx.yaml", `
corpus_root: ~/corpus
default_budget_tokens: 2000
relative_margin: 0.5
rescan_timeout: 5s
patterns:
  - "**/agents/*.md"
`)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "corpus"), cfg.CorpusRoot)
	assert.Equal(t, 2000, cfg.DefaultBudgetTokens)
	assert.Equal(t, 0.5, cfg.RelativeMargin)
	assert.Equal(t, 5*time.Second, cfg.RescanTimeout)
	assert.Equal(t, []string{"**/agents/*.md"}, cfg.Patterns)
	assert.Equal(t, 1.0, cfg.MinConfidence, "unset keys keep defaults")
}

func TestLoad_Precedence(t *testing.T) {
	home := isolate(t)
	writeHomeFile(t, home, "skillctx.yaml", "default_budget_tokens: 2000\nmin_confidence: 2.5\nlog_level: info\n")
	writeHomeFile(t, home, ".env", "DEFAULT_BUDGET_TOKENS=3000\nMIN_CONFIDENCE=0.5\n")
	t.Setenv(EnvBudgetTokens, "4000")
	t.Setenv(EnvLogLevel, "DEBUG")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4000, cfg.DefaultBudgetTokens, "process env beats dotenv")
	assert.Equal(t, 0.5, cfg.MinConfidence, "dotenv beats file")
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_InvalidValues(t *testing.T) {
	home := isolate(t)
	t.Setenv(EnvWorkers, "many")
	_, err := Load()
	assert.ErrorContains(t, err, "SKILLCTX_WORKERS")

	t.Setenv(EnvWorkers, "")
	writeHomeFile(t, home, "skillctx.yaml", "default_budget_tokens: [1\n")
	_, err = Load()
	assert.ErrorContains(t, err, "invalid YAML")
}

func TestSave_RoundTrip(t *testing.T) {
	isolate(t)
	cfg, err := DefaultConfig()
	require.NoError(t, err)
	cfg.CorpusRoot = "/srv/corpus"
	cfg.RescanTimeout = 90 * time.Second
	require.NoError(t, Save(cfg))

	got, err := Load()
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestValidate(t *testing.T) {
	isolate(t)
	cfg, err := DefaultConfig()
	require.NoError(t, err)
	cfg.DefaultBudgetTokens = -1
	cfg.RelativeMargin = 1.5
	cfg.Workers = 0

	err = cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "default_budget_tokens")
	assert.ErrorContains(t, err, "relative_margin")
	assert.ErrorContains(t, err, "workers")
	assert.NotContains(t, err.Error(), "max_matches")
}
