package common

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"INVOICE_CONFIG", "LLM_PROVIDER", "GEMINI_API_KEY", "OPENAI_API_KEY", "RASTER_DPI",
		"RETRY_MAX_ATTEMPTS", "RETRY_MIN_WAIT", "PAGE_DELAY", "LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ProviderGemini, cfg.LLM.Provider)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 10*time.Second, cfg.Retry.MinWait)
	assert.Equal(t, 60*time.Second, cfg.Retry.MaxWait)
	assert.Equal(t, 2.0, cfg.Retry.Multiplier)
	assert.Equal(t, 5*time.Second, cfg.Pipeline.PageDelay)
	assert.Equal(t, 150, cfg.Raster.DPI)
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := "llm:\n  gemini_api_key: file-key\nretry:\n  max_attempts: 5\n  min_wait: 2s\nraster:\n  dpi: 300\nlog_level: debug\n"
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))
	t.Setenv("INVOICE_CONFIG", path)
	t.Setenv("RASTER_DPI", "200")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "file-key", cfg.APIKey())
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Retry.MinWait)
	assert.Equal(t, 200, cfg.Raster.DPI, "env overrides file")
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigBadFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("INVOICE_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := LoadConfig()
	require.Error(t, err)

	var appErr *AppError
	assert.True(t, errors.As(err, &appErr))
	assert.Equal(t, "CONFIG_ERROR", appErr.Code)
}

func TestValidateMissingAPIKey(t *testing.T) {
	cfg := DefaultConfig()

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfig)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")

	cfg.LLM.Provider = ProviderOpenAI
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}

func TestValidateRanges(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLM.GeminiAPIKey = "k"
	cfg.Raster.DPI = 20
	cfg.Retry.MaxAttempts = 0
	cfg.Retry.MaxWait = time.Second

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RASTER_DPI")
	assert.Contains(t, err.Error(), "RETRY_MAX_ATTEMPTS")
	assert.Contains(t, err.Error(), "RETRY_MAX_WAIT")

	cfg.LLM.Provider = "bard"
	cfg.Raster.DPI = 150
	cfg.Retry.MaxAttempts = 3
	cfg.Retry.MaxWait = time.Minute
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be one of gemini, openai")
}

func TestValidateRetryMultiplier(t *testing.T) {
	clearEnv(t)
	t.Setenv("RETRY_MULTIPLIER", "0.5")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	cfg.LLM.GeminiAPIKey = "k"
	assert.Equal(t, 0.5, cfg.Retry.Multiplier)

	err = cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfig)
	assert.Contains(t, err.Error(), "RETRY_MULTIPLIER")

	cfg.Retry.Multiplier = 1
	assert.NoError(t, cfg.Validate())
}
