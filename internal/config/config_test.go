package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/promptlab/workbench/internal/config"
)

func TestLoad(t *testing.T) {
	t.Run("should apply defaults when environment is empty", func(t *testing.T) {
		cfg := config.Load()

		require.Equal(t, 8080, cfg.Server.Port)
		require.Equal(t, 180, cfg.Server.WriteTimeout)
		require.Equal(t, 120, cfg.Run.CallTimeout)
		require.Equal(t, "memory", cfg.History.Backend)
		require.Equal(t, 20, cfg.History.DefaultLimit)
		require.Equal(t, float64(60), cfg.Rate.RequestsPerMinute)
		require.Equal(t, 10, cfg.Rate.Burst)
		require.Equal(t, "https://api.openai.com/v1", cfg.OpenAI.BaseURL)
	})

	t.Run("should read overrides from environment", func(t *testing.T) {
		t.Setenv("SERVER_PORT", "9090")
		t.Setenv("RUN_CALL_TIMEOUT", "30")
		t.Setenv("HISTORY_BACKEND", "sqlite")
		t.Setenv("HISTORY_SQLITE_PATH", "/tmp/h.db")
		t.Setenv("RUN_INITIAL_BACKOFF", "250ms")
		t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")

		cfg := config.Load()

		require.Equal(t, 9090, cfg.Server.Port)
		require.Equal(t, 30, cfg.Run.CallTimeout)
		require.Equal(t, "sqlite", cfg.History.Backend)
		require.Equal(t, "/tmp/h.db", cfg.History.SQLitePath)
		require.Equal(t, 250*time.Millisecond, cfg.Rate.InitialBackoff)
		require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	})
}

func TestRunConfigTimeout(t *testing.T) {
	t.Run("should convert seconds to a duration", func(t *testing.T) {
		cfg := config.RunConfig{CallTimeout: 120}

		require.Equal(t, 2*time.Minute, cfg.Timeout())
	})
}

func TestParseDependenciesConfig(t *testing.T) {
	t.Run("should expose pointers into the parent config", func(t *testing.T) {
		cfg := config.Load()

		deps := config.ParseDependenciesConfig(cfg)

		require.Same(t, &cfg.Server, deps.Server)
		require.Same(t, &cfg.Run, deps.Run)
		require.Same(t, &cfg.History, deps.History)
	})
}
