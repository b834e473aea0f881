package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"doctor_db_path": "doctors.db",
		"ai": {
			"embedder": {"provider": "gemini", "model": "text-embedding-004", "data": {"key": "k"}},
			"answerer": {"provider": "gemini", "model": "gemini-2.0-flash", "data": {"key": "k"}}
		}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "local", cfg.DocStore.Type)
	require.Equal(t, "memory", cfg.VectorIndex.Type)
	require.Equal(t, "info", cfg.LogConfig.Level)
	require.Equal(t, 30, cfg.AI.TimeoutSec)
	require.Equal(t, 4096, cfg.AI.EmbedCacheSize)
	require.Equal(t, 120, cfg.AI.EmbedCacheTTLMin)
	require.Equal(t, "0 3 * * *", cfg.Ingest.CronSpec)
	require.Equal(t, 64, cfg.Ingest.BatchSize)
	require.Equal(t, 3, cfg.TopK)

	// Triage inherits the answerer endpoint when unset.
	require.Equal(t, cfg.AI.Answerer, cfg.AI.Triage)
}

func TestLoadKeepsExplicitValues(t *testing.T) {
	path := writeConfig(t, `{
		"doctor_db_path": "doctors.db",
		"top_k": 5,
		"ai": {
			"embedder": {"provider": "openai", "model": "text-embedding-3-small", "data": {"key": "k"}},
			"answerer": {"provider": "groq", "model": "llama-3.3-70b", "data": {"key": "k"}},
			"triage": {"provider": "gemini", "model": "gemini-2.0-flash", "data": {"key": "k"}},
			"timeout_sec": 10
		},
		"ingest": {"cron_spec": "*/30 * * * *", "batch_size": 16}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 5, cfg.TopK)
	require.Equal(t, 10, cfg.AI.TimeoutSec)
	require.Equal(t, "gemini", cfg.AI.Triage.Provider)
	require.Equal(t, "*/30 * * * *", cfg.Ingest.CronSpec)
	require.Equal(t, 16, cfg.Ingest.BatchSize)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing db path", `{"ai": {"embedder": {"provider": "gemini", "model": "m"}, "answerer": {"provider": "gemini", "model": "m"}}}`},
		{"missing embedder provider", `{"doctor_db_path": "d.db", "ai": {"embedder": {"model": "m"}, "answerer": {"provider": "gemini", "model": "m"}}}`},
		{"missing embedder model", `{"doctor_db_path": "d.db", "ai": {"embedder": {"provider": "gemini"}, "answerer": {"provider": "gemini", "model": "m"}}}`},
		{"missing answerer", `{"doctor_db_path": "d.db", "ai": {"embedder": {"provider": "gemini", "model": "m"}}}`},
		{"bad json", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}
