package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	DoctorDBPath string            `json:"doctor_db_path"`
	LogConfig    logger.LogConfig  `json:"log_config"`
	DocStore     DocStoreConfig    `json:"docstore"`
	VectorIndex  VectorIndexConfig `json:"vector_index"`
	AI           AIConfig          `json:"ai"`
	Ingest       IngestConfig      `json:"ingest"`
	TopK         int               `json:"top_k"`
}

type DocStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type VectorIndexConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// AIEndpointConfig selects one provider+model pair; Data carries the
// provider-specific settings (api key, base url). Fallbacks are tried in
// order when the primary endpoint fails.
type AIEndpointConfig struct {
	Provider  string             `json:"provider"`
	Model     string             `json:"model"`
	Data      interface{}        `json:"data"`
	Fallbacks []AIEndpointConfig `json:"fallbacks,omitempty"`
}

type AIConfig struct {
	Embedder         AIEndpointConfig `json:"embedder"`
	Answerer         AIEndpointConfig `json:"answerer"`
	Triage           AIEndpointConfig `json:"triage"`
	TimeoutSec       int              `json:"timeout_sec"`
	EmbedCacheSize   int              `json:"embed_cache_size"`
	EmbedCacheTTLMin int              `json:"embed_cache_ttl_min"`
}

type IngestConfig struct {
	CronSpec  string `json:"cron_spec"`
	BatchSize int    `json:"batch_size"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.DoctorDBPath == "" {
		return nil, fmt.Errorf("doctor_db_path is required")
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.DocStore.Type == "" {
		cfg.DocStore.Type = "local"
	}
	if cfg.VectorIndex.Type == "" {
		cfg.VectorIndex.Type = "memory"
	}
	if cfg.AI.Embedder.Provider == "" {
		return nil, fmt.Errorf("ai.embedder.provider is required")
	}
	if cfg.AI.Embedder.Model == "" {
		return nil, fmt.Errorf("ai.embedder.model is required")
	}
	if cfg.AI.Answerer.Provider == "" {
		return nil, fmt.Errorf("ai.answerer.provider is required")
	}
	if cfg.AI.Answerer.Model == "" {
		return nil, fmt.Errorf("ai.answerer.model is required")
	}
	// The triage call shares the answerer machinery; default it to the
	// same endpoint when not set explicitly.
	if cfg.AI.Triage.Provider == "" {
		cfg.AI.Triage = cfg.AI.Answerer
	}
	if cfg.AI.TimeoutSec <= 0 {
		cfg.AI.TimeoutSec = 30
	}
	if cfg.AI.EmbedCacheSize <= 0 {
		cfg.AI.EmbedCacheSize = 4096
	}
	if cfg.AI.EmbedCacheTTLMin <= 0 {
		cfg.AI.EmbedCacheTTLMin = 120
	}
	if cfg.Ingest.CronSpec == "" {
		cfg.Ingest.CronSpec = "0 3 * * *"
	}
	if cfg.Ingest.BatchSize <= 0 {
		cfg.Ingest.BatchSize = 64
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}
	return &cfg, nil
}
