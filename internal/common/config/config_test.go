package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}

	applyDefaults(cfg)

	assert.Equal(t, "krishi-assistant", cfg.App.Name)
	assert.Equal(t, 5000, cfg.Server.Port)
	assert.InDelta(t, 0.40, cfg.Assistant.Classifier.HighThreshold, 1e-9)
	assert.InDelta(t, 0.28, cfg.Assistant.Classifier.LowThreshold, 1e-9)
	assert.Equal(t, "memory", cfg.Assistant.Classifier.CacheBackend)
	assert.Equal(t, 10000, cfg.Assistant.Classifier.CacheMaxSize)
	assert.Equal(t, "agri-documents", cfg.Assistant.Retriever.Index)
	assert.Equal(t, 3, cfg.Assistant.Retriever.DefaultTopK)
	assert.Equal(t, 200, cfg.Assistant.Chat.HistoryCap)
	assert.Equal(t, 5, cfg.Assistant.Chat.ContextTurns)
	assert.Equal(t, "llama-3.1-8b-instant", cfg.APIs.GenAI.Model)
	assert.Equal(t, "all-MiniLM-L6-v2", cfg.APIs.Embedding.Model)
}

func TestApplyDefaults_DoesNotOverrideExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.Server.Port = 8080
	cfg.Assistant.Classifier.HighThreshold = 0.6
	cfg.Assistant.Classifier.LowThreshold = 0.3

	applyDefaults(cfg)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.InDelta(t, 0.6, cfg.Assistant.Classifier.HighThreshold, 1e-9)
	assert.InDelta(t, 0.3, cfg.Assistant.Classifier.LowThreshold, 1e-9)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(cfg *Config) {},
		},
		{
			name: "thresholds inverted",
			mutate: func(cfg *Config) {
				cfg.Assistant.Classifier.HighThreshold = 0.2
				cfg.Assistant.Classifier.LowThreshold = 0.5
			},
			wantErr: "high_threshold",
		},
		{
			name: "thresholds equal",
			mutate: func(cfg *Config) {
				cfg.Assistant.Classifier.HighThreshold = 0.4
				cfg.Assistant.Classifier.LowThreshold = 0.4
			},
			wantErr: "high_threshold",
		},
		{
			name: "unknown cache backend",
			mutate: func(cfg *Config) {
				cfg.Assistant.Classifier.CacheBackend = "memcached"
			},
			wantErr: "cache_backend",
		},
		{
			name: "non-positive top k",
			mutate: func(cfg *Config) {
				cfg.Assistant.Retriever.DefaultTopK = -1
			},
			wantErr: "default_top_k",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			applyDefaults(cfg)
			tt.mutate(cfg)

			err := validateConfig(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestClassifierTTL(t *testing.T) {
	cfg := ClassifierConfig{CacheTTL: 3600}
	assert.Equal(t, time.Hour, cfg.TTL())
}

func TestElasticsearchGetURL(t *testing.T) {
	assert.Equal(t, "http://es:9200", ElasticsearchConfig{URL: "http://es:9200"}.GetURL())
	assert.Equal(t, "http://a:9200", ElasticsearchConfig{Addresses: []string{"http://a:9200", "http://b:9200"}}.GetURL())
	assert.Equal(t, "", ElasticsearchConfig{}.GetURL())
}
