package config

import "time"

// Config is the main application configuration struct.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	APIs      APIsConfig      `mapstructure:"apis"`
	Assistant AssistantConfig `mapstructure:"assistant"`
	Sellers   SellersConfig   `mapstructure:"sellers"`
	Schemes   SchemesConfig   `mapstructure:"schemes"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	ReadTimeout     int    `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int    `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type ElasticsearchConfig struct {
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	SSLEnabled bool     `mapstructure:"ssl_enabled"`
	URL        string   `mapstructure:"url"` // Single URL for backwards compatibility
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// APIsConfig holds settings for the external model oracles.
type APIsConfig struct {
	GenAI struct {
		BaseURL     string  `mapstructure:"base_url"`
		APIKey      string  `mapstructure:"api_key"`
		Model       string  `mapstructure:"model"`
		Timeout     int     `mapstructure:"timeout"` // milliseconds
		MaxRetries  int     `mapstructure:"max_retries"`
		MaxTokens   int     `mapstructure:"max_tokens"`
		Temperature float64 `mapstructure:"temperature"`
	} `mapstructure:"genai"`

	Embedding struct {
		BaseURL    string `mapstructure:"base_url"`
		APIKey     string `mapstructure:"api_key"`
		Model      string `mapstructure:"model"`
		Timeout    int    `mapstructure:"timeout"` // milliseconds
		MaxRetries int    `mapstructure:"max_retries"`
	} `mapstructure:"embedding"`
}

// AssistantConfig holds all tunables for the question-answering pipeline.
type AssistantConfig struct {
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Retriever  RetrieverConfig  `mapstructure:"retriever"`
	Chat       ChatConfig       `mapstructure:"chat"`
}

// ClassifierConfig controls the domain-classification cascade.
// HighThreshold must stay strictly above LowThreshold; similarity scores
// between the two fall through to the generative fallback stage.
type ClassifierConfig struct {
	HighThreshold float64  `mapstructure:"high_threshold"`
	LowThreshold  float64  `mapstructure:"low_threshold"`
	Keywords      []string `mapstructure:"keywords"`
	CacheBackend  string   `mapstructure:"cache_backend"`     // "memory" or "redis"
	CacheMaxSize  int      `mapstructure:"cache_max_size"`    // memory backend eviction bound
	CacheTTL      int      `mapstructure:"cache_ttl_seconds"` // redis backend eviction knob
}

func (c ClassifierConfig) TTL() time.Duration {
	return time.Duration(c.CacheTTL) * time.Second
}

type RetrieverConfig struct {
	Index       string `mapstructure:"index"`
	DefaultTopK int    `mapstructure:"default_top_k"`
	Timeout     int    `mapstructure:"timeout"` // milliseconds
}

type ChatConfig struct {
	HistoryCap   int `mapstructure:"history_cap"`   // max stored turns per room
	ContextTurns int `mapstructure:"context_turns"` // turns joined into prompt context
}

type SellersConfig struct {
	CSVPath string `mapstructure:"csv_path"`
}

type SchemesConfig struct {
	CSVPath string `mapstructure:"csv_path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
