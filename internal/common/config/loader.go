package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	// Base config
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like GENAI_API_KEY
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// Environment overlay, e.g. config.production.yaml
	envConfigFile := fmt.Sprintf("config.%s", env)
	viper.SetConfigName(envConfigFile)
	_ = viper.MergeInConfig() // ignore error if not found

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if cfg.Database.Elasticsearch.URL == "" && len(cfg.Database.Elasticsearch.Addresses) > 0 {
		cfg.Database.Elasticsearch.URL = cfg.Database.Elasticsearch.Addresses[0]
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile loads .env from multiple possible locations so that tests and
// binaries launched from nested directories pick up the same environment.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up directories looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// expandEnvVars resolves ${VAR} placeholders inside string config values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.Get(key)

		if strVal, ok := val.(string); ok {
			if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
				expanded := os.ExpandEnv(strVal)
				if expanded != strVal && expanded != "" {
					v.Set(key, expanded)
				}
			}
		}
	}
}

// overrideEmptyConfig applies direct env fallbacks for secrets that are
// commonly provided outside of config files.
func overrideEmptyConfig(cfg *Config) {
	if cfg.APIs.GenAI.APIKey == "" {
		if val := os.Getenv("GENAI_API_KEY"); val != "" {
			cfg.APIs.GenAI.APIKey = val
		}
	}
	if cfg.APIs.GenAI.APIKey == "" {
		if val := os.Getenv("GROQ_API_KEY"); val != "" {
			cfg.APIs.GenAI.APIKey = val
		}
	}
	if cfg.APIs.Embedding.APIKey == "" {
		if val := os.Getenv("EMBEDDING_API_KEY"); val != "" {
			cfg.APIs.Embedding.APIKey = val
		}
	}
	if cfg.Database.Redis.Password == "" {
		if val := os.Getenv("REDIS_PASSWORD"); val != "" {
			cfg.Database.Redis.Password = val
		}
	}
	if cfg.Database.Elasticsearch.Password == "" {
		if val := os.Getenv("ELASTICSEARCH_PASSWORD"); val != "" {
			cfg.Database.Elasticsearch.Password = val
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "krishi-assistant"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5000
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15000
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10000
	}

	if cfg.APIs.GenAI.Timeout == 0 {
		cfg.APIs.GenAI.Timeout = 30000
	}
	if cfg.APIs.GenAI.MaxRetries == 0 {
		cfg.APIs.GenAI.MaxRetries = 2
	}
	if cfg.APIs.GenAI.Model == "" {
		cfg.APIs.GenAI.Model = "llama-3.1-8b-instant"
	}
	if cfg.APIs.GenAI.MaxTokens == 0 {
		cfg.APIs.GenAI.MaxTokens = 512
	}
	if cfg.APIs.Embedding.Timeout == 0 {
		cfg.APIs.Embedding.Timeout = 15000
	}
	if cfg.APIs.Embedding.MaxRetries == 0 {
		cfg.APIs.Embedding.MaxRetries = 2
	}
	if cfg.APIs.Embedding.Model == "" {
		cfg.APIs.Embedding.Model = "all-MiniLM-L6-v2"
	}

	if cfg.Assistant.Classifier.HighThreshold == 0 {
		cfg.Assistant.Classifier.HighThreshold = 0.40
	}
	if cfg.Assistant.Classifier.LowThreshold == 0 {
		cfg.Assistant.Classifier.LowThreshold = 0.28
	}
	if cfg.Assistant.Classifier.CacheBackend == "" {
		cfg.Assistant.Classifier.CacheBackend = "memory"
	}
	if cfg.Assistant.Classifier.CacheMaxSize == 0 {
		cfg.Assistant.Classifier.CacheMaxSize = 10000
	}
	if cfg.Assistant.Classifier.CacheTTL == 0 {
		cfg.Assistant.Classifier.CacheTTL = 86400
	}

	if cfg.Assistant.Retriever.Index == "" {
		cfg.Assistant.Retriever.Index = "agri-documents"
	}
	if cfg.Assistant.Retriever.DefaultTopK == 0 {
		cfg.Assistant.Retriever.DefaultTopK = 3
	}
	if cfg.Assistant.Retriever.Timeout == 0 {
		cfg.Assistant.Retriever.Timeout = 10000
	}

	if cfg.Assistant.Chat.HistoryCap == 0 {
		cfg.Assistant.Chat.HistoryCap = 200
	}
	if cfg.Assistant.Chat.ContextTurns == 0 {
		cfg.Assistant.Chat.ContextTurns = 5
	}

	if cfg.Sellers.CSVPath == "" {
		cfg.Sellers.CSVPath = "data/FPC_sample_alipurduar.csv"
	}
	if cfg.Schemes.CSVPath == "" {
		cfg.Schemes.CSVPath = "data/new_allschemes.csv"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Assistant.Classifier.HighThreshold <= cfg.Assistant.Classifier.LowThreshold {
		return fmt.Errorf("classifier high_threshold (%.2f) must be greater than low_threshold (%.2f)",
			cfg.Assistant.Classifier.HighThreshold, cfg.Assistant.Classifier.LowThreshold)
	}
	switch cfg.Assistant.Classifier.CacheBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown classifier cache_backend %q", cfg.Assistant.Classifier.CacheBackend)
	}
	if cfg.Assistant.Retriever.DefaultTopK < 1 {
		return fmt.Errorf("retriever default_top_k must be >= 1")
	}
	if cfg.Assistant.Chat.HistoryCap < 1 {
		return fmt.Errorf("chat history_cap must be >= 1")
	}
	return nil
}
