// cmd/assistant-server/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"krishi-assistant/internal/assistant"
	"krishi-assistant/internal/assistant/classifier"
	"krishi-assistant/internal/assistant/memory"
	"krishi-assistant/internal/assistant/retriever"
	"krishi-assistant/internal/assistant/summarizer"
	"krishi-assistant/internal/assistant/synthesizer"
	"krishi-assistant/internal/clients/embedding"
	"krishi-assistant/internal/clients/genai"
	"krishi-assistant/internal/common/config"
	"krishi-assistant/internal/common/database"
	"krishi-assistant/internal/common/logger"
	"krishi-assistant/internal/common/observability"
	"krishi-assistant/internal/schemes"
	"krishi-assistant/internal/sellers"
	"krishi-assistant/internal/server"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting assistant server...",
		zap.String("environment", cfg.App.Environment),
		zap.String("version", cfg.App.Version),
	)

	obs := observability.New("assistant-server")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping()
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Init classifier cache (memory by default, Redis when configured) ---
	var verdictCache classifier.Cache
	if cfg.Assistant.Classifier.CacheBackend == "redis" {
		var redisClient *database.RedisClient
		err = retryWithBackoff(func() error {
			var err error
			redisClient, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return redisClient.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")

		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer redisClient.Close()
		zapLog.Info("Redis connected successfully")

		verdictCache = classifier.NewRedisCache(redisClient.Client, cfg.Assistant.Classifier.TTL())
	} else {
		verdictCache = classifier.NewMemoryCache(cfg.Assistant.Classifier.CacheMaxSize)
	}

	// --- Init model oracle clients ---
	genaiClient := genai.NewClient(&genai.Config{
		BaseURL:     cfg.APIs.GenAI.BaseURL,
		APIKey:      cfg.APIs.GenAI.APIKey,
		Model:       cfg.APIs.GenAI.Model,
		Timeout:     time.Duration(cfg.APIs.GenAI.Timeout) * time.Millisecond,
		MaxRetries:  cfg.APIs.GenAI.MaxRetries,
		MaxTokens:   cfg.APIs.GenAI.MaxTokens,
		Temperature: cfg.APIs.GenAI.Temperature,
	}, log)

	embeddingClient := embedding.NewClient(&embedding.Config{
		BaseURL:    cfg.APIs.Embedding.BaseURL,
		APIKey:     cfg.APIs.Embedding.APIKey,
		Model:      cfg.APIs.Embedding.Model,
		Timeout:    time.Duration(cfg.APIs.Embedding.Timeout) * time.Millisecond,
		MaxRetries: cfg.APIs.Embedding.MaxRetries,
	}, log)

	// --- Assemble the pipeline ---
	domainClassifier := classifier.New(&classifier.Config{
		HighThreshold: cfg.Assistant.Classifier.HighThreshold,
		LowThreshold:  cfg.Assistant.Classifier.LowThreshold,
		Keywords:      cfg.Assistant.Classifier.Keywords,
	}, embeddingClient, genaiClient, verdictCache, log)

	if err := domainClassifier.Prepare(ctx); err != nil {
		zapLog.Warn("reference corpus encoding failed, will retry lazily", zap.Error(err))
	}

	docRetriever := retriever.New(&retriever.Config{
		Index:   cfg.Assistant.Retriever.Index,
		Timeout: time.Duration(cfg.Assistant.Retriever.Timeout) * time.Millisecond,
	}, esClient.Client, embeddingClient, log)

	chunkSummarizer := summarizer.New(genaiClient, log)
	answerSynthesizer := synthesizer.New(genaiClient, log)
	conversations := memory.NewStore(cfg.Assistant.Chat.HistoryCap, cfg.Assistant.Chat.ContextTurns)

	svc := assistant.NewService(
		domainClassifier,
		docRetriever,
		chunkSummarizer,
		answerSynthesizer,
		conversations,
		obs,
		cfg.Assistant.Retriever.DefaultTopK,
		log,
	)

	// --- Init auxiliary recommenders ---
	sellerMatcher, err := sellers.NewMatcher(cfg.Sellers.CSVPath, log)
	if err != nil {
		zapLog.Fatal("seller directory load failed", zap.Error(err))
	}

	schemeEngine, err := schemes.NewEngine(cfg.Schemes.CSVPath, log)
	if err != nil {
		zapLog.Fatal("scheme corpus load failed", zap.Error(err))
	}

	// --- Serve ---
	srv := server.New(cfg, svc, sellerMatcher, schemeEngine, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		zapLog.Info("Shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			zapLog.Fatal("server failed", zap.Error(err))
		}
		return
	}

	shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Millisecond
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("graceful shutdown failed", zap.Error(err))
	}
	zapLog.Info("Assistant server stopped")
}
