// Package server exposes the assistant pipeline, seller recommendations and
// scheme lookup over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"krishi-assistant/internal/assistant"
	"krishi-assistant/internal/common/config"
	"krishi-assistant/internal/common/logger"
	"krishi-assistant/internal/schemes"
	"krishi-assistant/internal/sellers"
)

// Server wires the HTTP routes to the domain services.
type Server struct {
	assistant *assistant.Service
	sellers   *sellers.Matcher
	schemes   *schemes.Engine
	topK      int
	logger    logger.Logger
	engine    *gin.Engine
	http      *http.Server
}

func New(cfg *config.Config, svc *assistant.Service, matcher *sellers.Matcher, engine *schemes.Engine, log logger.Logger) *Server {
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		assistant: svc,
		sellers:   matcher,
		schemes:   engine,
		topK:      cfg.Assistant.Retriever.DefaultTopK,
		logger:    log.With(map[string]interface{}{"component": "server"}),
	}

	router := gin.New()
	router.Use(gin.Recovery(), s.requestID(), s.requestLogger())

	router.POST("/chatbot", s.handleChatbot)
	router.GET("/api/health", s.handleHealth)
	router.POST("/api/recommend", s.handleRecommend)
	router.POST("/api/scheme", s.handleScheme)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.engine = router
	s.http = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the underlying router, used by tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	s.logger.Info("HTTP server listening", map[string]interface{}{
		"addr": s.http.Addr,
	})
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
