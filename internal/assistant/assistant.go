// Package assistant sequences the question-answering pipeline: domain
// classification, retrieval, per-chunk summarization and final synthesis,
// with per-room conversation memory supplying recent context.
package assistant

import (
	"context"
	"time"

	"krishi-assistant/internal/assistant/retriever"
	"krishi-assistant/internal/assistant/synthesizer"
	"krishi-assistant/internal/common/logger"
	"krishi-assistant/internal/common/metrics"
	"krishi-assistant/internal/common/observability"
)

// RefusalAnswer is returned verbatim for out-of-domain questions.
const RefusalAnswer = "This assistant specializes in agricultural and farm-related topics only. " +
	"Please ask questions about crops, soil, weather, fertilizers, or other farming-related subjects."

// Classifier decides domain membership given the query and recent context.
type Classifier interface {
	Classify(ctx context.Context, query, recentContext string) bool
}

// Retriever returns ranked supporting documents; failures surface as an
// empty result, never an error.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) []retriever.Document
}

// Summarizer compresses documents to question-focused summaries in
// retrieval order.
type Summarizer interface {
	Summarize(ctx context.Context, query string, docs []retriever.Document) []string
}

// Synthesizer produces the final answer in grounded or fallback mode.
type Synthesizer interface {
	Synthesize(ctx context.Context, query, conversationContext string, summaries []string) (string, synthesizer.Mode)
}

// Memory stores per-room conversation turns and renders recent context.
type Memory interface {
	Append(roomID, query, answer string)
	Context(roomID string) string
}

// Service is the pipeline orchestrator exposed to the request layer.
type Service struct {
	classifier  Classifier
	retriever   Retriever
	summarizer  Summarizer
	synthesizer Synthesizer
	memory      Memory
	obs         *observability.Observability
	defaultTopK int
	logger      logger.Logger
}

func NewService(
	cls Classifier,
	ret Retriever,
	sum Summarizer,
	syn Synthesizer,
	mem Memory,
	obs *observability.Observability,
	defaultTopK int,
	log logger.Logger,
) *Service {
	if defaultTopK < 1 {
		defaultTopK = 3
	}
	return &Service{
		classifier:  cls,
		retriever:   ret,
		summarizer:  sum,
		synthesizer: syn,
		memory:      mem,
		obs:         obs,
		defaultTopK: defaultTopK,
		logger:      log.With(map[string]interface{}{"component": "assistant"}),
	}
}

// Answer runs the full pipeline for one question and always returns a
// user-facing string; no failure of any stage escapes as an error. The
// completed (query, answer) turn, refusals included, is appended to the
// room's memory so follow-up questions inherit the conversational context.
func (s *Service) Answer(ctx context.Context, query string, topK int, room string) string {
	start := time.Now()
	if topK < 1 {
		topK = s.defaultTopK
	}

	recentContext := s.memory.Context(room)

	if !s.classify(ctx, query, recentContext) {
		s.logger.Info("query rejected as out of domain", map[string]interface{}{
			"room": room,
		})
		s.memory.Append(room, query, RefusalAnswer)
		s.record(ctx, "refused", time.Since(start))
		return RefusalAnswer
	}

	docs := s.retrieve(ctx, query, topK)
	summaries := s.summarize(ctx, query, docs)
	answer, mode := s.synthesize(ctx, query, recentContext, summaries)

	s.memory.Append(room, query, answer)

	s.logger.Info("answer produced", map[string]interface{}{
		"room":       room,
		"mode":       string(mode),
		"documents":  len(docs),
		"summaries":  len(summaries),
		"durationMs": time.Since(start).Milliseconds(),
	})
	s.record(ctx, string(mode), time.Since(start))

	return answer
}

// IsInDomain exposes the classifier verdict in isolation for observability
// and testing.
func (s *Service) IsInDomain(ctx context.Context, query, recentContext string) bool {
	return s.classifier.Classify(ctx, query, recentContext)
}

func (s *Service) classify(ctx context.Context, query, recentContext string) bool {
	defer stageTimer("classify")()
	return s.classifier.Classify(ctx, query, recentContext)
}

func (s *Service) retrieve(ctx context.Context, query string, topK int) []retriever.Document {
	defer stageTimer("retrieve")()
	return s.retriever.Retrieve(ctx, query, topK)
}

func (s *Service) summarize(ctx context.Context, query string, docs []retriever.Document) []string {
	defer stageTimer("summarize")()
	return s.summarizer.Summarize(ctx, query, docs)
}

func (s *Service) synthesize(ctx context.Context, query, recentContext string, summaries []string) (string, synthesizer.Mode) {
	defer stageTimer("synthesize")()
	return s.synthesizer.Synthesize(ctx, query, recentContext, summaries)
}

func (s *Service) record(ctx context.Context, mode string, elapsed time.Duration) {
	metrics.AnswersTotal.WithLabelValues(mode).Inc()
	if s.obs != nil {
		s.obs.RecordAnswer(ctx, mode)
		s.obs.RecordAnswerDuration(ctx, elapsed, mode)
	}
}

func stageTimer(stage string) func() {
	start := time.Now()
	return func() {
		metrics.PipelineStageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}
