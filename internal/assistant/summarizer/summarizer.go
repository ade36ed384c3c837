package summarizer

import (
	"context"
	"fmt"
	"strings"

	"krishi-assistant/internal/assistant/retriever"
	"krishi-assistant/internal/common/logger"
	"krishi-assistant/internal/common/metrics"
)

// Generator is the generative oracle used for per-chunk compression.
type Generator interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

// Summarizer reduces retrieved documents to short, question-focused
// summaries. Documents are processed sequentially so the output order
// always equals retrieval order among surviving summaries.
type Summarizer struct {
	generator Generator
	logger    logger.Logger
}

func New(generator Generator, log logger.Logger) *Summarizer {
	return &Summarizer{
		generator: generator,
		logger:    log.With(map[string]interface{}{"component": "chunk-summarizer"}),
	}
}

// Summarize produces at most one summary per document. A per-document
// failure (oracle error or blank result) is logged and skipped; it is never
// fatal to the batch.
func (s *Summarizer) Summarize(ctx context.Context, query string, docs []retriever.Document) []string {
	summaries := make([]string, 0, len(docs))
	for i, doc := range docs {
		summary, err := s.generator.Invoke(ctx, chunkPrompt(query, doc.Text))
		if err != nil {
			s.logger.Warn("chunk summarization failed, skipping chunk", map[string]interface{}{
				"chunk": i,
				"error": err.Error(),
			})
			metrics.OracleFailures.WithLabelValues("genai", "SUMMARIZATION_FAILED").Inc()
			continue
		}
		summary = strings.TrimSpace(summary)
		if summary == "" {
			s.logger.Warn("chunk summarization returned empty text, skipping chunk", map[string]interface{}{
				"chunk": i,
			})
			continue
		}
		summaries = append(summaries, summary)
	}
	return summaries
}

func chunkPrompt(query, chunk string) string {
	return fmt.Sprintf(
		"You are an agricultural summarizer.\n"+
			"User Question: %s\n\n"+
			"Relevant Text Chunk:\n%s\n\n"+
			"Summarize this chunk in 1-2 concise sentences focusing on relevant details.",
		query, chunk,
	)
}
