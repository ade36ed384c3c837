package synthesizer

import (
	"context"
	"fmt"
	"strings"

	"krishi-assistant/internal/common/logger"
	"krishi-assistant/internal/common/metrics"
)

// Mode names the synthesis path taken for an answer.
type Mode string

const (
	// ModeGrounded means the answer was conditioned on retrieved summaries.
	ModeGrounded Mode = "grounded"
	// ModeFallback means no summaries survived and the answer used general
	// model knowledge plus conversation history only.
	ModeFallback Mode = "fallback"
)

const (
	groundedFailureAnswer = "Error generating final summary from data."
	fallbackFailureAnswer = "Sorry, I couldn't generate an answer right now."
)

// Generator is the generative oracle for the final answer call.
type Generator interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

// Synthesizer builds the final answer from conversation history and
// summarized context. Generation failure is absorbed into a fixed
// user-facing string; it never surfaces as an error.
type Synthesizer struct {
	generator Generator
	logger    logger.Logger
}

func New(generator Generator, log logger.Logger) *Synthesizer {
	return &Synthesizer{
		generator: generator,
		logger:    log.With(map[string]interface{}{"component": "answer-synthesizer"}),
	}
}

// Synthesize returns the answer text and the mode that produced it. The two
// modes are mutually exclusive: non-empty summaries always take the
// grounded path, empty summaries always take the fallback path.
func (s *Synthesizer) Synthesize(ctx context.Context, query, conversationContext string, summaries []string) (string, Mode) {
	if len(summaries) > 0 {
		answer, err := s.generator.Invoke(ctx, groundedPrompt(query, conversationContext, summaries))
		if err != nil {
			s.logger.Error("grounded synthesis failed", map[string]interface{}{
				"error": err.Error(),
			})
			metrics.OracleFailures.WithLabelValues("genai", "SYNTHESIS_FAILED").Inc()
			return groundedFailureAnswer, ModeGrounded
		}
		return strings.TrimSpace(answer), ModeGrounded
	}

	answer, err := s.generator.Invoke(ctx, fallbackPrompt(query, conversationContext))
	if err != nil {
		s.logger.Error("fallback synthesis failed", map[string]interface{}{
			"error": err.Error(),
		})
		metrics.OracleFailures.WithLabelValues("genai", "SYNTHESIS_FAILED").Inc()
		return fallbackFailureAnswer, ModeFallback
	}
	return strings.TrimSpace(answer), ModeFallback
}

func groundedPrompt(query, conversationContext string, summaries []string) string {
	return fmt.Sprintf(
		"You are an expert agricultural assistant.\n"+
			"Your job is to answer using ONLY the information from the conversation and retrieved context.\n"+
			"Do NOT add any disclaimers such as checking other sources, websites, portals, or external updates.\n"+
			"Do NOT refer the user to external information. Always give the final answer directly.\n"+
			"If the user asks for detailed or long explanation, provide 4-6 sentences.\n"+
			"Otherwise, ALWAYS give a short, precise answer of 1-2 sentences.\n\n"+
			"Conversation History:\n%s\n\n"+
			"Retrieved Context Summaries:\n%s\n\n"+
			"User Question: %s\n\n"+
			"Now produce the final answer following the rules above:",
		conversationContext, strings.Join(summaries, "\n"), query,
	)
}

func fallbackPrompt(query, conversationContext string) string {
	return fmt.Sprintf(
		"You are an agricultural expert assistant. Use your own knowledge and previous conversation to answer.\n\n"+
			"Previous conversation:\n%s\n\n"+
			"User Question: %s\n\n"+
			"Answer helpfully in 3-5 sentences:",
		conversationContext, query,
	)
}
