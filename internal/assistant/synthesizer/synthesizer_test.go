package synthesizer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"krishi-assistant/internal/common/logger"
)

type stubGenerator struct {
	resp    string
	err     error
	prompts []string
}

func (g *stubGenerator) Invoke(_ context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	return g.resp, g.err
}

func TestSynthesize_GroundedMode(t *testing.T) {
	gen := &stubGenerator{resp: "  Apply urea in two split doses.  "}
	s := New(gen, logger.NewTestLogger(t))

	answer, mode := s.Synthesize(context.Background(), "urea dosage?", "", []string{"Urea advice", "Split dose advice"})

	assert.Equal(t, ModeGrounded, mode)
	assert.Equal(t, "Apply urea in two split doses.", answer)

	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "Urea advice\nSplit dose advice")
	assert.Contains(t, gen.prompts[0], "urea dosage?")
}

func TestSynthesize_FallbackMode(t *testing.T) {
	gen := &stubGenerator{resp: "General farming advice."}
	s := New(gen, logger.NewTestLogger(t))

	answer, mode := s.Synthesize(context.Background(), "crop rotation?", "User: hi\nAssistant: hello", nil)

	assert.Equal(t, ModeFallback, mode)
	assert.Equal(t, "General farming advice.", answer)

	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "User: hi\nAssistant: hello")
	assert.False(t, strings.Contains(gen.prompts[0], "Retrieved Context Summaries"))
}

func TestSynthesize_GroundedFailureReturnsFixedString(t *testing.T) {
	gen := &stubGenerator{err: errors.New("backend down")}
	s := New(gen, logger.NewTestLogger(t))

	answer, mode := s.Synthesize(context.Background(), "q", "", []string{"summary"})

	assert.Equal(t, ModeGrounded, mode)
	assert.Equal(t, "Error generating final summary from data.", answer)
}

func TestSynthesize_FallbackFailureReturnsFixedString(t *testing.T) {
	gen := &stubGenerator{err: errors.New("backend down")}
	s := New(gen, logger.NewTestLogger(t))

	answer, mode := s.Synthesize(context.Background(), "q", "", nil)

	assert.Equal(t, ModeFallback, mode)
	assert.Equal(t, "Sorry, I couldn't generate an answer right now.", answer)
}

func TestSynthesize_EmptySummarySliceTakesFallback(t *testing.T) {
	gen := &stubGenerator{resp: "fallback answer"}
	s := New(gen, logger.NewTestLogger(t))

	_, mode := s.Synthesize(context.Background(), "q", "", []string{})

	assert.Equal(t, ModeFallback, mode)
}
