package classifier

import (
	"context"
	"strings"
	"sync"
	"unicode"

	"krishi-assistant/internal/clients/embedding"
	"krishi-assistant/internal/common/logger"
	"krishi-assistant/internal/common/metrics"
)

// Embedder is the embedding oracle consumed by the similarity stage.
type Embedder interface {
	Encode(ctx context.Context, text string) ([]float64, error)
	EncodeBatch(ctx context.Context, texts []string) ([][]float64, error)
}

// Generator is the generative oracle consumed by the fallback stage.
type Generator interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

// Similarity scores two embedding vectors; injected so the metric is
// swappable in tests.
type Similarity func(a, b []float64) float64

// Config holds the classifier tunables. HighThreshold and LowThreshold are
// the similarity cutoffs of the embedding stage; scores strictly between
// them fall through to the generative stage.
type Config struct {
	HighThreshold float64
	LowThreshold  float64
	Keywords      []string
	Reference     []string
}

// Classifier decides whether a query belongs to the agricultural domain
// using a short-circuiting cascade: keyword match, memoized verdict,
// embedding similarity against the reference corpus, and a generative
// YES/NO check for the ambiguous band. The generative stage fails open:
// a backend failure admits the query rather than rejecting it.
type Classifier struct {
	config    *Config
	keywords  map[string]struct{}
	embedder  Embedder
	generator Generator
	sim       Similarity
	cache     Cache
	logger    logger.Logger

	refMu   sync.Mutex
	refVecs [][]float64
}

func New(config *Config, embedder Embedder, generator Generator, cache Cache, log logger.Logger) *Classifier {
	keywords := config.Keywords
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}
	reference := config.Reference
	if len(reference) == 0 {
		reference = ReferenceTexts
	}
	kwSet := make(map[string]struct{}, len(keywords))
	for _, kw := range keywords {
		kwSet[strings.ToLower(kw)] = struct{}{}
	}

	cfg := *config
	cfg.Keywords = keywords
	cfg.Reference = reference

	return &Classifier{
		config:    &cfg,
		keywords:  kwSet,
		embedder:  embedder,
		generator: generator,
		sim:       embedding.CosineSimilarity,
		cache:     cache,
		logger:    log.With(map[string]interface{}{"component": "domain-classifier"}),
	}
}

// Prepare batch-encodes the reference corpus. Callers should invoke it once
// at startup; Classify falls back to lazy encoding if they don't.
func (c *Classifier) Prepare(ctx context.Context) error {
	c.refMu.Lock()
	defer c.refMu.Unlock()
	if c.refVecs != nil {
		return nil
	}
	vecs, err := c.embedder.EncodeBatch(ctx, c.config.Reference)
	if err != nil {
		return err
	}
	c.refVecs = vecs
	return nil
}

// Classify reports whether the query (in the light of recent conversation
// context) belongs to the supported domain. It never returns an error:
// every backend failure resolves to a deterministic verdict.
func (c *Classifier) Classify(ctx context.Context, query, recentContext string) bool {
	normalized := Normalize(query)
	combined := strings.ToLower(recentContext + " " + normalized)

	// Keyword stage. A hit in the combined text or in the context alone
	// makes topic continuity sticky: short follow-ups inherit the verdict.
	if c.hasKeyword(combined) || c.hasKeyword(strings.ToLower(recentContext)) {
		c.store(ctx, normalized, true)
		metrics.ClassifierStageHits.WithLabelValues("keyword", "true").Inc()
		return true
	}

	if verdict, ok, err := c.cache.Get(ctx, normalized); err == nil && ok {
		metrics.ClassifierStageHits.WithLabelValues("cache", verdictLabel(verdict)).Inc()
		return verdict
	} else if err != nil {
		c.logger.Warn("classification cache read failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	maxSim, ok := c.maxReferenceSimilarity(ctx, combined)
	if ok {
		if maxSim >= c.config.HighThreshold {
			c.store(ctx, normalized, true)
			metrics.ClassifierStageHits.WithLabelValues("embedding", "true").Inc()
			return true
		}
		if maxSim <= c.config.LowThreshold {
			c.store(ctx, normalized, false)
			metrics.ClassifierStageHits.WithLabelValues("embedding", "false").Inc()
			return false
		}
	}

	// Ambiguous band (or embedding stage unavailable): ask the generative
	// model about the raw query, without context.
	verdict := c.generativeCheck(ctx, query)
	c.store(ctx, normalized, verdict)
	metrics.ClassifierStageHits.WithLabelValues("generative", verdictLabel(verdict)).Inc()
	return verdict
}

func (c *Classifier) hasKeyword(text string) bool {
	for _, token := range tokenize(text) {
		if _, ok := c.keywords[token]; ok {
			return true
		}
	}
	return false
}

// maxReferenceSimilarity returns the maximum cosine similarity between the
// text and the reference corpus. ok is false when the embedding oracle is
// unavailable, in which case the caller treats the score as ambiguous.
func (c *Classifier) maxReferenceSimilarity(ctx context.Context, text string) (float64, bool) {
	refVecs, err := c.referenceVectors(ctx)
	if err != nil {
		c.logger.Warn("reference corpus encode failed", map[string]interface{}{
			"error": err.Error(),
		})
		return 0, false
	}

	qVec, err := c.embedder.Encode(ctx, text)
	if err != nil {
		c.logger.Warn("query encode failed", map[string]interface{}{
			"error": err.Error(),
		})
		return 0, false
	}

	maxSim := -1.0
	for _, ref := range refVecs {
		if s := c.sim(qVec, ref); s > maxSim {
			maxSim = s
		}
	}
	return maxSim, true
}

func (c *Classifier) referenceVectors(ctx context.Context) ([][]float64, error) {
	c.refMu.Lock()
	defer c.refMu.Unlock()
	if c.refVecs != nil {
		return c.refVecs, nil
	}
	vecs, err := c.embedder.EncodeBatch(ctx, c.config.Reference)
	if err != nil {
		return nil, err
	}
	c.refVecs = vecs
	return vecs, nil
}

func (c *Classifier) generativeCheck(ctx context.Context, query string) bool {
	prompt := "You are a precise classifier. Decide if the following question is related to " +
		"agriculture, crops, soil, farming, irrigation, fertilizers, or livestock.\n\n" +
		"Question: " + query + "\n\n" +
		"Respond with only one word: YES or NO."

	resp, err := c.generator.Invoke(ctx, prompt)
	if err != nil {
		// Fail open: a transient backend failure must not silently block
		// a legitimate domain query.
		c.logger.Warn("generative classification failed, admitting query", map[string]interface{}{
			"error": err.Error(),
		})
		metrics.ClassifierFailOpen.Inc()
		return true
	}
	return strings.EqualFold(strings.TrimSpace(resp), "YES")
}

func (c *Classifier) store(ctx context.Context, key string, verdict bool) {
	if err := c.cache.Set(ctx, key, verdict); err != nil {
		c.logger.Warn("classification cache write failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// Normalize case-folds and trims a query for cache keying.
func Normalize(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

func tokenize(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func verdictLabel(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
