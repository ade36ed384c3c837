package retriever

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"krishi-assistant/internal/common/logger"
	"krishi-assistant/internal/common/metrics"
)

var (
	ErrSearchFailed  = errors.New("SEARCH_QUERY_FAILED")
	ErrSearchTimeout = errors.New("SEARCH_TIMEOUT")
	ErrEncodeFailed  = errors.New("QUERY_ENCODE_FAILED")
)

// Document is a validated retrieval hit. Text is always non-blank; malformed
// hits are rejected at this boundary instead of propagating empty strings
// downstream.
type Document struct {
	Text   string
	Score  float64
	Source string
}

// Embedder encodes the query text before the vector search.
type Embedder interface {
	Encode(ctx context.Context, text string) ([]float64, error)
}

// Config holds the vector index settings.
type Config struct {
	Index   string
	Timeout time.Duration
}

// Retriever issues top-k kNN queries against an Elasticsearch vector index.
// It imposes no ranking of its own: hit order and scores pass through.
type Retriever struct {
	config   *Config
	client   *elasticsearch.Client
	embedder Embedder
	logger   logger.Logger
}

func New(config *Config, client *elasticsearch.Client, embedder Embedder, log logger.Logger) *Retriever {
	return &Retriever{
		config:   config,
		client:   client,
		embedder: embedder,
		logger:   log.With(map[string]interface{}{"component": "retriever"}),
	}
}

// Retrieve returns up to topK documents ranked by similarity. Any failure of
// the index or the embedding oracle degrades to an empty result; the caller
// never sees an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) []Document {
	docs, err := r.search(ctx, query, topK)
	if err != nil {
		r.logger.Warn("retrieval failed, continuing with empty result", map[string]interface{}{
			"error": err.Error(),
			"topK":  topK,
		})
		metrics.OracleFailures.WithLabelValues("vector_index", errorCode(err)).Inc()
		return nil
	}
	return docs
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Score  float64 `json:"_score"`
			Source struct {
				Text   string `json:"text"`
				Source string `json:"source"`
			} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (r *Retriever) search(ctx context.Context, query string, topK int) ([]Document, error) {
	if topK < 1 {
		topK = 1
	}

	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	vector, err := r.embedder.Encode(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncodeFailed, err)
	}

	body := map[string]interface{}{
		"knn": map[string]interface{}{
			"field":          "embedding",
			"query_vector":   vector,
			"k":              topK,
			"num_candidates": topK * 10,
		},
		"size":    topK,
		"_source": []string{"text", "source"},
	}
	raw, _ := json.Marshal(body)

	req := esapi.SearchRequest{
		Index: []string{r.config.Index},
		Body:  strings.NewReader(string(raw)),
	}

	res, err := req.Do(ctx, r.client)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ErrSearchTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("%w: %s", ErrSearchFailed, res.Status())
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode error: %v", ErrSearchFailed, err)
	}

	docs := make([]Document, 0, len(parsed.Hits.Hits))
	for i, hit := range parsed.Hits.Hits {
		text := strings.TrimSpace(hit.Source.Text)
		if text == "" {
			r.logger.Warn("dropping malformed hit without text", map[string]interface{}{
				"rank":  i,
				"score": hit.Score,
			})
			continue
		}
		docs = append(docs, Document{
			Text:   text,
			Score:  hit.Score,
			Source: hit.Source.Source,
		})
	}

	return docs, nil
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrSearchTimeout):
		return "SEARCH_TIMEOUT"
	case errors.Is(err, ErrEncodeFailed):
		return "QUERY_ENCODE_FAILED"
	default:
		return "SEARCH_QUERY_FAILED"
	}
}
