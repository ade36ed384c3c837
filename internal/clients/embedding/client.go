package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"krishi-assistant/internal/common/logger"
)

var (
	ErrEncodeTimeout = errors.New("EMBEDDING_TIMEOUT")
	ErrEncodeFailed  = errors.New("EMBEDDING_ENCODE_FAILED")
)

// Config holds connection settings for the embedding oracle.
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

// Client calls an OpenAI-compatible embeddings endpoint. It supports batch
// encoding for the reference corpus at startup and single-text encoding per
// classification call.
type Client struct {
	config *Config
	client *http.Client
	logger logger.Logger
}

func NewClient(config *Config, log logger.Logger) *Client {
	return &Client{
		config: config,
		client: &http.Client{},
		logger: log.With(map[string]interface{}{
			"component": "embedding-client",
			"model":     config.Model,
		}),
	}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// Encode returns the embedding vector for a single text.
func (c *Client) Encode(ctx context.Context, text string) ([]float64, error) {
	vectors, err := c.EncodeBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EncodeBatch returns one vector per input text, in input order.
func (c *Client) EncodeBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrEncodeFailed)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	body, err := json.Marshal(embedRequest{Model: c.config.Model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", ErrEncodeFailed, err)
	}

	var resp *http.Response
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ErrEncodeTimeout
			}
		}

		req, reqErr := http.NewRequestWithContext(ctx, "POST", c.embeddingsURL(), bytes.NewReader(body))
		if reqErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrEncodeFailed, reqErr)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.config.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
		}

		resp, lastErr = c.client.Do(req)

		if ctx.Err() != nil ||
			errors.Is(lastErr, context.DeadlineExceeded) ||
			errors.Is(lastErr, context.Canceled) {
			return nil, ErrEncodeTimeout
		}

		if lastErr == nil {
			if resp.StatusCode == http.StatusOK {
				break
			}
			resp.Body.Close()
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			code := resp.StatusCode
			resp = nil
			// Retry only transient statuses; a client error will not succeed.
			if !retryableStatus(code) {
				return nil, fmt.Errorf("%w: %v", ErrEncodeFailed, lastErr)
			}
		}
	}

	if lastErr != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ErrEncodeTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrEncodeFailed, lastErr)
	}

	if resp == nil {
		return nil, fmt.Errorf("%w: no successful response after retries", ErrEncodeFailed)
	}
	defer resp.Body.Close()

	var apiResponse embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return nil, fmt.Errorf("%w: decode error: %v", ErrEncodeFailed, err)
	}
	if len(apiResponse.Data) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d vectors, got %d", ErrEncodeFailed, len(texts), len(apiResponse.Data))
	}

	// The API reports an index per vector; order by it rather than
	// trusting response order.
	vectors := make([][]float64, len(texts))
	for _, d := range apiResponse.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("%w: vector index %d out of range", ErrEncodeFailed, d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("%w: missing vector for input %d", ErrEncodeFailed, i)
		}
	}

	return vectors, nil
}

func retryableStatus(code int) bool {
	return code >= 500 || code == http.StatusTooManyRequests
}

func (c *Client) embeddingsURL() string {
	base := strings.TrimRight(c.config.BaseURL, "/")
	if strings.HasSuffix(base, "/v1") {
		return base + "/embeddings"
	}
	return base + "/v1/embeddings"
}

// CosineSimilarity computes the cosine similarity of two vectors.
// Mismatched lengths and zero vectors score 0.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
