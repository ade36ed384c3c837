package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"krishi-assistant/internal/common/logger"
)

var (
	ErrGenerateTimeout = errors.New("GENAI_TIMEOUT")
	ErrGenerateFailed  = errors.New("GENAI_GENERATION_FAILED")
	ErrEmptyCompletion = errors.New("GENAI_EMPTY_COMPLETION")
)

// Config holds connection settings for the chat-completions oracle.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Timeout     time.Duration
	MaxRetries  int
	MaxTokens   int
	Temperature float64
}

// Client is a minimal chat-completions client for a Groq/OpenAI-compatible API.
type Client struct {
	config *Config
	client *http.Client
	logger logger.Logger
}

func NewClient(config *Config, log logger.Logger) *Client {
	return &Client{
		config: config,
		// No transport-level timeout: the per-call context controls deadlines.
		client: &http.Client{},
		logger: log.With(map[string]interface{}{
			"component": "genai-client",
			"model":     config.Model,
		}),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Invoke sends a single-prompt completion request and returns the trimmed
// completion text. Transport failures and transient statuses (5xx, 429) are
// retried with exponential backoff up to MaxRetries within the configured
// timeout; other client errors fail immediately.
func (c *Client) Invoke(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	body, err := json.Marshal(chatRequest{
		Model:       c.config.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("%w: marshal request: %v", ErrGenerateFailed, err)
	}

	var resp *http.Response
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			// Apply exponential backoff for retries
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ErrGenerateTimeout
			}
		}

		req, reqErr := http.NewRequestWithContext(ctx, "POST", c.completionsURL(), bytes.NewReader(body))
		if reqErr != nil {
			return "", fmt.Errorf("%w: %v", ErrGenerateFailed, reqErr)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.config.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
		}

		resp, lastErr = c.client.Do(req)

		// If context expired during the request, return timeout immediately.
		if ctx.Err() != nil ||
			errors.Is(lastErr, context.DeadlineExceeded) ||
			errors.Is(lastErr, context.Canceled) {
			return "", ErrGenerateTimeout
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
				return "", fmt.Errorf("%w: %v", ErrGenerateFailed, lastErr)
			}
		}
	}

	if lastErr != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", ErrGenerateTimeout
		}
		return "", fmt.Errorf("%w: %v", ErrGenerateFailed, lastErr)
	}

	if resp == nil {
		return "", fmt.Errorf("%w: no successful response after retries", ErrGenerateFailed)
	}
	defer resp.Body.Close()

	var apiResponse chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return "", fmt.Errorf("%w: decode error: %v", ErrGenerateFailed, err)
	}
	if len(apiResponse.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in response", ErrGenerateFailed)
	}

	content := strings.TrimSpace(apiResponse.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyCompletion
	}

	c.logger.Debug("completion received", map[string]interface{}{
		"promptLength":     len(prompt),
		"completionLength": len(content),
	})

	return content, nil
}

func retryableStatus(code int) bool {
	return code >= 500 || code == http.StatusTooManyRequests
}

func (c *Client) completionsURL() string {
	base := strings.TrimRight(c.config.BaseURL, "/")
	if strings.HasSuffix(base, "/v1") {
		return base + "/chat/completions"
	}
	return base + "/v1/chat/completions"
}
