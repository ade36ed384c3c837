package genai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"krishi-assistant/internal/common/logger"
)

func testConfig(baseURL string) *Config {
	return &Config{
		BaseURL:     baseURL,
		APIKey:      "test-key",
		Model:       "llama-3.1-8b-instant",
		Timeout:     5 * time.Second,
		MaxRetries:  2,
		MaxTokens:   512,
		Temperature: 0.2,
	}
}

func completionBody(content string) string {
	body := map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	}
	data, _ := json.Marshal(body)
	return string(data)
}

func TestInvoke_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama-3.1-8b-instant", req["model"])
		assert.Equal(t, float64(512), req["max_tokens"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionBody("  Nitrogen promotes leaf growth.  ")))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), logger.NewTestLogger(t))

	got, err := client.Invoke(context.Background(), "What does nitrogen do?")

	require.NoError(t, err)
	assert.Equal(t, "Nitrogen promotes leaf growth.", got)
}

func TestInvoke_V1SuffixNotDuplicated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		w.Write([]byte(completionBody("ok")))
	}))
	defer server.Close()

	cfg := testConfig(server.URL + "/v1")
	client := NewClient(cfg, logger.NewTestLogger(t))

	_, err := client.Invoke(context.Background(), "hello")
	require.NoError(t, err)
}

func TestInvoke_RetriesOnServerError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(completionBody("recovered")))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), logger.NewTestLogger(t))

	got, err := client.Invoke(context.Background(), "prompt")

	require.NoError(t, err)
	assert.Equal(t, "recovered", got)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestInvoke_NoRetryOnClientError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), logger.NewTestLogger(t))

	_, err := client.Invoke(context.Background(), "prompt")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGenerateFailed)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "a 4xx is not retried")
}

func TestInvoke_RetriesOnTooManyRequests(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(completionBody("after throttle")))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), logger.NewTestLogger(t))

	got, err := client.Invoke(context.Background(), "prompt")

	require.NoError(t, err)
	assert.Equal(t, "after throttle", got)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestInvoke_FailsAfterMaxRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), logger.NewTestLogger(t))

	_, err := client.Invoke(context.Background(), "prompt")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGenerateFailed)
}

func TestInvoke_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(completionBody("too late")))
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.Timeout = 50 * time.Millisecond
	client := NewClient(cfg, logger.NewTestLogger(t))

	_, err := client.Invoke(context.Background(), "prompt")

	assert.ErrorIs(t, err, ErrGenerateTimeout)
}

func TestInvoke_EmptyCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(completionBody("   ")))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), logger.NewTestLogger(t))

	_, err := client.Invoke(context.Background(), "prompt")

	assert.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestInvoke_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), logger.NewTestLogger(t))

	_, err := client.Invoke(context.Background(), "prompt")

	assert.ErrorIs(t, err, ErrGenerateFailed)
}
