package embedding

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
		BaseURL:    baseURL,
		Model:      "all-MiniLM-L6-v2",
		Timeout:    5 * time.Second,
		MaxRetries: 2,
	}
}

func embedBody(t *testing.T, vectors map[int][]float64) []byte {
	t.Helper()
	data := make([]map[string]interface{}, 0, len(vectors))
	for idx, vec := range vectors {
		data = append(data, map[string]interface{}{"index": idx, "embedding": vec})
	}
	out, err := json.Marshal(map[string]interface{}{"data": data})
	require.NoError(t, err)
	return out
}

func TestEncode_Single(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "all-MiniLM-L6-v2", req["model"])

		w.Write(embedBody(t, map[int][]float64{0: {0.1, 0.2, 0.3}}))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), logger.NewTestLogger(t))

	vec, err := client.Encode(context.Background(), "soil health")

	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, vec)
}

func TestEncodeBatch_OrdersByIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Deliberately out of order; the client must reorder by index.
		w.Write([]byte(`{"data":[
			{"index":1,"embedding":[2.0]},
			{"index":0,"embedding":[1.0]},
			{"index":2,"embedding":[3.0]}
		]}`))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), logger.NewTestLogger(t))

	vectors, err := client.EncodeBatch(context.Background(), []string{"a", "b", "c"})

	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1.0}, {2.0}, {3.0}}, vectors)
}

func TestEncodeBatch_NoRetryOnClientError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), logger.NewTestLogger(t))

	_, err := client.Encode(context.Background(), "soil health")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEncodeFailed)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "a 4xx is not retried")
}

func TestEncodeBatch_RetriesOnServerError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write(embedBody(t, map[int][]float64{0: {0.4, 0.5}}))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), logger.NewTestLogger(t))

	vec, err := client.Encode(context.Background(), "soil health")

	require.NoError(t, err)
	assert.Equal(t, []float64{0.4, 0.5}, vec)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestEncodeBatch_CountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(embedBody(t, map[int][]float64{0: {0.5}}))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), logger.NewTestLogger(t))

	_, err := client.EncodeBatch(context.Background(), []string{"a", "b"})

	assert.ErrorIs(t, err, ErrEncodeFailed)
}

func TestEncodeBatch_EmptyInput(t *testing.T) {
	client := NewClient(testConfig("http://localhost:0"), logger.NewTestLogger(t))

	_, err := client.EncodeBatch(context.Background(), nil)

	assert.ErrorIs(t, err, ErrEncodeFailed)
}

func TestEncodeBatch_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.Timeout = 50 * time.Millisecond
	client := NewClient(cfg, logger.NewTestLogger(t))

	_, err := client.EncodeBatch(context.Background(), []string{"a"})

	assert.ErrorIs(t, err, ErrEncodeTimeout)
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical vectors", []float64{1, 0}, []float64{1, 0}, 1},
		{"orthogonal vectors", []float64{1, 0}, []float64{0, 1}, 0},
		{"opposite vectors", []float64{1, 0}, []float64{-1, 0}, -1},
		{"length mismatch", []float64{1, 0}, []float64{1}, 0},
		{"zero vector", []float64{0, 0}, []float64{1, 1}, 0},
		{"empty vectors", nil, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}
