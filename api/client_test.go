package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, serverURL string, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{
		WithLogger(testLogger()),
		WithBackoffBase(time.Millisecond),
	}, opts...)
	client, err := New(serverURL, opts...)
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

func writeEnvelope(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestNew(t *testing.T) {
	t.Run("valid URL", func(t *testing.T) {
		client, err := New("http://127.0.0.1:8080")
		require.NoError(t, err)
		assert.Equal(t, "http://127.0.0.1:8080", client.BaseURL())
	})

	t.Run("trailing slash trimmed", func(t *testing.T) {
		client, err := New("http://127.0.0.1:8080/")
		require.NoError(t, err)
		assert.Equal(t, "http://127.0.0.1:8080", client.BaseURL())
	})

	t.Run("empty URL rejected", func(t *testing.T) {
		_, err := New("")
		assert.Error(t, err)
	})

	t.Run("non-http scheme rejected", func(t *testing.T) {
		_, err := New("ftp://example.com")
		assert.Error(t, err)
	})

	t.Run("invalid option rejected", func(t *testing.T) {
		_, err := New("http://127.0.0.1:8080", WithTimeout(0))
		assert.Error(t, err)
	})
}

func TestOptionValidation(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"zero timeout", WithTimeout(0)},
		{"negative timeout", WithTimeout(-time.Second)},
		{"zero attempts", WithMaxAttempts(0)},
		{"negative attempts", WithMaxAttempts(-1)},
		{"zero backoff", WithBackoffBase(0)},
		{"nil http client", WithHTTPClient(nil)},
		{"empty header key", WithHeader("", "value")},
		{"nil logger", WithLogger(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New("http://127.0.0.1:8080", tt.opt)
			assert.Error(t, err)
		})
	}
}

func TestClient_Do_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, `{"success": true, "data": {"status": "healthy", "backend_version": "1.4.0"}}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	var status HealthStatus
	err := client.Do(context.Background(), http.MethodGet, "/health", nil, &status)
	require.NoError(t, err)
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "1.4.0", status.BackendVersion)
}

func TestClient_Do_NilOutDiscardsPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, `{"success": true, "data": {"ignored": true}}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	err := client.Do(context.Background(), http.MethodGet, "/health", nil, nil)
	assert.NoError(t, err)
}

func TestClient_Do_RetriesTransientFailures(t *testing.T) {
	var mu sync.Mutex
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests++
		n := requests
		mu.Unlock()
		if n < 3 {
			writeEnvelope(w, http.StatusInternalServerError, `{"success": false, "error": {"code": "INTERNAL_ERROR", "message": "boom"}}`)
			return
		}
		writeEnvelope(w, http.StatusOK, `{"success": true, "data": {"status": "healthy"}}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	var status HealthStatus
	err := client.Do(context.Background(), http.MethodGet, "/health", nil, &status)
	require.NoError(t, err)
	assert.Equal(t, "healthy", status.Status)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, requests)
}

func TestClient_Do_ExhaustsAttemptBudget(t *testing.T) {
	var mu sync.Mutex
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests++
		mu.Unlock()
		writeEnvelope(w, http.StatusServiceUnavailable, `{"success": false, "error": {"code": "ADB_ERROR", "message": "device unreachable"}}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	err := client.Do(context.Background(), http.MethodGet, "/devices", nil, nil)
	require.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.Equal(t, CodeADB, ErrorCode(err))
	assert.Contains(t, err.Error(), "device unreachable")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, requests)
}

func TestClient_Do_BackoffDelaysIncrease(t *testing.T) {
	var mu sync.Mutex
	var arrivals []time.Time
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		arrivals = append(arrivals, time.Now())
		mu.Unlock()
		writeEnvelope(w, http.StatusInternalServerError, `{"success": false, "error": {"code": "INTERNAL_ERROR", "message": "boom"}}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, WithBackoffBase(40*time.Millisecond))

	err := client.Do(context.Background(), http.MethodGet, "/health", nil, nil)
	require.Error(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, arrivals, 3)

	first := arrivals[1].Sub(arrivals[0])
	second := arrivals[2].Sub(arrivals[1])
	assert.GreaterOrEqual(t, first, 35*time.Millisecond)
	assert.GreaterOrEqual(t, second, 75*time.Millisecond)
	assert.Greater(t, second, first)
}

func TestClient_Do_ClientErrorNotRetried(t *testing.T) {
	var mu sync.Mutex
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests++
		mu.Unlock()
		writeEnvelope(w, http.StatusNotFound, `{"success": false, "error": {"code": "DEVICE_NOT_FOUND", "message": "Device not found: rift"}}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	err := client.Do(context.Background(), http.MethodGet, "/devices/rift", nil, nil)
	require.Error(t, err)
	assert.True(t, IsClientError(err))
	assert.False(t, IsTransient(err))
	assert.Equal(t, CodeDeviceNotFound, ErrorCode(err))
	assert.Contains(t, err.Error(), "Device not found: rift")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, requests)
}

func TestClient_Do_TimeoutNotRetried(t *testing.T) {
	var mu sync.Mutex
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests++
		mu.Unlock()
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, WithTimeout(50*time.Millisecond))

	start := time.Now()
	err := client.Do(context.Background(), http.MethodGet, "/health", nil, nil)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.True(t, IsTimeout(err))
	assert.False(t, IsTransient(err))
	assert.Less(t, elapsed, time.Second)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, requests)
}

func TestClient_Do_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusInternalServerError, `{"success": false, "error": {"code": "INTERNAL_ERROR", "message": "boom"}}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, WithBackoffBase(time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := client.Do(ctx, http.MethodGet, "/health", nil, nil)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, elapsed, 10*time.Second)
}

func TestClient_Do_MalformedBodyRetried(t *testing.T) {
	var mu sync.Mutex
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests++
		mu.Unlock()
		writeEnvelope(w, http.StatusOK, `not json at all`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	err := client.Do(context.Background(), http.MethodGet, "/health", nil, nil)
	require.Error(t, err)
	assert.True(t, IsTransient(err))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, requests)
}

func TestClient_Do_EnvelopeFailureRetried(t *testing.T) {
	var mu sync.Mutex
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests++
		mu.Unlock()
		writeEnvelope(w, http.StatusOK, `{"success": false, "error": {"code": "METRIC_COLLECTION_ERROR", "message": "collector offline"}}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	err := client.Do(context.Background(), http.MethodGet, "/metrics/current", nil, nil)
	require.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.Equal(t, CodeMetricCollection, ErrorCode(err))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, requests)
}

func TestClient_Do_RequestHeaders(t *testing.T) {
	var mu sync.Mutex
	var requestIDs []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requestIDs = append(requestIDs, r.Header.Get("X-Request-ID"))
		mu.Unlock()
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "monitor-test", r.Header.Get("X-Client-Name"))
		writeEnvelope(w, http.StatusInternalServerError, `{"success": false, "error": {"code": "INTERNAL_ERROR", "message": "boom"}}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, WithHeader("X-Client-Name", "monitor-test"))

	err := client.Do(context.Background(), http.MethodGet, "/health", nil, nil)
	require.Error(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, requestIDs, 3)
	assert.NotEmpty(t, requestIDs[0])
	// one correlation id per logical request, shared across its attempts
	assert.Equal(t, requestIDs[0], requestIDs[1])
	assert.Equal(t, requestIDs[0], requestIDs[2])
}

func TestClient_Do_PostBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]string{"mode": "wireless"}, body)
		writeEnvelope(w, http.StatusOK, `{"success": true, "data": {"success": true, "mode": "wireless"}}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	var result SwitchResult
	err := client.Do(context.Background(), http.MethodPost, "/connection/switch", map[string]string{"mode": "wireless"}, &result)
	require.NoError(t, err)
	assert.Equal(t, "wireless", result.Mode)
}

func TestClient_Probe_SingleAttempt(t *testing.T) {
	var mu sync.Mutex
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests++
		mu.Unlock()
		writeEnvelope(w, http.StatusInternalServerError, `{"success": false, "error": {"code": "INTERNAL_ERROR", "message": "boom"}}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	err := client.Probe(context.Background())
	require.Error(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, requests)
}

func TestClient_Probe_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, `{"success": true, "data": {"status": "healthy"}}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	assert.NoError(t, client.Probe(context.Background()))
}

func TestClient_Do_ConnectionRefusedTransient(t *testing.T) {
	// grab a port that nothing listens on
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	unused := server.URL
	server.Close()

	client := newTestClient(t, unused)

	err := client.Do(context.Background(), http.MethodGet, "/health", nil, nil)
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}
