package backend

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/taskroute/taskroute/types"
)

// testModel 映射到估算计数器，测试中不触发任何编码下载。
const testModel = "mistralai/Mistral-7B-Instruct-v0.3"

func testRequest() *CompletionRequest {
	return &CompletionRequest{
		Model: testModel,
		Messages: []types.Message{
			{Role: types.RoleSystem, Content: "You are a helpful coding agent."},
			{Role: types.RoleUser, Content: "write a sort function"},
		},
		Temperature: 0.7,
		MaxTokens:   512,
	}
}

func newTestGateway(t *testing.T, handler http.HandlerFunc) *HTTPGateway {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewHTTPGateway(Config{BaseURL: server.URL}, nil, zaptest.NewLogger(t))
}

func TestHTTPGateway_Complete(t *testing.T) {
	var rawBody []byte
	gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		rawBody, _ = io.ReadAll(r.Body)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"cmpl-1","choices":[{"message":{"role":"assistant","content":"done"}}]}`))
	})

	completion, err := gateway.Complete(context.Background(), testRequest())
	require.NoError(t, err)
	require.NotNil(t, completion)

	assert.JSONEq(t,
		`{"id":"cmpl-1","choices":[{"message":{"role":"assistant","content":"done"}}]}`,
		string(completion.Payload))

	// 出站载荷始终携带全部四个字段
	assert.JSONEq(t, `{
		"model": "mistralai/Mistral-7B-Instruct-v0.3",
		"messages": [
			{"role": "system", "content": "You are a helpful coding agent."},
			{"role": "user", "content": "write a sort function"}
		],
		"temperature": 0.7,
		"max_tokens": 512
	}`, string(rawBody))
}

func TestHTTPGateway_Complete_RemoteError(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		retryable bool
		contains  string
	}{
		{
			name:      "server error is retryable",
			status:    http.StatusInternalServerError,
			body:      `{"error": "backend exploded"}`,
			retryable: true,
			contains:  "backend exploded",
		},
		{
			name:      "client error is not retryable",
			status:    http.StatusBadRequest,
			body:      `{"detail": "model not known"}`,
			retryable: false,
			contains:  "model not known",
		},
		{
			name:      "plain text body is passed through",
			status:    http.StatusBadGateway,
			body:      "upstream broke",
			retryable: true,
			contains:  "upstream broke",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := gateway.Complete(context.Background(), testRequest())
			require.Error(t, err)
			assert.Equal(t, types.ErrBackendRemote, types.GetErrorCode(err))
			assert.Equal(t, tt.retryable, types.IsRetryable(err))
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestHTTPGateway_Complete_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(500 * time.Millisecond):
			w.Write([]byte(`{}`))
		}
	}))
	t.Cleanup(server.Close)

	gateway := NewHTTPGateway(Config{
		BaseURL:        server.URL,
		RequestTimeout: 50 * time.Millisecond,
	}, nil, zaptest.NewLogger(t))

	_, err := gateway.Complete(context.Background(), testRequest())
	require.Error(t, err)
	assert.Equal(t, types.ErrBackendTimeout, types.GetErrorCode(err))
	assert.True(t, types.IsRetryable(err))
}

func TestHTTPGateway_Complete_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := server.URL
	server.Close()

	gateway := NewHTTPGateway(Config{BaseURL: baseURL}, nil, zaptest.NewLogger(t))

	_, err := gateway.Complete(context.Background(), testRequest())
	require.Error(t, err)
	assert.Equal(t, types.ErrBackendUnreachable, types.GetErrorCode(err))
	assert.True(t, types.IsRetryable(err))
}

func TestHTTPGateway_Complete_BadResponse(t *testing.T) {
	gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("this is not json"))
	})

	_, err := gateway.Complete(context.Background(), testRequest())
	require.Error(t, err)
	assert.Equal(t, types.ErrBackendBadResponse, types.GetErrorCode(err))
}

func TestHTTPGateway_PropagatesContextTriple(t *testing.T) {
	var header http.Header
	gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Clone()
		w.Write([]byte(`{}`))
	})

	ctx := types.WithRequestContext(context.Background(), types.RequestContext{
		TraceID:     "trace-1",
		RunID:       "run-1",
		PolicySetID: "canary",
	})

	_, err := gateway.Complete(ctx, testRequest())
	require.NoError(t, err)

	assert.Equal(t, "trace-1", header.Get("x-trace-id"))
	assert.Equal(t, "run-1", header.Get("x-run-id"))
	assert.Equal(t, "canary", header.Get("x-policy-set"))
}

func TestHTTPGateway_TrimsTrailingSlash(t *testing.T) {
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Write([]byte(`{}`))
	}))
	t.Cleanup(server.Close)

	gateway := NewHTTPGateway(Config{BaseURL: server.URL + "/"}, nil, zaptest.NewLogger(t))

	_, err := gateway.Complete(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "/v1/chat/completions", path)
}

func TestHTTPGateway_Probe(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{name: "healthy", status: http.StatusOK, wantErr: false},
		{name: "unavailable", status: http.StatusServiceUnavailable, wantErr: true},
		{name: "only 200 counts", status: http.StatusNoContent, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var path string
			gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
				path = r.URL.Path
				w.WriteHeader(tt.status)
			})

			err := gateway.Probe(context.Background())
			assert.Equal(t, "/health", path)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHTTPGateway_Probe_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := server.URL
	server.Close()

	gateway := NewHTTPGateway(Config{BaseURL: baseURL}, nil, zaptest.NewLogger(t))
	assert.Error(t, gateway.Probe(context.Background()))
}

func TestHTTPGateway_Available(t *testing.T) {
	gateway := NewHTTPGateway(Config{BaseURL: "http://localhost:9"}, nil, zaptest.NewLogger(t))
	assert.True(t, gateway.Available())
}

func TestUnconfigured(t *testing.T) {
	var gateway Gateway = Unconfigured{}

	assert.False(t, gateway.Available())

	_, err := gateway.Complete(context.Background(), testRequest())
	require.Error(t, err)

	var typed *types.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, types.ErrBackendUnavailable, typed.Code)
	assert.Equal(t, http.StatusServiceUnavailable, typed.HTTPStatus)
	assert.Equal(t, "backend client not available", typed.Message)

	assert.Error(t, gateway.Probe(context.Background()))
}

func TestNew_SelectsGateway(t *testing.T) {
	t.Run("empty base URL yields unconfigured gateway", func(t *testing.T) {
		gateway := New(Config{}, nil, zaptest.NewLogger(t))
		assert.IsType(t, Unconfigured{}, gateway)
		assert.False(t, gateway.Available())
	})

	t.Run("base URL yields HTTP gateway", func(t *testing.T) {
		gateway := New(Config{BaseURL: "http://backend:8080"}, nil, zaptest.NewLogger(t))
		assert.IsType(t, &HTTPGateway{}, gateway)
		assert.True(t, gateway.Available())
	})
}
