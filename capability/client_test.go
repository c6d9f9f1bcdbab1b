package capability

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/taskroute/taskroute/types"
)

func newTestClient(t *testing.T, handler http.Handler) (*HTTPClient, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	provider := Provider{Name: "search", Kind: KindHTTP, BaseURL: server.URL}
	return NewHTTPClient(provider, server.Client(), zap.NewNop()), server
}

func TestHTTPClient_ListCapabilities(t *testing.T) {
	var gotPath, gotAccept string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"name":"web_search","description":"Search the web"},{"name":"news"}]`))
	}))

	descriptors, err := client.ListCapabilities(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "/tools", gotPath)
	assert.Equal(t, "application/json", gotAccept)
	require.Len(t, descriptors, 2)
	assert.Equal(t, "web_search", descriptors[0].Name)
	assert.Equal(t, "Search the web", descriptors[0].Description)
	assert.Equal(t, "news", descriptors[1].Name)
}

func TestHTTPClient_ListCapabilitiesRemoteError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"listing exploded"}`))
	}))

	_, err := client.ListCapabilities(context.Background())
	require.Error(t, err)

	assert.Equal(t, types.ErrCapabilityRemote, types.GetErrorCode(err))
	assert.True(t, types.IsRetryable(err))
	assert.Contains(t, err.Error(), "listing exploded")

	var typed *types.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, "search", typed.Provider)
}

func TestHTTPClient_ListCapabilitiesBadResponse(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	}))

	_, err := client.ListCapabilities(context.Background())
	require.Error(t, err)
	assert.Equal(t, types.ErrCapabilityBadResponse, types.GetErrorCode(err))
}

func TestHTTPClient_ListCapabilitiesUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	provider := Provider{Name: "search", BaseURL: url}
	client := NewHTTPClient(provider, nil, zap.NewNop())

	_, err := client.ListCapabilities(context.Background())
	require.Error(t, err)
	assert.Equal(t, types.ErrCapabilityUnreachable, types.GetErrorCode(err))
	assert.True(t, types.IsRetryable(err))
}

func TestHTTPClient_Invoke(t *testing.T) {
	var gotMethod, gotPath string
	var rawBody []byte
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		rawBody, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{"results":["a","b"]}`))
	}))

	out, err := client.Invoke(context.Background(), "web_search", map[string]any{"query": "golang"})
	require.NoError(t, err)

	var gotBody invokeRequest
	require.NoError(t, json.Unmarshal(rawBody, &gotBody))

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/call", gotPath)
	assert.Equal(t, "web_search", gotBody.Tool)
	assert.Equal(t, map[string]any{"query": "golang"}, gotBody.Arguments)
	assert.JSONEq(t, `{"results":["a","b"]}`, string(out))
}

func TestHTTPClient_InvokeNilArguments(t *testing.T) {
	var rawBody []byte
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawBody, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{}`))
	}))

	_, err := client.Invoke(context.Background(), "web_search", nil)
	require.NoError(t, err)

	// 空参数序列化为 {} 而不是 null
	assert.JSONEq(t, `{"tool":"web_search","arguments":{}}`, string(rawBody))
}

func TestHTTPClient_InvokeRemoteError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"detail":"unknown tool"}`))
	}))

	_, err := client.Invoke(context.Background(), "nope", nil)
	require.Error(t, err)

	assert.Equal(t, types.ErrCapabilityRemote, types.GetErrorCode(err))
	assert.Contains(t, err.Error(), "unknown tool")
	assert.Contains(t, err.Error(), "400")
	assert.False(t, types.IsRetryable(err))
}

func TestHTTPClient_InvokeTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(500 * time.Millisecond):
		}
	}))
	t.Cleanup(server.Close)

	provider := Provider{Name: "slowpoke", BaseURL: server.URL}
	client := NewHTTPClient(provider, &http.Client{Timeout: 30 * time.Millisecond}, zap.NewNop())

	_, err := client.Invoke(context.Background(), "web_search", nil)
	require.Error(t, err)
	assert.Equal(t, types.ErrCapabilityTimeout, types.GetErrorCode(err))
	assert.True(t, types.IsRetryable(err))
}

func TestHTTPClient_InvokeContextDeadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(500 * time.Millisecond):
		}
	}))
	t.Cleanup(server.Close)

	provider := Provider{Name: "slowpoke", BaseURL: server.URL}
	client := NewHTTPClient(provider, server.Client(), zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := client.Invoke(ctx, "web_search", nil)
	require.Error(t, err)
	assert.Equal(t, types.ErrCapabilityTimeout, types.GetErrorCode(err))
}

func TestHTTPClient_InvokeBadResponse(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`this is not json`))
	}))

	_, err := client.Invoke(context.Background(), "web_search", nil)
	require.Error(t, err)
	assert.Equal(t, types.ErrCapabilityBadResponse, types.GetErrorCode(err))
}

func TestHTTPClient_HealthProbe(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   bool
	}{
		{name: "ok", status: http.StatusOK, want: true},
		{name: "server error", status: http.StatusInternalServerError, want: false},
		{name: "service unavailable", status: http.StatusServiceUnavailable, want: false},
		{name: "only 200 counts", status: http.StatusNoContent, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPath string
			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				w.WriteHeader(tt.status)
			}))

			assert.Equal(t, tt.want, client.HealthProbe(context.Background()))
			assert.Equal(t, "/health", gotPath)
		})
	}
}

func TestHTTPClient_HealthProbeUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := NewHTTPClient(Provider{Name: "gone", BaseURL: url}, nil, zap.NewNop())
	assert.False(t, client.HealthProbe(context.Background()))
}

func TestHTTPClient_PropagatesContextTriple(t *testing.T) {
	var gotTrace, gotRun, gotPolicy string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTrace = r.Header.Get(types.HeaderTraceID)
		gotRun = r.Header.Get(types.HeaderRunID)
		gotPolicy = r.Header.Get(types.HeaderPolicySet)
		w.Write([]byte(`[]`))
	}))

	rc := types.RequestContext{TraceID: "trace-1", RunID: "run-1", PolicySetID: "canary"}
	ctx := types.WithRequestContext(context.Background(), rc)

	_, err := client.ListCapabilities(ctx)
	require.NoError(t, err)

	assert.Equal(t, "trace-1", gotTrace)
	assert.Equal(t, "run-1", gotRun)
	assert.Equal(t, "canary", gotPolicy)
}

func TestHTTPClient_TrimsTrailingSlash(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`[]`))
	}))
	t.Cleanup(server.Close)

	client := NewHTTPClient(Provider{Name: "search", BaseURL: server.URL + "/"}, server.Client(), zap.NewNop())

	_, err := client.ListCapabilities(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/tools", gotPath)
}

func TestClientFactory_ClientFor(t *testing.T) {
	factory := NewClientFactory(ClientFactoryConfig{
		ConnectTimeout: time.Second,
		RequestTimeout: time.Second,
	}, nil, nil, zap.NewNop())

	client := factory.ClientFor(Provider{Name: "search", BaseURL: "http://search:9100"})
	require.IsType(t, &HTTPClient{}, client)
	assert.Equal(t, "search", client.Provider().Name)
}
