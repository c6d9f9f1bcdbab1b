package routing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/taskroute/taskroute/backend"
	"github.com/taskroute/taskroute/capability"
	"github.com/taskroute/taskroute/types"
)

type stubGateway struct {
	calls   int
	lastReq *backend.CompletionRequest
	payload string
	err     error
}

func (s *stubGateway) Available() bool { return true }

func (s *stubGateway) Probe(ctx context.Context) error { return nil }

func (s *stubGateway) Complete(ctx context.Context, req *backend.CompletionRequest) (*backend.Completion, error) {
	s.calls++
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	payload := s.payload
	if payload == "" {
		payload = `{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`
	}
	return &backend.Completion{Payload: json.RawMessage(payload)}, nil
}

// newEchoProvider 启动一个把调用参数原样回显的提供者。
// 工具名为 boom 时返回 500。
func newEchoProvider(t *testing.T) (*httptest.Server, *int64) {
	t.Helper()
	var calls int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/call" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		atomic.AddInt64(&calls, 1)

		var req struct {
			Tool      string         `json:"tool"`
			Arguments map[string]any `json:"arguments"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		if req.Tool == "boom" {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":"tool exploded"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"tool": req.Tool, "args": req.Arguments})
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func newTestRouter(t *testing.T, gateway backend.Gateway, cfg Config, providers ...capability.Provider) *Router {
	t.Helper()
	registry, err := capability.NewRegistry(providers)
	require.NoError(t, err)

	clients := capability.NewClientFactory(capability.ClientFactoryConfig{
		RequestTimeout: 5 * time.Second,
	}, nil, nil, zaptest.NewLogger(t))

	dispatcher := capability.NewDispatcher(registry, clients, capability.DispatcherConfig{
		MaxConcurrent:  4,
		RequestTimeout: 2 * time.Second,
	}, nil, zaptest.NewLogger(t))

	return NewRouter(dispatcher, gateway, cfg, nil, zaptest.NewLogger(t))
}

func TestRouter_Route_Completed(t *testing.T) {
	gateway := &stubGateway{}
	router := newTestRouter(t, gateway, Config{})

	resp, err := router.Route(context.Background(), &TaskRequest{Prompt: strPtr("hi")})
	require.NoError(t, err)
	require.NotNil(t, resp)

	assert.Equal(t, StatusCompleted, resp.Status)
	assert.Regexp(t, `^task_[0-9a-f]{16}$`, resp.TaskID)
	assert.NotNil(t, resp.ToolsUsed)
	assert.Empty(t, resp.ToolsUsed)
	assert.Empty(t, resp.Error)
	assert.GreaterOrEqual(t, resp.ExecutionTime, 0.0)
	assert.JSONEq(t,
		`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`,
		string(resp.Result))

	// 出站请求携带默认 system、model 与 temperature
	require.NotNil(t, gateway.lastReq)
	assert.Equal(t, DefaultModel, gateway.lastReq.Model)
	assert.Equal(t, 0.7, gateway.lastReq.Temperature)
	require.Len(t, gateway.lastReq.Messages, 2)
	assert.Equal(t, types.RoleSystem, gateway.lastReq.Messages[0].Role)
	assert.Equal(t, DefaultSystem, gateway.lastReq.Messages[0].Content)
	assert.Equal(t, types.RoleUser, gateway.lastReq.Messages[1].Role)
	assert.Equal(t, "hi", gateway.lastReq.Messages[1].Content)
}

func TestRouter_Route_UnknownProviderTolerated(t *testing.T) {
	gateway := &stubGateway{}
	router := newTestRouter(t, gateway, Config{})

	resp, err := router.Route(context.Background(), &TaskRequest{
		Prompt:                strPtr("hi"),
		RequestedCapabilities: []string{"ghost:lookup"},
	})
	require.NoError(t, err)

	// 能力失败不影响任务终态
	assert.Equal(t, StatusCompleted, resp.Status)
	assert.Empty(t, resp.ToolsUsed)
	assert.Nil(t, resp.CapabilityErrors)
	assert.Equal(t, 1, gateway.calls)
}

func TestRouter_Route_RejectsInvalidRequest(t *testing.T) {
	server, calls := newEchoProvider(t)
	gateway := &stubGateway{}
	router := newTestRouter(t, gateway, Config{},
		capability.Provider{Name: "search", BaseURL: server.URL})

	resp, err := router.Route(context.Background(), &TaskRequest{
		Prompt:                strPtr("hi"),
		Messages:              []types.Message{types.NewUserMessage("hi")},
		RequestedCapabilities: []string{"search:lookup"},
	})
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Equal(t, types.ErrInvalidRequest, types.GetErrorCode(err))

	// 拒绝发生在任何网络调用之前
	assert.Equal(t, 0, gateway.calls)
	assert.Zero(t, atomic.LoadInt64(calls))
}

func TestRouter_Route_BackendUnavailable(t *testing.T) {
	server, calls := newEchoProvider(t)
	router := newTestRouter(t, backend.Unconfigured{}, Config{},
		capability.Provider{Name: "search", BaseURL: server.URL})

	resp, err := router.Route(context.Background(), &TaskRequest{
		Prompt:                strPtr("hi"),
		RequestedCapabilities: []string{"search:lookup"},
	})
	require.Error(t, err)
	assert.Nil(t, resp)

	var typed *types.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, types.ErrBackendUnavailable, typed.Code)
	assert.Equal(t, http.StatusServiceUnavailable, typed.HTTPStatus)

	// 后端未配置时不做任何分发
	assert.Zero(t, atomic.LoadInt64(calls))
}

func TestRouter_Route_BackendFailureStillReportsTools(t *testing.T) {
	server, _ := newEchoProvider(t)
	gateway := &stubGateway{
		err: types.NewError(types.ErrBackendRemote, "backend returned status 500: boom").
			WithHTTPStatus(http.StatusBadGateway),
	}
	router := newTestRouter(t, gateway, Config{},
		capability.Provider{Name: "search", BaseURL: server.URL})

	resp, err := router.Route(context.Background(), &TaskRequest{
		Prompt:                strPtr("hi"),
		RequestedCapabilities: []string{"search:lookup"},
	})
	require.NoError(t, err)
	require.NotNil(t, resp)

	assert.Equal(t, StatusFailed, resp.Status)
	assert.Equal(t, "backend request failed: backend returned status 500: boom", resp.Error)
	assert.Equal(t, []string{"search:lookup"}, resp.ToolsUsed)
	assert.Nil(t, resp.Result)
}

func TestRouter_Route_AugmentsMessagesWithToolResults(t *testing.T) {
	server, _ := newEchoProvider(t)
	gateway := &stubGateway{}
	router := newTestRouter(t, gateway, Config{},
		capability.Provider{Name: "search", BaseURL: server.URL})

	resp, err := router.Route(context.Background(), &TaskRequest{
		Prompt:                strPtr("hi"),
		RequestedCapabilities: []string{"search:lookup"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"search:lookup"}, resp.ToolsUsed)

	require.NotNil(t, gateway.lastReq)
	require.Len(t, gateway.lastReq.Messages, 3)

	augmented := gateway.lastReq.Messages[2]
	assert.Equal(t, types.RoleAssistant, augmented.Role)
	require.True(t, strings.HasPrefix(augmented.Content, "Tool result from search:lookup: "),
		"unexpected content %q", augmented.Content)

	// 默认参数为用户文本
	payload := strings.TrimPrefix(augmented.Content, "Tool result from search:lookup: ")
	assert.JSONEq(t, `{"tool":"lookup","args":{"query":"hi"}}`, payload)
}

func TestRouter_Route_CapabilityArgumentsOverrideDefault(t *testing.T) {
	server, _ := newEchoProvider(t)
	gateway := &stubGateway{}
	router := newTestRouter(t, gateway, Config{},
		capability.Provider{Name: "search", BaseURL: server.URL})

	_, err := router.Route(context.Background(), &TaskRequest{
		Prompt:                strPtr("hi"),
		RequestedCapabilities: []string{"search:lookup"},
		CapabilityArguments: map[string]map[string]any{
			"search:lookup": {"query": "explicit", "depth": 2},
		},
	})
	require.NoError(t, err)

	require.Len(t, gateway.lastReq.Messages, 3)
	payload := strings.TrimPrefix(gateway.lastReq.Messages[2].Content, "Tool result from search:lookup: ")
	assert.JSONEq(t, `{"tool":"lookup","args":{"query":"explicit","depth":2}}`, payload)
}

func TestRouter_Route_ToolsUsedPreservesRequestOrder(t *testing.T) {
	server, _ := newEchoProvider(t)
	gateway := &stubGateway{}
	router := newTestRouter(t, gateway, Config{},
		capability.Provider{Name: "search", BaseURL: server.URL})

	resp, err := router.Route(context.Background(), &TaskRequest{
		Prompt: strPtr("hi"),
		RequestedCapabilities: []string{
			"search:alpha",
			"search:boom",
			"search:beta",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, resp.Status)
	assert.Equal(t, []string{"search:alpha", "search:beta"}, resp.ToolsUsed)
}

func TestRouter_Route_ReportFailures(t *testing.T) {
	server, _ := newEchoProvider(t)
	gateway := &stubGateway{}
	router := newTestRouter(t, gateway, Config{ReportFailures: true},
		capability.Provider{Name: "search", BaseURL: server.URL})

	resp, err := router.Route(context.Background(), &TaskRequest{
		Prompt:                strPtr("hi"),
		RequestedCapabilities: []string{"search:lookup", "search:boom", "ghost:x"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"search:lookup"}, resp.ToolsUsed)
	require.NotNil(t, resp.CapabilityErrors)
	assert.Len(t, resp.CapabilityErrors, 2)
	assert.Contains(t, resp.CapabilityErrors["search:boom"], "tool exploded")
	assert.Contains(t, resp.CapabilityErrors["ghost:x"], "unknown provider")
}

func TestRouter_Route_MessagesMode(t *testing.T) {
	t.Run("prepends default system message", func(t *testing.T) {
		gateway := &stubGateway{}
		router := newTestRouter(t, gateway, Config{})

		_, err := router.Route(context.Background(), &TaskRequest{
			Messages: []types.Message{types.NewUserMessage("hello")},
		})
		require.NoError(t, err)

		require.Len(t, gateway.lastReq.Messages, 2)
		assert.Equal(t, types.RoleSystem, gateway.lastReq.Messages[0].Role)
		assert.Equal(t, DefaultSystem, gateway.lastReq.Messages[0].Content)
		assert.Equal(t, "hello", gateway.lastReq.Messages[1].Content)
	})

	t.Run("keeps caller system message", func(t *testing.T) {
		gateway := &stubGateway{}
		router := newTestRouter(t, gateway, Config{})

		_, err := router.Route(context.Background(), &TaskRequest{
			Messages: []types.Message{
				types.NewSystemMessage("custom persona"),
				types.NewUserMessage("hello"),
			},
		})
		require.NoError(t, err)

		require.Len(t, gateway.lastReq.Messages, 2)
		assert.Equal(t, "custom persona", gateway.lastReq.Messages[0].Content)
	})
}
