package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/taskroute/taskroute/api"
	"github.com/taskroute/taskroute/backend"
	"github.com/taskroute/taskroute/capability"
	"github.com/taskroute/taskroute/health"
)

// =============================================================================
// 🧪 HealthHandler 测试
// =============================================================================

func newHealthHandler(t *testing.T) *HealthHandler {
	t.Helper()

	registry, err := capability.NewRegistry(nil)
	require.NoError(t, err)

	logger := zap.NewNop()
	clients := capability.NewClientFactory(capability.ClientFactoryConfig{
		RequestTimeout: time.Second,
	}, nil, nil, logger)

	aggregator := health.NewAggregator(health.Config{
		Version:      "test",
		ProbeTimeout: time.Second,
	}, nil, backend.Unconfigured{}, registry, clients, nil, logger)

	return NewHealthHandler(aggregator, logger)
}

func TestHealthHandler_HandleHealth(t *testing.T) {
	handler := newHealthHandler(t)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	handler.HandleHealth(w, r)

	// 健康端点恒为 200，未配置的依赖不降级
	assert.Equal(t, http.StatusOK, w.Code)

	var snap health.Snapshot
	require.NoError(t, json.NewDecoder(w.Body).Decode(&snap))
	assert.Equal(t, health.OverallHealthy, snap.Status)
	assert.Equal(t, "test", snap.Version)
	assert.Equal(t, health.StatusNotConfigured, snap.Services["cache"])
	assert.Equal(t, health.StatusNotConfigured, snap.Services["backend"])
	assert.NotNil(t, snap.CapabilityProviders)
	assert.Empty(t, snap.CapabilityProviders)
}

func TestHealthHandler_HandleHealthz(t *testing.T) {
	handler := newHealthHandler(t)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	handler.HandleHealthz(w, r)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestHealthHandler_HandleVersion(t *testing.T) {
	handler := newHealthHandler(t)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/version", nil)
	handler.HandleVersion("1.2.3", "2025-06-01T00:00:00Z", "abc1234")(w, r)

	assert.Equal(t, http.StatusOK, w.Code)

	var info api.VersionInfo
	require.NoError(t, json.NewDecoder(w.Body).Decode(&info))
	assert.Equal(t, "1.2.3", info.Version)
	assert.Equal(t, "2025-06-01T00:00:00Z", info.BuildTime)
	assert.Equal(t, "abc1234", info.GitCommit)
}

func TestHealthHandler_HandleRoot(t *testing.T) {
	handler := newHealthHandler(t)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	handler.HandleRoot("1.2.3")(w, r)

	assert.Equal(t, http.StatusOK, w.Code)

	var info api.ServiceInfo
	require.NoError(t, json.NewDecoder(w.Body).Decode(&info))
	assert.Equal(t, "taskroute", info.Name)
	assert.Equal(t, "1.2.3", info.Version)
	assert.Equal(t, "/health", info.Health)
	assert.Contains(t, info.Endpoints, "/route")
	assert.Contains(t, info.Endpoints, "/providers")
}

func TestHealthHandler_HandleRoot_UnknownPath(t *testing.T) {
	handler := newHealthHandler(t)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/nope", nil)
	handler.HandleRoot("1.2.3")(w, r)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
