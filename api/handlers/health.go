package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/taskroute/taskroute/api"
	"github.com/taskroute/taskroute/health"
	"github.com/taskroute/taskroute/types"
)

// =============================================================================
// 🏥 健康检查 Handler
// =============================================================================

// HealthHandler 健康检查处理器
type HealthHandler struct {
	aggregator *health.Aggregator
	logger     *zap.Logger
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(aggregator *health.Aggregator, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		aggregator: aggregator,
		logger:     logger,
	}
}

// =============================================================================
// 🎯 HTTP 处理程序
// =============================================================================

// HandleHealth 处理 /health 请求（聚合健康检查）
// 无论聚合结果是 healthy 还是 degraded，HTTP 状态码恒为 200，
// 调用方通过响应体中的 status 字段判断降级。
// @Summary 健康检查
// @Description 并发探测缓存、推理后端与全部能力提供者，返回聚合快照
// @Tags 健康
// @Produce json
// @Success 200 {object} health.Snapshot "聚合健康快照"
// @Router /health [get]
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	snapshot := h.aggregator.Check(r.Context())

	WriteJSON(w, http.StatusOK, snapshot)
}

// HandleHealthz 处理 /healthz 请求（Kubernetes 风格）
// @Summary Kubernetes 活跃度探针
// @Description 仅确认进程存活，不做任何依赖探测
// @Tags 健康
// @Produce json
// @Success 200 {object} map[string]string "服务处于活动状态"
// @Router /healthz [get]
func (h *HealthHandler) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// HandleVersion 处理 /version 请求
// @Summary 版本信息
// @Description 返回版本、构建时间与提交哈希
// @Tags 健康
// @Produce json
// @Success 200 {object} api.VersionInfo "版本信息"
// @Router /version [get]
func (h *HealthHandler) HandleVersion(version, buildTime, gitCommit string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, api.VersionInfo{
			Version:   version,
			BuildTime: buildTime,
			GitCommit: gitCommit,
		})
	}
}

// HandleRoot 处理 / 请求（服务信息）
// "/" 模式兜底匹配所有未注册路径，非根路径统一返回 404。
// @Summary 服务信息
// @Description 返回服务名称、版本与端点列表
// @Tags 健康
// @Produce json
// @Success 200 {object} api.ServiceInfo "服务信息"
// @Router / [get]
func (h *HealthHandler) HandleRoot(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			WriteErrorMessage(w, http.StatusNotFound, types.ErrInvalidRequest, "not found", h.logger)
			return
		}

		WriteJSON(w, http.StatusOK, api.ServiceInfo{
			Name:        "taskroute",
			Version:     version,
			Description: "Task routing and capability dispatch engine",
			Health:      "/health",
			Endpoints: []string{
				"/route",
				"/providers",
				"/health",
				"/healthz",
				"/version",
			},
		})
	}
}
