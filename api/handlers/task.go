package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/taskroute/taskroute/routing"
	"github.com/taskroute/taskroute/types"
)

// =============================================================================
// 🚀 任务路由处理器
// =============================================================================

// TaskHandler 任务路由处理器
type TaskHandler struct {
	router *routing.Router
	logger *zap.Logger
}

// NewTaskHandler 创建任务路由处理器
func NewTaskHandler(router *routing.Router, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		router: router,
		logger: logger,
	}
}

// HandleRoute 处理 /route 请求（任务路由）
// @Summary 路由任务
// @Description 校验请求、并发分发能力调用、聚合结果后转发给推理后端
// @Tags 任务
// @Accept json
// @Produce json
// @Param request body routing.TaskRequest true "任务请求"
// @Success 200 {object} routing.TaskResponse "任务结果（completed 或 failed）"
// @Failure 400 {object} Response "请求不合法"
// @Failure 503 {object} Response "推理后端未配置"
// @Router /route [post]
func (h *TaskHandler) HandleRoute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrInvalidRequest, "method not allowed", h.logger)
		return
	}

	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req routing.TaskRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	// 后端调用失败会以 status=failed 的任务响应返回；
	// 这里的 err 只覆盖校验失败和后端未配置两种情况。
	resp, err := h.router.Route(r.Context(), &req)
	if err != nil {
		h.writeRouteError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, resp)
}

func (h *TaskHandler) writeRouteError(w http.ResponseWriter, err error) {
	var typed *types.Error
	if errors.As(err, &typed) {
		WriteError(w, typed, h.logger)
		return
	}
	WriteError(w, types.NewError(types.ErrInternalError, "task routing failed").WithCause(err), h.logger)
}
