package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/taskroute/taskroute/api"
	"github.com/taskroute/taskroute/capability"
	"github.com/taskroute/taskroute/types"
)

// =============================================================================
// 🔌 能力提供者处理器
// =============================================================================

// ProvidersHandler 能力提供者处理器
type ProvidersHandler struct {
	registry *capability.Registry
	clients  *capability.ClientFactory
	logger   *zap.Logger
}

// NewProvidersHandler 创建能力提供者处理器
func NewProvidersHandler(registry *capability.Registry, clients *capability.ClientFactory, logger *zap.Logger) *ProvidersHandler {
	return &ProvidersHandler{
		registry: registry,
		clients:  clients,
		logger:   logger,
	}
}

// =============================================================================
// 🎯 HTTP 处理程序
// =============================================================================

// HandleList 处理 /providers 请求（提供者列表）
// @Summary 提供者列表
// @Description 按注册顺序返回全部能力提供者声明
// @Tags 提供者
// @Produce json
// @Success 200 {object} api.ProviderListResponse "提供者列表"
// @Router /providers [get]
func (h *ProvidersHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrInvalidRequest, "method not allowed", h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, api.ProviderListResponse{
		Providers: h.registry.List(),
	})
}

// HandleProviderPath 分发 /providers/{name}/... 子路径。
// 标准库 mux 的前缀模式不解析路径参数，这里手动拆分。
func (h *ProvidersHandler) HandleProviderPath(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/providers/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" {
		WriteErrorMessage(w, http.StatusNotFound, types.ErrInvalidRequest, "not found", h.logger)
		return
	}

	name, action := parts[0], parts[1]
	switch action {
	case "capabilities":
		h.handleCapabilities(w, r, name)
	case "call":
		h.handleCall(w, r, name)
	default:
		WriteErrorMessage(w, http.StatusNotFound, types.ErrInvalidRequest, "not found", h.logger)
	}
}

// handleCapabilities 处理 /providers/{name}/capabilities 请求
// @Summary 能力列表
// @Description 向提供者查询其暴露的能力，配置缓存时命中缓存
// @Tags 提供者
// @Produce json
// @Success 200 {object} api.CapabilityListResponse "能力列表"
// @Failure 404 {object} Response "提供者未注册"
// @Failure 502 {object} Response "提供者不可达或响应异常"
// @Router /providers/{name}/capabilities [get]
func (h *ProvidersHandler) handleCapabilities(w http.ResponseWriter, r *http.Request, name string) {
	if r.Method != http.MethodGet {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrInvalidRequest, "method not allowed", h.logger)
		return
	}

	provider, ok := h.registry.Resolve(name)
	if !ok {
		h.writeUnknownProvider(w, name)
		return
	}

	descriptors, err := h.clients.ClientFor(provider).ListCapabilities(r.Context())
	if err != nil {
		h.writeProviderError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, api.CapabilityListResponse{
		Provider:     name,
		Capabilities: descriptors,
	})
}

// handleCall 处理 /providers/{name}/call 请求
// @Summary 直调能力
// @Description 绕过任务路由直接调用单个能力，返回其原始 JSON 结果
// @Tags 提供者
// @Accept json
// @Produce json
// @Param request body api.CallRequest true "调用请求"
// @Success 200 {object} api.CallResponse "调用结果"
// @Failure 400 {object} Response "请求不合法"
// @Failure 404 {object} Response "提供者未注册"
// @Failure 502 {object} Response "提供者不可达或响应异常"
// @Router /providers/{name}/call [post]
func (h *ProvidersHandler) handleCall(w http.ResponseWriter, r *http.Request, name string) {
	if r.Method != http.MethodPost {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrInvalidRequest, "method not allowed", h.logger)
		return
	}

	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req api.CallRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if req.Capability == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "capability is required", h.logger)
		return
	}

	provider, ok := h.registry.Resolve(name)
	if !ok {
		h.writeUnknownProvider(w, name)
		return
	}

	result, err := h.clients.ClientFor(provider).Invoke(r.Context(), req.Capability, req.Arguments)
	if err != nil {
		h.writeProviderError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, api.CallResponse{
		Provider:   name,
		Capability: req.Capability,
		Result:     result,
	})
}

func (h *ProvidersHandler) writeUnknownProvider(w http.ResponseWriter, name string) {
	WriteError(w, types.NewError(types.ErrProviderNotFound,
		fmt.Sprintf("unknown provider %q", name)).
		WithHTTPStatus(http.StatusNotFound), h.logger)
}

func (h *ProvidersHandler) writeProviderError(w http.ResponseWriter, err error) {
	var typed *types.Error
	if errors.As(err, &typed) {
		WriteError(w, typed, h.logger)
		return
	}
	WriteError(w, types.NewError(types.ErrInternalError, "provider call failed").WithCause(err), h.logger)
}
