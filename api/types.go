package api

import (
	"encoding/json"

	"github.com/taskroute/taskroute/capability"
	"github.com/taskroute/taskroute/routing"
)

// =============================================================================
// 任务类型
// =============================================================================

// TaskRequest is a type alias for routing.TaskRequest to avoid duplicate
// definitions. The canonical definition lives in routing.TaskRequest
// (routing/task.go).
type TaskRequest = routing.TaskRequest

// TaskResponse is a type alias for routing.TaskResponse to avoid duplicate
// definitions. The canonical definition lives in routing.TaskResponse
// (routing/task.go).
type TaskResponse = routing.TaskResponse

// =============================================================================
// 提供者类型
// =============================================================================

// ProviderListResponse 表示提供者列表。
// @Description 提供者列表响应
type ProviderListResponse struct {
	// 按注册顺序排列的提供者声明
	Providers []capability.Provider `json:"providers"`
}

// CapabilityListResponse 表示单个提供者的能力列表。
// @Description 能力列表响应
type CapabilityListResponse struct {
	// 提供者名称
	Provider string `json:"provider" example:"search"`
	// 提供者暴露的能力
	Capabilities []capability.Descriptor `json:"capabilities"`
}

// CallRequest 表示能力直调请求。
// @Description 能力直调请求结构
type CallRequest struct {
	// 能力名称
	Capability string `json:"capability" example:"lookup" binding:"required"`
	// 传给能力的参数
	Arguments map[string]any `json:"arguments,omitempty"`
}

// CallResponse 表示能力直调结果。
// @Description 能力直调响应结构
type CallResponse struct {
	// 提供者名称
	Provider string `json:"provider" example:"search"`
	// 被调用的能力
	Capability string `json:"capability" example:"lookup"`
	// 能力返回的原始 JSON 结果
	Result json.RawMessage `json:"result"`
}

// =============================================================================
// 服务信息类型
// =============================================================================

// ServiceInfo 表示根端点返回的服务信息。
// @Description 服务信息结构
type ServiceInfo struct {
	// 服务名称
	Name string `json:"name" example:"taskroute"`
	// 服务版本
	Version string `json:"version" example:"1.0.0"`
	// 服务描述
	Description string `json:"description" example:"Task routing and capability dispatch engine"`
	// 健康检查路径
	Health string `json:"health" example:"/health"`
	// 公开端点列表
	Endpoints []string `json:"endpoints"`
}

// VersionInfo 表示版本端点返回的构建信息。
// @Description 版本信息结构
type VersionInfo struct {
	// 服务版本
	Version string `json:"version" example:"1.0.0"`
	// 构建时间
	BuildTime string `json:"build_time" example:"2025-06-01T00:00:00Z"`
	// 构建提交哈希
	GitCommit string `json:"git_commit" example:"abc1234"`
}
