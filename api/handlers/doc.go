// Copyright (c) TaskRoute Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 TaskRoute HTTP API 的请求处理器实现。

# 概述

handlers 包实现了 TaskRoute 所有 HTTP 端点的请求处理逻辑，
包括任务路由、提供者查询与直调、健康检查以及统一的错误响应处理。
所有 Handler 均遵循标准 net/http 接口，通过 Swagger 注解生成 API 文档。

# 核心类型

  - TaskHandler      — 任务路由处理器（POST /route）
  - ProvidersHandler — 提供者列表、能力查询与直调
  - HealthHandler    — 聚合健康检查（/health, /healthz, /version, /）
  - Response         — 统一错误响应信封（success + error + timestamp）
  - ErrorInfo        — 结构化错误信息，含 code、message、retryable 标记
  - ResponseWriter   — 包装 http.ResponseWriter 以捕获状态码

# 响应约定

  - 成功响应直接返回领域对象，不包信封
  - 错误响应统一为 {success: false, error: {...}, timestamp}
  - /health 恒为 HTTP 200，降级通过响应体 status 字段表达
  - 请求验证：DecodeJSONBody（1 MB 限制 + 严格模式）、ValidateContentType
  - ErrorCode → HTTP 状态码自动映射（4xx/5xx）
*/
package handlers
