// Copyright (c) TaskRoute Authors.
// Licensed under the MIT License.

/*
Package types 提供 TaskRoute 服务的全局共享类型定义。

# 概述

types 是服务最底层的公共包，不依赖任何内部包，为 capability、backend、
routing、api 等上层模块提供统一的类型契约。所有跨包共享的结构体、枚举
和错误码均定义于此，以避免循环依赖。

# 核心类型

  - Message            — 对话消息（role + content 线格式）
  - RequestContext     — 请求上下文三元组（trace_id / run_id / policy_set_id）
  - Error / ErrorCode  — 结构化错误体系，含 HTTP 状态码、Retryable、Provider 标记

# 主要能力

  - Context 传播：WithTraceID / WithRunID / WithPolicySet 及 RequestContext
    的 header 读写（x-trace-id / x-run-id / x-policy-set）
  - 错误工具链：NewError + With* 构造器、IsRetryable、GetErrorCode
  - 消息构造：NewSystemMessage / NewUserMessage / NewAssistantMessage
*/
package types
