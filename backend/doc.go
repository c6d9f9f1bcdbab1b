// Copyright (c) TaskRoute Authors.
// Licensed under the MIT License.

/*
Package backend 提供后端补全服务的网关。

# 概述

backend 包封装对聊天补全后端的访问：把任务路由器组装好的消息序列
转发到后端的补全端点，返回未经解释的原始补全载荷。后端从未配置
是一个显式可表示的状态（Unconfigured），它使 Complete 返回
服务不可用错误而不是尝试调用。

# 核心接口与类型

  - Gateway           — 后端网关接口（Complete / Probe / Available）
  - HTTPGateway       — 基于 HTTP 的 Gateway 实现
  - Unconfigured      — 后端未配置时的显式实现
  - CompletionRequest — 一次补全请求（模型、消息、温度、最大 token 数）
  - Completion        — 后端返回的原始补全载荷

# 主要能力

  - 错误分类：不可达、超时、远端错误与畸形响应映射为带重试语义的
    类型化错误
  - 显式未配置：base_url 为空时构造 Unconfigured，进程中不存在
    空网关指针
  - Token 规模观测：发出请求前估算 prompt token 总量，仅用于
    日志与指标，估算失败不影响请求
*/
package backend
