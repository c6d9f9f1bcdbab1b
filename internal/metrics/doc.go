// 版权所有 2025 TaskRoute Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的全链路指标采集能力，覆盖
HTTP、任务、能力调用、后端与缓存五大维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
自动注册机制，避免手动管理 Registry。所有指标按 namespace 隔离，
支持多维度 label 分组，便于 Grafana 等工具进行可视化与告警。

# 核心类型

  - Collector：指标收集器，持有 Counter、Histogram、Gauge 等
    Prometheus 向量指标，按业务域分组管理。

# 主要能力

  - HTTP 指标：请求总数、请求耗时、请求/响应体大小，
    按 method/path/status 分组，状态码归类为 2xx/3xx/4xx/5xx。
  - 任务指标：按终态（completed/failed/rejected/unavailable）
    计数的任务总数与任务处理耗时。
  - 能力调用指标：按 provider/outcome 分组的调用总数与耗时。
  - 后端指标：补全请求总数与耗时、估算 prompt token 分布。
  - 缓存指标：命中与未命中计数，按 cache_type 分组。
  - 健康指标：整体健康状态 Gauge（1 healthy / 0 degraded）。
*/
package metrics
