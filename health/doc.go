// Copyright (c) TaskRoute Authors.
// Licensed under the MIT License.

/*
Package health 聚合缓存、后端与能力提供者的健康状态。

# 概述

health 包每次被询问时实时探测各依赖组件并汇总为一个快照：
缓存连通性、后端可达性，以及注册表中每个能力提供者的健康端点。
所有探测并行执行且各自带超时，探测失败从不作为错误向上传播，
而是归入快照中的状态值。

# 核心类型

  - Aggregator    — 健康聚合器，Check 返回实时快照
  - Snapshot      — 整体状态、各服务三态与提供者可达性
  - ServiceStatus — healthy / unhealthy / not_configured 三态

# 状态规则

  - 整体状态只有 healthy 与 degraded 两档
  - 缓存或后端 unhealthy 时整体为 degraded
  - not_configured 是中性状态，从不导致降级
  - 提供者可达性如实上报，但从不影响整体状态
*/
package health
