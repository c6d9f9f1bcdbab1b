// Copyright (c) TaskRoute Authors.
// Licensed under the MIT License.

/*
Package capability 提供能力注册表、提供者客户端与并发分发协调器。

# 概述

capability 包实现 TaskRoute 的能力层：从 YAML 声明式加载提供者注册表，
通过统一的 HTTP 客户端访问提供者的能力列表、调用与健康探测端点，
并以受限并发将一组能力引用分发到各提供者。分发结果按请求顺序返回，
单个调用的失败以值的形式记录在对应槽位中，不影响其他调用。

# 核心接口与类型

  - Provider         — 提供者声明（名称、接入方式、基础 URL、描述）
  - Registry         — 只读提供者注册表（List / Resolve / Names）
  - Ref              — "provider:capability" 形式的能力引用
  - Client           — 提供者客户端接口（列表、调用、健康探测）
  - HTTPClient       — 基于 HTTP 的 Client 实现
  - CachedClient     — 带能力列表缓存的 Client 装饰器
  - ClientFactory    — 按提供者构造客户端，共享连接池与缓存
  - Dispatcher       — 并发分发协调器
  - InvocationResult — 单次调用结果（成功输出或失败错误）

# 主要能力

  - 声明式注册表：LoadProviders 从 YAML 加载并校验提供者列表，
    加载后只读，支持无锁并发读取
  - 失败即值：解析失败、未知提供者与远端错误都记录在结果槽位中，
    永远不会中止兄弟调用或整体分发
  - 受限并发：errgroup SetLimit 控制最大并发分发数，
    每次调用携带独立超时
  - 列表缓存：能力列表优先走缓存，未命中或缓存故障自动穿透到
    实时调用，缓存故障只损失加速效果
*/
package capability
