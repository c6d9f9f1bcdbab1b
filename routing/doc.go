// Copyright (c) TaskRoute Authors.
// Licensed under the MIT License.

/*
Package routing 实现任务路由流水线。

# 概述

routing 包把一次任务提交处理到终态：校验请求结构、检查后端可用性、
并发分发请求的能力引用、把成功的能力输出组装进出站消息序列，
最后调用后端补全并汇总为 TaskResponse。流水线是单一线性路径，
没有分支重试，每个请求恰好处理一次到一个终态。

# 核心类型

  - TaskRequest  — 任务提交（prompt 与 messages 恰好二选一）
  - TaskResponse — 终态结果（completed / failed）
  - Router       — 流水线协调器

# 终态语义

  - completed — 后端补全成功，result 携带原始载荷
  - failed    — 后端补全失败，error 携带失败文本
  - 校验失败与后端未配置不产出 TaskResponse，
    而是作为类型化错误返回（拒绝与不可用分类）
  - 能力调用失败从不使任务失败，只会缺席 tools_used
*/
package routing
