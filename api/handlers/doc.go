// Copyright (c) DocQA Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 DocQA HTTP API 的请求处理器实现。

# 概述

handlers 包实现问答、健康检查与版本信息端点，以及统一的 JSON
响应与错误处理。所有 Handler 均遵循标准 net/http 接口。

# 核心类型

  - QueryHandler: POST /query，调用问答管线并返回答案与来源
  - HealthHandler: /health（组件状态）、/healthz、/ready、/version、/
  - Response: 错误与版本信息使用的统一信封（success + data + error）
  - ResponseWriter: 包装 http.ResponseWriter 以捕获状态码与响应大小
  - HealthCheck: 可插拔就绪检查接口（索引、Redis、生成服务）

# 错误码映射

  - INVALID_REQUEST → 400
  - INDEX_UNAVAILABLE / GENERATION_UNAVAILABLE / SYNTHESIS_UNAVAILABLE → 503
  - TIMEOUT → 504
  - 其它 → 500
*/
package handlers
