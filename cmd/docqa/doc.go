// Copyright (c) DocQA Authors.
// Licensed under the MIT License.

/*
Package main 提供 DocQA 服务端程序入口。

# 概述

cmd/docqa 是文档问答服务的可执行入口，提供 HTTP API 服务、单次本地问答、
健康检查和版本查询等子命令。程序支持 YAML 配置文件与 DOCQA_ 环境变量、
结构化日志（zap）、Prometheus 指标采集、OpenTelemetry 追踪以及索引热重载。

# 核心类型

  - Server: 主服务器，管理 API 与 Metrics 双端口及优雅关闭
  - pipeline: 检索、缓存、改写、合成与编排组件的组装结果，serve 与 ask 共用
  - Middleware: HTTP 中间件函数签名 func(http.Handler) http.Handler

# 主要能力

  - 子命令：serve、ask、health、version
  - 中间件链：Recovery、RequestID、OTelTracing、MetricsMiddleware、
    SecurityHeaders、RequestLogger、CORS、RateLimiter（基于客户端 IP）
  - 降级启动：索引、Redis 或生成服务不可用时照常监听，/health 报告 degraded
  - 索引热重载：监听索引产物，替换快照后清空响应缓存
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
