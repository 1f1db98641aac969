// 版权所有 2024 DocQA Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的问答服务指标采集能力，覆盖
HTTP、问答管线、生成、检索、缓存与索引六个维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
自动注册机制，避免手动管理 Registry。所有指标按 namespace 隔离。
Collector 同时实现 qa.StageRecorder、llm.MetricsRecorder、
rag.SearchRecorder、rag.ReloadRecorder 与 cache.EventRecorder。

# 主要能力

  - HTTP 指标：请求总数、请求耗时、请求/响应体大小，
    按 method/path/status 分组，状态码归类为 2xx/3xx/4xx/5xx。
  - 问答指标：请求总数（按 status/cached）、端到端耗时、阶段耗时。
  - 生成指标：请求总数、耗时、Token 用量（prompt/completion）。
  - 检索指标：按 lexical/vector 统计次数、耗时与结果数。
  - 缓存指标：按 tier/event 统计 hit、miss、store、evict、fault、coalesced。
  - 索引指标：重载次数与耗时，当前段落数与向量数 Gauge。
*/
package metrics
