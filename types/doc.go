// Copyright (c) DocQA Authors.
// Licensed under the MIT License.

/*
Package types 提供 DocQA 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 rag、qa、llm、api 等上层
模块提供统一的类型契约。

# 核心类型

  - Role / ConversationTurn: 对话历史中的一轮（user / assistant）
  - Error / ErrorCode: 结构化错误体系，含 HTTP 状态码与 Retryable 标记

# 错误码

  - INVALID_REQUEST: 请求格式错误（空问题、未知角色）
  - RATE_LIMITED: 客户端请求过于频繁（HTTP 中间件）
  - INDEX_UNAVAILABLE: 索引未加载或检索失败
  - GENERATION_UNAVAILABLE: 生成服务不可达
  - SYNTHESIS_UNAVAILABLE: 答案合成失败
  - CACHE_FAULT: 缓存层内部故障（不会离开缓存层）
  - TIMEOUT: 请求超出整体时限
  - INTERNAL_ERROR: 其它未分类错误
*/
package types
