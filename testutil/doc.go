// Copyright 2026 DocQA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package testutil 提供 DocQA 测试的共享工具和辅助函数。

# 核心能力

  - TestContext: 带默认时限的上下文，自动注册 Cleanup
  - WaitFor: 轮询等待条件满足，用于索引热重载等异步场景
  - DecodeJSON: 解码 HTTP 响应体

# 子包

  - testutil/mocks: MockProvider（生成能力，调用计数与错误注入）、
    CountingSearcher（检索适配器调用计数）、StaticEmbedder
  - testutil/fixtures: 合同语料、内存快照与 SQLite 制品写入

# 使用示例

	provider := mocks.NewMockProvider().WithResponse("Thirty days notice (page 4).")
	lexical := mocks.NewCountingSearcher(rag.NewLexicalAdapter())
*/
package testutil
