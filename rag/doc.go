// Copyright 2025-2026 DocQA Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

Package rag 提供 DocQA 的混合检索实现：从预构建的 SQLite 索引制品加载段落，
同时维护 BM25 词法索引与余弦相似度向量索引，并将两路结果做 min-max 归一化
加权融合。

# 核心接口/类型

  - Passage：索引中的一个段落（ID、页码、内容、可选向量）
  - Searcher：单路检索适配器接口（LexicalAdapter / VectorAdapter）
  - Snapshot / IndexHolder：不可变索引快照，通过 atomic.Pointer 原子替换
  - HybridRetriever：固定一个快照，并发执行两路检索后调用 Fuse
  - Store / Loader / Watcher：制品读取、快照构建与文件热加载

# 主要能力

  - BM25 词法检索（k1、b 可配置）
  - 余弦相似度向量检索，跳过缺失或维度不匹配的向量
  - 确定性融合排序：融合分数降序，词法名次、向量名次、段落 ID 依次打破平局
  - 制品文件变更时去抖重载，查询期间不会看到半构建的索引
*/
package rag
