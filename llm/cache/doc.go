// 版权所有 2024 DocQA Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 cache 提供答案级响应缓存：本地 LRU + TTL 为一级，Redis 为可选二级，
并通过 singleflight 合并同一键上的并发计算。

# 概述

缓存键由改写后的问题与对话窗口共同决定（BuildKey）。命中时直接返回
已合成的答案与来源，未命中时由调用方提供的计算函数生成结果并回填。

# 核心类型

  - Entry：缓存条目（答案、来源、创建时间）
  - LRUCache：双向链表实现的 O(1) LRU，条目超过 TTL 即视为未命中
  - ResponseCache：两级缓存 + 单飞合并
  - RemoteStore：二级存储接口，由 internal/cache.Manager 实现

# 故障语义

二级存储的任何错误或 panic 都记为 CACHE_FAULT、写日志并降级为未命中，
不会传递给调用方。进行中的计算不存放在 LRU 中，容量或过期淘汰不会
取消或重复一次计算。
*/
package cache
