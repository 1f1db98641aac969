// 版权所有 2024 DocQA Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 cache 提供基于 Redis 的缓存管理能力，作为答案缓存的可选二级存储。

# 概述

本包封装 go-redis 客户端，以 JSON 形式读写答案条目。
Store 负责连接生命周期：建连时 Ping、按前缀批量删除（索引重载时
清空旧答案）与幂等关闭。支持可选 TLS 加密连接。

# 核心类型

  - Store：GetJSON/SetJSON/DeletePrefix/Ping/Close，满足
    llm/cache.RemoteStore 接口。
  - Config：地址、密码、连接池大小、默认 TTL 与 TLS 开关。

# 错误语义

未命中返回 ErrCacheMiss，可用 IsCacheMiss 判断。其它错误均为
连接或序列化故障，由调用方决定如何降级。
*/
package cache
