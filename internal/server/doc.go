// 版权所有 2024 DocQA Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 提供 HTTP 服务器生命周期管理，支持非阻塞启动与优雅关闭。

# 概述

DocQA 运行两个监听：API（/query、/health 等）与可选的独立 /metrics。
两者由同一个 Group 管理，统一处理监听、服务、关闭与错误传播。

# 核心类型

  - Group：持有多个 http.Server 与异步错误通道，
    提供 Add/Start/Wait/Shutdown 等生命周期方法。
  - Config：监听地址、读写超时、空闲超时、最大请求头大小与
    优雅关闭超时。

# 主要能力

  - 全有或全无的启动：任一端口监听失败时释放已打开的端口。
  - 并发优雅关闭：每个监听在自身超时内排空请求，重复调用安全。
  - 等待退出：Wait 在上下文结束（通常来自 signal.NotifyContext）
    或任一监听异常时关闭全部监听。
*/
package server
