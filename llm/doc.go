/*
包 llm 提供生成能力的接入层：统一的请求/响应模型、错误码，
以及 OpenAI 兼容服务（Groq、OpenAI、Ollama 等）的实现。

# 核心接口

  - [Provider]：Completion / HealthCheck / Name
  - [InstrumentedProvider]：为任意 Provider 附加 Prometheus 指标与 OTel Span

# 子包

  - providers/openaicompat：OpenAI 兼容的 HTTP 客户端
  - embedding：查询向量化（OpenAI 兼容接口与本地哈希向量）
  - tokenizer：基于 tiktoken 的 Token 计数，失败时回退到估算器
  - cache：响应缓存（LRU + TTL + 单飞 + 可选 Redis 二级缓存）
*/
package llm
