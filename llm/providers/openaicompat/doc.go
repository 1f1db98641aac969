// Package openaicompat 实现 OpenAI Chat Completions 兼容的生成客户端。
//
// Groq、OpenAI、Ollama（/v1 兼容层）、vLLM 等服务共享同一请求格式，
// 只在 BaseURL、默认模型与鉴权头上有差异：
//
//	p := openaicompat.New(openaicompat.Config{
//	    ProviderName: "groq",
//	    APIKey:       cfg.APIKey,
//	    BaseURL:      "https://api.groq.com/openai",
//	    DefaultModel: "llama-3.1-8b-instant",
//	}, logger)
//
// 429、5xx 与网络错误按 MaxRetries 有限重试（优先遵循 Retry-After），
// 所有尝试共享请求的截止时间。不支持流式输出。
package openaicompat
