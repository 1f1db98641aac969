// =============================================================================
// 📦 DocQA 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:       DefaultServerConfig(),
		Index:        DefaultIndexConfig(),
		LLM:          DefaultLLMConfig(),
		Embedding:    DefaultEmbeddingConfig(),
		Retrieval:    DefaultRetrievalConfig(),
		Conversation: DefaultConversationConfig(),
		Synthesis:    DefaultSynthesisConfig(),
		Cache:        DefaultCacheConfig(),
		Query:        DefaultQueryConfig(),
		Log:          DefaultLogConfig(),
		Telemetry:    DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:           8000,
		MetricsPort:        9091,
		ReadTimeout:        30 * time.Second,
		WriteTimeout:       90 * time.Second,
		ShutdownTimeout:    15 * time.Second,
		CORSAllowedOrigins: []string{"*"},
		RateLimitRPS:       20,
		RateLimitBurst:     40,
	}
}

// DefaultIndexConfig 返回默认索引配置
func DefaultIndexConfig() IndexConfig {
	return IndexConfig{
		Location:      "data/index.db",
		Watch:         true,
		WatchDebounce: 500 * time.Millisecond,
	}
}

// DefaultLLMConfig 返回默认生成服务配置
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Provider:    "groq",
		BaseURL:     "https://api.groq.com/openai",
		Model:       "llama-3.1-8b-instant",
		Temperature: 0.1,
		MaxTokens:   1024,
		Timeout:     30 * time.Second,
		MaxRetries:  1,
	}
}

// DefaultEmbeddingConfig 返回默认向量化配置
func DefaultEmbeddingConfig() EmbeddingConfig {
	return EmbeddingConfig{
		Provider:   "hash",
		BaseURL:    "https://api.openai.com",
		Model:      "text-embedding-3-small",
		Dimensions: 384,
		Timeout:    15 * time.Second,
	}
}

// DefaultRetrievalConfig 返回默认检索配置
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		TopKPerMethod: 8,
		TopNFused:     5,
		FusionWeight:  0.5,
		BM25K1:        1.5,
		BM25B:         0.75,
	}
}

// DefaultConversationConfig 返回默认对话配置
func DefaultConversationConfig() ConversationConfig {
	return ConversationConfig{
		HistoryWindowSize: 6,
		RewriteEnabled:    true,
		MaxRewriteLength:  1000,
	}
}

// DefaultSynthesisConfig 返回默认合成配置
func DefaultSynthesisConfig() SynthesisConfig {
	return SynthesisConfig{
		MaxSources:       3,
		ExcerptLength:    200,
		MaxContextTokens: 3000,
		AppendPageFooter: true,
	}
}

// DefaultCacheConfig 返回默认缓存配置
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Capacity: 1000,
		TTL:      time.Hour,
		Redis: RedisConfig{
			Enabled:      false,
			Addr:         "localhost:6379",
			DB:           0,
			PoolSize:     10,
			MinIdleConns: 2,
			KeyPrefix:    "docqa:answer:",
			OpTimeout:    200 * time.Millisecond,
		},
	}
}

// DefaultQueryConfig 返回默认请求配置
func DefaultQueryConfig() QueryConfig {
	return QueryConfig{
		RequestTimeout:    60 * time.Second,
		MaxQuestionLength: 2000,
		MaxHistoryTurns:   100,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "docqa",
		SampleRate:   0.1,
	}
}
