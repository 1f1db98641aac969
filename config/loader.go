// =============================================================================
// 📦 DocQA 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("DOCQA").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 DocQA 的完整配置结构
type Config struct {
	// Server HTTP 服务配置
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Index 索引产物配置
	Index IndexConfig `yaml:"index" env:"INDEX"`

	// LLM 生成服务配置
	LLM LLMConfig `yaml:"llm" env:"LLM"`

	// Embedding 查询向量化配置
	Embedding EmbeddingConfig `yaml:"embedding" env:"EMBEDDING"`

	// Retrieval 混合检索配置
	Retrieval RetrievalConfig `yaml:"retrieval" env:"RETRIEVAL"`

	// Conversation 对话历史配置
	Conversation ConversationConfig `yaml:"conversation" env:"CONVERSATION"`

	// Synthesis 答案合成配置
	Synthesis SynthesisConfig `yaml:"synthesis" env:"SYNTHESIS"`

	// Cache 响应缓存配置
	Cache CacheConfig `yaml:"cache" env:"CACHE"`

	// Query 请求级配置
	Query QueryConfig `yaml:"query" env:"QUERY"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	// HTTP 端口
	HTTPPort int `yaml:"http_port" env:"HTTP_PORT"`
	// Metrics 端口，0 表示不单独暴露
	MetricsPort int `yaml:"metrics_port" env:"METRICS_PORT"`
	// 读取超时
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// 写入超时
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// 优雅关闭超时
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// 允许的跨域来源，"*" 允许所有，空表示拒绝跨域
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS"`
	// 每个客户端 IP 的限流速率
	RateLimitRPS int `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	// 限流突发容量
	RateLimitBurst int `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
}

// IndexConfig 索引产物配置
type IndexConfig struct {
	// 索引产物位置（SQLite 文件）
	Location string `yaml:"location" env:"LOCATION"`
	// 是否监听产物变化并热重载
	Watch bool `yaml:"watch" env:"WATCH"`
	// 变化事件去抖时间
	WatchDebounce time.Duration `yaml:"watch_debounce" env:"WATCH_DEBOUNCE"`
}

// LLMConfig 生成服务配置（OpenAI 兼容接口）
type LLMConfig struct {
	// Provider 名称（仅用于日志与指标）
	Provider string `yaml:"provider" env:"PROVIDER"`
	// 基础 URL
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// API Key
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 生成模型
	Model string `yaml:"model" env:"MODEL"`
	// 温度参数
	Temperature float64 `yaml:"temperature" env:"TEMPERATURE"`
	// 最大输出 Token 数
	MaxTokens int `yaml:"max_tokens" env:"MAX_TOKENS"`
	// 单次调用超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 429/5xx 时的额外重试次数
	MaxRetries int `yaml:"max_retries" env:"MAX_RETRIES"`
}

// RequiresAPIKey 报告该 Provider 是否需要 API Key。本地推理服务不需要。
func (c LLMConfig) RequiresAPIKey() bool {
	switch c.Provider {
	case "ollama", "vllm", "local":
		return false
	default:
		return true
	}
}

// Configured 报告生成服务是否具备调用条件
func (c LLMConfig) Configured() bool {
	if c.BaseURL == "" {
		return false
	}
	return c.APIKey != "" || !c.RequiresAPIKey()
}

// EmbeddingConfig 查询向量化配置
type EmbeddingConfig struct {
	// 类型: openai, hash
	Provider string `yaml:"provider" env:"PROVIDER"`
	// 基础 URL（openai）
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// API Key（openai）
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 向量模型
	Model string `yaml:"model" env:"MODEL"`
	// 向量维度（hash 必填）
	Dimensions int `yaml:"dimensions" env:"DIMENSIONS"`
	// 请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// RetrievalConfig 混合检索配置
type RetrievalConfig struct {
	// 每种方法取回的候选数
	TopKPerMethod int `yaml:"top_k_per_method" env:"TOP_K_PER_METHOD"`
	// 融合后保留的段落数
	TopNFused int `yaml:"top_n_fused" env:"TOP_N_FUSED"`
	// 词法权重，向量权重为 1 - w
	FusionWeight float64 `yaml:"fusion_weight" env:"FUSION_WEIGHT"`
	// BM25 k1
	BM25K1 float64 `yaml:"bm25_k1" env:"BM25_K1"`
	// BM25 b
	BM25B float64 `yaml:"bm25_b" env:"BM25_B"`
}

// ConversationConfig 对话历史配置
type ConversationConfig struct {
	// 参与改写与缓存键的历史轮数
	HistoryWindowSize int `yaml:"history_window_size" env:"HISTORY_WINDOW_SIZE"`
	// 是否启用历史改写
	RewriteEnabled bool `yaml:"rewrite_enabled" env:"REWRITE_ENABLED"`
	// 改写结果最大字符数，超出回退原问题
	MaxRewriteLength int `yaml:"max_rewrite_length" env:"MAX_REWRITE_LENGTH"`
}

// SynthesisConfig 答案合成配置
type SynthesisConfig struct {
	// 最多返回的来源数
	MaxSources int `yaml:"max_sources" env:"MAX_SOURCES"`
	// 来源摘录长度（字符）
	ExcerptLength int `yaml:"excerpt_length" env:"EXCERPT_LENGTH"`
	// 上下文 Token 预算
	MaxContextTokens int `yaml:"max_context_tokens" env:"MAX_CONTEXT_TOKENS"`
	// 是否在答案后附加页码
	AppendPageFooter bool `yaml:"append_page_footer" env:"APPEND_PAGE_FOOTER"`
}

// CacheConfig 响应缓存配置
type CacheConfig struct {
	// 本地 LRU 容量
	Capacity int `yaml:"capacity" env:"CAPACITY"`
	// 条目存活时间
	TTL time.Duration `yaml:"ttl" env:"TTL"`
	// 可选 Redis 二级缓存
	Redis RedisConfig `yaml:"redis" env:"REDIS"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 地址
	Addr string `yaml:"addr" env:"ADDR"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库编号
	DB int `yaml:"db" env:"DB"`
	// 连接池大小
	PoolSize int `yaml:"pool_size" env:"POOL_SIZE"`
	// 最小空闲连接
	MinIdleConns int `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
	// 键前缀
	KeyPrefix string `yaml:"key_prefix" env:"KEY_PREFIX"`
	// 是否启用 TLS
	TLS bool `yaml:"tls" env:"TLS"`
	// 单次操作超时
	OpTimeout time.Duration `yaml:"op_timeout" env:"OP_TIMEOUT"`
}

// QueryConfig 请求级配置
type QueryConfig struct {
	// 单次请求整体时限
	RequestTimeout time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"`
	// 问题最大字符数
	MaxQuestionLength int `yaml:"max_question_length" env:"MAX_QUESTION_LENGTH"`
	// 历史最大轮数（请求校验）
	MaxHistoryTurns int `yaml:"max_history_turns" env:"MAX_HISTORY_TURNS"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 按 默认值 → YAML → 环境变量 → 校验器 的顺序构建 Config
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
	lookupEnv  func(string) (string, bool)
}

// NewLoader 创建加载器，环境变量前缀默认 DOCQA
func NewLoader() *Loader {
	return &Loader{envPrefix: "DOCQA", lookupEnv: os.LookupEnv}
}

// WithConfigPath 指定 YAML 文件。文件不存在时沿用默认值。
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 替换环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 追加一个在加载末尾运行的校验器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 构建配置
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if err := l.applyFile(cfg); err != nil {
		return nil, fmt.Errorf("config file %s: %w", l.configPath, err)
	}
	if err := l.applyEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix); err != nil {
		return nil, fmt.Errorf("config env: %w", err)
	}
	for _, validate := range l.validators {
		if err := validate(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}
	return cfg, nil
}

func (l *Loader) applyFile(cfg *Config) error {
	if l.configPath == "" {
		return nil
	}
	data, err := os.ReadFile(l.configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil
	case err != nil:
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnv 递归覆盖带 env 标签的字段。嵌套结构体的键为 PREFIX_SECTION_FIELD。
func (l *Loader) applyEnv(v reflect.Value, prefix string) error {
	t := v.Type()
	for i := range t.NumField() {
		tag := t.Field(i).Tag.Get("env")
		if tag == "" || tag == "-" {
			continue
		}
		key := prefix + "_" + tag
		field := v.Field(i)

		if field.Kind() == reflect.Struct {
			if err := l.applyEnv(field, key); err != nil {
				return err
			}
			continue
		}

		raw, ok := l.lookupEnv(key)
		if !ok || raw == "" || !field.CanSet() {
			continue
		}
		if err := decodeEnvValue(field, raw); err != nil {
			return fmt.Errorf("%s=%q: %w", key, raw, err)
		}
	}
	return nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// decodeEnvValue 解析标量、time.Duration 与逗号分隔的 []string
func decodeEnvValue(field reflect.Value, raw string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(raw, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %s", field.Type())
		}
		var items []string
		for _, item := range strings.Split(raw, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		field.Set(reflect.ValueOf(items))
	default:
		return fmt.Errorf("unsupported field type %s", field.Type())
	}
	return nil
}

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}
	if c.Server.MetricsPort < 0 || c.Server.MetricsPort > 65535 {
		errs = append(errs, "invalid metrics port")
	}

	if strings.TrimSpace(c.Index.Location) == "" {
		errs = append(errs, "index.location is required")
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, "llm.temperature must be between 0 and 2")
	}
	if c.LLM.Timeout <= 0 {
		errs = append(errs, "llm.timeout must be positive")
	}
	if c.LLM.MaxRetries < 0 {
		errs = append(errs, "llm.max_retries must not be negative")
	}

	switch c.Embedding.Provider {
	case "openai":
	case "hash":
		if c.Embedding.Dimensions <= 0 {
			errs = append(errs, "embedding.dimensions must be positive for hash provider")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown embedding provider %q", c.Embedding.Provider))
	}

	if c.Retrieval.TopKPerMethod <= 0 {
		errs = append(errs, "retrieval.top_k_per_method must be positive")
	}
	if c.Retrieval.TopNFused <= 0 {
		errs = append(errs, "retrieval.top_n_fused must be positive")
	}
	if c.Retrieval.FusionWeight < 0 || c.Retrieval.FusionWeight > 1 {
		errs = append(errs, "retrieval.fusion_weight must be between 0 and 1")
	}
	if c.Retrieval.BM25K1 < 0 || c.Retrieval.BM25B < 0 || c.Retrieval.BM25B > 1 {
		errs = append(errs, "retrieval.bm25 parameters out of range")
	}

	if c.Conversation.HistoryWindowSize < 0 {
		errs = append(errs, "conversation.history_window_size must not be negative")
	}

	if c.Synthesis.MaxSources <= 0 {
		errs = append(errs, "synthesis.max_sources must be positive")
	}
	if c.Synthesis.ExcerptLength <= 0 {
		errs = append(errs, "synthesis.excerpt_length must be positive")
	}

	if c.Cache.Capacity <= 0 {
		errs = append(errs, "cache.capacity must be positive")
	}
	if c.Cache.TTL <= 0 {
		errs = append(errs, "cache.ttl must be positive")
	}
	if c.Cache.Redis.Enabled && c.Cache.Redis.Addr == "" {
		errs = append(errs, "cache.redis.addr is required when redis is enabled")
	}

	if c.Query.RequestTimeout <= 0 {
		errs = append(errs, "query.request_timeout must be positive")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("unknown log level %q", c.Log.Level))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
