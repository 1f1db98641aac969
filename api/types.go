package api

import (
	"time"

	"github.com/BaSui01/docqa/types"
)

// =============================================================================
// 问答类型
// =============================================================================

// ChatTurn 对话历史中的一轮
// @Description 历史消息，role 只能是 user 或 assistant
type ChatTurn struct {
	// 角色（user / assistant）
	Role string `json:"role" example:"user"`
	// 消息内容
	Content string `json:"content" example:"What does the contract say about termination?"`
}

// QueryRequest 问答请求
// @Description POST /query 请求体
type QueryRequest struct {
	// 用户问题
	Question string `json:"question" example:"How much notice is required?" binding:"required"`
	// 之前的对话，按时间顺序
	ChatHistory []ChatTurn `json:"chat_history,omitempty"`
}

// History 转换为领域层的对话历史，角色做大小写与空白归一化
func (r QueryRequest) History() []types.ConversationTurn {
	if len(r.ChatHistory) == 0 {
		return nil
	}
	out := make([]types.ConversationTurn, len(r.ChatHistory))
	for i, turn := range r.ChatHistory {
		out[i] = types.ConversationTurn{
			Role:    types.NormalizeRole(turn.Role),
			Content: turn.Content,
		}
	}
	return out
}

// QueryResponse 问答响应
// @Description POST /query 成功响应
type QueryResponse struct {
	// 答案文本
	Answer string `json:"answer"`
	// 引用来源，按相关度排序，最多 3 条
	Sources []types.Source `json:"sources"`
	// 是否来自缓存
	Cached bool `json:"cached"`
}

// =============================================================================
// 健康检查类型
// =============================================================================

// HealthResponse 服务健康状态
// @Description GET /health 响应
type HealthResponse struct {
	// healthy 或 degraded
	Status string `json:"status" example:"healthy"`
	// 索引快照是否已加载
	IndexLoaded bool `json:"index_loaded"`
	// 词法索引是否可用
	LexicalLoaded bool `json:"lexical_loaded"`
	// 向量索引是否可用
	VectorLoaded bool `json:"vector_loaded"`
	// 生成服务是否已配置
	LLMLoaded bool `json:"llm_loaded"`
	// 段落数
	Passages int `json:"passages"`
	// 含向量的段落数
	Vectors int `json:"vectors"`
	// 索引版本
	IndexVersion string `json:"index_version,omitempty"`
	// 索引加载时间
	LoadedAt *time.Time `json:"loaded_at,omitempty"`
	// 响应时间
	Timestamp time.Time `json:"timestamp"`
}

// ServiceInfo 根路径横幅
// @Description GET / 响应
type ServiceInfo struct {
	Service   string            `json:"service" example:"docqa"`
	Version   string            `json:"version" example:"v1.0.0"`
	Endpoints map[string]string `json:"endpoints"`
}
