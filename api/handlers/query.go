package handlers

import (
	"context"
	"net/http"

	"github.com/BaSui01/docqa/api"
	"github.com/BaSui01/docqa/qa"
	"github.com/BaSui01/docqa/types"
	"go.uber.org/zap"
)

// =============================================================================
// 💬 问答 Handler
// =============================================================================

// Answerer 问答管线，由 qa.Orchestrator 实现
type Answerer interface {
	Answer(ctx context.Context, req qa.Request) (*qa.Response, error)
}

// QueryHandler 处理 POST /query
type QueryHandler struct {
	answerer Answerer
	logger   *zap.Logger
}

// NewQueryHandler 创建问答处理器
func NewQueryHandler(answerer Answerer, logger *zap.Logger) *QueryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryHandler{
		answerer: answerer,
		logger:   logger.With(zap.String("handler", "query")),
	}
}

// HandleQuery 处理 /query 请求
// @Summary 文档问答
// @Description 基于已索引文档回答问题，可携带对话历史
// @Tags 问答
// @Accept json
// @Produce json
// @Param request body api.QueryRequest true "问答请求"
// @Success 200 {object} api.QueryResponse "答案"
// @Failure 400 {object} Response "请求无效"
// @Failure 503 {object} Response "索引或生成服务不可用"
// @Failure 504 {object} Response "请求超时"
// @Router /query [post]
func (h *QueryHandler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	var req api.QueryRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	resp, err := h.answerer.Answer(r.Context(), qa.Request{
		RequestID: requestIDFrom(r),
		Question:  req.Question,
		History:   req.History(),
	})
	if err != nil {
		WriteErrorFrom(w, r, err, h.logger)
		return
	}

	sources := resp.Sources
	if sources == nil {
		sources = []types.Source{}
	}
	WriteJSON(w, http.StatusOK, api.QueryResponse{
		Answer:  resp.Answer,
		Sources: sources,
		Cached:  resp.Cached,
	})
}
