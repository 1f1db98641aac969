package providers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/BaSui01/docqa/llm"
)

// maxErrorBody 错误响应体读取上限
const maxErrorBody = 64 << 10

type statusClass struct {
	code      llm.ErrorCode
	retryable bool
}

// statusClasses 精确匹配的状态码。400 另按消息区分配额错误。
var statusClasses = map[int]statusClass{
	http.StatusUnauthorized:       {llm.ErrUnauthorized, false},
	http.StatusForbidden:          {llm.ErrForbidden, false},
	http.StatusTooManyRequests:    {llm.ErrRateLimited, true},
	http.StatusRequestTimeout:     {llm.ErrUpstreamTimeout, true},
	http.StatusGatewayTimeout:     {llm.ErrUpstreamTimeout, true},
	http.StatusBadGateway:         {llm.ErrUpstreamError, true},
	http.StatusServiceUnavailable: {llm.ErrUpstreamError, true},
	529:                           {llm.ErrModelOverloaded, true}, // 部分服务商的过载状态码
}

// MapHTTPError 将上游 HTTP 错误映射为 *llm.Error。
// 未列出的 5xx 可重试，其余 4xx 不可重试。
func MapHTTPError(status int, msg, provider string) *llm.Error {
	class, ok := statusClasses[status]
	if !ok {
		class = statusClass{code: llm.ErrUpstreamError, retryable: status >= 500}
	}
	if status == http.StatusBadRequest {
		class = statusClass{code: llm.ErrInvalidRequest}
		if lower := strings.ToLower(msg); strings.Contains(lower, "quota") || strings.Contains(lower, "credit") {
			class.code = llm.ErrQuotaExceeded
		}
	}
	return &llm.Error{
		Code:       class.code,
		Message:    msg,
		HTTPStatus: status,
		Retryable:  class.retryable,
		Provider:   provider,
	}
}

// ReadErrorMessage 提取 {"error":{"message":...}} 形式的错误消息，
// 不是该格式时返回去掉首尾空白的原文
func ReadErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil {
		return "failed to read error response"
	}

	var envelope struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if json.Unmarshal(data, &envelope) != nil || envelope.Error.Message == "" {
		return strings.TrimSpace(string(data))
	}
	if envelope.Error.Type == "" {
		return envelope.Error.Message
	}
	return fmt.Sprintf("%s (type: %s)", envelope.Error.Message, envelope.Error.Type)
}

// UpstreamError 将网络或解码失败包装为可重试的上游错误
func UpstreamError(err error, provider string) *llm.Error {
	return &llm.Error{
		Code:       llm.ErrUpstreamError,
		Message:    err.Error(),
		HTTPStatus: http.StatusBadGateway,
		Retryable:  true,
		Provider:   provider,
	}
}

// BearerTokenHeaders 设置 JSON 内容类型，apiKey 非空时附带 Bearer 鉴权
func BearerTokenHeaders(r *http.Request, apiKey string) {
	r.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		r.Header.Set("Authorization", "Bearer "+apiKey)
	}
}
