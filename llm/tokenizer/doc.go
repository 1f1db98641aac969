// Package tokenizer 提供 Token 计数，用于答案合成时的上下文预算管理。
// tiktoken 精确计数不可用时回退到 CJK 感知的估算器。
package tokenizer
