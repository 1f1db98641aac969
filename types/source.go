package types

import "strings"

// Source 答案引用的一个来源段落
type Source struct {
	Page    int    `json:"page"`
	Content string `json:"content"`
}

// PageFooterMarker 合成器追加在答案末尾的页码标记
const PageFooterMarker = "\n\nRelevant pages:"

// StripPageFooter removes the "Relevant pages: ..." footer appended to answers.
func StripPageFooter(content string) string {
	if i := strings.Index(content, PageFooterMarker); i >= 0 {
		return strings.TrimRight(content[:i], " \t\n")
	}
	return content
}
