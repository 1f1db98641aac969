package types

import "strings"

// Role represents the role of a conversation participant.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationTurn is one prior exchange supplied by the caller.
// It is read-only and never stored beyond cache key computation.
type ConversationTurn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Valid reports whether the turn carries a role callers may send.
func (t ConversationTurn) Valid() bool {
	return t.Role == RoleUser || t.Role == RoleAssistant
}

// GroundedContent returns the turn's text without the page footer that
// answers carry. User turns are returned unchanged.
func (t ConversationTurn) GroundedContent() string {
	if t.Role == RoleAssistant {
		return StripPageFooter(t.Content)
	}
	return t.Content
}

// TrailingWindow returns the last n turns of history.
// n <= 0 yields nil. The returned slice aliases history.
func TrailingWindow(history []ConversationTurn, n int) []ConversationTurn {
	if n <= 0 || len(history) == 0 {
		return nil
	}
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

// NormalizeRole lowercases and trims a caller-provided role.
func NormalizeRole(r string) Role {
	return Role(strings.ToLower(strings.TrimSpace(r)))
}
