package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"strings"

	"github.com/BaSui01/docqa/types"
)

// NormalizeQuery lowercases, trims and collapses whitespace runs to one space.
func NormalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

// WindowDigest hashes the role and grounded content of each turn in order.
// Every field is length-prefixed, so content cannot forge a turn boundary.
// Assistant turns are hashed without their page footer. An empty window has
// a fixed digest.
func WindowDigest(window []types.ConversationTurn) string {
	h := sha256.New()
	var size [8]byte
	field := func(v string) {
		binary.BigEndian.PutUint64(size[:], uint64(len(v)))
		h.Write(size[:])
		h.Write([]byte(v))
	}
	for _, turn := range window {
		field(string(turn.Role))
		field(turn.GroundedContent())
	}
	return hex.EncodeToString(h.Sum(nil))
}

// BuildKey returns hex(sha256(normalize(rewritten) || 0x00 || digest(window))).
// window must already be cut to the configured history window.
func BuildKey(rewritten string, window []types.ConversationTurn) string {
	h := sha256.New()
	h.Write([]byte(NormalizeQuery(rewritten)))
	h.Write([]byte{0x00})
	h.Write([]byte(WindowDigest(window)))
	return hex.EncodeToString(h.Sum(nil))
}
