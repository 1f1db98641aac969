package rag

import (
	"sync/atomic"
	"time"
)

// Snapshot 一次加载得到的不可变索引视图。查询期间固定持有同一个快照，
// 两路检索看到的段落集合完全一致。
type Snapshot struct {
	Version  string
	LoadedAt time.Time
	Passages []*Passage
	Lexical  *LexicalIndex
	Vector   *VectorIndex
}

// NewSnapshot builds both indexes over passages.
func NewSnapshot(version string, passages []*Passage, k1, b float64) *Snapshot {
	snap, _ := buildSnapshot(version, passages, k1, b)
	return snap
}

func buildSnapshot(version string, passages []*Passage, k1, b float64) (*Snapshot, int) {
	vec, skipped := NewVectorIndex(passages)
	return &Snapshot{
		Version:  version,
		LoadedAt: time.Now(),
		Passages: passages,
		Lexical:  NewLexicalIndex(passages, k1, b),
		Vector:   vec,
	}, skipped
}

// Len returns the number of passages in the snapshot.
func (s *Snapshot) Len() int { return len(s.Passages) }

// Status 索引健康状态
type Status struct {
	IndexLoaded   bool      `json:"index_loaded"`
	LexicalLoaded bool      `json:"lexical_loaded"`
	VectorLoaded  bool      `json:"vector_loaded"`
	Passages      int       `json:"passages"`
	Vectors       int       `json:"vectors"`
	Version       string    `json:"index_version,omitempty"`
	LoadedAt      time.Time `json:"loaded_at"`
}

// IndexHolder 持有当前快照。重载时整体替换，读者无锁。
type IndexHolder struct {
	current atomic.Pointer[Snapshot]
}

// NewIndexHolder creates an empty holder.
func NewIndexHolder() *IndexHolder { return &IndexHolder{} }

// Current returns the active snapshot or nil before the first load.
func (h *IndexHolder) Current() *Snapshot { return h.current.Load() }

// Swap installs snap and returns the previous snapshot.
func (h *IndexHolder) Swap(snap *Snapshot) *Snapshot { return h.current.Swap(snap) }

// Status reports what the active snapshot provides. The vector side counts
// as loaded when the corpus is empty or at least one embedding was indexed.
func (h *IndexHolder) Status() Status {
	snap := h.Current()
	if snap == nil {
		return Status{}
	}
	st := Status{
		IndexLoaded:   true,
		LexicalLoaded: snap.Lexical != nil,
		Passages:      snap.Len(),
		Version:       snap.Version,
		LoadedAt:      snap.LoadedAt,
	}
	if snap.Vector != nil {
		st.Vectors = snap.Vector.Len()
		st.VectorLoaded = snap.Len() == 0 || st.Vectors > 0
	}
	return st
}
