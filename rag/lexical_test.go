package rag

import (
	"context"
	"testing"

	"github.com/BaSui01/docqa/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", nil},
		{"punctuation", "What is the termination-clause?", []string{"what", "is", "the", "termination", "clause"}},
		{"digits kept", "Section 12.3", []string{"section", "12", "3"}},
		{"unicode letters", "Übersicht über Kündigung", []string{"übersicht", "über", "kündigung"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.in)
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLexicalAdapter_RanksMatchingPassages(t *testing.T) {
	t.Parallel()
	snap := newTestSnapshot(contractPassages())

	got, err := NewLexicalAdapter().Search(context.Background(), snap, Query{Text: "termination clause"}, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "p2", got[0].Passage.ID)
	assert.Equal(t, "p4", got[1].Passage.ID)
	assert.Equal(t, 0, got[0].Rank)
	assert.Equal(t, 1, got[1].Rank)
	assert.Greater(t, got[0].Score, got[1].Score)
	for _, c := range got {
		assert.Equal(t, MethodLexical, c.Method)
		assert.Greater(t, c.Score, 0.0)
	}
}

func TestLexicalAdapter_NoMatchReturnsEmpty(t *testing.T) {
	t.Parallel()
	snap := newTestSnapshot(contractPassages())

	got, err := NewLexicalAdapter().Search(context.Background(), snap, Query{Text: "zebra"}, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLexicalAdapter_TiesBrokenByID(t *testing.T) {
	t.Parallel()
	passages := []*Passage{
		{ID: "b", Page: 1, Content: "same words here"},
		{ID: "a", Page: 2, Content: "same words here"},
		{ID: "c", Page: 3, Content: "other text"},
	}
	snap := newTestSnapshot(passages)

	got, err := NewLexicalAdapter().Search(context.Background(), snap, Query{Text: "words"}, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Passage.ID)
	assert.Equal(t, "b", got[1].Passage.ID)
	assert.Equal(t, got[0].Score, got[1].Score)
}

func TestLexicalAdapter_TruncatesToK(t *testing.T) {
	t.Parallel()
	snap := newTestSnapshot(contractPassages())

	got, err := NewLexicalAdapter().Search(context.Background(), snap, Query{Text: "thirty days termination"}, 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestLexicalAdapter_NilSnapshot(t *testing.T) {
	t.Parallel()
	_, err := NewLexicalAdapter().Search(context.Background(), nil, Query{Text: "x"}, 5)
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrIndexUnavailable))
}

func TestLexicalIndex_RareTermsWeighMore(t *testing.T) {
	t.Parallel()
	passages := []*Passage{
		{ID: "1", Content: "common rare"},
		{ID: "2", Content: "common"},
		{ID: "3", Content: "common"},
	}
	idx := NewLexicalIndex(passages, 0, -1)

	rare := idx.Score(0, []string{"rare"})
	common := idx.Score(0, []string{"common"})
	assert.Greater(t, rare, common)
	assert.Equal(t, 3, idx.Len())
}
