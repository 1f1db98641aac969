package rag

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/BaSui01/docqa/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeTestArtifact(t *testing.T, passages []*Passage, version string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.db")
	require.NoError(t, WriteArtifact(context.Background(), path, passages, version))
	return path
}

func TestStore_RoundTrip(t *testing.T) {
	path := writeTestArtifact(t, contractPassages(), "v1")

	passages, version, err := NewStore(path, zap.NewNop()).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v1", version)
	require.Len(t, passages, 4)

	// 按页码排序返回
	assert.Equal(t, "p1", passages[0].ID)
	assert.Equal(t, 4, passages[1].Page)
	assert.Equal(t, []float64{0, 0.8, 0.6}, passages[3].Embedding)
	assert.Contains(t, passages[1].Content, "Termination clause")
}

func TestStore_MissingArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.db")

	_, _, err := NewStore(path, nil).Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, database.ErrArtifactMissing)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "reader must not create the artifact")
}

func TestStore_VersionFallsBackToFileInfo(t *testing.T) {
	path := writeTestArtifact(t, contractPassages()[:1], "")

	_, version, err := NewStore(path, nil).Load(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, version)
}

func TestStore_TextOnlyPassages(t *testing.T) {
	path := writeTestArtifact(t, []*Passage{{ID: "t1", Page: 2, Content: "plain text"}}, "v")

	passages, _, err := NewStore(path, nil).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, passages, 1)
	assert.Nil(t, passages[0].Embedding)
}

func TestStore_EmptyCorpus(t *testing.T) {
	path := writeTestArtifact(t, nil, "empty")

	passages, version, err := NewStore(path, nil).Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, passages)
	assert.Equal(t, "empty", version)
}

func TestWriteArtifact_ReplacesRows(t *testing.T) {
	path := writeTestArtifact(t, contractPassages(), "v1")
	require.NoError(t, WriteArtifact(context.Background(), path, contractPassages()[:2], "v2"))

	passages, version, err := NewStore(path, nil).Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, passages, 2)
	assert.Equal(t, "v2", version)
}
