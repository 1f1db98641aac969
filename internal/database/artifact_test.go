package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type row struct {
	ID   string `gorm:"primaryKey"`
	Page int
}

func TestOpen_ReadOnlyMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.db")

	_, err := Open(path, Options{Mode: ReadOnly}, zap.NewNop())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrArtifactMissing)
	assert.NoFileExists(t, path)
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open("", Options{Mode: ReadWrite}, zap.NewNop())
	assert.Error(t, err)
}

func TestOpen_Directory(t *testing.T) {
	_, err := Open(t.TempDir(), Options{Mode: ReadOnly}, nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrArtifactMissing)
}

func TestOpen_WriteThenRead(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.db")

	w, err := Open(path, Options{Mode: ReadWrite}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, w.DB(ctx).AutoMigrate(&row{}))
	require.NoError(t, w.DB(ctx).Create(&row{ID: "p1", Page: 3}).Error)
	require.NoError(t, w.Close())

	r, err := Open(path, Options{Mode: ReadOnly}, zap.NewNop())
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.Ping(ctx))
	assert.Equal(t, path, r.Path())
	assert.True(t, r.HasTable(&row{}))

	var got []row
	require.NoError(t, r.DB(ctx).Find(&got).Error)
	assert.Equal(t, []row{{ID: "p1", Page: 3}}, got)
}

func TestArtifact_Close(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")

	a, err := Open(path, Options{Mode: ReadWrite}, nil)
	require.NoError(t, err)

	require.NoError(t, a.Close())
	// 重复关闭是安全的
	require.NoError(t, a.Close())
	assert.Error(t, a.Ping(context.Background()))
}

func TestStat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	_, err := Stat(path)
	assert.ErrorIs(t, err, ErrArtifactMissing)

	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	info, err := Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(1), info.Size())
}
