package rag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/BaSui01/docqa/internal/database"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// =============================================================================
// 🗄️ SQLite 索引制品
// =============================================================================

// PassageRecord passages 表的一行。Embedding 以 JSON 数组文本存储，可为空。
type PassageRecord struct {
	ID        string `gorm:"primaryKey;column:id"`
	Page      int    `gorm:"column:page;index"`
	Content   string `gorm:"column:content;not null"`
	Embedding string `gorm:"column:embedding"`
}

// TableName 指定表名
func (PassageRecord) TableName() string { return "passages" }

// IndexMeta index_meta 表的一行（可选表）。
type IndexMeta struct {
	Name  string `gorm:"primaryKey;column:name"`
	Value string `gorm:"column:value"`
}

// TableName 指定表名
func (IndexMeta) TableName() string { return "index_meta" }

// metaVersionKey index_meta 中记录制品版本的键
const metaVersionKey = "version"

// Store 读取索引制品
type Store struct {
	path   string
	logger *zap.Logger
}

// NewStore creates a store for the artifact at path.
func NewStore(path string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		path:   path,
		logger: logger.With(zap.String("component", "index_store")),
	}
}

// Path returns the artifact location.
func (s *Store) Path() string { return s.path }

// Load reads every passage and the artifact version. A missing file is an
// error; the artifact is never created by the reader.
func (s *Store) Load(ctx context.Context) ([]*Passage, string, error) {
	artifact, err := database.Open(s.path, database.Options{Mode: database.ReadOnly}, s.logger)
	if err != nil {
		return nil, "", err
	}
	defer artifact.Close()

	db := artifact.DB(ctx)
	if !artifact.HasTable(&PassageRecord{}) {
		return nil, "", fmt.Errorf("index artifact %s has no passages table", s.path)
	}

	var records []PassageRecord
	if err := db.Order("page ASC, id ASC").Find(&records).Error; err != nil {
		return nil, "", fmt.Errorf("read passages: %w", err)
	}

	passages := make([]*Passage, 0, len(records))
	badEmbeddings := 0
	for _, r := range records {
		p := &Passage{ID: r.ID, Page: r.Page, Content: r.Content}
		if r.Embedding != "" {
			if err := json.Unmarshal([]byte(r.Embedding), &p.Embedding); err != nil {
				badEmbeddings++
				p.Embedding = nil
			}
		}
		passages = append(passages, p)
	}
	if badEmbeddings > 0 {
		s.logger.Warn("passages with unreadable embeddings indexed lexically only",
			zap.Int("count", badEmbeddings))
	}

	version, err := s.version(db)
	if err != nil {
		return nil, "", err
	}
	return passages, version, nil
}

// version prefers index_meta.version and falls back to the file's mtime and size.
func (s *Store) version(db *gorm.DB) (string, error) {
	if db.Migrator().HasTable(&IndexMeta{}) {
		var meta IndexMeta
		err := db.Where("name = ?", metaVersionKey).First(&meta).Error
		if err == nil && meta.Value != "" {
			return meta.Value, nil
		}
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("read index_meta: %w", err)
		}
	}
	info, err := database.Stat(s.path)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%x-%x", info.ModTime().UnixNano(), info.Size()), nil
}

// WriteArtifact writes passages (and version when non-empty) into a SQLite
// artifact at path, replacing existing rows.
func WriteArtifact(ctx context.Context, path string, passages []*Passage, version string) error {
	artifact, err := database.Open(path, database.Options{Mode: database.ReadWrite}, nil)
	if err != nil {
		return err
	}
	defer artifact.Close()

	db := artifact.DB(ctx)
	if err := db.AutoMigrate(&PassageRecord{}, &IndexMeta{}); err != nil {
		return fmt.Errorf("migrate artifact: %w", err)
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&PassageRecord{}).Error; err != nil {
			return err
		}
		records := make([]PassageRecord, 0, len(passages))
		for _, p := range passages {
			r := PassageRecord{ID: p.ID, Page: p.Page, Content: p.Content}
			if len(p.Embedding) > 0 {
				raw, err := json.Marshal(p.Embedding)
				if err != nil {
					return err
				}
				r.Embedding = string(raw)
			}
			records = append(records, r)
		}
		if len(records) > 0 {
			if err := tx.CreateInBatches(records, 200).Error; err != nil {
				return err
			}
		}
		if version != "" {
			meta := IndexMeta{Name: metaVersionKey, Value: version}
			if err := tx.Save(&meta).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
