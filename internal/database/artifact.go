package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// ErrArtifactMissing 索引制品文件不存在
var ErrArtifactMissing = errors.New("index artifact not found")

// Mode 制品打开方式
type Mode int

const (
	// ReadOnly 文件必须已存在，读取方绝不创建空库
	ReadOnly Mode = iota
	// ReadWrite 文件不存在时创建（写入工具与测试使用）
	ReadWrite
)

// Options 打开制品的选项
type Options struct {
	Mode Mode
	// 最大打开连接数。制品只在加载时被顺序读取，默认 1
	MaxOpenConns int
	// 连接最大空闲时间
	ConnMaxIdleTime time.Duration
}

// =============================================================================
// 🗄️ SQLite 索引制品句柄
// =============================================================================

// Artifact 一个已打开的 SQLite 制品。每次加载打开一次，用完即关闭。
type Artifact struct {
	path   string
	db     *gorm.DB
	sqlDB  *sql.DB
	logger *zap.Logger

	closeOnce sync.Once
	closeErr  error
	closed    chan struct{}
}

// Open 使用纯 Go 的 glebarez/sqlite 驱动打开 path
func Open(path string, opts Options, logger *zap.Logger) (*Artifact, error) {
	if path == "" {
		return nil, errors.New("artifact path cannot be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Mode == ReadOnly {
		if _, err := Stat(path); err != nil {
			return nil, err
		}
	}
	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = 1
	}
	if opts.ConnMaxIdleTime <= 0 {
		opts.ConnMaxIdleTime = time.Minute
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite handle %s: %w", path, err)
	}
	sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	sqlDB.SetMaxIdleConns(opts.MaxOpenConns)
	sqlDB.SetConnMaxIdleTime(opts.ConnMaxIdleTime)

	a := &Artifact{
		path:   path,
		db:     db,
		sqlDB:  sqlDB,
		logger: logger.With(zap.String("component", "artifact"), zap.String("path", path)),
		closed: make(chan struct{}),
	}
	a.logger.Debug("artifact opened", zap.Bool("read_only", opts.Mode == ReadOnly))
	return a, nil
}

// Path 返回制品路径
func (a *Artifact) Path() string { return a.path }

// DB 返回绑定 ctx 的 GORM 会话
func (a *Artifact) DB(ctx context.Context) *gorm.DB {
	return a.db.WithContext(ctx)
}

// HasTable 报告制品中是否存在 model 对应的表
func (a *Artifact) HasTable(model any) bool {
	return a.db.Migrator().HasTable(model)
}

// Ping 检查连接可用
func (a *Artifact) Ping(ctx context.Context) error {
	select {
	case <-a.closed:
		return errors.New("artifact is closed")
	default:
	}
	return a.sqlDB.PingContext(ctx)
}

// Close 关闭连接，可重复调用
func (a *Artifact) Close() error {
	a.closeOnce.Do(func() {
		close(a.closed)
		a.closeErr = a.sqlDB.Close()
		a.logger.Debug("artifact closed")
	})
	return a.closeErr
}

// Stat 返回制品文件信息，文件不存在时包装 ErrArtifactMissing
func Stat(path string) (os.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrArtifactMissing, path)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("artifact path %s is a directory", path)
	}
	return info, nil
}
