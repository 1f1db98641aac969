package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/BaSui01/docqa/internal/tlsutil"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	scanBatch   = 100
	pingTimeout = 5 * time.Second
)

var (
	// ErrCacheMiss 键不存在或已过期
	ErrCacheMiss = errors.New("cache miss")

	// ErrClosed Store 已关闭
	ErrClosed = errors.New("redis store is closed")
)

// IsCacheMiss 判断是否为未命中
func IsCacheMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}

// Config Redis 连接配置
type Config struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	DialTimeout  time.Duration
	TLSEnabled   bool

	// DefaultTTL 在 SetJSON 的 ttl 为 0 时使用
	DefaultTTL time.Duration
}

// DefaultConfig 返回本地 Redis 的默认配置
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   1,
		DialTimeout:  2 * time.Second,
		DefaultTTL:   time.Hour,
	}
}

// =============================================================================
// 💾 Store
// =============================================================================

// Store 把值以 JSON 存入 Redis，作为答案缓存的二级存储
type Store struct {
	client     *redis.Client
	defaultTTL time.Duration
	logger     *zap.Logger
	closed     atomic.Bool
}

// NewStore 建立连接并 Ping 一次，失败时释放连接并返回错误
func NewStore(cfg Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		TLSConfig:    tlsutil.RedisTLSConfig(cfg.TLSEnabled),
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", cfg.Addr, err)
	}

	s := &Store{
		client:     client,
		defaultTTL: cfg.DefaultTTL,
		logger:     logger.With(zap.String("component", "redis_store")),
	}
	s.logger.Info("redis store connected",
		zap.String("addr", cfg.Addr),
		zap.Int("db", cfg.DB),
		zap.Bool("tls", cfg.TLSEnabled),
	)
	return s, nil
}

// GetJSON 读取 key 并解码到 dest。不存在时返回 ErrCacheMiss。
func (s *Store) GetJSON(ctx context.Context, key string, dest any) error {
	if s.closed.Load() {
		return ErrClosed
	}
	raw, err := s.client.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return ErrCacheMiss
	case err != nil:
		return fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// SetJSON 编码 value 并写入，ttl 为 0 时使用 DefaultTTL
func (s *Store) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	if s.closed.Load() {
		return ErrClosed
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if ttl == 0 {
		ttl = s.defaultTTL
	}
	if err := s.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// DeletePrefix 用 SCAN 分批删除 prefix 下的所有键，返回删除数量。
// 空前缀会清空整个库，因此被拒绝。
func (s *Store) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	if prefix == "" {
		return 0, errors.New("delete prefix: prefix must not be empty")
	}

	deleted := 0
	flush := func(keys []string) error {
		if len(keys) == 0 {
			return nil
		}
		n, err := s.client.Del(ctx, keys...).Result()
		deleted += int(n)
		return err
	}

	batch := make([]string, 0, scanBatch)
	iter := s.client.Scan(ctx, 0, prefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) < scanBatch {
			continue
		}
		if err := flush(batch); err != nil {
			return deleted, fmt.Errorf("redis del: %w", err)
		}
		batch = batch[:0]
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("redis scan: %w", err)
	}
	if err := flush(batch); err != nil {
		return deleted, fmt.Errorf("redis del: %w", err)
	}
	return deleted, nil
}

// Ping 供就绪检查使用
func (s *Store) Ping(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return s.client.Ping(ctx).Err()
}

// Close 关闭连接池，可重复调用
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.logger.Info("closing redis store")
	return s.client.Close()
}
