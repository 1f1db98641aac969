package cache

import (
	"context"
	"fmt"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	rediscache "github.com/BaSui01/docqa/internal/cache"
	"github.com/BaSui01/docqa/types"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Entry 缓存条目
type Entry struct {
	Answer    string         `json:"answer"`
	Sources   []types.Source `json:"sources"`
	CreatedAt time.Time      `json:"created_at"`
}

// RemoteStore 二级存储
type RemoteStore interface {
	GetJSON(ctx context.Context, key string, dest any) error
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

// EventRecorder 记录缓存事件。tier 为 local / remote / flight。
type EventRecorder interface {
	RecordCacheEvent(tier, event string)
}

// 缓存事件
const (
	EventHit       = "hit"
	EventMiss      = "miss"
	EventStore     = "store"
	EventEvict     = "evict"
	EventFault     = "fault"
	EventCoalesced = "coalesced"
	// EventDiscard 计算期间发生了 Purge，结果不回写
	EventDiscard = "discard"
)

// Config 响应缓存配置
type Config struct {
	Capacity int
	TTL      time.Duration
	// ComputeTimeout 约束一次合并计算，计算脱离首个调用方的取消
	ComputeTimeout time.Duration
	// RemotePrefix 二级存储键前缀
	RemotePrefix string
	// RemoteOpTimeout 单次二级存储操作超时
	RemoteOpTimeout time.Duration
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Capacity:        1000,
		TTL:             time.Hour,
		ComputeTimeout:  60 * time.Second,
		RemotePrefix:    "docqa:answer:",
		RemoteOpTimeout: 200 * time.Millisecond,
	}
}

// ComputeFunc 未命中时生成条目
type ComputeFunc func(ctx context.Context) (*Entry, error)

// ResponseCache 两级答案缓存，同一键上的并发计算只执行一次。
type ResponseCache struct {
	local   *LRUCache
	remote  RemoteStore
	config  Config
	group   singleflight.Group
	metrics EventRecorder
	logger  *zap.Logger

	// purgeMu 保护 generation。回写在读锁内检查代数，Purge 持写锁递增并清空本地层。
	purgeMu    sync.RWMutex
	generation uint64
}

// NewResponseCache creates a cache. remote and metrics may be nil.
func NewResponseCache(config Config, remote RemoteStore, metrics EventRecorder, logger *zap.Logger) *ResponseCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.ComputeTimeout <= 0 {
		config.ComputeTimeout = DefaultConfig().ComputeTimeout
	}
	if config.RemoteOpTimeout <= 0 {
		config.RemoteOpTimeout = DefaultConfig().RemoteOpTimeout
	}
	return &ResponseCache{
		local:   NewLRUCache(config.Capacity, config.TTL),
		remote:  remote,
		config:  config,
		metrics: metrics,
		logger:  logger.With(zap.String("component", "response_cache")),
	}
}

// Get looks up key locally, then remotely. Remote hits are backfilled into
// the local tier. Faults are reported as misses.
func (c *ResponseCache) Get(ctx context.Context, key string) (*Entry, bool) {
	if e, ok := c.local.Get(key); ok {
		c.record("local", EventHit)
		return e, true
	}
	c.record("local", EventMiss)

	if c.remote == nil {
		return nil, false
	}
	e, err := c.remoteGet(ctx, key)
	if err != nil {
		if rediscache.IsCacheMiss(err) {
			c.record("remote", EventMiss)
		} else {
			c.fault("get", key, err)
		}
		return nil, false
	}
	if c.config.TTL > 0 && time.Since(e.CreatedAt) >= c.config.TTL {
		c.record("remote", EventMiss)
		return nil, false
	}
	c.record("remote", EventHit)
	c.storeLocal(key, e)
	return e, true
}

// Set stores entry in both tiers. Remote faults are logged and swallowed.
func (c *ResponseCache) Set(ctx context.Context, key string, entry *Entry) {
	if entry == nil {
		return
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	c.storeLocal(key, entry)
	c.record("local", EventStore)

	if c.remote == nil {
		return
	}
	if err := c.remoteSet(ctx, key, entry); err != nil {
		c.fault("set", key, err)
		return
	}
	c.record("remote", EventStore)
}

// Do returns the cached entry for key or runs compute once for all
// concurrent callers of the same key. cached is true only when the entry
// already existed. compute runs on a context detached from the caller's
// cancellation and bounded by ComputeTimeout, so a caller that gives up
// does not fail the others; that caller gets its own context error.
func (c *ResponseCache) Do(ctx context.Context, key string, compute ComputeFunc) (entry *Entry, cached bool, err error) {
	if e, ok := c.Get(ctx, key); ok {
		return e, true, nil
	}

	// Purge 之后的请求不会并入之前开始的计算
	gen := c.currentGeneration()
	ch := c.group.DoChan(strconv.FormatUint(gen, 10)+":"+key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.config.ComputeTimeout)
		defer cancel()

		// 双重检查：等待期间其它计算可能已回填
		if e, ok := c.Get(fctx, key); ok {
			return flightResult{entry: e, cached: true}, nil
		}
		e, err := safeCompute(fctx, compute)
		if err != nil {
			return nil, err
		}
		c.setIfGeneration(fctx, gen, key, e)
		return flightResult{entry: e}, nil
	})

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Shared {
			c.record("flight", EventCoalesced)
		}
		if res.Err != nil {
			return nil, false, res.Err
		}
		fr := res.Val.(flightResult)
		return fr.entry, fr.cached, nil
	}
}

// Purge drops every local entry and, best effort, every remote entry under
// the configured prefix. Computations already running when Purge is called
// still answer their callers but are not stored.
func (c *ResponseCache) Purge(ctx context.Context) int {
	c.purgeMu.Lock()
	c.generation++
	n := c.local.Clear()
	c.purgeMu.Unlock()

	if c.remote != nil && c.config.RemotePrefix != "" {
		func() {
			defer c.recoverFault("purge", "*")
			rctx, cancel := context.WithTimeout(ctx, 5*c.config.RemoteOpTimeout)
			defer cancel()
			if _, err := c.remote.DeletePrefix(rctx, c.config.RemotePrefix); err != nil {
				c.fault("purge", "*", err)
			}
		}()
	}
	c.logger.Info("response cache purged", zap.Int("local_entries", n))
	return n
}

func (c *ResponseCache) currentGeneration() uint64 {
	c.purgeMu.RLock()
	defer c.purgeMu.RUnlock()
	return c.generation
}

// setIfGeneration stores e only when no Purge happened since gen was read.
// The read lock is held across both tiers so a concurrent Purge either
// waits for the write or prevents it.
func (c *ResponseCache) setIfGeneration(ctx context.Context, gen uint64, key string, e *Entry) {
	c.purgeMu.RLock()
	defer c.purgeMu.RUnlock()
	if c.generation != gen {
		c.record("local", EventDiscard)
		c.logger.Debug("discarding result computed before purge", zap.String("key", key))
		return
	}
	c.Set(ctx, key, e)
}

// Len returns the number of local entries.
func (c *ResponseCache) Len() int { return c.local.Len() }

type flightResult struct {
	entry  *Entry
	cached bool
}

func (c *ResponseCache) storeLocal(key string, e *Entry) {
	if c.local.Set(key, e) {
		c.record("local", EventEvict)
	}
}

func (c *ResponseCache) remoteGet(ctx context.Context, key string) (e *Entry, err error) {
	defer func() {
		if r := recover(); r != nil {
			e, err = nil, fmt.Errorf("remote get panic: %v", r)
		}
	}()
	rctx, cancel := context.WithTimeout(ctx, c.config.RemoteOpTimeout)
	defer cancel()

	var entry Entry
	if err := c.remote.GetJSON(rctx, c.config.RemotePrefix+key, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (c *ResponseCache) remoteSet(ctx context.Context, key string, e *Entry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("remote set panic: %v", r)
		}
	}()
	rctx, cancel := context.WithTimeout(ctx, c.config.RemoteOpTimeout)
	defer cancel()
	return c.remote.SetJSON(rctx, c.config.RemotePrefix+key, e, c.config.TTL)
}

func (c *ResponseCache) recoverFault(op, key string) {
	if r := recover(); r != nil {
		c.fault(op, key, fmt.Errorf("panic: %v", r))
	}
}

func (c *ResponseCache) fault(op, key string, err error) {
	c.record("remote", EventFault)
	ferr := types.NewCacheFaultError(fmt.Sprintf("remote %s failed", op)).WithCause(err)
	c.logger.Warn("cache fault, treating as miss",
		zap.String("op", op),
		zap.String("key", key),
		zap.String("code", string(ferr.Code)),
		zap.Error(ferr),
	)
}

func (c *ResponseCache) record(tier, event string) {
	if c.metrics != nil {
		c.metrics.RecordCacheEvent(tier, event)
	}
}

// safeCompute converts a panic in compute into an internal error; a panic
// inside singleflight.DoChan would otherwise crash the process.
func safeCompute(ctx context.Context, compute ComputeFunc) (e *Entry, err error) {
	defer func() {
		if r := recover(); r != nil {
			e = nil
			err = types.NewInternalError(fmt.Sprintf("answer computation panicked: %v", r)).
				WithCause(fmt.Errorf("%s", debug.Stack()))
		}
	}()
	e, err = compute(ctx)
	if err == nil && e == nil {
		err = types.NewInternalError("answer computation returned no entry")
	}
	return e, err
}
