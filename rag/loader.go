package rag

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ReloadRecorder 记录索引加载结果
type ReloadRecorder interface {
	RecordIndexReload(status string, passages, vectors int, duration time.Duration)
}

// Loader 从 Store 构建快照并安装到 IndexHolder。
type Loader struct {
	store   *Store
	holder  *IndexHolder
	k1, b   float64
	metrics ReloadRecorder
	logger  *zap.Logger

	mu      sync.Mutex // 串行化重载
	hooksMu sync.RWMutex
	hooks   []func(*Snapshot)
}

// NewLoader creates a loader. metrics may be nil.
func NewLoader(store *Store, holder *IndexHolder, k1, b float64, metrics ReloadRecorder, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		store:   store,
		holder:  holder,
		k1:      k1,
		b:       b,
		metrics: metrics,
		logger:  logger.With(zap.String("component", "index_loader")),
	}
}

// OnReload registers fn to run after every successful swap.
func (l *Loader) OnReload(fn func(*Snapshot)) {
	l.hooksMu.Lock()
	defer l.hooksMu.Unlock()
	l.hooks = append(l.hooks, fn)
}

// Reload reads the artifact, builds a new snapshot and swaps it in. On error
// the previous snapshot stays active.
func (l *Loader) Reload(ctx context.Context) (*Snapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	start := time.Now()
	passages, version, err := l.store.Load(ctx)
	if err != nil {
		l.record("error", 0, 0, time.Since(start))
		l.logger.Error("index load failed", zap.String("path", l.store.Path()), zap.Error(err))
		return nil, fmt.Errorf("load index %s: %w", l.store.Path(), err)
	}

	snap, skipped := buildSnapshot(version, passages, l.k1, l.b)
	vec := snap.Vector
	prev := l.holder.Swap(snap)

	duration := time.Since(start)
	l.record("success", snap.Len(), vec.Len(), duration)
	fields := []zap.Field{
		zap.String("version", version),
		zap.Int("passages", snap.Len()),
		zap.Int("vectors", vec.Len()),
		zap.Int("vector_dims", vec.Dimensions()),
		zap.Duration("duration", duration),
	}
	if skipped > 0 {
		fields = append(fields, zap.Int("skipped_vectors", skipped))
	}
	if prev != nil {
		fields = append(fields, zap.String("previous_version", prev.Version))
	}
	l.logger.Info("index loaded", fields...)

	l.hooksMu.RLock()
	hooks := append([]func(*Snapshot){}, l.hooks...)
	l.hooksMu.RUnlock()
	for _, fn := range hooks {
		fn(snap)
	}
	return snap, nil
}

func (l *Loader) record(status string, passages, vectors int, d time.Duration) {
	if l.metrics != nil {
		l.metrics.RecordIndexReload(status, passages, vectors, d)
	}
}
