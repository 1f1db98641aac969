package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Config 单个监听的配置
type Config struct {
	Addr           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration // 需大于单次问答的整体时限
	IdleTimeout    time.Duration
	MaxHeaderBytes int

	// ShutdownTimeout 排空在途请求的上限
	ShutdownTimeout time.Duration
}

// DefaultConfig 返回 API 监听的默认配置
func DefaultConfig() Config {
	return Config{
		Addr:            ":8000",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    90 * time.Second,
		IdleTimeout:     120 * time.Second,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: 15 * time.Second,
	}
}

type endpoint struct {
	name     string
	config   Config
	server   *http.Server
	listener net.Listener
}

// =============================================================================
// 🌐 Group
// =============================================================================

// Group 管理一组同生共死的 HTTP 监听（API 与 /metrics）。
// 任一监听异常退出时 Wait 返回并关闭全部监听。
type Group struct {
	logger *zap.Logger

	mu        sync.Mutex
	endpoints []*endpoint
	started   bool
	closed    bool
	errCh     chan error
}

// NewGroup 创建空的监听组
func NewGroup(logger *zap.Logger) *Group {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Group{logger: logger.With(zap.String("component", "http_server"))}
}

// Add 注册一个监听，必须在 Start 之前调用。name 用于日志与 Addr 查询。
func (g *Group) Add(name string, handler http.Handler, config Config) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.started || g.closed {
		return fmt.Errorf("add %s: group already started", name)
	}
	for _, ep := range g.endpoints {
		if ep.name == name {
			return fmt.Errorf("add %s: duplicate endpoint", name)
		}
	}
	g.endpoints = append(g.endpoints, &endpoint{
		name:   name,
		config: config,
		server: &http.Server{
			Addr:              config.Addr,
			Handler:           handler,
			ReadTimeout:       config.ReadTimeout,
			ReadHeaderTimeout: config.ReadTimeout,
			WriteTimeout:      config.WriteTimeout,
			IdleTimeout:       config.IdleTimeout,
			MaxHeaderBytes:    config.MaxHeaderBytes,
		},
	})
	return nil
}

// Start 依次监听所有端口后在后台服务（非阻塞）。
// 任一端口监听失败时已打开的端口会被释放。
func (g *Group) Start() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch {
	case g.closed:
		return errors.New("server group is closed")
	case g.started:
		return errors.New("server group already started")
	}

	for i, ep := range g.endpoints {
		ln, err := net.Listen("tcp", ep.config.Addr)
		if err != nil {
			for _, opened := range g.endpoints[:i] {
				_ = opened.listener.Close()
				opened.listener = nil
			}
			return fmt.Errorf("%s: failed to listen on %s: %w", ep.name, ep.config.Addr, err)
		}
		ep.listener = ln
	}

	g.errCh = make(chan error, len(g.endpoints))
	for _, ep := range g.endpoints {
		g.logger.Info("starting HTTP server",
			zap.String("server", ep.name),
			zap.String("addr", ep.listener.Addr().String()))
		go g.serve(ep)
	}
	g.started = true
	return nil
}

func (g *Group) serve(ep *endpoint) {
	err := ep.server.Serve(ep.listener)
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return
	}
	g.logger.Error("HTTP server failed", zap.String("server", ep.name), zap.Error(err))
	g.errCh <- fmt.Errorf("%s server: %w", ep.name, err)
}

// Wait 阻塞直到 ctx 结束或任一监听异常退出，随后关闭全部监听。
// 返回异常退出的错误（如有）。
func (g *Group) Wait(ctx context.Context) error {
	g.mu.Lock()
	errCh := g.errCh
	g.mu.Unlock()
	if errCh == nil {
		return errors.New("server group not started")
	}

	var serveErr error
	select {
	case <-ctx.Done():
		g.logger.Info("shutdown requested")
	case serveErr = <-errCh:
	}

	if err := g.Shutdown(context.WithoutCancel(ctx)); err != nil {
		return errors.Join(serveErr, err)
	}
	return serveErr
}

// Shutdown 并发关闭所有监听，每个监听在各自的 ShutdownTimeout 内排空请求。
// 重复调用为空操作。
func (g *Group) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	endpoints := g.endpoints
	started := g.started
	g.mu.Unlock()

	if !started {
		return nil
	}

	var eg errgroup.Group
	for _, ep := range endpoints {
		eg.Go(func() error {
			sctx, cancel := context.WithTimeout(ctx, ep.config.ShutdownTimeout)
			defer cancel()
			if err := ep.server.Shutdown(sctx); err != nil {
				g.logger.Error("HTTP server shutdown failed", zap.String("server", ep.name), zap.Error(err))
				return fmt.Errorf("shutdown %s: %w", ep.name, err)
			}
			g.logger.Info("HTTP server stopped", zap.String("server", ep.name))
			return nil
		})
	}
	return eg.Wait()
}

// Addr 返回 name 的实际监听地址，未启动或不存在时为空
func (g *Group) Addr(name string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, ep := range g.endpoints {
		if ep.name == name && ep.listener != nil && !g.closed {
			return ep.listener.Addr().String()
		}
	}
	return ""
}

// Running 报告监听组是否已启动且未关闭
func (g *Group) Running() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.started && !g.closed
}
