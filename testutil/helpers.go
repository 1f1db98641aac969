package testutil

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"
)

// DefaultTimeout 单个测试上下文的默认时限
const DefaultTimeout = 30 * time.Second

// TestContext 返回带 DefaultTimeout 的上下文，测试结束时自动取消
func TestContext(t testing.TB) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	t.Cleanup(cancel)
	return ctx
}

// WaitFor 每 10ms 轮询一次 cond，超时记为失败并返回 false
func WaitFor(t testing.TB, cond func() bool, timeout time.Duration) bool {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		if cond() {
			return true
		}
		if time.Now().After(deadline) {
			t.Errorf("condition not met within %v", timeout)
			return false
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// DecodeJSON 从 r 解码到 v，失败时终止测试
func DecodeJSON(t testing.TB, r io.Reader, v any) {
	t.Helper()
	if err := json.NewDecoder(r).Decode(v); err != nil {
		t.Fatalf("decode json: %v", err)
	}
}
