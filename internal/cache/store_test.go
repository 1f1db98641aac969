package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) (*miniredis.Miniredis, *Store) {
	t.Helper()
	mr := miniredis.RunT(t)

	cfg := DefaultConfig()
	cfg.Addr = mr.Addr()
	cfg.DefaultTTL = time.Minute

	s, err := NewStore(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return mr, s
}

type cachedAnswer struct {
	Answer string `json:"answer"`
	Pages  []int  `json:"pages"`
}

func TestStore_JSONRoundTrip(t *testing.T) {
	mr, s := newTestStore(t)
	ctx := context.Background()

	in := cachedAnswer{Answer: "thirty days", Pages: []int{4, 9}}
	require.NoError(t, s.SetJSON(ctx, "docqa:answer:k", in, 0))
	assert.Equal(t, time.Minute, mr.TTL("docqa:answer:k"))

	var out cachedAnswer
	require.NoError(t, s.GetJSON(ctx, "docqa:answer:k", &out))
	assert.Equal(t, in, out)
}

func TestStore_Miss(t *testing.T) {
	mr, s := newTestStore(t)
	ctx := context.Background()

	var out cachedAnswer
	assert.True(t, IsCacheMiss(s.GetJSON(ctx, "absent", &out)))

	require.NoError(t, s.SetJSON(ctx, "short", cachedAnswer{Answer: "a"}, 100*time.Millisecond))
	mr.FastForward(200 * time.Millisecond)
	assert.True(t, IsCacheMiss(s.GetJSON(ctx, "short", &out)))
}

func TestStore_EncodingErrors(t *testing.T) {
	mr, s := newTestStore(t)
	ctx := context.Background()

	assert.Error(t, s.SetJSON(ctx, "bad", make(chan int), time.Minute))

	require.NoError(t, mr.Set("garbled", "not json"))
	var out cachedAnswer
	err := s.GetJSON(ctx, "garbled", &out)
	require.Error(t, err)
	assert.False(t, IsCacheMiss(err))
}

func TestStore_DeletePrefix(t *testing.T) {
	mr, s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 250; i++ {
		require.NoError(t, mr.Set(fmt.Sprintf("docqa:answer:%d", i), "{}"))
	}
	require.NoError(t, mr.Set("other:key", "v"))

	deleted, err := s.DeletePrefix(ctx, "docqa:answer:")
	require.NoError(t, err)
	assert.Equal(t, 250, deleted)
	assert.Equal(t, []string{"other:key"}, mr.Keys())

	_, err = s.DeletePrefix(ctx, "")
	assert.Error(t, err)
}

func TestStore_Closed(t *testing.T) {
	_, s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	var out cachedAnswer
	assert.ErrorIs(t, s.GetJSON(ctx, "k", &out), ErrClosed)
	assert.ErrorIs(t, s.SetJSON(ctx, "k", out, 0), ErrClosed)
	_, err := s.DeletePrefix(ctx, "p:")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.Ping(ctx), ErrClosed)
}

func TestStore_ConnectFailed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Addr = "localhost:1"
	cfg.DialTimeout = 200 * time.Millisecond

	s, err := NewStore(cfg, zap.NewNop())
	assert.Nil(t, s)
	assert.Error(t, err)
}

func TestStore_ServerDown(t *testing.T) {
	mr, s := newTestStore(t)
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var out cachedAnswer
	err := s.GetJSON(ctx, "k", &out)
	require.Error(t, err)
	assert.False(t, IsCacheMiss(err))
	assert.Error(t, s.Ping(ctx))
}
