package cache

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// LRUCache 容量与 TTL 同时约束的本地缓存。条目的年龄从 Entry.CreatedAt
// 起算，回填不会延长寿命。
type LRUCache struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	items *simplelru.LRU[string, lruItem]
}

type lruItem struct {
	entry     *Entry
	expiresAt time.Time
}

// NewLRUCache 创建最多容纳 capacity 条、每条存活 ttl 的缓存
func NewLRUCache(capacity int, ttl time.Duration) *LRUCache {
	if capacity <= 0 {
		capacity = 1
	}
	// 仅在 size <= 0 时返回错误
	items, _ := simplelru.NewLRU[string, lruItem](capacity, nil)
	return &LRUCache{
		ttl:   ttl,
		now:   time.Now,
		items: items,
	}
}

// Get 命中时刷新最近使用位置。年龄达到 TTL 的条目被移除并视为未命中。
func (c *LRUCache) Get(key string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.items.Get(key)
	if !ok {
		return nil, false
	}
	if !c.now().Before(item.expiresAt) {
		c.items.Remove(key)
		return nil, false
	}
	return item.entry, true
}

// Set 写入条目，返回是否因容量淘汰了最久未使用的条目
func (c *LRUCache) Set(key string, entry *Entry) (evicted bool) {
	created := entry.CreatedAt
	if created.IsZero() {
		created = c.now()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items.Add(key, lruItem{entry: entry, expiresAt: created.Add(c.ttl)})
}

// Delete 移除 key
func (c *LRUCache) Delete(key string) {
	c.mu.Lock()
	c.items.Remove(key)
	c.mu.Unlock()
}

// Clear 清空缓存并返回被丢弃的条目数
func (c *LRUCache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.items.Len()
	c.items.Purge()
	return n
}

// Len 返回条目数，过期但未被访问的条目也计入
func (c *LRUCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items.Len()
}
