package cache

import (
	"container/list"
	"sync"
	"time"
)

// lruItem is what an LRUCache list element carries.
type lruItem struct {
	key       string
	entry     *Entry
	expiresAt time.Time
}

// LRUCache is the in-process cache level: a map into a container/list kept
// in recency order, most recent at the front. All operations are O(1).
type LRUCache struct {
	mu       sync.RWMutex
	capacity int
	ttl      time.Duration
	index    map[string]*list.Element
	order    *list.List
}

// NewLRUCache creates a local cache with the given capacity and TTL.
func NewLRUCache(capacity int, ttl time.Duration) *LRUCache {
	return &LRUCache{
		capacity: capacity,
		ttl:      ttl,
		index:    make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Get returns the entry for key if present and not expired. Expired entries
// are dropped on sight rather than waiting for eviction.
func (c *LRUCache) Get(key string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.index[key]
	if !ok {
		return nil, false
	}
	item := elem.Value.(*lruItem)
	if time.Now().After(item.expiresAt) {
		c.drop(elem)
		return nil, false
	}

	c.order.MoveToFront(elem)
	item.entry.HitCount++
	return item.entry, true
}

// Set stores the entry, evicting from the least recent end at capacity.
func (c *LRUCache) Set(key string, entry *Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expires := time.Now().Add(c.ttl)
	if elem, ok := c.index[key]; ok {
		item := elem.Value.(*lruItem)
		item.entry = entry
		item.expiresAt = expires
		c.order.MoveToFront(elem)
		return
	}

	for len(c.index) >= c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.drop(oldest)
	}

	c.index[key] = c.order.PushFront(&lruItem{key: key, entry: entry, expiresAt: expires})
}

// Delete removes the entry for key.
func (c *LRUCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.index[key]; ok {
		c.drop(elem)
	}
}

// Clear drops every entry.
func (c *LRUCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.index = make(map[string]*list.Element)
	c.order.Init()
}

// Stats returns current size and capacity.
func (c *LRUCache) Stats() (size int, capacity int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.index), c.capacity
}

// drop removes an element from both the list and the index. Callers hold
// the write lock.
func (c *LRUCache) drop(elem *list.Element) {
	c.order.Remove(elem)
	delete(c.index, elem.Value.(*lruItem).key)
}
