package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	dm "corr.service/data/models"
)

const DefaultMaxEntries = 128

type memoryEntry struct {
	key     string
	table   dm.Table
	expires time.Time
}

// MemoryCache is an in process LRU cache with per entry expiry.
type MemoryCache struct {
	mu         sync.RWMutex
	maxEntries int
	entries    map[string]*list.Element
	order      *list.List // front is most recently used
	now        func() time.Time
}

func NewMemoryCache(maxEntries int) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &MemoryCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		now:        time.Now,
	}
}

func (mc *MemoryCache) Get(ctx context.Context, key string) (dm.Table, bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	el, ok := mc.entries[key]
	if !ok {
		return dm.Table{}, false, nil
	}

	entry := el.Value.(*memoryEntry)
	if !mc.now().Before(entry.expires) {
		mc.remove(el)
		return dm.Table{}, false, nil
	}

	mc.order.MoveToFront(el)
	return entry.table, true, nil
}

func (mc *MemoryCache) Set(ctx context.Context, key string, table dm.Table, ttl time.Duration) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	expires := mc.now().Add(ttl)
	if el, ok := mc.entries[key]; ok {
		entry := el.Value.(*memoryEntry)
		entry.table = table
		entry.expires = expires
		mc.order.MoveToFront(el)
		return nil
	}

	mc.entries[key] = mc.order.PushFront(&memoryEntry{key: key, table: table, expires: expires})

	for mc.order.Len() > mc.maxEntries {
		mc.remove(mc.order.Back())
	}
	return nil
}

// Len is the number of entries held, expired ones included until they are touched.
func (mc *MemoryCache) Len() int {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.order.Len()
}

func (mc *MemoryCache) remove(el *list.Element) {
	mc.order.Remove(el)
	delete(mc.entries, el.Value.(*memoryEntry).key)
}
