package cache

import (
	"hash/fnv"
	"sort"
	"sync"
)

const defaultShardCount = 256 // Must be power of 2 for bitwise AND

// Cache is a sharded in-memory key-value store.
type Cache struct {
	shards    []*Shard
	shardMask uint64
}

// Shard represents a single partition of a cache.
type Shard struct {
	items map[string][]byte
	mu    sync.RWMutex
}

// New creates a new Cache instance with the default number of shards.
func New() *Cache {
	return NewWithShardCount(defaultShardCount)
}

// NewWithShardCount creates a new Cache instance with a specific number of shards.
// shardCount must be a power of 2.
func NewWithShardCount(shardCount int) *Cache {
	if shardCount <= 0 || (shardCount&(shardCount-1)) != 0 {
		shardCount = defaultShardCount
	}
	c := &Cache{
		shards:    make([]*Shard, shardCount),
		shardMask: uint64(shardCount - 1), // Precompute mask
	}
	for i := 0; i < shardCount; i++ {
		c.shards[i] = &Shard{
			items: make(map[string][]byte),
		}
	}
	return c
}

func (c *Cache) shardFor(key string) *Shard {
	hasher := fnv.New64a()
	hasher.Write([]byte(key))
	return c.shards[hasher.Sum64()&c.shardMask]
}

// Get retrieves a copy of the value stored for key.
func (c *Cache) Get(key string) ([]byte, bool) {
	shard := c.shardFor(key)

	shard.mu.RLock()
	value, found := shard.items[key]
	shard.mu.RUnlock()

	if !found {
		return nil, false
	}
	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)
	return valueCopy, true
}

// Size reports the length of the value stored for key.
func (c *Cache) Size(key string) (int, bool) {
	shard := c.shardFor(key)

	shard.mu.RLock()
	defer shard.mu.RUnlock()
	value, found := shard.items[key]
	return len(value), found
}

// Set adds or updates a value in the cache.
func (c *Cache) Set(key string, value []byte) {
	shard := c.shardFor(key)

	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)
	shard.mu.Lock()
	shard.items[key] = valueCopy
	shard.mu.Unlock()
}

// Add stores value under key only if key is not already present. It
// reports whether the value was stored.
func (c *Cache) Add(key string, value []byte) bool {
	shard := c.shardFor(key)

	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	if _, found := shard.items[key]; found {
		return false
	}
	shard.items[key] = valueCopy
	return true
}

// Delete removes a value from the cache and reports whether it was present.
func (c *Cache) Delete(key string) bool {
	shard := c.shardFor(key)

	shard.mu.Lock()
	_, found := shard.items[key]
	delete(shard.items, key)
	shard.mu.Unlock()
	return found
}

// Len reports the number of keys in the cache.
func (c *Cache) Len() int {
	n := 0
	for _, shard := range c.shards {
		shard.mu.RLock()
		n += len(shard.items)
		shard.mu.RUnlock()
	}
	return n
}

// List returns up to limit keys at or after start in lexicographic order.
// If more keys follow, next is the first key not returned; otherwise next
// is empty.
func (c *Cache) List(start string, limit int) (keys []string, next string) {
	var all []string
	for _, shard := range c.shards {
		shard.mu.RLock()
		for key := range shard.items {
			if key >= start {
				all = append(all, key)
			}
		}
		shard.mu.RUnlock()
	}
	sort.Strings(all)

	if limit <= 0 || len(all) <= limit {
		return all, ""
	}
	return all[:limit], all[limit]
}
