package server

import (
	"sync"
	"time"
)

// CacheEntry запись в кеше
type CacheEntry struct {
	Data      interface{}
	Timestamp time.Time
}

// TTLCache кеш значений по ключу с общим временем жизни
type TTLCache struct {
	mu      sync.RWMutex
	entries map[string]*CacheEntry
	ttl     time.Duration
}

// NewTTLCache создает кеш; ttl <= 0 отключает кеширование
func NewTTLCache(ttl time.Duration) *TTLCache {
	return &TTLCache{
		entries: make(map[string]*CacheEntry),
		ttl:     ttl,
	}
}

// Get возвращает значение, если оно не устарело
func (c *TTLCache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || time.Since(entry.Timestamp) > c.ttl {
		return nil, false
	}
	return entry.Data, true
}

// Set сохраняет значение
func (c *TTLCache) Set(key string, data interface{}) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &CacheEntry{
		Data:      data,
		Timestamp: time.Now(),
	}
}

// Invalidate удаляет значение
func (c *TTLCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}
