package geo

import (
	"math"
	"sync"
)

// CacheKey is a coordinate rounded to one decimal place, a bucket of
// roughly 11 km. Exact ties round half to even: 37.25 lands on 37.2 and
// 37.75 on 37.8.
type CacheKey struct {
	Lat, Lon float64
}

func KeyFor(lat, lon float64) CacheKey {
	return CacheKey{Lat: round1(lat), Lon: round1(lon)}
}

func round1(v float64) float64 {
	return math.RoundToEven(v*10) / 10
}

// Cache maps rounded coordinates to resolved place names. It is safe for
// concurrent use and lives only as long as the process.
type Cache struct {
	mu      sync.RWMutex
	entries map[CacheKey]string
}

func NewCache() *Cache {
	return &Cache{entries: make(map[CacheKey]string)}
}

func (c *Cache) Get(key CacheKey) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name, ok := c.entries[key]
	return name, ok
}

func (c *Cache) Put(key CacheKey, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = name
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
