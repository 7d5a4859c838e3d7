package store

import (
	"time"

	"github.com/dgraph-io/ristretto"
)

// Cache keeps recently read entries in memory in front of SQLite. Cost is
// the entry size in bytes.
type Cache struct {
	c   *ristretto.Cache
	ttl time.Duration
}

func NewCache(maxCost int64, ttl time.Duration) (*Cache, error) {
	if maxCost <= 0 {
		maxCost = 1 << 24
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{c: c, ttl: ttl}, nil
}

func (c *Cache) Get(key string) (Entry, bool) {
	v, ok := c.c.Get(key)
	if !ok {
		return Entry{}, false
	}
	e, ok := v.(Entry)
	return e, ok
}

// Set stores e and waits for the write buffer to drain so a following Get
// observes it (unless admission rejected it).
func (c *Cache) Set(key string, e Entry) {
	cost := int64(len(e.Value)) + 16
	if c.ttl > 0 {
		c.c.SetWithTTL(key, e, cost, c.ttl)
	} else {
		c.c.Set(key, e, cost)
	}
	c.c.Wait()
}

func (c *Cache) Del(key string) { c.c.Del(key) }

func (c *Cache) Close() { c.c.Close() }
