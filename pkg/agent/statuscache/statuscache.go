// Package statuscache holds a short-lived, additive view of each node's
// last-seen dispatch outcome. It is never authoritative — the controller
// node table the watchdog reconciles into is — but it lets a status
// endpoint answer "what did we last see from node X" without taking the
// controller's lock.
package statuscache

import (
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// Entry is one node's last observed dispatch outcome.
type Entry struct {
	NodeName string
	Failed   bool
	SeenAt   time.Time
}

// Cache is a TTL-bounded, additive record of recent dispatch outcomes per
// node name.
type Cache struct {
	c *ttlcache.Cache[string, Entry]
}

// New returns a Cache whose entries expire after ttl.
func New(ttl time.Duration) *Cache {
	c := ttlcache.New[string, Entry](
		ttlcache.WithTTL[string, Entry](ttl),
	)

	go c.Start()

	return &Cache{c: c}
}

// Record stores the latest outcome seen for nodeName.
func (c *Cache) Record(nodeName string, failed bool) {
	c.c.Set(nodeName, Entry{NodeName: nodeName, Failed: failed, SeenAt: time.Now()}, ttlcache.DefaultTTL)
}

// Get returns the last recorded outcome for nodeName, if it hasn't
// expired.
func (c *Cache) Get(nodeName string) (Entry, bool) {
	item := c.c.Get(nodeName)
	if item == nil {
		return Entry{}, false
	}

	return item.Value(), true
}

// Stop shuts down the cache's background eviction loop.
func (c *Cache) Stop() {
	c.c.Stop()
}
