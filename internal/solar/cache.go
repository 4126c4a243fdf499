package solar

import (
	"fmt"
	"sync"
	"time"
)

const (
	// SnapshotTTL is how long a computed snapshot stays valid
	SnapshotTTL = 300 * time.Second

	// bucketSize is the time rounding applied to cache keys, so lookups
	// within the same five-minute window share one computation
	bucketSize = 5 * time.Minute
)

type cacheEntry struct {
	snap     *Snapshot
	storedAt time.Time
}

// SnapshotCache is a TTL cache for solar snapshots keyed by location and
// time bucket. Entries older than double the TTL are swept lazily on write.
type SnapshotCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
	now     func() time.Time
}

// NewSnapshotCache creates a snapshot cache with the default TTL
func NewSnapshotCache() *SnapshotCache {
	return &SnapshotCache{
		ttl:     SnapshotTTL,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// BucketKey builds a cache key from coordinates and a time rounded to the
// bucket size.
func BucketKey(lat, lon float64, at time.Time) string {
	bucket := at.UTC().Truncate(bucketSize)
	return fmt.Sprintf("%.4f,%.4f,%d", lat, lon, bucket.Unix())
}

// Get returns a cached snapshot if present and fresh
func (c *SnapshotCache) Get(key string) (*Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.storedAt) >= c.ttl {
		return nil, false
	}
	return entry.snap, true
}

// Put stores a snapshot and sweeps entries older than double the TTL.
// The whole update is performed under the lock so a concurrent reader never
// observes a partially written entry.
func (c *SnapshotCache) Put(key string, snap *Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.entries[key] = cacheEntry{snap: snap, storedAt: now}

	// Expired entries stay readable-as-stale until here; keeping them for
	// 2x TTL bounds memory without sweeping on every read
	for k, e := range c.entries {
		if now.Sub(e.storedAt) > 2*c.ttl {
			delete(c.entries, k)
		}
	}
}

// Len returns the number of stored entries (including stale ones)
func (c *SnapshotCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
