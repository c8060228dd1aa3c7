package twitter

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/adrg/xdg"
)

// flushEvery is how many new entries accumulate before the cache is
// written back to disk.
const flushEvery = 10

// UserIDCache maps handles to numeric user ids so repeat lookups skip
// the resolution API call. Populated lazily, persisted as a JSON file.
type UserIDCache struct {
	mu    sync.Mutex
	path  string
	ids   map[string]string
	added int
}

// DefaultUserIDCachePath returns the cache file location.
func DefaultUserIDCachePath() (string, error) {
	return xdg.CacheFile("marvin-monitor/user_id_cache.json")
}

// OpenUserIDCache loads the cache from path. A missing or unreadable
// file yields an empty cache; the monitor must not fail over it.
func OpenUserIDCache(path string) *UserIDCache {
	c := &UserIDCache{
		path: path,
		ids:  make(map[string]string),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("[idcache] could not read %s: %v", path, err)
		}
		return c
	}

	if err := json.Unmarshal(data, &c.ids); err != nil {
		log.Printf("[idcache] could not parse %s: %v (starting empty)", path, err)
		c.ids = make(map[string]string)
		return c
	}

	log.Printf("[idcache] loaded %d user ids from cache", len(c.ids))
	return c
}

// Get returns the cached id for handle, if known.
func (c *UserIDCache) Get(handle string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.ids[handle]
	return id, ok
}

// Put records a resolved id. Every flushEvery new entries the cache is
// flushed in the background; the write never blocks the caller.
func (c *UserIDCache) Put(handle, id string) {
	c.mu.Lock()
	c.ids[handle] = id
	c.added++
	flush := c.added%flushEvery == 0
	c.mu.Unlock()

	if flush {
		go func() {
			if err := c.Flush(); err != nil {
				log.Printf("[idcache] background flush failed: %v", err)
			}
		}()
	}
}

// Len returns the number of cached ids.
func (c *UserIDCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.ids)
}

// Flush writes the cache to disk. Called periodically and at shutdown.
func (c *UserIDCache) Flush() error {
	c.mu.Lock()
	data, err := json.MarshalIndent(c.ids, "", "  ")
	n := len(c.ids)
	c.mu.Unlock()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0700); err != nil {
		return err
	}
	if err := os.WriteFile(c.path, data, 0600); err != nil {
		return err
	}

	log.Printf("[idcache] saved %d user ids to cache", n)
	return nil
}
