// Package desccache stores generated entity descriptions keyed by entity and
// guarded by a content hash, so unchanged code is never described twice.
package desccache

import (
	"errors"
	"maps"
	"sync"
	"time"

	"github.com/dpolishuk/codesense/internal/models"
	"github.com/dpolishuk/codesense/internal/persist"
	"github.com/sirupsen/logrus"
)

const DefaultFlushEvery = 20

// Cache is one JSON document of key → CacheRecord, flushed to disk after
// every flushEvery writes and on Flush.
type Cache struct {
	path       string
	flushEvery int
	logger     logrus.FieldLogger
	now        func() time.Time

	mu      sync.RWMutex
	records map[string]models.CacheRecord
	pending int

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// Open loads the cache document at path. A missing document starts an empty
// cache; a malformed one is logged and replaced by an empty cache. An empty
// path keeps the cache in memory only.
func Open(path string, flushEvery int, logger logrus.FieldLogger) *Cache {
	if flushEvery <= 0 {
		flushEvery = DefaultFlushEvery
	}
	c := &Cache{
		path:       path,
		flushEvery: flushEvery,
		logger:     logger.WithField("component", "desccache"),
		now:        time.Now,
		records:    make(map[string]models.CacheRecord),
		locks:      make(map[string]*sync.Mutex),
	}
	if path == "" {
		return c
	}

	var records map[string]models.CacheRecord
	err := persist.ReadJSON(path, &records)
	switch {
	case errors.Is(err, persist.ErrNotExist):
	case err != nil:
		c.logger.WithError(err).WithField("path", path).Warn("discarding unreadable description cache")
	default:
		for k, r := range records {
			c.records[k] = r
		}
		c.logger.WithFields(logrus.Fields{"path": path, "records": len(c.records)}).Info("loaded description cache")
	}
	return c
}

// Key is the cache key of an entity.
func Key(e *models.Entity) string {
	return e.Key()
}

// Get returns the cached description for key only when it was generated for
// contentHash. Any other stored hash is a miss.
func (c *Cache) Get(key, contentHash string) (string, map[string]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	r, ok := c.records[key]
	if !ok || r.ContentHash != contentHash {
		return "", nil, false
	}
	return r.Description, maps.Clone(r.FieldHashes), true
}

// Record returns the stored record for key regardless of its hash.
func (c *Cache) Record(key string) (models.CacheRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.records[key]
	if ok {
		r.FieldHashes = maps.Clone(r.FieldHashes)
	}
	return r, ok
}

// Put upserts a record and flushes once enough writes are pending. A failed
// flush is logged; the record stays in memory and is retried on the next
// flush.
func (c *Cache) Put(key, contentHash, description string, fieldHashes map[string]string) {
	c.mu.Lock()
	c.records[key] = models.CacheRecord{
		Key:         key,
		ContentHash: contentHash,
		Description: description,
		FieldHashes: maps.Clone(fieldHashes),
		LastUpdated: c.now().UTC(),
	}
	c.pending++
	due := c.pending >= c.flushEvery
	c.mu.Unlock()

	if due {
		if err := c.Flush(); err != nil {
			c.logger.WithError(err).Warn("failed to flush description cache")
		}
	}
}

// Lock serializes writers of one key. Callers hold it across the
// lookup, generate and Put sequence; different keys do not block each other.
func (c *Cache) Lock(key string) func() {
	c.locksMu.Lock()
	m, ok := c.locks[key]
	if !ok {
		m = &sync.Mutex{}
		c.locks[key] = m
	}
	c.locksMu.Unlock()

	m.Lock()
	return m.Unlock
}

// Flush writes the document if writes are pending.
func (c *Cache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flushLocked()
}

func (c *Cache) flushLocked() error {
	if c.pending == 0 || c.path == "" {
		c.pending = 0
		return nil
	}
	if err := persist.WriteJSON(c.path, c.records); err != nil {
		return err
	}
	c.logger.WithFields(logrus.Fields{"records": len(c.records), "writes": c.pending}).Debug("flushed description cache")
	c.pending = 0
	return nil
}

// Clear drops every record and persists the empty document.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = make(map[string]models.CacheRecord)
	c.pending = 1
	return c.flushLocked()
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}
