package filestore

import (
	"os"
	"sync"
	"time"

	"github.com/couchcryptid/climatescope-etl/internal/domain"
)

// TableReader reads a CSV file into a Table.
type TableReader interface {
	ReadTable(path string) (domain.Table, error)
}

// CachedReader wraps a TableReader with an in-memory LRU cache. Entries are
// keyed by path and invalidated when the file's size or modification time
// changes, so a new pipeline run is picked up on the next read.
type CachedReader struct {
	inner TableReader
	cache *lruCache[cachedTable]
}

type cachedTable struct {
	modTime time.Time
	size    int64
	table   domain.Table
}

// NewCachedReader creates a cache decorator around a reader.
func NewCachedReader(inner TableReader, maxEntries int) *CachedReader {
	return &CachedReader{
		inner: inner,
		cache: newLRUCache[cachedTable](maxEntries),
	}
}

// ReadTable returns the cached table when the file is unchanged. Callers must
// not modify the returned rows.
func (c *CachedReader) ReadTable(path string) (domain.Table, error) {
	info, err := os.Stat(path)
	if err != nil {
		// Let the inner reader produce the typed error.
		return c.inner.ReadTable(path)
	}
	if e, ok := c.cache.get(path); ok && e.size == info.Size() && e.modTime.Equal(info.ModTime()) {
		return e.table, nil
	}
	t, err := c.inner.ReadTable(path)
	if err != nil {
		return t, err
	}
	c.cache.put(path, cachedTable{modTime: info.ModTime(), size: info.Size(), table: t})
	return t, nil
}

// lruCache is a simple thread-safe LRU cache.
type lruCache[V any] struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry[V]
	head       *entry[V] // most recently used
	tail       *entry[V] // least recently used
}

type entry[V any] struct {
	key   string
	value V
	prev  *entry[V]
	next  *entry[V]
}

func newLRUCache[V any](maxEntries int) *lruCache[V] {
	return &lruCache[V]{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry[V]),
	}
}

func (c *lruCache[V]) get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache[V]) put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry[V]{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache[V]) moveToFront(e *entry[V]) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache[V]) addToFront(e *entry[V]) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache[V]) remove(e *entry[V]) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache[V]) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
