// LRU cache of generated code keyed by the
// sha256 of the input document.
package gencache

import (
	"container/list"
	"crypto/sha256"
	"sync"

	"github.com/indexsupply/hookgen/ui"
)

type Key [32]byte

func KeyOf(input string) Key {
	return sha256.Sum256([]byte(input))
}

type result struct {
	hooks []ui.HookView
	err   error
}

type cacheEntry struct {
	k Key
	v result
}

type Cache struct {
	mu         sync.Mutex
	lru        *list.List
	size       int
	entriesMap map[Key]*list.Element

	hits, misses uint64
}

const defaultMaxSize int = 100

// size <= 0 uses a default size
func New(size int) *Cache {
	if size <= 0 {
		size = defaultMaxSize
	}
	return &Cache{
		lru:        list.New(),
		size:       size,
		entriesMap: make(map[Key]*list.Element),
	}
}

func (c *Cache) store(k Key, r result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entriesMap[k]; ok {
		el.Value.(*cacheEntry).v = r
		c.lru.MoveToFront(el)
		return
	}
	c.entriesMap[k] = c.lru.PushFront(&cacheEntry{k: k, v: r})
	if c.lru.Len() > c.size {
		last := c.lru.Back()
		c.lru.Remove(last)
		delete(c.entriesMap, last.Value.(*cacheEntry).k)
	}
}

func (c *Cache) get(k Key) (result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, found := c.entriesMap[k]
	if !found {
		c.misses++
		return result{}, false
	}
	c.hits++
	c.lru.MoveToFront(el)
	return el.Value.(*cacheEntry).v, true
}

// Returns the result of ui.Generate for input,
// computing it at most once while it stays cached.
// Errors are cached too since generation is
// deterministic.
//
// Callers must not modify the returned slice.
func (c *Cache) Generate(input string) ([]ui.HookView, error) {
	k := KeyOf(input)
	if r, ok := c.get(k); ok {
		return r.hooks, r.err
	}
	hooks, err := ui.Generate(input)
	c.store(k, result{hooks, err})
	return hooks, err
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

func (c *Cache) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
