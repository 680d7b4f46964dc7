package semantic

import (
	"context"
	"maps"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// DefaultCacheSize is the default number of objects kept in a cache.
const DefaultCacheSize = 1 << 14

// Cache holds objects by uri.
//
// An object is loaded at most once, even if it is requested concurrently.
// When the cache is full it is cleared entirely.
type Cache struct {
	size  int
	group singleflight.Group

	m          sync.RWMutex
	generation uint64
	objects    map[string]*Object

	hits, misses, loads atomic.Uint64
}

// CacheStats holds statistics about a cache.
type CacheStats struct {
	Hits    uint64
	Misses  uint64
	Loads   uint64
	Entries int
}

// NewCache creates a new cache holding at most size objects.
// A size <= 0 uses DefaultCacheSize.
func NewCache(size int) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &Cache{
		size:    size,
		objects: make(map[string]*Object),
	}
}

// Get returns the object with the given uri.
// If it is not cached, load is called to create it.
// Callers that give up waiting do not affect a load shared with others.
func (cache *Cache) Get(ctx context.Context, uri string, load func(ctx context.Context) (*Object, error)) (*Object, error) {
	cache.m.RLock()
	object, ok := cache.objects[uri]
	generation := cache.generation
	cache.m.RUnlock()

	if ok {
		cache.hits.Add(1)
		return object, nil
	}
	cache.misses.Add(1)

	results := cache.group.DoChan(strconv.FormatUint(generation, 10)+"\x00"+uri, func() (any, error) {
		// another load might have finished before we got here
		cache.m.RLock()
		object, ok := cache.objects[uri]
		cache.m.RUnlock()
		if ok {
			return object, nil
		}

		// the load is shared by all waiters and must not fail because the first one gave up
		cache.loads.Add(1)
		object, err := load(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}

		cache.m.Lock()
		defer cache.m.Unlock()

		if cache.generation == generation {
			cache.put(uri, object)
		}
		return object, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result := <-results:
		if result.Err != nil {
			return nil, result.Err
		}
		return result.Val.(*Object), nil
	}
}

// Put stores object in the cache, replacing any existing object with the same uri.
func (cache *Cache) Put(object *Object) {
	cache.m.Lock()
	defer cache.m.Unlock()

	cache.put(object.URI(), object)
}

func (cache *Cache) put(uri string, object *Object) {
	if _, ok := cache.objects[uri]; !ok && len(cache.objects) >= cache.size {
		clear(cache.objects)
	}
	cache.objects[uri] = object
}

// Peek returns the cached object with the given uri, without loading it.
func (cache *Cache) Peek(uri string) (*Object, bool) {
	cache.m.RLock()
	defer cache.m.RUnlock()

	object, ok := cache.objects[uri]
	return object, ok
}

// Invalidate marks the object with the given uri as stale.
// A cached object reloads its statements on next access.
func (cache *Cache) Invalidate(uri string) {
	if object, ok := cache.Peek(uri); ok {
		object.Refresh()
	}
}

// Remove drops the object with the given uri from the cache.
func (cache *Cache) Remove(uri string) {
	cache.m.Lock()
	defer cache.m.Unlock()

	cache.generation++
	delete(cache.objects, uri)
}

// Clear drops all objects from the cache.
// Objects that were cached reload their statements on next access.
func (cache *Cache) Clear() {
	cache.m.Lock()
	objects := slices.Collect(maps.Values(cache.objects))
	cache.generation++
	clear(cache.objects)
	cache.m.Unlock()

	for _, object := range objects {
		object.Refresh()
	}
}

// Len returns the number of cached objects.
func (cache *Cache) Len() int {
	cache.m.RLock()
	defer cache.m.RUnlock()

	return len(cache.objects)
}

// Stats returns statistics about this cache.
func (cache *Cache) Stats() CacheStats {
	return CacheStats{
		Hits:    cache.hits.Load(),
		Misses:  cache.misses.Load(),
		Loads:   cache.loads.Load(),
		Entries: cache.Len(),
	}
}
