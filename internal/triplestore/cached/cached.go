// Package cached implements a triplestore that caches the results of another store.
package cached

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/haxdai/SWBPlatform-sub000/internal/rdf"
	"github.com/haxdai/SWBPlatform-sub000/internal/triplestore"
	"golang.org/x/sync/singleflight"
)

// DefaultSize is the default number of patterns kept by a Store.
const DefaultSize = 4096

// Store wraps a triplestore and caches the results of Match, Count and Graphs.
//
// Concurrent identical reads are passed to the underlying store only once.
// Any write through the Store drops the entire cache; writes that bypass it are not noticed,
// see [Store.Invalidate].
type Store struct {
	store triplestore.Store
	size  int

	group singleflight.Group

	m          sync.RWMutex
	generation uint64 // incremented on every invalidation
	matches    map[string][]rdf.Statement
	counts     map[string]int64
	graphs     []string

	hits, misses atomic.Uint64
}

var _ triplestore.Store = (*Store)(nil)

// Stats holds cache statistics.
type Stats struct {
	Hits    uint64
	Misses  uint64
	Entries int
}

// New wraps store in a cache holding at most size patterns.
// A size <= 0 uses DefaultSize.
func New(store triplestore.Store, size int) *Store {
	if size <= 0 {
		size = DefaultSize
	}
	return &Store{
		store:   store,
		size:    size,
		matches: make(map[string][]rdf.Statement),
		counts:  make(map[string]int64),
	}
}

// Unwrap returns the underlying store.
func (cs *Store) Unwrap() triplestore.Store {
	return cs.store
}

// Stats returns the current statistics of the cache.
func (cs *Store) Stats() Stats {
	cs.m.RLock()
	defer cs.m.RUnlock()

	return Stats{
		Hits:    cs.hits.Load(),
		Misses:  cs.misses.Load(),
		Entries: len(cs.matches) + len(cs.counts),
	}
}

// Invalidate drops all cached results.
func (cs *Store) Invalidate() {
	cs.m.Lock()
	defer cs.m.Unlock()

	cs.generation++
	clear(cs.matches)
	clear(cs.counts)
	cs.graphs = nil
}

// load returns the cached value for key, or calls fetch to load it.
// Concurrent loads of the same key share a single call to fetch.
func load[T any](cs *Store, cache func() map[string]T, key string, fetch func() (T, error)) (T, error) {
	cs.m.RLock()
	value, ok := cache()[key]
	generation := cs.generation
	cs.m.RUnlock()

	if ok {
		cs.hits.Add(1)
		return value, nil
	}
	cs.misses.Add(1)

	// include the generation, so that loads started before an invalidation are never shared with later ones
	result, err, _ := cs.group.Do(strconv.FormatUint(generation, 10)+"\x00"+key, func() (any, error) {
		value, err := fetch()
		if err != nil {
			return nil, err
		}

		cs.m.Lock()
		defer cs.m.Unlock()

		if cs.generation == generation {
			entries := cache()
			if len(entries) >= cs.size {
				clear(entries)
			}
			entries[key] = value
		}
		return value, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result.(T), nil
}

func (cs *Store) Match(ctx context.Context, pattern rdf.Pattern, f func(rdf.Statement) error) error {
	stmts, err := load(cs, func() map[string][]rdf.Statement { return cs.matches }, pattern.String(), func() ([]rdf.Statement, error) {
		return triplestore.Collect(ctx, cs.store, pattern)
	})
	if err != nil {
		return err
	}

	for _, stmt := range stmts {
		if err := f(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (cs *Store) Count(ctx context.Context, pattern rdf.Pattern) (int64, error) {
	return load(cs, func() map[string]int64 { return cs.counts }, pattern.String(), func() (int64, error) {
		return cs.store.Count(ctx, pattern)
	})
}

func (cs *Store) Graphs(ctx context.Context) ([]string, error) {
	cs.m.RLock()
	graphs := cs.graphs
	generation := cs.generation
	cs.m.RUnlock()

	if graphs != nil {
		cs.hits.Add(1)
		return append([]string(nil), graphs...), nil
	}
	cs.misses.Add(1)

	graphs, err := cs.store.Graphs(ctx)
	if err != nil {
		return nil, err
	}

	cs.m.Lock()
	if cs.generation == generation {
		cs.graphs = append(make([]string, 0, len(graphs)), graphs...)
	}
	cs.m.Unlock()

	return graphs, nil
}

func (cs *Store) Add(ctx context.Context, stmts ...rdf.Statement) error {
	defer cs.Invalidate()
	return cs.store.Add(ctx, stmts...)
}

func (cs *Store) Remove(ctx context.Context, pattern rdf.Pattern) (int64, error) {
	defer cs.Invalidate()
	return cs.store.Remove(ctx, pattern)
}

// Close drops the cache and closes the underlying store.
func (cs *Store) Close() error {
	cs.Invalidate()
	return cs.store.Close()
}
