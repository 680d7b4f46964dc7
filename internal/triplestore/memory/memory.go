// Package memory implements an in-memory triplestore.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/haxdai/SWBPlatform-sub000/internal/dict"
	"github.com/haxdai/SWBPlatform-sub000/internal/rdf"
	"github.com/haxdai/SWBPlatform-sub000/internal/triplestore"
)

// Store implements a triplestore that holds all statements in memory.
//
// Terms are dictionary encoded; every graph is indexed in
// <subject> <predicate> <object>, <predicate> <object> <subject> and
// <object> <subject> <predicate> order.
type Store struct {
	m      sync.RWMutex
	terms  *dict.Dict
	graphs map[string]*graph
	closed bool
}

var _ triplestore.Store = (*Store)(nil)

// New creates a new empty store
func New() *Store {
	terms, err := dict.Open(dict.MemoryEngine{})
	if err != nil {
		// memory engines never fail
		panic(err)
	}
	return &Store{
		terms:  terms,
		graphs: make(map[string]*graph),
	}
}

type graph struct {
	spo, pos, osp threeHash
	size          int64
}

func newGraph() *graph {
	return &graph{
		spo: make(threeHash),
		pos: make(threeHash),
		osp: make(threeHash),
	}
}

func (g *graph) add(s, p, o dict.ID) bool {
	if !g.spo.add(s, p, o) {
		return false
	}
	g.pos.add(p, o, s)
	g.osp.add(o, s, p)
	g.size++
	return true
}

func (g *graph) remove(s, p, o dict.ID) {
	if !g.spo.remove(s, p, o) {
		return
	}
	g.pos.remove(p, o, s)
	g.osp.remove(o, s, p)
	g.size--
}

// threeHash is a three level index of ids.
type threeHash map[dict.ID]map[dict.ID]map[dict.ID]struct{}

func (th threeHash) add(a, b, c dict.ID) bool {
	if th[a] == nil {
		th[a] = make(map[dict.ID]map[dict.ID]struct{})
	}
	if th[a][b] == nil {
		th[a][b] = make(map[dict.ID]struct{}, 1)
	}
	if _, ok := th[a][b][c]; ok {
		return false
	}
	th[a][b][c] = struct{}{}
	return true
}

func (th threeHash) remove(a, b, c dict.ID) bool {
	if _, ok := th[a][b][c]; !ok {
		return false
	}
	delete(th[a][b], c)
	if len(th[a][b]) == 0 {
		delete(th[a], b)
	}
	if len(th[a]) == 0 {
		delete(th, a)
	}
	return true
}

// fetch calls f for all (a, b, c) triples with the given prefix.
// Invalid ids act as wildcards, but b may only be bound when a is.
func (th threeHash) fetch(a, b dict.ID, f func(a, b, c dict.ID)) {
	visit := func(a dict.ID, bs map[dict.ID]map[dict.ID]struct{}) {
		if b.Valid() {
			for c := range bs[b] {
				f(a, b, c)
			}
			return
		}
		for b, cs := range bs {
			for c := range cs {
				f(a, b, c)
			}
		}
	}

	if a.Valid() {
		visit(a, th[a])
		return
	}
	for a, bs := range th {
		visit(a, bs)
	}
}

type spoIDs struct {
	graph   string
	s, p, o dict.ID
}

func (store *Store) Add(ctx context.Context, stmts ...rdf.Statement) error {
	if err := triplestore.Validate(stmts); err != nil {
		return err
	}

	store.m.Lock()
	defer store.m.Unlock()

	if store.closed {
		return triplestore.ErrClosed
	}

	for _, stmt := range stmts {
		s, err := store.terms.Intern(stmt.Subject.Key())
		if err != nil {
			return fmt.Errorf("failed to intern subject: %w", err)
		}
		p, err := store.terms.Intern(stmt.Predicate.Key())
		if err != nil {
			return fmt.Errorf("failed to intern predicate: %w", err)
		}
		o, err := store.terms.Intern(stmt.Object.Key())
		if err != nil {
			return fmt.Errorf("failed to intern object: %w", err)
		}

		g := store.graphs[stmt.Graph]
		if g == nil {
			g = newGraph()
			store.graphs[stmt.Graph] = g
		}
		g.add(s.Canonical, p.Canonical, o.Canonical)
	}
	return nil
}

// lookup returns the id for a pattern term.
// A nil term results in the invalid id; an unknown term in ok = false.
func (store *Store) lookup(term *rdf.Term) (id dict.ID, ok bool, err error) {
	if term == nil {
		return id, true, nil
	}
	return store.terms.Lookup(term.Key())
}

// find returns the ids of all statements matching pattern.
// store.m must be held.
func (store *Store) find(pattern rdf.Pattern) ([]spoIDs, error) {
	s, sOK, err := store.lookup(pattern.Subject)
	if err != nil {
		return nil, err
	}
	p, pOK, err := store.lookup(pattern.Predicate)
	if err != nil {
		return nil, err
	}
	o, oOK, err := store.lookup(pattern.Object)
	if err != nil {
		return nil, err
	}
	if !(sOK && pOK && oOK) {
		return nil, nil
	}

	var results []spoIDs
	for name, g := range store.graphs {
		if pattern.Graph != rdf.AnyGraph && pattern.Graph != name {
			continue
		}

		switch {
		case s.Valid():
			g.spo.fetch(s, p, func(s, p, c dict.ID) {
				if !o.Valid() || c == o {
					results = append(results, spoIDs{name, s, p, c})
				}
			})
		case p.Valid():
			g.pos.fetch(p, o, func(p, o, s dict.ID) {
				results = append(results, spoIDs{name, s, p, o})
			})
		default:
			g.osp.fetch(o, dict.ID{}, func(o, s, p dict.ID) {
				results = append(results, spoIDs{name, s, p, o})
			})
		}
	}
	return results, nil
}

func (store *Store) Match(ctx context.Context, pattern rdf.Pattern, f func(rdf.Statement) error) error {
	stmts, err := func() ([]rdf.Statement, error) {
		store.m.RLock()
		defer store.m.RUnlock()

		if store.closed {
			return nil, triplestore.ErrClosed
		}

		ids, err := store.find(pattern)
		if err != nil {
			return nil, err
		}

		stmts := make([]rdf.Statement, len(ids))
		for i, id := range ids {
			if stmts[i], err = store.resolve(id); err != nil {
				return nil, err
			}
		}
		return stmts, nil
	}()
	if err != nil {
		return err
	}

	// call f without holding the lock, so that it may modify the store
	triplestore.Sort(stmts)
	for _, stmt := range stmts {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := f(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (store *Store) resolve(ids spoIDs) (stmt rdf.Statement, err error) {
	stmt.Graph = ids.graph
	if stmt.Subject, err = store.term(ids.s); err != nil {
		return
	}
	if stmt.Predicate, err = store.term(ids.p); err != nil {
		return
	}
	stmt.Object, err = store.term(ids.o)
	return
}

func (store *Store) term(id dict.ID) (rdf.Term, error) {
	key, ok, err := store.terms.Resolve(id)
	if err != nil {
		return rdf.Term{}, err
	}
	if !ok {
		return rdf.Term{}, fmt.Errorf("unknown term %s", id)
	}
	return rdf.ParseKey(key)
}

func (store *Store) Count(ctx context.Context, pattern rdf.Pattern) (int64, error) {
	store.m.RLock()
	defer store.m.RUnlock()

	if store.closed {
		return 0, triplestore.ErrClosed
	}

	// fast path: counting an entire graph
	if pattern.Subject == nil && pattern.Predicate == nil && pattern.Object == nil {
		var total int64
		for name, g := range store.graphs {
			if pattern.Graph == rdf.AnyGraph || pattern.Graph == name {
				total += g.size
			}
		}
		return total, nil
	}

	ids, err := store.find(pattern)
	return int64(len(ids)), err
}

func (store *Store) Remove(ctx context.Context, pattern rdf.Pattern) (int64, error) {
	store.m.Lock()
	defer store.m.Unlock()

	if store.closed {
		return 0, triplestore.ErrClosed
	}

	ids, err := store.find(pattern)
	if err != nil {
		return 0, err
	}

	for _, id := range ids {
		g := store.graphs[id.graph]
		g.remove(id.s, id.p, id.o)
		if g.size == 0 {
			delete(store.graphs, id.graph)
		}
	}
	return int64(len(ids)), nil
}

func (store *Store) Graphs(ctx context.Context) ([]string, error) {
	store.m.RLock()
	defer store.m.RUnlock()

	if store.closed {
		return nil, triplestore.ErrClosed
	}

	names := make([]string, 0, len(store.graphs))
	for name := range store.graphs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

// Close closes this store and releases all memory
func (store *Store) Close() error {
	store.m.Lock()
	defer store.m.Unlock()

	if store.closed {
		return nil
	}
	store.closed = true
	store.graphs = nil
	return store.terms.Close()
}
