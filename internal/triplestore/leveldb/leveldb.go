// Package leveldb implements a triplestore persisted in a leveldb database.
package leveldb

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/haxdai/SWBPlatform-sub000/internal/dict"
	"github.com/haxdai/SWBPlatform-sub000/internal/rdf"
	"github.com/haxdai/SWBPlatform-sub000/internal/triplestore"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// cspell:words leveldb

// Store is a triplestore backed by a single leveldb database.
//
// Terms and graph names share a dictionary stored in the same database.
// Every statement is written to three indexes, each keyed as
//
//	'q' <index> <a> <b> <c> <graph>
//
// where <index> is one of 's', 'p' or 'o' and a, b and c are the statement ids in index order.
// Per-graph statement counts are kept under 'c' <graph>.
type Store struct {
	db    *leveldb.DB
	terms *dict.Dict

	m      sync.Mutex // held by writers
	closed bool
}

var _ triplestore.Store = (*Store)(nil)

const (
	indexSPO = 's'
	indexPOS = 'p'
	indexOSP = 'o'
)

var (
	quadPrefix  = []byte("q")
	countPrefix = []byte("c")
)

// Open opens or creates the store at path.
// When wipe is set, existing data at path is deleted.
func Open(path string, wipe bool) (*Store, error) {
	if wipe {
		if err := os.RemoveAll(path); err != nil {
			return nil, fmt.Errorf("failed to wipe %q: %w", path, err)
		}
	}

	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open leveldb: %w", err)
	}

	terms, err := dict.Open(dict.LevelEngine{DB: db})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, terms: terms}, nil
}

func graphKey(name string) string {
	return "G" + name
}

func quadKey(index byte, a, b, c, g dict.ID) []byte {
	key := make([]byte, 0, 2+4*dict.IDLen)
	key = append(key, quadPrefix...)
	key = append(key, index)
	return append(key, dict.EncodeIDs(a, b, c, g)...)
}

func countKey(g dict.ID) []byte {
	return append(slices.Clone(countPrefix), dict.EncodeIDs(g)...)
}

// quadIDs holds the ids of a single statement.
type quadIDs struct {
	s, p, o, g dict.ID
}

func (q quadIDs) keys() [3][]byte {
	return [3][]byte{
		quadKey(indexSPO, q.s, q.p, q.o, q.g),
		quadKey(indexPOS, q.p, q.o, q.s, q.g),
		quadKey(indexOSP, q.o, q.s, q.p, q.g),
	}
}

func (store *Store) count(g dict.ID) (int64, error) {
	value, err := store.db.Get(countKey(g), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(value) != 8 {
		return 0, fmt.Errorf("invalid counter for %s", g)
	}
	return int64(binary.BigEndian.Uint64(value)), nil
}

// applyCounts adds delta to the per-graph counters in batch.
// Counters reaching zero are deleted.
func (store *Store) applyCounts(batch *leveldb.Batch, delta map[dict.ID]int64) error {
	for g, d := range delta {
		if d == 0 {
			continue
		}
		old, err := store.count(g)
		if err != nil {
			return err
		}
		if total := old + d; total <= 0 {
			batch.Delete(countKey(g))
		} else {
			batch.Put(countKey(g), binary.BigEndian.AppendUint64(nil, uint64(total)))
		}
	}
	return nil
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

	var (
		batch leveldb.Batch
		delta = make(map[dict.ID]int64)
		seen  = make(map[quadIDs]struct{}, len(stmts))
	)
	for _, stmt := range stmts {
		if err := ctx.Err(); err != nil {
			return err
		}

		var ids quadIDs
		for _, part := range []struct {
			dest *dict.ID
			key  string
		}{
			{&ids.s, stmt.Subject.Key()},
			{&ids.p, stmt.Predicate.Key()},
			{&ids.o, stmt.Object.Key()},
			{&ids.g, graphKey(stmt.Graph)},
		} {
			entry, err := store.terms.Intern(part.key)
			if err != nil {
				return fmt.Errorf("failed to intern term: %w", err)
			}
			*part.dest = entry.Canonical
		}

		if _, ok := seen[ids]; ok {
			continue
		}
		seen[ids] = struct{}{}

		keys := ids.keys()
		exists, err := store.db.Has(keys[0], nil)
		if err != nil {
			return err
		}
		if exists {
			continue
		}

		for _, key := range keys {
			batch.Put(key, nil)
		}
		delta[ids.g]++
	}

	if err := store.applyCounts(&batch, delta); err != nil {
		return err
	}
	return store.db.Write(&batch, nil)
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
func (store *Store) find(ctx context.Context, pattern rdf.Pattern) ([]quadIDs, error) {
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

	var g dict.ID
	if pattern.Graph != rdf.AnyGraph {
		var ok bool
		g, ok, err = store.terms.Lookup(graphKey(pattern.Graph))
		if err != nil || !ok {
			return nil, err
		}
	}

	// pick an index and the bound prefix within it
	var (
		index  byte
		prefix []dict.ID
		decode func(a, b, c dict.ID) (s, p, o dict.ID)
	)
	switch {
	case s.Valid():
		index = indexSPO
		prefix = []dict.ID{s}
		if p.Valid() {
			prefix = append(prefix, p)
			if o.Valid() {
				prefix = append(prefix, o)
			}
		}
		decode = func(a, b, c dict.ID) (dict.ID, dict.ID, dict.ID) { return a, b, c }
	case p.Valid():
		index = indexPOS
		prefix = []dict.ID{p}
		if o.Valid() {
			prefix = append(prefix, o)
		}
		decode = func(a, b, c dict.ID) (dict.ID, dict.ID, dict.ID) { return c, a, b }
	default:
		index = indexOSP
		if o.Valid() {
			prefix = []dict.ID{o}
		}
		decode = func(a, b, c dict.ID) (dict.ID, dict.ID, dict.ID) { return b, c, a }
	}

	start := append(slices.Clone(quadPrefix), index)
	start = append(start, dict.EncodeIDs(prefix...)...)

	iterator := store.db.NewIterator(util.BytesPrefix(start), nil)
	defer iterator.Release()

	var results []quadIDs
	for iterator.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		key := iterator.Key()[len(quadPrefix)+1:]
		a, b, c, qg := dict.DecodeID(key, 0), dict.DecodeID(key, 1), dict.DecodeID(key, 2), dict.DecodeID(key, 3)
		if g.Valid() && qg != g {
			continue
		}

		ids := quadIDs{g: qg}
		ids.s, ids.p, ids.o = decode(a, b, c)
		if o.Valid() && ids.o != o {
			continue
		}
		results = append(results, ids)
	}
	if err := iterator.Error(); err != nil {
		return nil, err
	}
	return results, nil
}

func (store *Store) Match(ctx context.Context, pattern rdf.Pattern, f func(rdf.Statement) error) error {
	if store.isClosed() {
		return triplestore.ErrClosed
	}

	ids, err := store.find(ctx, pattern)
	if err != nil {
		return err
	}

	for _, id := range ids {
		stmt, err := store.resolve(id)
		if err != nil {
			return err
		}
		if err := f(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (store *Store) isClosed() bool {
	store.m.Lock()
	defer store.m.Unlock()
	return store.closed
}

func (store *Store) resolve(ids quadIDs) (stmt rdf.Statement, err error) {
	if stmt.Subject, err = store.term(ids.s); err != nil {
		return
	}
	if stmt.Predicate, err = store.term(ids.p); err != nil {
		return
	}
	if stmt.Object, err = store.term(ids.o); err != nil {
		return
	}

	name, err := store.key(ids.g)
	if err != nil {
		return
	}
	stmt.Graph = strings.TrimPrefix(name, "G")
	return
}

func (store *Store) key(id dict.ID) (string, error) {
	key, ok, err := store.terms.Resolve(id)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("unknown term %s", id)
	}
	return key, nil
}

func (store *Store) term(id dict.ID) (rdf.Term, error) {
	key, err := store.key(id)
	if err != nil {
		return rdf.Term{}, err
	}
	return rdf.ParseKey(key)
}

func (store *Store) Count(ctx context.Context, pattern rdf.Pattern) (int64, error) {
	if store.isClosed() {
		return 0, triplestore.ErrClosed
	}

	// fast path: use the graph counters
	if pattern.Subject == nil && pattern.Predicate == nil && pattern.Object == nil {
		if pattern.Graph != rdf.AnyGraph {
			g, ok, err := store.terms.Lookup(graphKey(pattern.Graph))
			if err != nil || !ok {
				return 0, err
			}
			return store.count(g)
		}

		var total int64
		err := store.counters(func(g dict.ID, count int64) error {
			total += count
			return nil
		})
		return total, err
	}

	ids, err := store.find(ctx, pattern)
	return int64(len(ids)), err
}

func (store *Store) counters(f func(g dict.ID, count int64) error) error {
	iterator := store.db.NewIterator(util.BytesPrefix(countPrefix), nil)
	defer iterator.Release()

	for iterator.Next() {
		g := dict.DecodeID(iterator.Key()[len(countPrefix):], 0)
		if err := f(g, int64(binary.BigEndian.Uint64(iterator.Value()))); err != nil {
			return err
		}
	}
	return iterator.Error()
}

func (store *Store) Remove(ctx context.Context, pattern rdf.Pattern) (int64, error) {
	store.m.Lock()
	defer store.m.Unlock()

	if store.closed {
		return 0, triplestore.ErrClosed
	}

	ids, err := store.find(ctx, pattern)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	var batch leveldb.Batch
	delta := make(map[dict.ID]int64)
	for _, id := range ids {
		for _, key := range id.keys() {
			batch.Delete(key)
		}
		delta[id.g]--
	}
	if err := store.applyCounts(&batch, delta); err != nil {
		return 0, err
	}
	if err := store.db.Write(&batch, nil); err != nil {
		return 0, err
	}
	return int64(len(ids)), nil
}

func (store *Store) Graphs(ctx context.Context) ([]string, error) {
	if store.isClosed() {
		return nil, triplestore.ErrClosed
	}

	var names []string
	err := store.counters(func(g dict.ID, count int64) error {
		key, err := store.key(g)
		if err != nil {
			return err
		}
		names = append(names, strings.TrimPrefix(key, "G"))
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(names)
	return names, nil
}

// Compact compacts the underlying database.
func (store *Store) Compact() error {
	return store.db.CompactRange(util.Range{})
}

// Close closes the underlying database.
func (store *Store) Close() error {
	store.m.Lock()
	defer store.m.Unlock()

	if store.closed {
		return nil
	}
	store.closed = true
	return errors.Join(store.terms.Close(), store.db.Close())
}
