// Package sqlstore implements a triplestore on top of a relational database.
package sqlstore

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/haxdai/SWBPlatform-sub000/internal/ddl"
	"github.com/haxdai/SWBPlatform-sub000/internal/rdf"
	"github.com/haxdai/SWBPlatform-sub000/internal/triplestore"
	"github.com/huandu/go-sqlbuilder"

	// database drivers
	_ "github.com/glebarez/go-sqlite"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v4/stdlib"
)

// cspell:words sqlstore pgx

var errClosed = triplestore.ErrClosed

// Config configures a relational store.
type Config struct {
	// Driver is the name of the database/sql driver, one of "sqlite", "mysql" or "pgx".
	Driver string
	DSN    string

	// Dialect selects the ddl dialect; defaults to the dialect of the driver.
	Dialect string

	// Schema overrides the default schema descriptor.
	// It must declare the tables of the default schema.
	Schema *ddl.Schema

	MaxSessions   int // defaults to 1 for sqlite and 8 otherwise
	MaxIdle       int // defaults to MaxSessions
	NodeCacheSize int // defaults to DefaultNodeCacheSize

	Logger *slog.Logger
}

// DefaultNodeCacheSize is the default number of node ids cached in memory
const DefaultNodeCacheSize = 1 << 16

var driverDialects = map[string]string{
	"sqlite": "sqlite",
	"mysql":  "mysql",
	"pgx":    "postgres",
}

// node kinds in the database
const (
	kindGraph = 100
)

// Store is a triplestore inside a relational database.
type Store struct {
	db      *sql.DB
	flavor  sqlbuilder.Flavor
	cache   *StatementCache
	logger  *slog.Logger
	dialect string

	nodes nodeCache

	closeOnce sync.Once
	closeErr  error
}

var _ triplestore.Store = (*Store)(nil)

// Open opens the database described by config and creates the schema if needed.
func Open(ctx context.Context, config Config) (*Store, error) {
	if config.Dialect == "" {
		config.Dialect = driverDialects[config.Driver]
	}
	if config.Schema == nil {
		config.Schema = ddl.Default()
	}
	if config.MaxSessions <= 0 {
		if config.Driver == "sqlite" {
			config.MaxSessions = 1
		} else {
			config.MaxSessions = 8
		}
	}
	if config.MaxIdle <= 0 {
		config.MaxIdle = config.MaxSessions
	}
	if config.NodeCacheSize <= 0 {
		config.NodeCacheSize = DefaultNodeCacheSize
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	gen, err := ddl.New(config.Schema)
	if err != nil {
		return nil, err
	}
	dialect, err := gen.Dialect(config.Dialect)
	if err != nil {
		return nil, err
	}
	for _, table := range []string{nodesTable, quadsTable} {
		if _, ok := config.Schema.Table(table); !ok {
			return nil, fmt.Errorf("%w: missing table %q", ddl.ErrInvalidSchema, table)
		}
	}

	db, err := sql.Open(config.Driver, config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(config.MaxSessions)

	if err := createSchema(ctx, db, gen, dialect, config.Logger); err != nil {
		db.Close()
		return nil, err
	}

	store := &Store{
		db:      db,
		flavor:  dialect.Flavor,
		cache:   NewStatementCache(db, config.MaxSessions, config.MaxIdle),
		logger:  config.Logger,
		dialect: config.Dialect,
		nodes:   newNodeCache(config.NodeCacheSize),
	}
	store.cache.OnRelease(func(session *Session) {
		store.logger.Debug("session released", "prepared", session.Prepared())
	})
	return store, nil
}

// createSchema creates the objects of the schema that do not yet exist
func createSchema(ctx context.Context, db *sql.DB, gen *ddl.Generator, dialect ddl.Dialect, logger *slog.Logger) error {
	objects, err := gen.Objects(dialect.Name)
	if err != nil {
		return err
	}
	for _, object := range objects {
		if !object.Guarded {
			query, args := dialect.Exists(object)

			var count int
			if err := db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
				return fmt.Errorf("failed to check for %s %q: %w", object.Kind, object.Name, err)
			}
			if count > 0 {
				logger.Debug("skipping existing ddl object", "kind", object.Kind, "name", object.Name)
				continue
			}
		}

		logger.Debug("executing ddl", "stmt", object.Stmt)
		if _, err := db.ExecContext(ctx, object.Stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// Statements returns the statement cache used by this store.
func (store *Store) Statements() *StatementCache {
	return store.cache
}

// Dialect returns the name of the ddl dialect in use.
func (store *Store) Dialect() string {
	return store.dialect
}

const (
	nodesTable = "swb_nodes"
	quadsTable = "swb_quads"
)

// node is a term (or graph name) as stored in the nodes table
type node struct {
	kind     int
	value    string
	lang     string
	datatype string
}

func termNode(term rdf.Term) node {
	return node{kind: int(term.Kind), value: term.Value, lang: term.Lang, datatype: term.Datatype}
}

func graphNode(name string) node {
	return node{kind: kindGraph, value: name}
}

func (n node) hash() string {
	var key string
	if n.kind == kindGraph {
		key = "G" + n.value
	} else {
		key = rdf.Term{Kind: rdf.Kind(n.kind), Value: n.value, Lang: n.lang, Datatype: n.datatype}.Key()
	}
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func (n node) term() rdf.Term {
	return rdf.Term{Kind: rdf.Kind(n.kind), Value: n.value, Lang: n.lang, Datatype: n.datatype}
}

func nullable(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}

// nodeCache caches node ids by hash
type nodeCache struct {
	m    sync.RWMutex
	size int
	ids  map[string]int64
}

func newNodeCache(size int) nodeCache {
	return nodeCache{size: size, ids: make(map[string]int64)}
}

func (nc *nodeCache) get(hash string) (int64, bool) {
	nc.m.RLock()
	defer nc.m.RUnlock()

	id, ok := nc.ids[hash]
	return id, ok
}

func (nc *nodeCache) put(ids map[string]int64) {
	nc.m.Lock()
	defer nc.m.Unlock()

	if len(nc.ids)+len(ids) > nc.size {
		clear(nc.ids)
	}
	for hash, id := range ids {
		nc.ids[hash] = id
	}
}

// lookup returns the id of n, without creating it.
func (store *Store) lookup(ctx context.Context, q *Querier, n node) (id int64, ok bool, err error) {
	hash := n.hash()
	if id, ok := store.nodes.get(hash); ok {
		return id, true, nil
	}

	sb := store.flavor.NewSelectBuilder()
	sb.Select("id").From(nodesTable).Where(sb.Equal("hash", hash))
	query, args := sb.Build()

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return 0, false, err
	}
	defer rows.Close()

	if !rows.Next() {
		return 0, false, rows.Err()
	}
	if err := rows.Scan(&id); err != nil {
		return 0, false, err
	}
	store.nodes.put(map[string]int64{hash: id})
	return id, true, nil
}

// intern returns the id of n, creating it if needed.
// New ids are recorded in created, and only cached once the transaction commits.
func (store *Store) intern(ctx context.Context, q *Querier, n node, created map[string]int64) (int64, error) {
	hash := n.hash()
	if id, ok := created[hash]; ok {
		return id, nil
	}

	id, ok, err := store.lookup(ctx, q, n)
	if err != nil || ok {
		return id, err
	}

	ib := store.flavor.NewInsertBuilder()
	ib.InsertIgnoreInto(nodesTable).
		Cols("hash", "kind", "value", "lang", "datatype").
		Values(hash, n.kind, n.value, nullable(n.lang), nullable(n.datatype))
	query, args := ib.Build()
	if _, err := q.Exec(ctx, query, args...); err != nil {
		return 0, fmt.Errorf("failed to insert node: %w", err)
	}

	sb := store.flavor.NewSelectBuilder()
	sb.Select("id").From(nodesTable).Where(sb.Equal("hash", hash))
	query, args = sb.Build()

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return 0, err
		}
		return 0, fmt.Errorf("node %q vanished after insert", n.value)
	}
	if err := rows.Scan(&id); err != nil {
		return 0, err
	}
	created[hash] = id
	return id, nil
}

// withSession runs f on a session from the statement cache
func (store *Store) withSession(ctx context.Context, f func(session *Session) error) error {
	session, err := store.cache.Acquire(ctx)
	if err != nil {
		return err
	}
	defer session.Release()

	return f(session)
}

func (store *Store) Add(ctx context.Context, stmts ...rdf.Statement) error {
	if err := triplestore.Validate(stmts); err != nil {
		return err
	}
	if len(stmts) == 0 {
		return nil
	}

	created := make(map[string]int64)
	err := store.withSession(ctx, func(session *Session) error {
		return session.Tx(ctx, func(q *Querier) error {
			for _, stmt := range stmts {
				var ids [4]int64
				for i, n := range []node{
					graphNode(stmt.Graph),
					termNode(stmt.Subject),
					termNode(stmt.Predicate),
					termNode(stmt.Object),
				} {
					id, err := store.intern(ctx, q, n, created)
					if err != nil {
						return err
					}
					ids[i] = id
				}

				ib := store.flavor.NewInsertBuilder()
				ib.InsertIgnoreInto(quadsTable).
					Cols("graph", "subject", "predicate", "object").
					Values(ids[0], ids[1], ids[2], ids[3])
				query, args := ib.Build()
				if _, err := q.Exec(ctx, query, args...); err != nil {
					return fmt.Errorf("failed to insert statement: %w", err)
				}
			}
			return nil
		})
	})
	if err != nil {
		return err
	}

	store.nodes.put(created)
	return nil
}

// errNoMatch indicates that a pattern refers to unknown terms
var errNoMatch = errors.New("no match")

// where adds conditions matching pattern to cond.
// It returns errNoMatch when the pattern refers to an unknown term.
func (store *Store) where(ctx context.Context, q *Querier, cond *sqlbuilder.Cond, prefix string, pattern rdf.Pattern) ([]string, error) {
	var exprs []string
	for _, part := range []struct {
		column string
		term   *rdf.Term
	}{
		{"subject", pattern.Subject},
		{"predicate", pattern.Predicate},
		{"object", pattern.Object},
	} {
		if part.term == nil {
			continue
		}
		id, ok, err := store.lookup(ctx, q, termNode(*part.term))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errNoMatch
		}
		exprs = append(exprs, cond.Equal(prefix+part.column, id))
	}

	if pattern.Graph != rdf.AnyGraph {
		id, ok, err := store.lookup(ctx, q, graphNode(pattern.Graph))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errNoMatch
		}
		exprs = append(exprs, cond.Equal(prefix+"graph", id))
	}
	return exprs, nil
}

func (store *Store) Match(ctx context.Context, pattern rdf.Pattern, f func(rdf.Statement) error) error {
	var stmts []rdf.Statement
	err := store.withSession(ctx, func(session *Session) error {
		q := session.Querier()

		sb := store.flavor.NewSelectBuilder()
		sb.Select(
			"g.value",
			"s.kind", "s.value", "s.lang", "s.datatype",
			"p.kind", "p.value", "p.lang", "p.datatype",
			"o.kind", "o.value", "o.lang", "o.datatype",
		)
		sb.From(sb.As(quadsTable, "q"))
		sb.Join(sb.As(nodesTable, "g"), "g.id = q.graph")
		sb.Join(sb.As(nodesTable, "s"), "s.id = q.subject")
		sb.Join(sb.As(nodesTable, "p"), "p.id = q.predicate")
		sb.Join(sb.As(nodesTable, "o"), "o.id = q.object")

		exprs, err := store.where(ctx, q, &sb.Cond, "q.", pattern)
		if err != nil {
			return err
		}
		if len(exprs) > 0 {
			sb.Where(exprs...)
		}
		sb.OrderBy("q.graph", "q.subject", "q.predicate", "q.object")

		query, args := sb.Build()
		rows, err := q.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				stmt    rdf.Statement
				s, p, o node
				ls, ds  sql.NullString
				lp, dp  sql.NullString
				lo, do  sql.NullString
			)
			if err := rows.Scan(
				&stmt.Graph,
				&s.kind, &s.value, &ls, &ds,
				&p.kind, &p.value, &lp, &dp,
				&o.kind, &o.value, &lo, &do,
			); err != nil {
				return err
			}
			s.lang, s.datatype = ls.String, ds.String
			p.lang, p.datatype = lp.String, dp.String
			o.lang, o.datatype = lo.String, do.String

			stmt.Subject, stmt.Predicate, stmt.Object = s.term(), p.term(), o.term()
			stmts = append(stmts, stmt)
		}
		return rows.Err()
	})
	if errors.Is(err, errNoMatch) {
		return nil
	}
	if err != nil {
		return err
	}

	// the session is released, so f may use the store
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

func (store *Store) Count(ctx context.Context, pattern rdf.Pattern) (count int64, err error) {
	err = store.withSession(ctx, func(session *Session) error {
		q := session.Querier()

		sb := store.flavor.NewSelectBuilder()
		sb.Select("COUNT(*)").From(quadsTable)

		exprs, err := store.where(ctx, q, &sb.Cond, "", pattern)
		if err != nil {
			return err
		}
		if len(exprs) > 0 {
			sb.Where(exprs...)
		}

		query, args := sb.Build()
		rows, err := q.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		if rows.Next() {
			if err := rows.Scan(&count); err != nil {
				return err
			}
		}
		return rows.Err()
	})
	if errors.Is(err, errNoMatch) {
		return 0, nil
	}
	return count, err
}

func (store *Store) Remove(ctx context.Context, pattern rdf.Pattern) (removed int64, err error) {
	err = store.withSession(ctx, func(session *Session) error {
		return session.Tx(ctx, func(q *Querier) error {
			db := store.flavor.NewDeleteBuilder()
			db.DeleteFrom(quadsTable)

			exprs, err := store.where(ctx, q, &db.Cond, "", pattern)
			if err != nil {
				return err
			}
			if len(exprs) > 0 {
				db.Where(exprs...)
			}

			query, args := db.Build()
			result, err := q.Exec(ctx, query, args...)
			if err != nil {
				return err
			}
			removed, err = result.RowsAffected()
			return err
		})
	})
	if errors.Is(err, errNoMatch) {
		return 0, nil
	}
	return removed, err
}

func (store *Store) Graphs(ctx context.Context) (graphs []string, err error) {
	err = store.withSession(ctx, func(session *Session) error {
		sb := store.flavor.NewSelectBuilder()
		sb.Select("n.value").Distinct()
		sb.From(sb.As(quadsTable, "q"))
		sb.Join(sb.As(nodesTable, "n"), "n.id = q.graph")
		sb.OrderBy("n.value")

		query, args := sb.Build()
		rows, err := session.Querier().Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				return err
			}
			graphs = append(graphs, name)
		}
		return rows.Err()
	})
	if graphs == nil && err == nil {
		graphs = []string{}
	}
	return graphs, err
}

// Close closes the statement cache and the database.
func (store *Store) Close() error {
	store.closeOnce.Do(func() {
		store.closeErr = errors.Join(store.cache.Close(), store.db.Close())
	})
	return store.closeErr
}
