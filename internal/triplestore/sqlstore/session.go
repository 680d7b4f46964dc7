package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
)

// StatementCache hands out sessions on a database.
//
// Each session pins a single connection and caches the statements prepared on it.
// At most MaxSessions sessions are in use at any time; at most MaxIdle idle sessions are kept.
type StatementCache struct {
	db *sql.DB

	slots chan struct{} // one entry per session in use

	m         sync.Mutex
	idle      []*Session
	maxIdle   int
	observers []func(*Session)
	closed    bool

	stats CacheStats
}

// CacheStats holds statistics of a statement cache
type CacheStats struct {
	Sessions int64 // sessions opened
	Prepared int64 // statements prepared
	Reused   int64 // statements served from a cache
}

// ErrSessionReleased is returned when a session is used after being released.
var ErrSessionReleased = errors.New("sqlstore: session released")

// NewStatementCache creates a new statement cache.
// maxSessions must be positive; maxIdle values larger than maxSessions are capped.
func NewStatementCache(db *sql.DB, maxSessions, maxIdle int) *StatementCache {
	if maxSessions <= 0 {
		maxSessions = 1
	}
	if maxIdle > maxSessions {
		maxIdle = maxSessions
	}
	return &StatementCache{
		db:      db,
		slots:   make(chan struct{}, maxSessions),
		maxIdle: maxIdle,
	}
}

// OnRelease registers an observer that is called whenever a session is released.
// Observers are called before the session is returned to the cache.
func (sc *StatementCache) OnRelease(observer func(*Session)) {
	sc.m.Lock()
	defer sc.m.Unlock()

	sc.observers = append(sc.observers, observer)
}

// Stats returns statistics about this cache.
func (sc *StatementCache) Stats() CacheStats {
	sc.m.Lock()
	defer sc.m.Unlock()

	return sc.stats
}

// Acquire returns a session for exclusive use by the caller.
// It blocks until a session is available or ctx is done.
// The session must be returned using [Session.Release].
func (sc *StatementCache) Acquire(ctx context.Context) (*Session, error) {
	select {
	case sc.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	session, err := sc.take(ctx)
	if err != nil {
		<-sc.slots
		return nil, err
	}
	return session, nil
}

func (sc *StatementCache) take(ctx context.Context) (*Session, error) {
	sc.m.Lock()
	if sc.closed {
		sc.m.Unlock()
		return nil, errClosed
	}
	if n := len(sc.idle); n > 0 {
		session := sc.idle[n-1]
		sc.idle = sc.idle[:n-1]
		sc.m.Unlock()

		session.released = false
		return session, nil
	}
	sc.m.Unlock()

	conn, err := sc.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection: %w", err)
	}

	sc.m.Lock()
	sc.stats.Sessions++
	sc.m.Unlock()

	return &Session{
		cache: sc,
		conn:  conn,
		stmts: make(map[string]*sql.Stmt),
	}, nil
}

func (sc *StatementCache) release(session *Session) {
	sc.m.Lock()
	observers := sc.observers
	sc.m.Unlock()

	for _, observer := range observers {
		observer(session)
	}

	sc.m.Lock()
	keep := !sc.closed && len(sc.idle) < sc.maxIdle && !session.broken
	if keep {
		sc.idle = append(sc.idle, session)
	}
	sc.m.Unlock()

	if !keep {
		session.close()
	}
	<-sc.slots
}

// Close closes all idle sessions.
// Sessions in use are closed when they are released.
func (sc *StatementCache) Close() error {
	sc.m.Lock()
	idle := sc.idle
	sc.idle = nil
	sc.closed = true
	sc.m.Unlock()

	var errs []error
	for _, session := range idle {
		errs = append(errs, session.close())
	}
	return errors.Join(errs...)
}

// Session is a connection with its own prepared statement cache.
// A session may not be used concurrently.
type Session struct {
	cache    *StatementCache
	conn     *sql.Conn
	stmts    map[string]*sql.Stmt
	released bool
	broken   bool // the connection failed and should not be reused
}

// Prepared returns the number of statements prepared on this session.
func (session *Session) Prepared() int {
	return len(session.stmts)
}

// Prepare returns a prepared statement for query, reusing an earlier one if possible.
func (session *Session) Prepare(ctx context.Context, query string) (*sql.Stmt, error) {
	if session.released {
		return nil, ErrSessionReleased
	}
	if stmt, ok := session.stmts[query]; ok {
		session.cache.count(func(stats *CacheStats) { stats.Reused++ })
		return stmt, nil
	}

	stmt, err := session.conn.PrepareContext(ctx, query)
	if err != nil {
		session.markBroken(err)
		return nil, fmt.Errorf("failed to prepare %q: %w", query, err)
	}
	session.stmts[query] = stmt
	session.cache.count(func(stats *CacheStats) { stats.Prepared++ })
	return stmt, nil
}

func (session *Session) markBroken(err error) {
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		session.broken = true
	}
}

func (sc *StatementCache) count(update func(stats *CacheStats)) {
	sc.m.Lock()
	defer sc.m.Unlock()

	update(&sc.stats)
}

// Querier runs prepared statements either directly on a session, or inside a transaction.
type Querier struct {
	session *Session

	tx      *sql.Tx
	txStmts map[string]*sql.Stmt // statements prepared within tx
}

func (q *Querier) stmt(ctx context.Context, query string) (*sql.Stmt, error) {
	if q.tx == nil {
		return q.session.Prepare(ctx, query)
	}

	// statements prepared on the connection cannot be shared with a transaction,
	// so transactions keep their own cache
	if stmt, ok := q.txStmts[query]; ok {
		q.session.cache.count(func(stats *CacheStats) { stats.Reused++ })
		return stmt, nil
	}
	stmt, err := q.tx.PrepareContext(ctx, query)
	if err != nil {
		q.session.markBroken(err)
		return nil, fmt.Errorf("failed to prepare %q: %w", query, err)
	}
	q.txStmts[query] = stmt
	q.session.cache.count(func(stats *CacheStats) { stats.Prepared++ })
	return stmt, nil
}

// Exec executes query with the given arguments.
func (q *Querier) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	stmt, err := q.stmt(ctx, query)
	if err != nil {
		return nil, err
	}
	result, err := stmt.ExecContext(ctx, args...)
	if err != nil {
		q.session.markBroken(err)
	}
	return result, err
}

// Query runs query with the given arguments.
func (q *Querier) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	stmt, err := q.stmt(ctx, query)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx, args...)
	if err != nil {
		q.session.markBroken(err)
	}
	return rows, err
}

// Querier returns a querier running statements outside of any transaction.
func (session *Session) Querier() *Querier {
	return &Querier{session: session}
}

// Tx runs f inside a transaction on this session.
// The transaction is committed if f returns nil, and rolled back otherwise.
func (session *Session) Tx(ctx context.Context, f func(q *Querier) error) (err error) {
	if session.released {
		return ErrSessionReleased
	}

	tx, err := session.conn.BeginTx(ctx, nil)
	if err != nil {
		session.markBroken(err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			err = errors.Join(err, ignoreDone(tx.Rollback()))
		}
	}()

	if err := f(&Querier{session: session, tx: tx, txStmts: make(map[string]*sql.Stmt)}); err != nil {
		return err
	}
	return tx.Commit()
}

func ignoreDone(err error) error {
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

// Release returns this session to the cache.
// Releasing a session more than once has no effect.
func (session *Session) Release() {
	if session.released {
		return
	}
	session.released = true
	session.cache.release(session)
}

func (session *Session) close() error {
	var errs []error
	for query, stmt := range session.stmts {
		errs = append(errs, stmt.Close())
		delete(session.stmts, query)
	}
	errs = append(errs, session.conn.Close())
	return errors.Join(errs...)
}
