// Package triplestore defines the interface of pluggable rdf statement stores.
package triplestore

import (
	"context"
	"errors"
	"io"
	"slices"
	"strings"

	"github.com/haxdai/SWBPlatform-sub000/internal/rdf"
)

// cspell:words triplestore

// Store holds rdf statements grouped into named graphs.
//
// Each statement is contained at most once per graph; adding an existing statement has no effect.
// Stores are safe for concurrent use.
type Store interface {
	io.Closer

	// Add adds the given statements.
	// Invalid statements cause an error, and none of the statements are added.
	Add(ctx context.Context, stmts ...rdf.Statement) error

	// Remove removes all statements matched by pattern and returns their count.
	Remove(ctx context.Context, pattern rdf.Pattern) (int64, error)

	// Match calls f for every statement matched by pattern.
	// If f returns a non-nil error, iteration stops and the error is returned.
	//
	// f may call other methods of the store.
	Match(ctx context.Context, pattern rdf.Pattern, f func(rdf.Statement) error) error

	// Count returns the number of statements matched by pattern.
	Count(ctx context.Context, pattern rdf.Pattern) (int64, error)

	// Graphs returns the names of all non-empty graphs in sorted order.
	Graphs(ctx context.Context) ([]string, error)
}

var (
	// ErrClosed is returned when a store is used after it has been closed
	ErrClosed = errors.New("triplestore: store closed")

	// ErrReadOnly is returned by stores that do not support writing
	ErrReadOnly = errors.New("triplestore: store is read-only")
)

// Collect returns all statements matched by pattern.
func Collect(ctx context.Context, store Store, pattern rdf.Pattern) ([]rdf.Statement, error) {
	var stmts []rdf.Statement
	err := store.Match(ctx, pattern, func(stmt rdf.Statement) error {
		stmts = append(stmts, stmt)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stmts, nil
}

// errStop stops iteration in First
var errStop = errors.New("stop")

// First returns the first statement matched by pattern.
func First(ctx context.Context, store Store, pattern rdf.Pattern) (stmt rdf.Statement, ok bool, err error) {
	err = store.Match(ctx, pattern, func(s rdf.Statement) error {
		stmt, ok = s, true
		return errStop
	})
	if err == errStop {
		err = nil
	}
	return
}

// Validate validates all statements.
func Validate(stmts []rdf.Statement) error {
	for _, stmt := range stmts {
		if err := stmt.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Compare orders statements by graph, subject, predicate and object keys.
// Stores that have no natural order use it to return statements deterministically.
func Compare(a, b rdf.Statement) int {
	if c := strings.Compare(a.Graph, b.Graph); c != 0 {
		return c
	}
	if c := strings.Compare(a.Subject.Key(), b.Subject.Key()); c != 0 {
		return c
	}
	if c := strings.Compare(a.Predicate.Key(), b.Predicate.Key()); c != 0 {
		return c
	}
	return strings.Compare(a.Object.Key(), b.Object.Key())
}

// Sort sorts statements using [Compare].
func Sort(stmts []rdf.Statement) {
	slices.SortFunc(stmts, Compare)
}
