// Package storetest provides a conformance test shared by all triplestore backends.
package storetest

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"testing"

	"github.com/haxdai/SWBPlatform-sub000/internal/rdf"
	"github.com/haxdai/SWBPlatform-sub000/internal/rdf/vocab"
	"github.com/haxdai/SWBPlatform-sub000/internal/triplestore"
)

// cspell:words storetest

// iri returns an example iri from an int
func iri(i int) rdf.Term {
	return rdf.IRI("http://example.org/" + strconv.Itoa(i))
}

var (
	name  = rdf.IRI("http://example.org/name")
	knows = rdf.IRI("http://example.org/knows")
	typ   = rdf.IRI(vocab.Type)
	kind  = rdf.IRI("http://example.org/Person")
)

// Fixture returns the statements used by Run.
//
// For every i < n, subject i has a name (in two languages) and a type, and knows i+1.
// Odd subjects live in graph "g1", even ones in graph "g2".
func Fixture(n int) []rdf.Statement {
	stmts := make([]rdf.Statement, 0, 4*n)
	for i := 0; i < n; i++ {
		graph := "g2"
		if i%2 == 1 {
			graph = "g1"
		}
		stmts = append(stmts,
			rdf.Statement{Subject: iri(i), Predicate: name, Object: rdf.LangLiteral(fmt.Sprintf("name %d", i), "en"), Graph: graph},
			rdf.Statement{Subject: iri(i), Predicate: name, Object: rdf.LangLiteral(fmt.Sprintf("Name %d", i), "de"), Graph: graph},
			rdf.Statement{Subject: iri(i), Predicate: typ, Object: kind, Graph: graph},
			rdf.Statement{Subject: iri(i), Predicate: knows, Object: iri(i + 1), Graph: graph},
		)
	}
	return stmts
}

// Run runs the conformance tests against stores created by open.
// Every call to open must return a new, empty store.
func Run(t *testing.T, open func(t *testing.T) triplestore.Store) {
	t.Helper()

	const N = 50

	fill := func(t *testing.T) triplestore.Store {
		store := open(t)
		t.Cleanup(func() { store.Close() })

		if err := store.Add(context.Background(), Fixture(N)...); err != nil {
			t.Fatalf("Add() returned error %s", err)
		}
		return store
	}

	count := func(t *testing.T, store triplestore.Store, pattern rdf.Pattern, want int64) {
		t.Helper()

		got, err := store.Count(context.Background(), pattern)
		if err != nil {
			t.Fatalf("Count(%s) returned error %s", pattern, err)
		}
		if got != want {
			t.Errorf("Count(%s) = %d, want %d", pattern, got, want)
		}

		stmts, err := triplestore.Collect(context.Background(), store, pattern)
		if err != nil {
			t.Fatalf("Match(%s) returned error %s", pattern, err)
		}
		if int64(len(stmts)) != want {
			t.Errorf("Match(%s) returned %d statements, want %d", pattern, len(stmts), want)
		}
		for _, stmt := range stmts {
			if !pattern.Matches(stmt) {
				t.Errorf("Match(%s) returned non-matching statement %s", pattern, stmt)
			}
		}
	}

	t.Run("Count", func(t *testing.T) {
		store := fill(t)

		count(t, store, rdf.Pattern{Graph: rdf.AnyGraph}, 4*N)
		count(t, store, rdf.Pattern{Graph: "g1"}, 2*N)
		count(t, store, rdf.Pattern{Graph: ""}, 0)
		count(t, store, rdf.Pattern{Subject: rdf.Ref(iri(3)), Graph: rdf.AnyGraph}, 4)
		count(t, store, rdf.Pattern{Subject: rdf.Ref(iri(3)), Graph: "g2"}, 0)
		count(t, store, rdf.Pattern{Subject: rdf.Ref(iri(3)), Predicate: rdf.Ref(name), Graph: "g1"}, 2)
		count(t, store, rdf.Pattern{Predicate: rdf.Ref(typ), Object: rdf.Ref(kind), Graph: rdf.AnyGraph}, N)
		count(t, store, rdf.Pattern{Object: rdf.Ref(iri(7)), Graph: rdf.AnyGraph}, 1)
		count(t, store, rdf.Pattern{Subject: rdf.Ref(iri(6)), Object: rdf.Ref(iri(7)), Graph: rdf.AnyGraph}, 1)
		count(t, store, rdf.Pattern{Object: rdf.Ref(rdf.LangLiteral("name 4", "en")), Graph: rdf.AnyGraph}, 1)
		count(t, store, rdf.Pattern{Object: rdf.Ref(rdf.Literal("name 4")), Graph: rdf.AnyGraph}, 0)
		count(t, store, rdf.Pattern{Subject: rdf.Ref(iri(-1)), Graph: rdf.AnyGraph}, 0)
	})

	t.Run("Idempotent", func(t *testing.T) {
		store := fill(t)

		if err := store.Add(context.Background(), Fixture(N)...); err != nil {
			t.Fatalf("Add() returned error %s", err)
		}
		count(t, store, rdf.Pattern{Graph: rdf.AnyGraph}, 4*N)
	})

	t.Run("Roundtrip", func(t *testing.T) {
		store := fill(t)

		got, err := triplestore.Collect(context.Background(), store, rdf.Pattern{Subject: rdf.Ref(iri(5)), Graph: rdf.AnyGraph})
		if err != nil {
			t.Fatal(err)
		}
		triplestore.Sort(got)

		want := append([]rdf.Statement(nil), Fixture(N)[4*5:4*6]...)
		triplestore.Sort(want)

		if !reflect.DeepEqual(got, want) {
			t.Errorf("Match() = %v, want %v", got, want)
		}
	})

	t.Run("Remove", func(t *testing.T) {
		store := fill(t)

		removed, err := store.Remove(context.Background(), rdf.Pattern{Predicate: rdf.Ref(name), Graph: "g1"})
		if err != nil {
			t.Fatal(err)
		}
		if removed != N {
			t.Errorf("Remove() = %d, want %d", removed, N)
		}
		count(t, store, rdf.Pattern{Graph: rdf.AnyGraph}, 3*N)
		count(t, store, rdf.Pattern{Predicate: rdf.Ref(name), Graph: rdf.AnyGraph}, N)

		// removing again does nothing
		removed, err = store.Remove(context.Background(), rdf.Pattern{Predicate: rdf.Ref(name), Graph: "g1"})
		if err != nil || removed != 0 {
			t.Errorf("Remove() = %d, %v, want 0, nil", removed, err)
		}
	})

	t.Run("Graphs", func(t *testing.T) {
		store := fill(t)

		graphs, err := store.Graphs(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if want := []string{"g1", "g2"}; !reflect.DeepEqual(graphs, want) {
			t.Errorf("Graphs() = %v, want %v", graphs, want)
		}

		if _, err := store.Remove(context.Background(), rdf.Pattern{Graph: "g1"}); err != nil {
			t.Fatal(err)
		}

		graphs, err = store.Graphs(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if want := []string{"g2"}; !reflect.DeepEqual(graphs, want) {
			t.Errorf("Graphs() after remove = %v, want %v", graphs, want)
		}
	})

	t.Run("MatchMayWrite", func(t *testing.T) {
		store := fill(t)

		// copy all names into the default graph from within Match
		err := store.Match(context.Background(), rdf.Pattern{Predicate: rdf.Ref(name), Graph: "g2"}, func(stmt rdf.Statement) error {
			stmt.Graph = ""
			return store.Add(context.Background(), stmt)
		})
		if err != nil {
			t.Fatal(err)
		}
		count(t, store, rdf.Pattern{Graph: ""}, N)
	})

	t.Run("Invalid", func(t *testing.T) {
		store := open(t)
		defer store.Close()

		err := store.Add(context.Background(),
			rdf.Statement{Subject: iri(1), Predicate: name, Object: rdf.Literal("ok")},
			rdf.Statement{Subject: rdf.Literal("bad"), Predicate: name, Object: rdf.Literal("bad")},
		)
		if err == nil {
			t.Error("Add() of literal subject did not fail")
		}
		count(t, store, rdf.Pattern{Graph: rdf.AnyGraph}, 0)
	})
}
