package rdf

import (
	"bytes"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/haxdai/SWBPlatform-sub000/internal/rdf/vocab"
)

func ExampleTerm_Key() {
	for _, term := range []Term{
		IRI("http://example.org/a"),
		Blank("b0"),
		LangLiteral("hallo", "de"),
		Int(42),
	} {
		parsed, err := ParseKey(term.Key())
		fmt.Println(parsed, parsed == term, err)
	}

	// Output: <http://example.org/a> true <nil>
	// _:b0 true <nil>
	// "hallo"@de true <nil>
	// "42"^^<http://www.w3.org/2001/XMLSchema#integer> true <nil>
}

func TestTypedLiteral_String(t *testing.T) {
	if got := TypedLiteral("x", vocab.String); got != Literal("x") {
		t.Errorf("TypedLiteral(xsd:string) = %#v, want plain literal", got)
	}
}

func TestPattern_Matches(t *testing.T) {
	stmt := Statement{
		Subject:   IRI("s"),
		Predicate: IRI("p"),
		Object:    Literal("o"),
		Graph:     "g",
	}

	tests := []struct {
		pattern Pattern
		want    bool
	}{
		{Pattern{Graph: AnyGraph}, true},
		{Pattern{Graph: "g"}, true},
		{Pattern{Graph: ""}, false},
		{Pattern{Subject: Ref(IRI("s")), Graph: "g"}, true},
		{Pattern{Subject: Ref(IRI("x")), Graph: "g"}, false},
		{Pattern{Predicate: Ref(IRI("p")), Object: Ref(Literal("o")), Graph: AnyGraph}, true},
		{Pattern{Object: Ref(IRI("o")), Graph: AnyGraph}, false},
	}
	for _, tt := range tests {
		if got := tt.pattern.Matches(stmt); got != tt.want {
			t.Errorf("%s.Matches() = %v, want %v", tt.pattern, got, tt.want)
		}
	}
}

const testQuads = `<http://example.org/a> <http://example.org/name> "Alice"@en <http://example.org/g1> .
<http://example.org/a> <http://example.org/knows> <http://example.org/b> .
_:x <http://example.org/age> "42"^^<http://www.w3.org/2001/XMLSchema#integer> <http://example.org/g1> .
`

func TestDecode_NQuads(t *testing.T) {
	var got []Statement
	err := Decode(strings.NewReader(testQuads), NQuads, "default", func(stmt Statement) error {
		got = append(got, stmt)
		return nil
	})
	if err != nil {
		t.Fatalf("Decode() returned error %s", err)
	}

	want := []Statement{
		{IRI("http://example.org/a"), IRI("http://example.org/name"), LangLiteral("Alice", "en"), "http://example.org/g1"},
		{IRI("http://example.org/a"), IRI("http://example.org/knows"), IRI("http://example.org/b"), "default"},
		{Blank("x"), IRI("http://example.org/age"), Int(42), "http://example.org/g1"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Decode() = %v, want %v", got, want)
	}
}

func TestEncodeDecode_Turtle(t *testing.T) {
	stmts := []Statement{
		{Subject: IRI("http://example.org/a"), Predicate: IRI(vocab.Label), Object: LangLiteral("Alice", "en")},
		{Subject: IRI("http://example.org/a"), Predicate: IRI(vocab.Type), Object: IRI("http://example.org/Person")},
		{Subject: IRI("http://example.org/a"), Predicate: IRI("http://example.org/age"), Object: Int(42)},
		{Subject: IRI("http://example.org/a"), Predicate: IRI("http://example.org/nick"), Object: Literal("al")},
	}

	for _, format := range []Format{Turtle, NTriples, NQuads} {
		var buffer bytes.Buffer
		if err := Encode(&buffer, format, stmts); err != nil {
			t.Fatalf("Encode(%s) returned error %s", format, err)
		}

		var got []Statement
		if err := Decode(&buffer, format, "", func(stmt Statement) error {
			got = append(got, stmt)
			return nil
		}); err != nil {
			t.Fatalf("Decode(%s) returned error %s", format, err)
		}

		if len(got) != len(stmts) {
			t.Fatalf("%s: got %d statements, want %d", format, len(got), len(stmts))
		}
		for _, want := range stmts {
			found := false
			for _, stmt := range got {
				if stmt == want {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("%s: statement %s missing after round trip", format, want)
			}
		}
	}
}

func TestFormatFromPath(t *testing.T) {
	for path, want := range map[string]Format{
		"data.nq":      NQuads,
		"data.NT":      NTriples,
		"onto/all.ttl": Turtle,
	} {
		got, err := FormatFromPath(path)
		if err != nil || got != want {
			t.Errorf("FormatFromPath(%q) = %q, %v, want %q", path, got, err, want)
		}
	}
	if _, err := FormatFromPath("data.json"); err == nil {
		t.Error("FormatFromPath(data.json) did not fail")
	}
}
