// Package rdf provides terms, statements and codecs for rdf data.
package rdf

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/haxdai/SWBPlatform-sub000/internal/rdf/vocab"
)

// Kind is the kind of an rdf term
type Kind uint8

const (
	KindInvalid Kind = iota
	KindIRI
	KindBlank
	KindLiteral
)

func (kind Kind) String() string {
	switch kind {
	case KindIRI:
		return "iri"
	case KindBlank:
		return "blank"
	case KindLiteral:
		return "literal"
	default:
		return "invalid"
	}
}

// Term represents a single rdf term.
//
// Lang and Datatype are only meaningful for literals.
// A literal without a language and without a datatype is a plain xsd:string literal.
type Term struct {
	Kind     Kind
	Value    string
	Lang     string
	Datatype string
}

// IRI returns a new iri term
func IRI(iri string) Term {
	return Term{Kind: KindIRI, Value: iri}
}

// Blank returns a new blank node term with the given label
func Blank(label string) Term {
	return Term{Kind: KindBlank, Value: label}
}

// Literal returns a new plain literal
func Literal(value string) Term {
	return Term{Kind: KindLiteral, Value: value}
}

// LangLiteral returns a new literal with a language tag
func LangLiteral(value, lang string) Term {
	return Term{Kind: KindLiteral, Value: value, Lang: lang}
}

// TypedLiteral returns a new literal with the given datatype.
// The xsd:string datatype is normalized away.
func TypedLiteral(value, datatype string) Term {
	if datatype == vocab.String {
		datatype = ""
	}
	return Term{Kind: KindLiteral, Value: value, Datatype: datatype}
}

// Int returns a new xsd:integer literal
func Int(value int64) Term {
	return TypedLiteral(strconv.FormatInt(value, 10), vocab.Integer)
}

// Bool returns a new xsd:boolean literal
func Bool(value bool) Term {
	return TypedLiteral(strconv.FormatBool(value), vocab.Boolean)
}

// Float returns a new xsd:double literal
func Float(value float64) Term {
	return TypedLiteral(strconv.FormatFloat(value, 'g', -1, 64), vocab.Double)
}

// IsIRI checks if this term is an iri
func (term Term) IsIRI() bool { return term.Kind == KindIRI }

// IsBlank checks if this term is a blank node
func (term Term) IsBlank() bool { return term.Kind == KindBlank }

// IsLiteral checks if this term is a literal
func (term Term) IsLiteral() bool { return term.Kind == KindLiteral }

// IsResource checks if this term can be used as the subject of a statement.
func (term Term) IsResource() bool {
	return term.Kind == KindIRI || term.Kind == KindBlank
}

// Key returns a string that uniquely identifies this term.
// It is used as the key for dictionary encoding, see [ParseKey].
func (term Term) Key() string {
	switch term.Kind {
	case KindIRI:
		return "I" + term.Value
	case KindBlank:
		return "B" + term.Value
	case KindLiteral:
		return "L" + term.Lang + "\x00" + term.Datatype + "\x00" + term.Value
	default:
		return ""
	}
}

var errInvalidKey = errors.New("rdf: invalid term key")

// ParseKey parses a key created by [Term.Key].
func ParseKey(key string) (Term, error) {
	if key == "" {
		return Term{}, errInvalidKey
	}

	rest := key[1:]
	switch key[0] {
	case 'I':
		return IRI(rest), nil
	case 'B':
		return Blank(rest), nil
	case 'L':
		parts := strings.SplitN(rest, "\x00", 3)
		if len(parts) != 3 {
			return Term{}, errInvalidKey
		}
		return Term{Kind: KindLiteral, Lang: parts[0], Datatype: parts[1], Value: parts[2]}, nil
	default:
		return Term{}, errInvalidKey
	}
}

// String formats this term similar to the n-triples syntax.
func (term Term) String() string {
	switch term.Kind {
	case KindIRI:
		return "<" + term.Value + ">"
	case KindBlank:
		return "_:" + term.Value
	case KindLiteral:
		value := strconv.Quote(term.Value)
		switch {
		case term.Lang != "":
			return value + "@" + term.Lang
		case term.Datatype != "":
			return value + "^^<" + term.Datatype + ">"
		default:
			return value
		}
	default:
		return "<invalid>"
	}
}

// Statement is a single rdf statement inside a named graph.
// An empty Graph denotes the default graph.
type Statement struct {
	Subject   Term
	Predicate Term
	Object    Term
	Graph     string
}

var (
	errSubject   = errors.New("rdf: subject must be an iri or blank node")
	errPredicate = errors.New("rdf: predicate must be an iri")
	errObject    = errors.New("rdf: invalid object")
)

// Validate checks that this statement is well-formed.
func (stmt Statement) Validate() error {
	if !stmt.Subject.IsResource() || stmt.Subject.Value == "" {
		return errSubject
	}
	if !stmt.Predicate.IsIRI() || stmt.Predicate.Value == "" {
		return errPredicate
	}
	if stmt.Object.Kind == KindInvalid {
		return errObject
	}
	return nil
}

func (stmt Statement) String() string {
	if stmt.Graph == "" {
		return fmt.Sprintf("%s %s %s .", stmt.Subject, stmt.Predicate, stmt.Object)
	}
	return fmt.Sprintf("%s %s %s <%s> .", stmt.Subject, stmt.Predicate, stmt.Object, stmt.Graph)
}

// Pattern matches statements.
// A nil term matches any term; AnyGraph matches statements in every graph.
type Pattern struct {
	Subject   *Term
	Predicate *Term
	Object    *Term
	Graph     string
}

// AnyGraph is a graph name that makes a pattern match every graph.
const AnyGraph = "*"

// Ref returns a pointer to a copy of term, for use in patterns.
func Ref(term Term) *Term {
	return &term
}

// Matches checks if stmt is matched by this pattern.
func (pattern Pattern) Matches(stmt Statement) bool {
	if pattern.Graph != AnyGraph && pattern.Graph != stmt.Graph {
		return false
	}
	if pattern.Subject != nil && *pattern.Subject != stmt.Subject {
		return false
	}
	if pattern.Predicate != nil && *pattern.Predicate != stmt.Predicate {
		return false
	}
	if pattern.Object != nil && *pattern.Object != stmt.Object {
		return false
	}
	return true
}

func (pattern Pattern) String() string {
	term := func(t *Term) string {
		if t == nil {
			return "?"
		}
		return t.String()
	}
	return fmt.Sprintf("%s %s %s @%q", term(pattern.Subject), term(pattern.Predicate), term(pattern.Object), pattern.Graph)
}
