package rdf

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	knakk "github.com/anglo-korean/rdf"
	"github.com/cayleygraph/quad"
	"github.com/cayleygraph/quad/nquads"
	"github.com/haxdai/SWBPlatform-sub000/internal/rdf/vocab"
)

// cspell:words nquads ntriples knakk

// Format is a serialization format for statements
type Format string

const (
	NQuads   Format = "nquads"
	NTriples Format = "ntriples"
	Turtle   Format = "turtle"
)

// ErrUnknownFormat is returned for unsupported formats
var ErrUnknownFormat = errors.New("rdf: unknown format")

// FormatFromPath guesses a format from the extension of path.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".nq", ".nquads":
		return NQuads, nil
	case ".nt", ".ntriples":
		return NTriples, nil
	case ".ttl", ".turtle":
		return Turtle, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, path)
	}
}

// ParseFormat parses the name of a format.
func ParseFormat(name string) (Format, error) {
	switch format := Format(strings.ToLower(name)); format {
	case NQuads, NTriples, Turtle:
		return format, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// Decode reads statements in the given format from r and calls f for each of them.
// Statements without an explicit graph are placed into graph.
//
// Statements that can not be represented (e.g. literal subjects) are skipped.
func Decode(r io.Reader, format Format, graph string, f func(Statement) error) error {
	switch format {
	case NQuads:
		return decodeQuads(r, graph, f)
	case NTriples:
		return decodeTriples(r, knakk.NTriples, graph, f)
	case Turtle:
		return decodeTriples(r, knakk.Turtle, graph, f)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func decodeQuads(r io.Reader, graph string, f func(Statement) error) error {
	reader := nquads.NewReader(r, true)
	defer reader.Close()

	for {
		value, err := reader.ReadQuad()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read quad: %w", err)
		}

		stmt, ok := FromQuad(value)
		if !ok {
			continue
		}
		if stmt.Graph == "" {
			stmt.Graph = graph
		}

		if err := f(stmt); err != nil {
			return err
		}
	}
}

func decodeTriples(r io.Reader, format knakk.Format, graph string, f func(Statement) error) error {
	decoder := knakk.NewTripleDecoder(r, format)
	for {
		triple, err := decoder.Decode()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read triple: %w", err)
		}

		stmt, ok := FromTriple(triple)
		if !ok {
			continue
		}
		stmt.Graph = graph

		if err := f(stmt); err != nil {
			return err
		}
	}
}

// Encoder writes statements to an underlying writer.
type Encoder interface {
	Encode(stmt Statement) error

	// Close flushes any buffered output.
	// It does not close the underlying writer.
	Close() error
}

// NewEncoder creates a new encoder for the given format.
// Triple formats discard the graph of each statement.
func NewEncoder(w io.Writer, format Format) (Encoder, error) {
	switch format {
	case NQuads:
		return &quadEncoder{writer: nquads.NewWriter(w)}, nil
	case NTriples:
		return &tripleEncoder{encoder: knakk.NewTripleEncoder(w, knakk.NTriples)}, nil
	case Turtle:
		encoder := knakk.NewTripleEncoder(w, knakk.Turtle)
		encoder.Namespaces = map[string]string{
			vocab.RDF:  "rdf",
			vocab.RDFS: "rdfs",
			vocab.OWL:  "owl",
			vocab.XSD:  "xsd",
		}
		return &tripleEncoder{encoder: encoder}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// Encode writes all statements to w in the given format.
func Encode(w io.Writer, format Format, stmts []Statement) error {
	encoder, err := NewEncoder(w, format)
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if err := encoder.Encode(stmt); err != nil {
			encoder.Close()
			return err
		}
	}
	return encoder.Close()
}

type quadEncoder struct {
	writer *nquads.Writer
}

func (qe *quadEncoder) Encode(stmt Statement) error {
	return qe.writer.WriteQuad(ToQuad(stmt))
}

func (qe *quadEncoder) Close() error {
	return qe.writer.Close()
}

type tripleEncoder struct {
	encoder *knakk.TripleEncoder
}

func (te *tripleEncoder) Encode(stmt Statement) error {
	triple, err := ToTriple(stmt)
	if err != nil {
		return err
	}
	return te.encoder.Encode(triple)
}

func (te *tripleEncoder) Close() error {
	return te.encoder.Close()
}

// FromValue converts a quad value into a term.
func FromValue(value quad.Value) (Term, bool) {
	switch datum := value.(type) {
	case nil:
		return Term{}, false
	case quad.IRI:
		return IRI(string(datum)), true
	case quad.BNode:
		return Blank(string(datum)), true
	case quad.String:
		return Literal(string(datum)), true
	case quad.LangString:
		return LangLiteral(string(datum.Value), datum.Lang), true
	case quad.TypedString:
		return TypedLiteral(string(datum.Value), string(datum.Type)), true
	default:
		return Literal(fmt.Sprint(value.Native())), true
	}
}

// ToValue converts a term into a quad value.
func ToValue(term Term) quad.Value {
	switch term.Kind {
	case KindIRI:
		return quad.IRI(term.Value)
	case KindBlank:
		return quad.BNode(term.Value)
	case KindLiteral:
		switch {
		case term.Lang != "":
			return quad.LangString{Value: quad.String(term.Value), Lang: term.Lang}
		case term.Datatype != "":
			return quad.TypedString{Value: quad.String(term.Value), Type: quad.IRI(term.Datatype)}
		default:
			return quad.String(term.Value)
		}
	default:
		return nil
	}
}

// FromQuad converts a quad into a statement.
// Quads with a subject or predicate that can not be represented are rejected.
func FromQuad(q quad.Quad) (stmt Statement, ok bool) {
	if stmt.Subject, ok = FromValue(q.Subject); !ok || !stmt.Subject.IsResource() {
		return stmt, false
	}
	if stmt.Predicate, ok = FromValue(q.Predicate); !ok || !stmt.Predicate.IsIRI() {
		return stmt, false
	}
	if stmt.Object, ok = FromValue(q.Object); !ok {
		return stmt, false
	}
	if label, isIRI := q.Label.(quad.IRI); isIRI {
		stmt.Graph = string(label)
	}
	return stmt, true
}

// ToQuad converts a statement into a quad.
func ToQuad(stmt Statement) quad.Quad {
	q := quad.Quad{
		Subject:   ToValue(stmt.Subject),
		Predicate: ToValue(stmt.Predicate),
		Object:    ToValue(stmt.Object),
	}
	if stmt.Graph != "" {
		q.Label = quad.IRI(stmt.Graph)
	}
	return q
}

// FromTriple converts a parsed triple into a statement in the default graph.
func FromTriple(triple knakk.Triple) (stmt Statement, ok bool) {
	if stmt.Subject, ok = fromKnakk(triple.Subj); !ok {
		return stmt, false
	}
	if stmt.Predicate, ok = fromKnakk(triple.Pred); !ok || !stmt.Predicate.IsIRI() {
		return stmt, false
	}
	if stmt.Object, ok = fromKnakk(triple.Obj); !ok {
		return stmt, false
	}
	return stmt, true
}

func fromKnakk(term knakk.Term) (Term, bool) {
	switch datum := term.(type) {
	case knakk.IRI:
		return IRI(datum.String()), true
	case knakk.Blank:
		return Blank(strings.TrimPrefix(datum.String(), "_:")), true
	case knakk.Literal:
		if lang := datum.Lang(); lang != "" {
			return LangLiteral(datum.String(), lang), true
		}
		return TypedLiteral(datum.String(), datum.DataType.String()), true
	default:
		return Term{}, false
	}
}

// ToTriple converts a statement into a triple, discarding the graph.
func ToTriple(stmt Statement) (triple knakk.Triple, err error) {
	switch stmt.Subject.Kind {
	case KindIRI:
		triple.Subj, err = knakk.NewIRI(stmt.Subject.Value)
	case KindBlank:
		triple.Subj, err = knakk.NewBlank(stmt.Subject.Value)
	default:
		err = errSubject
	}
	if err != nil {
		return knakk.Triple{}, err
	}

	if !stmt.Predicate.IsIRI() {
		return knakk.Triple{}, errPredicate
	}
	if triple.Pred, err = knakk.NewIRI(stmt.Predicate.Value); err != nil {
		return knakk.Triple{}, err
	}

	object := stmt.Object
	switch object.Kind {
	case KindIRI:
		triple.Obj, err = knakk.NewIRI(object.Value)
	case KindBlank:
		triple.Obj, err = knakk.NewBlank(object.Value)
	case KindLiteral:
		switch {
		case object.Lang != "":
			triple.Obj, err = knakk.NewLangLiteral(object.Value, object.Lang)
		case object.Datatype != "":
			var datatype knakk.IRI
			if datatype, err = knakk.NewIRI(object.Datatype); err == nil {
				triple.Obj = knakk.NewTypedLiteral(object.Value, datatype)
			}
		default:
			triple.Obj, err = knakk.NewLiteral(object.Value)
		}
	default:
		err = errObject
	}
	if err != nil {
		return knakk.Triple{}, err
	}
	return triple, nil
}

// ValidIRI checks if iri is acceptable as an iri.
func ValidIRI(iri string) bool {
	_, err := knakk.NewIRI(iri)
	return err == nil
}
