package semantic_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/cayleygraph/quad/voc"
	"github.com/haxdai/SWBPlatform-sub000/internal/rdf"
	"github.com/haxdai/SWBPlatform-sub000/internal/rdf/vocab"
	"github.com/haxdai/SWBPlatform-sub000/internal/semantic"
	"github.com/haxdai/SWBPlatform-sub000/internal/triplestore/memory"
	"github.com/stretchr/testify/require"
)

const (
	ex        = "http://example.org/onto#"
	dataGraph = "http://example.org/data"
	dataNS    = "http://example.org/data/"
)

func init() {
	voc.RegisterPrefix("ex:", ex)
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// triple builds a statement from prefixed names
func triple(s, p string, o rdf.Term) rdf.Statement {
	return rdf.Statement{Subject: rdf.IRI(vocab.Expand(s)), Predicate: rdf.IRI(vocab.Expand(p)), Object: o}
}

func iri(name string) rdf.Term {
	return rdf.IRI(vocab.Expand(name))
}

// ontology returns the statements of a small test ontology
func ontology() []rdf.Statement {
	return []rdf.Statement{
		triple("ex:Resource", "rdf:type", iri("owl:Class")),
		triple("ex:Resource", "rdfs:label", rdf.LangLiteral("Resource", "en")),

		triple("ex:Person", "rdf:type", iri("owl:Class")),
		triple("ex:Person", "rdfs:subClassOf", iri("ex:Resource")),
		triple("ex:Person", "rdfs:label", rdf.LangLiteral("Person", "en")),
		triple("ex:Person", "rdfs:label", rdf.LangLiteral("Persona", "es")),

		triple("ex:Employee", "rdf:type", iri("owl:Class")),
		triple("ex:Employee", "rdfs:subClassOf", iri("ex:Person")),

		triple("ex:Org", "rdf:type", iri("rdfs:Class")),
		triple("ex:Org", "rdfs:subClassOf", iri("ex:Resource")),

		// a cycle
		triple("ex:A", "rdfs:subClassOf", iri("ex:B")),
		triple("ex:B", "rdfs:subClassOf", iri("ex:A")),

		triple("ex:name", "rdf:type", iri("owl:DatatypeProperty")),
		triple("ex:name", "rdfs:domain", iri("ex:Resource")),
		triple("ex:name", "rdfs:label", rdf.Literal("name")),

		triple("ex:age", "rdf:type", iri("owl:DatatypeProperty")),
		triple("ex:age", "rdf:type", iri("owl:FunctionalProperty")),
		triple("ex:age", "rdfs:domain", iri("ex:Person")),
		triple("ex:age", "rdfs:range", iri("xsd:integer")),

		triple("ex:worksFor", "rdf:type", iri("owl:ObjectProperty")),
		triple("ex:worksFor", "rdfs:domain", iri("ex:Employee")),
		triple("ex:worksFor", "rdfs:range", iri("ex:Org")),
		triple("ex:worksFor", "owl:inverseOf", iri("ex:employs")),

		triple("ex:employs", "rdfs:domain", iri("ex:Org")),
		triple("ex:employs", "rdfs:range", iri("ex:Employee")),
	}
}

func newOntology(t *testing.T) *semantic.Ontology {
	t.Helper()

	store := memory.New()
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.Add(context.Background(), ontology()...))

	onto := semantic.NewOntology()
	require.NoError(t, onto.Load(context.Background(), store, ""))
	return onto
}

// newModel creates a new model backed by a memory store
func newModel(t *testing.T, opts semantic.Options) *semantic.Model {
	t.Helper()

	if opts.Ontology == nil {
		opts.Ontology = newOntology(t)
	}
	if opts.Logger == nil {
		opts.Logger = discard
	}
	opts.Graph = dataGraph

	store := memory.New()
	model, err := semantic.NewModel("data", dataNS, store, opts)
	require.NoError(t, err)

	t.Cleanup(func() {
		model.Close()
		store.Close()
	})
	return model
}
