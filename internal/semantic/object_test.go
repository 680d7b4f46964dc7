package semantic_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/haxdai/SWBPlatform-sub000/internal/rdf"
	"github.com/haxdai/SWBPlatform-sub000/internal/semantic"
	"github.com/haxdai/SWBPlatform-sub000/internal/triplestore"
	"github.com/haxdai/SWBPlatform-sub000/internal/triplestore/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObject_TypedValues(t *testing.T) {
	ctx := context.Background()
	model := newModel(t, semantic.Options{})

	alice, err := model.NewObject(ctx, "ex:Person", "alice")
	require.NoError(t, err)

	birthday := time.Date(1990, 4, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, alice.SetString(ctx, "ex:name", "Alice"))
	require.NoError(t, alice.SetInt(ctx, "ex:age", 34))
	require.NoError(t, alice.SetFloat(ctx, "ex:height", 1.72))
	require.NoError(t, alice.SetBool(ctx, "ex:active", true))
	require.NoError(t, alice.SetTime(ctx, "ex:birthday", birthday))

	name, err := alice.String(ctx, "ex:name")
	require.NoError(t, err)
	assert.Equal(t, "Alice", name)

	age, err := alice.Int(ctx, "ex:age")
	require.NoError(t, err)
	assert.EqualValues(t, 34, age)

	height, err := alice.Float(ctx, "ex:height")
	require.NoError(t, err)
	assert.InDelta(t, 1.72, height, 1e-9)

	active, err := alice.Bool(ctx, "ex:active")
	require.NoError(t, err)
	assert.True(t, active)

	got, err := alice.Time(ctx, "ex:birthday")
	require.NoError(t, err)
	assert.True(t, birthday.Equal(got))

	properties, err := alice.Properties(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{
		ex + "active", ex + "age", ex + "birthday", ex + "height", ex + "name",
		iri("swb:created").Value, iri("swb:updated").Value, iri("rdf:type").Value,
	}, properties)

	require.NoError(t, alice.RemoveProperty(ctx, "ex:name"))
	_, err = alice.String(ctx, "ex:name")
	assert.ErrorIs(t, err, semantic.ErrNoValue)
}

func TestObject_Text(t *testing.T) {
	ctx := context.Background()
	model := newModel(t, semantic.Options{})

	thing, err := model.NewObject(ctx, "ex:Resource", "thing")
	require.NoError(t, err)

	name, err := thing.DisplayName(ctx, "en")
	require.NoError(t, err)
	assert.Equal(t, "thing", name, "falls back to the local name")

	require.NoError(t, thing.Set(ctx, "rdfs:label",
		rdf.LangLiteral("Thing", "en"),
		rdf.LangLiteral("Ding", "de"),
		rdf.Literal("thing"),
	))

	for lang, want := range map[string]string{"en": "Thing", "de": "Ding", "fr": "thing"} {
		got, err := thing.DisplayName(ctx, lang)
		require.NoError(t, err)
		assert.Equal(t, want, got, lang)
	}

	_, err = thing.Text(ctx, "ex:name", "en")
	assert.ErrorIs(t, err, semantic.ErrNoValue)
}

func TestObject_Functional(t *testing.T) {
	ctx := context.Background()
	model := newModel(t, semantic.Options{})

	alice, err := model.NewObject(ctx, "ex:Person", "alice")
	require.NoError(t, err)

	require.NoError(t, alice.Add(ctx, "ex:age", rdf.Int(1)))
	require.NoError(t, alice.Add(ctx, "ex:age", rdf.Int(2)))
	require.NoError(t, alice.Add(ctx, "ex:name", rdf.Literal("a")))
	require.NoError(t, alice.Add(ctx, "ex:name", rdf.Literal("b")))

	ages, err := alice.GetAll(ctx, "ex:age")
	require.NoError(t, err)
	assert.Equal(t, []rdf.Term{rdf.Int(2)}, ages)

	names, err := alice.GetAll(ctx, "ex:name")
	require.NoError(t, err)
	assert.Len(t, names, 2)

	require.NoError(t, alice.RemoveValue(ctx, "ex:name", rdf.Literal("a")))
	names, err = alice.GetAll(ctx, "ex:name")
	require.NoError(t, err)
	assert.Equal(t, []rdf.Term{rdf.Literal("b")}, names)
}

func TestObject_Inverse(t *testing.T) {
	ctx := context.Background()
	model := newModel(t, semantic.Options{})

	alice, err := model.NewObject(ctx, "ex:Employee", "alice")
	require.NoError(t, err)
	acme, err := model.NewObject(ctx, "ex:Org", "acme")
	require.NoError(t, err)
	initech, err := model.NewObject(ctx, "ex:Org", "initech")
	require.NoError(t, err)

	// load acme, so that it must be refreshed
	_, err = acme.Statements(ctx)
	require.NoError(t, err)

	require.NoError(t, alice.AddLink(ctx, "ex:worksFor", acme))

	employees, err := acme.Links(ctx, "ex:employs")
	require.NoError(t, err)
	require.Len(t, employees, 1)
	assert.Same(t, alice, employees[0])

	employer, err := alice.Link(ctx, "ex:worksFor")
	require.NoError(t, err)
	assert.Same(t, acme, employer)

	// moving alice updates both organizations
	require.NoError(t, alice.SetLink(ctx, "ex:worksFor", initech))

	employees, err = acme.Links(ctx, "ex:employs")
	require.NoError(t, err)
	assert.Empty(t, employees)

	employees, err = initech.Links(ctx, "ex:employs")
	require.NoError(t, err)
	assert.Equal(t, []*semantic.Object{alice}, employees)

	require.NoError(t, alice.RemoveValue(ctx, "ex:worksFor", rdf.IRI(initech.URI())))
	employees, err = initech.Links(ctx, "ex:employs")
	require.NoError(t, err)
	assert.Empty(t, employees)

	_, err = alice.Link(ctx, "ex:worksFor")
	assert.ErrorIs(t, err, semantic.ErrNoValue)
}

func TestObject_Class(t *testing.T) {
	ctx := context.Background()
	model := newModel(t, semantic.Options{})

	alice, err := model.NewObject(ctx, "ex:Person", "alice")
	require.NoError(t, err)
	require.NoError(t, alice.Add(ctx, "rdf:type", iri("ex:Employee")))
	require.NoError(t, alice.Add(ctx, "rdf:type", iri("ex:NotInOntology")))

	class, err := alice.Class(ctx)
	require.NoError(t, err)
	assert.Equal(t, ex+"Employee", class.URI)

	is, err := alice.Is(ctx, "ex:Resource")
	require.NoError(t, err)
	assert.True(t, is)

	is, err = alice.Is(ctx, "ex:Org")
	require.NoError(t, err)
	assert.False(t, is)
}

// countValues counts the values of property on uri directly in the store
func countValues(t *testing.T, model *semantic.Model, uri, property string) int64 {
	t.Helper()

	count, err := model.Store.Count(context.Background(), rdf.Pattern{
		Subject:   rdf.Ref(rdf.IRI(uri)),
		Predicate: rdf.Ref(iri(property)),
		Graph:     model.Graph,
	})
	require.NoError(t, err)
	return count
}

func TestObject_SetInvalid(t *testing.T) {
	ctx := context.Background()
	model := newModel(t, semantic.Options{})

	alice, err := model.NewObject(ctx, "ex:Person", "alice")
	require.NoError(t, err)
	require.NoError(t, alice.SetString(ctx, "ex:name", "Alice"))

	err = alice.Set(ctx, "ex:name", rdf.Literal("Bob"), rdf.Term{})
	require.Error(t, err)

	// nothing was written
	assert.EqualValues(t, 1, countValues(t, model, alice.URI(), "ex:name"))
	name, err := alice.String(ctx, "ex:name")
	require.NoError(t, err)
	assert.Equal(t, "Alice", name)
}

// failingStore fails every Add once fail is set
type failingStore struct {
	triplestore.Store
	fail bool
}

func (fs *failingStore) Add(ctx context.Context, stmts ...rdf.Statement) error {
	if fs.fail {
		return errors.New("add failed")
	}
	return fs.Store.Add(ctx, stmts...)
}

func TestObject_SetFailedAdd(t *testing.T) {
	ctx := context.Background()

	store := &failingStore{Store: memory.New()}
	t.Cleanup(func() { store.Close() })

	var changed []string
	model, err := semantic.NewModel("data", dataNS, store, semantic.Options{
		Graph:    dataGraph,
		Ontology: newOntology(t),
		Logger:   discard,
		OnChange: func(uri string) { changed = append(changed, uri) },
	})
	require.NoError(t, err)
	t.Cleanup(func() { model.Close() })

	alice, err := model.NewObject(ctx, "ex:Person", "alice")
	require.NoError(t, err)
	require.NoError(t, alice.SetString(ctx, "ex:name", "Alice"))

	changed = nil
	store.fail = true
	require.Error(t, alice.SetString(ctx, "ex:name", "Bob"))

	// the object reflects what is in the store
	assert.EqualValues(t, 0, countValues(t, model, alice.URI(), "ex:name"))
	values, err := alice.GetAll(ctx, "ex:name")
	require.NoError(t, err)
	assert.Empty(t, values)
	assert.Equal(t, []string{alice.URI()}, changed)
}

func TestObject_ClassCycle(t *testing.T) {
	ctx := context.Background()
	model := newModel(t, semantic.Options{})

	object, err := model.NewObject(ctx, "ex:A", "x")
	require.NoError(t, err)
	require.NoError(t, object.Add(ctx, "rdf:type", iri("ex:B")))

	class, err := object.Class(ctx)
	require.NoError(t, err)
	assert.Equal(t, ex+"A", class.URI)
}
