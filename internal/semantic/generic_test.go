package semantic_test

import (
	"context"
	"testing"
	"time"

	"github.com/haxdai/SWBPlatform-sub000/internal/rdf"
	"github.com/haxdai/SWBPlatform-sub000/internal/semantic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type resource struct {
	URI  string `swb:"@uri"`
	Name string `swb:"ex:name"`
}

type employee struct {
	URI      string           `swb:"@uri"`
	Name     string           `swb:"ex:name"`
	Age      int              `swb:"ex:age"`
	Employer *semantic.Object `swb:"ex:worksFor"`
	Tags     []string         `swb:"ex:tag"`
	Since    time.Time        `swb:"ex:since"`
	Label    rdf.Term         `swb:"rdfs:label"`

	Ignored string
}

func newRegistry(t *testing.T) *semantic.Registry {
	t.Helper()

	var registry semantic.Registry
	require.NoError(t, registry.Register("ex:Resource", resource{}))
	require.NoError(t, registry.Register("ex:Employee", &employee{}))
	return &registry
}

func TestRegistry_Register(t *testing.T) {
	var registry semantic.Registry

	assert.Error(t, registry.Register("ex:Resource", 42))
	assert.Error(t, registry.Register("ex:Resource", struct {
		Values map[string]string `swb:"ex:values"`
	}{}))
	assert.Error(t, registry.Register("ex:Resource", struct {
		URI int `swb:"@uri"`
	}{}))

	assert.Empty(t, registry.Classes())
}

func TestRegistry_Instantiate(t *testing.T) {
	ctx := context.Background()
	model := newModel(t, semantic.Options{})
	registry := newRegistry(t)

	acme, err := model.NewObject(ctx, "ex:Org", "acme")
	require.NoError(t, err)
	require.NoError(t, acme.SetString(ctx, "ex:name", "ACME"))

	alice, err := model.NewObject(ctx, "ex:Employee", "alice")
	require.NoError(t, err)
	require.NoError(t, alice.SetString(ctx, "ex:name", "Alice"))
	require.NoError(t, alice.SetInt(ctx, "ex:age", 34))
	require.NoError(t, alice.SetLink(ctx, "ex:worksFor", acme))
	require.NoError(t, alice.Set(ctx, "ex:tag", rdf.Literal("a"), rdf.Literal("b")))
	require.NoError(t, alice.SetTime(ctx, "ex:since", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, alice.Set(ctx, "rdfs:label", rdf.LangLiteral("Alice", "en")))

	// an org is a resource
	value, err := registry.Instantiate(ctx, acme)
	require.NoError(t, err)
	assert.Equal(t, &resource{URI: acme.URI(), Name: "ACME"}, value)

	// the employee binding is more specific than the resource binding
	value, err = registry.Instantiate(ctx, alice)
	require.NoError(t, err)
	require.IsType(t, &employee{}, value)

	got := value.(*employee)
	assert.Equal(t, alice.URI(), got.URI)
	assert.Equal(t, "Alice", got.Name)
	assert.Equal(t, 34, got.Age)
	assert.Same(t, acme, got.Employer)
	assert.Equal(t, []string{"a", "b"}, got.Tags)
	assert.True(t, got.Since.Equal(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, rdf.LangLiteral("Alice", "en"), got.Label)

	// no binding for unrelated classes
	other, err := model.NewObject(ctx, "ex:A", "other")
	require.NoError(t, err)
	_, err = registry.Instantiate(ctx, other)
	assert.ErrorIs(t, err, semantic.ErrNotRegistered)
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	model := newModel(t, semantic.Options{})

	acme, err := model.NewObject(ctx, "ex:Org", "acme")
	require.NoError(t, err)
	bob, err := model.NewObject(ctx, "ex:Employee", "bob")
	require.NoError(t, err)

	require.NoError(t, semantic.Store(ctx, bob, &employee{
		URI:      "ignored",
		Name:     "Bob",
		Age:      51,
		Employer: acme,
		Tags:     []string{"x"},
	}))

	name, err := bob.String(ctx, "ex:name")
	require.NoError(t, err)
	assert.Equal(t, "Bob", name)

	employees, err := acme.Links(ctx, "ex:employs")
	require.NoError(t, err)
	assert.Equal(t, []*semantic.Object{bob}, employees, "inverse properties are maintained")

	// and read it back
	var got employee
	require.NoError(t, semantic.Fill(ctx, bob, &got))
	assert.Equal(t, bob.URI(), got.URI)
	assert.Equal(t, 51, got.Age)
	assert.Equal(t, []string{"x"}, got.Tags)
	assert.True(t, got.Since.IsZero())

	// empty values remove properties
	require.NoError(t, semantic.Store(ctx, bob, employee{Age: 52}))
	_, err = bob.String(ctx, "ex:name")
	assert.ErrorIs(t, err, semantic.ErrNoValue)
	employees, err = acme.Links(ctx, "ex:employs")
	require.NoError(t, err)
	assert.Empty(t, employees)

	assert.Error(t, semantic.Fill(ctx, bob, got), "Fill needs a pointer")
}
