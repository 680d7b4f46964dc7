package semantic_test

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/haxdai/SWBPlatform-sub000/internal/rdf"
	"github.com/haxdai/SWBPlatform-sub000/internal/rdf/vocab"
	"github.com/haxdai/SWBPlatform-sub000/internal/semantic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModel_NewObject(t *testing.T) {
	ctx := context.Background()
	model := newModel(t, semantic.Options{})

	alice, err := model.NewObject(ctx, "ex:Person", "alice")
	require.NoError(t, err)
	assert.Equal(t, dataNS+"alice", alice.URI())

	types, err := alice.Types(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{ex + "Person"}, types)

	created, err := alice.Time(ctx, "swb:created")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), created, time.Minute)

	_, err = model.NewObject(ctx, "ex:Person", "alice")
	assert.ErrorIs(t, err, semantic.ErrExists)

	_, err = model.NewObject(ctx, "ex:Unknown", "")
	assert.ErrorIs(t, err, semantic.ErrClassNotFound)

	random, err := model.NewObject(ctx, "ex:Org", "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(random.URI(), dataNS))
	assert.Greater(t, len(random.URI()), len(dataNS))
}

func TestModel_Object(t *testing.T) {
	ctx := context.Background()
	model := newModel(t, semantic.Options{})

	// bypass the model, so that nothing is cached yet
	require.NoError(t, model.Store.Add(ctx, rdf.Statement{
		Subject:   rdf.IRI(dataNS + "bob"),
		Predicate: rdf.IRI(vocab.Type),
		Object:    iri("ex:Person"),
		Graph:     dataGraph,
	}))

	var wg sync.WaitGroup
	objects := make([]*semantic.Object, 16)
	for i := range objects {
		wg.Add(1)
		go func() {
			defer wg.Done()

			object, err := model.Object(ctx, dataNS+"bob")
			assert.NoError(t, err)
			objects[i] = object
		}()
	}
	wg.Wait()

	for _, object := range objects {
		assert.Same(t, objects[0], object)
	}
	assert.EqualValues(t, 1, model.Cache.Stats().Loads)

	_, err := model.Object(ctx, dataNS+"nobody")
	assert.ErrorIs(t, err, semantic.ErrNotFound)
}

func TestModel_RemoveObject(t *testing.T) {
	ctx := context.Background()

	var observers semantic.Observers
	var events []semantic.Event
	observers.Observe("", semantic.ObserverFunc(func(event semantic.Event) error {
		events = append(events, event)
		return nil
	}))

	model := newModel(t, semantic.Options{Observers: &observers})

	alice, err := model.NewObject(ctx, "ex:Employee", "alice")
	require.NoError(t, err)
	acme, err := model.NewObject(ctx, "ex:Org", "acme")
	require.NoError(t, err)
	require.NoError(t, alice.AddLink(ctx, "ex:worksFor", acme))

	require.NoError(t, model.RemoveObject(ctx, acme.URI()))

	_, err = model.Object(ctx, acme.URI())
	assert.ErrorIs(t, err, semantic.ErrNotFound)

	employers, err := alice.GetAll(ctx, "ex:worksFor")
	require.NoError(t, err)
	assert.Empty(t, employers)

	last := events[len(events)-1]
	assert.Equal(t, semantic.Removed, last.Kind)
	assert.Equal(t, acme.URI(), last.Object.URI())
	assert.Equal(t, []string{ex + "Org"}, last.Types)

	assert.ErrorIs(t, model.RemoveObject(ctx, acme.URI()), semantic.ErrNotFound)
}

func TestModel_Instances(t *testing.T) {
	ctx := context.Background()
	model := newModel(t, semantic.Options{})

	for id, class := range map[string]string{
		"p1": "ex:Person",
		"e1": "ex:Employee",
		"o1": "ex:Org",
	} {
		_, err := model.NewObject(ctx, class, id)
		require.NoError(t, err)
	}

	ids := func(objects []*semantic.Object) (ids []string) {
		for _, object := range objects {
			ids = append(ids, strings.TrimPrefix(object.URI(), dataNS))
		}
		return ids
	}

	direct, err := model.Instances(ctx, "ex:Person", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, ids(direct))

	inferred, err := model.Instances(ctx, "ex:Person", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"e1", "p1"}, ids(inferred))

	all, err := model.Instances(ctx, "ex:Resource", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"e1", "o1", "p1"}, ids(all))

	_, err = model.Instances(ctx, "ex:Unknown", true)
	assert.ErrorIs(t, err, semantic.ErrClassNotFound)
}

func TestModel_SameAs(t *testing.T) {
	ctx := context.Background()
	model := newModel(t, semantic.Options{})

	canonical, err := model.NewObject(ctx, "ex:Person", "canonical")
	require.NoError(t, err)
	alias, err := model.NewObject(ctx, "ex:Person", "alias")
	require.NoError(t, err)

	require.NoError(t, alias.Set(ctx, "owl:sameAs", rdf.IRI(canonical.URI())))

	got, err := model.Object(ctx, alias.URI())
	require.NoError(t, err)
	assert.Same(t, canonical, got)

	uri, err := model.Canonical(alias.URI())
	require.NoError(t, err)
	assert.Equal(t, canonical.URI(), uri)
}

func TestModel_ImportExport(t *testing.T) {
	ctx := context.Background()

	source := newModel(t, semantic.Options{})
	alice, err := source.NewObject(ctx, "ex:Person", "alice")
	require.NoError(t, err)
	require.NoError(t, alice.SetString(ctx, "ex:name", "Alice"))
	alias, err := source.NewObject(ctx, "ex:Person", "alias")
	require.NoError(t, err)
	require.NoError(t, alias.Add(ctx, "owl:sameAs", rdf.IRI(alice.URI())))

	var buffer bytes.Buffer
	require.NoError(t, source.Export(ctx, &buffer, rdf.NQuads))

	total, err := source.Store.Count(ctx, rdf.Pattern{Graph: dataGraph})
	require.NoError(t, err)
	want, err := alice.Statements(ctx)
	require.NoError(t, err)

	target := newModel(t, semantic.Options{})
	count, err := target.Import(ctx, &buffer, rdf.NQuads)
	require.NoError(t, err)
	assert.EqualValues(t, total, count)

	imported, err := target.Object(ctx, alice.URI())
	require.NoError(t, err)
	got, err := imported.Statements(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// aliases are read on import
	other, err := target.Object(ctx, alias.URI())
	require.NoError(t, err)
	assert.Same(t, imported, other)
}

func TestModel_Hooks(t *testing.T) {
	ctx := context.Background()

	var accessed, changed []string
	model := newModel(t, semantic.Options{
		OnAccess: func(uri string) { accessed = append(accessed, uri) },
		OnChange: func(uri string) { changed = append(changed, uri) },
	})

	alice, err := model.NewObject(ctx, "ex:Employee", "alice")
	require.NoError(t, err)
	acme, err := model.NewObject(ctx, "ex:Org", "acme")
	require.NoError(t, err)
	assert.Equal(t, []string{alice.URI(), acme.URI()}, changed)

	changed = nil
	require.NoError(t, alice.AddLink(ctx, "ex:worksFor", acme))
	assert.Equal(t, []string{alice.URI(), acme.URI()}, changed, "inverse targets are changed")

	_, err = model.Object(ctx, alice.URI())
	require.NoError(t, err)
	assert.Equal(t, []string{alice.URI()}, accessed)
}
