package semantic_test

import (
	"testing"

	"github.com/haxdai/SWBPlatform-sub000/internal/rdf/vocab"
	"github.com/haxdai/SWBPlatform-sub000/internal/semantic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uris[T interface{ String() string }](values []T) []string {
	result := make([]string, len(values))
	for i, value := range values {
		result[i] = vocab.Compact(value.String())
	}
	return result
}

func TestOntology_Classes(t *testing.T) {
	onto := newOntology(t)

	assert.Equal(t, []string{"ex:A", "ex:B", "ex:Employee", "ex:Org", "ex:Person", "ex:Resource"}, uris(onto.Classes()))

	person, err := onto.Class("ex:Person")
	require.NoError(t, err)
	assert.Equal(t, ex+"Person", person.URI)

	_, err = onto.Class("ex:Unknown")
	assert.ErrorIs(t, err, semantic.ErrClassNotFound)
}

func TestClass_Label(t *testing.T) {
	onto := newOntology(t)

	person, _ := onto.Class("ex:Person")
	assert.Equal(t, "Person", person.Label("en"))
	assert.Equal(t, "Persona", person.Label("es"))
	assert.Equal(t, "Person", person.Label("fr"), "falls back to the first language")

	org, _ := onto.Class("ex:Org")
	assert.Equal(t, "Org", org.Label("en"), "falls back to the local name")

	name, _ := onto.Property("ex:name")
	assert.Equal(t, "name", name.Label("de"), "falls back to the label without language")
}

func TestClass_Hierarchy(t *testing.T) {
	onto := newOntology(t)

	employee, _ := onto.Class("ex:Employee")
	person, _ := onto.Class("ex:Person")
	resource, _ := onto.Class("ex:Resource")
	org, _ := onto.Class("ex:Org")

	assert.Equal(t, []string{"ex:Person"}, uris(employee.SuperClasses(true)))
	assert.Equal(t, []string{"ex:Person", "ex:Resource"}, uris(employee.SuperClasses(false)))

	assert.Equal(t, []string{"ex:Org", "ex:Person"}, uris(resource.SubClasses(true)))
	assert.Equal(t, []string{"ex:Employee", "ex:Org", "ex:Person"}, uris(resource.SubClasses(false)))

	assert.True(t, employee.IsSubClassOf(resource))
	assert.True(t, employee.IsSubClassOf(employee))
	assert.False(t, person.IsSubClassOf(employee))
	assert.False(t, org.IsSubClassOf(person))
}

func TestClass_Cycle(t *testing.T) {
	onto := newOntology(t)

	a, _ := onto.Class("ex:A")
	b, _ := onto.Class("ex:B")

	assert.Equal(t, []string{"ex:B"}, uris(a.SuperClasses(false)))
	assert.Equal(t, []string{"ex:B"}, uris(a.SubClasses(false)))
	assert.True(t, a.IsSubClassOf(b))
	assert.True(t, b.IsSubClassOf(a))
}

func TestClass_Properties(t *testing.T) {
	onto := newOntology(t)

	employee, _ := onto.Class("ex:Employee")
	assert.Equal(t, []string{"ex:age", "ex:name", "ex:worksFor"}, uris(employee.Properties()))

	org, _ := onto.Class("ex:Org")
	assert.Equal(t, []string{"ex:employs", "ex:name"}, uris(org.Properties()))
}

func TestProperty(t *testing.T) {
	onto := newOntology(t)

	worksFor, err := onto.Property("ex:worksFor")
	require.NoError(t, err)
	employs, err := onto.Property("ex:employs")
	require.NoError(t, err)
	age, err := onto.Property("ex:age")
	require.NoError(t, err)

	assert.Same(t, employs, worksFor.Inverse())
	assert.Same(t, worksFor, employs.Inverse())
	assert.True(t, worksFor.IsObjectProperty())
	assert.True(t, employs.IsObjectProperty(), "inverse properties are object properties")
	assert.Equal(t, ex+"Employee", worksFor.Domain().URI)
	assert.Equal(t, ex+"Org", worksFor.Range())

	assert.False(t, age.IsObjectProperty())
	assert.True(t, age.IsFunctional())
	assert.Equal(t, vocab.Integer, age.Range())
	assert.Nil(t, age.Inverse())

	_, err = onto.Property("ex:unknown")
	assert.ErrorIs(t, err, semantic.ErrPropertyNotFound)
}
