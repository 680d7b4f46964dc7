package semantic

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/haxdai/SWBPlatform-sub000/internal/rdf"
	"github.com/haxdai/SWBPlatform-sub000/internal/rdf/vocab"
	"github.com/haxdai/SWBPlatform-sub000/internal/triplestore"
)

// Ontology holds the classes and properties known to the platform.
//
// It only performs the bookkeeping needed by objects:
// the transitive closure of rdfs:subClassOf, property domains and ranges, and owl:inverseOf.
// An Ontology is safe for concurrent use; reloading it replaces all classes and properties.
type Ontology struct {
	m          sync.RWMutex
	classes    map[string]*Class
	properties map[string]*Property
}

// NewOntology creates a new empty ontology.
func NewOntology() *Ontology {
	return &Ontology{
		classes:    make(map[string]*Class),
		properties: make(map[string]*Property),
	}
}

// Load replaces the ontology with the definitions found in graph of store.
func (ontology *Ontology) Load(ctx context.Context, store triplestore.Store, graph string) error {
	stmts, err := triplestore.Collect(ctx, store, rdf.Pattern{Graph: graph})
	if err != nil {
		return fmt.Errorf("failed to read ontology: %w", err)
	}
	ontology.LoadStatements(stmts)
	return nil
}

// Class returns the class with the given uri or prefixed name.
func (ontology *Ontology) Class(uri string) (*Class, error) {
	uri = expand(uri)

	ontology.m.RLock()
	defer ontology.m.RUnlock()

	class, ok := ontology.classes[uri]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrClassNotFound, uri)
	}
	return class, nil
}

// Property returns the property with the given uri or prefixed name.
func (ontology *Ontology) Property(uri string) (*Property, error) {
	uri = expand(uri)

	ontology.m.RLock()
	defer ontology.m.RUnlock()

	property, ok := ontology.properties[uri]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrPropertyNotFound, uri)
	}
	return property, nil
}

// Classes returns all classes ordered by uri.
func (ontology *Ontology) Classes() []*Class {
	ontology.m.RLock()
	defer ontology.m.RUnlock()

	return sortedValues(ontology.classes, func(c *Class) string { return c.URI })
}

// Properties returns all properties ordered by uri.
func (ontology *Ontology) Properties() []*Property {
	ontology.m.RLock()
	defer ontology.m.RUnlock()

	return sortedValues(ontology.properties, func(p *Property) string { return p.URI })
}

func sortedValues[T any](m map[string]T, key func(T) string) []T {
	values := make([]T, 0, len(m))
	for _, value := range m {
		values = append(values, value)
	}
	slices.SortFunc(values, func(a, b T) int {
		return strings.Compare(key(a), key(b))
	})
	return values
}

// LoadStatements replaces the ontology with the definitions in stmts.
func (ontology *Ontology) LoadStatements(stmts []rdf.Statement) {
	classes := make(map[string]*Class)
	properties := make(map[string]*Property)

	class := func(uri string) *Class {
		c, ok := classes[uri]
		if !ok {
			c = &Class{URI: uri, labels: make(map[string]string)}
			classes[uri] = c
		}
		return c
	}
	property := func(uri string) *Property {
		p, ok := properties[uri]
		if !ok {
			p = &Property{URI: uri, labels: make(map[string]string)}
			properties[uri] = p
		}
		return p
	}

	// first pass: find classes and properties
	for _, stmt := range stmts {
		if !stmt.Subject.IsIRI() {
			continue
		}
		subject := stmt.Subject.Value

		switch stmt.Predicate.Value {
		case vocab.Type:
			switch stmt.Object.Value {
			case vocab.Class, vocab.OWLClass:
				class(subject)
			case vocab.Property, vocab.DatatypeProperty:
				property(subject)
			case vocab.ObjectProperty:
				property(subject).object = true
			case vocab.FunctionalProperty:
				property(subject).functional = true
			}
		case vocab.SubClassOf:
			if stmt.Object.IsIRI() {
				class(subject)
				class(stmt.Object.Value)
			}
		case vocab.Domain, vocab.Range, vocab.InverseOf:
			property(subject)
		}
	}

	// second pass: relations and labels
	for _, stmt := range stmts {
		if !stmt.Subject.IsIRI() {
			continue
		}
		subject := stmt.Subject.Value
		c, isClass := classes[subject]
		p, isProperty := properties[subject]

		switch stmt.Predicate.Value {
		case vocab.Label:
			if !stmt.Object.IsLiteral() {
				continue
			}
			if isClass {
				c.labels[stmt.Object.Lang] = stmt.Object.Value
			}
			if isProperty {
				p.labels[stmt.Object.Lang] = stmt.Object.Value
			}
		case vocab.SubClassOf:
			if isClass && stmt.Object.IsIRI() && stmt.Object.Value != subject {
				super := classes[stmt.Object.Value]
				if !slices.Contains(c.super, super) {
					c.super = append(c.super, super)
					super.sub = append(super.sub, c)
				}
			}
		case vocab.Domain:
			if isProperty && stmt.Object.IsIRI() {
				p.domain = class(stmt.Object.Value)
			}
		case vocab.Range:
			if isProperty && stmt.Object.IsIRI() {
				p.rng = stmt.Object.Value
			}
		case vocab.InverseOf:
			if isProperty && stmt.Object.IsIRI() {
				inverse := property(stmt.Object.Value)
				p.inverse = inverse
				inverse.inverse = p
			}
		}
	}

	// ranges pointing to classes make object properties
	for _, p := range properties {
		if _, ok := classes[p.rng]; ok {
			p.object = true
		}
		if p.inverse != nil {
			p.object = true
		}
		if p.domain != nil {
			p.domain.own = append(p.domain.own, p)
		}
	}

	for _, c := range classes {
		c.ancestors = ancestors(c)
		slices.SortFunc(c.super, compareClasses)
		slices.SortFunc(c.sub, compareClasses)
		slices.SortFunc(c.own, compareProperties)
	}

	ontology.m.Lock()
	defer ontology.m.Unlock()

	ontology.classes = classes
	ontology.properties = properties
}

// ancestors computes all (transitive) super classes of c, tolerating cycles.
func ancestors(c *Class) map[string]*Class {
	result := make(map[string]*Class)

	queue := slices.Clone(c.super)
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]

		if _, ok := result[next.URI]; ok || next == c {
			continue
		}
		result[next.URI] = next
		queue = append(queue, next.super...)
	}
	return result
}

func compareClasses(a, b *Class) int {
	return strings.Compare(a.URI, b.URI)
}

func compareProperties(a, b *Property) int {
	return strings.Compare(a.URI, b.URI)
}

// label picks the label in the given language from labels.
// It falls back to a label without language, then to any label, and finally to the local name of uri.
func label(labels map[string]string, lang, uri string) string {
	if l, ok := labels[lang]; ok {
		return l
	}
	if l, ok := labels[""]; ok {
		return l
	}
	if len(labels) > 0 {
		langs := make([]string, 0, len(labels))
		for lang := range labels {
			langs = append(langs, lang)
		}
		slices.Sort(langs)
		return labels[langs[0]]
	}
	return localName(uri)
}

// localName returns the part of uri after the last '#' or '/'
func localName(uri string) string {
	if i := strings.LastIndexAny(uri, "#/"); i >= 0 && i < len(uri)-1 {
		return uri[i+1:]
	}
	return uri
}

// Class is a class of the ontology.
type Class struct {
	URI string

	labels    map[string]string
	super     []*Class
	sub       []*Class
	ancestors map[string]*Class
	own       []*Property // properties with this class as domain
}

// Label returns the label of this class in the given language.
func (class *Class) Label(lang string) string {
	return label(class.labels, lang, class.URI)
}

// SuperClasses returns the super classes of this class.
// When direct is false, all transitive super classes are returned.
func (class *Class) SuperClasses(direct bool) []*Class {
	if direct {
		return slices.Clone(class.super)
	}
	return sortedValues(class.ancestors, func(c *Class) string { return c.URI })
}

// SubClasses returns the sub classes of this class.
// When direct is false, all transitive sub classes are returned.
func (class *Class) SubClasses(direct bool) []*Class {
	if direct {
		return slices.Clone(class.sub)
	}

	all := make(map[string]*Class)
	queue := slices.Clone(class.sub)
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]

		if _, ok := all[next.URI]; ok || next == class {
			continue
		}
		all[next.URI] = next
		queue = append(queue, next.sub...)
	}
	return sortedValues(all, func(c *Class) string { return c.URI })
}

// IsSubClassOf checks if class is other or a (transitive) sub class of other.
func (class *Class) IsSubClassOf(other *Class) bool {
	if class == nil || other == nil {
		return false
	}
	if class.URI == other.URI {
		return true
	}
	_, ok := class.ancestors[other.URI]
	return ok
}

// Properties returns the properties whose domain is this class or one of its super classes.
func (class *Class) Properties() []*Property {
	properties := slices.Clone(class.own)
	for _, ancestor := range class.ancestors {
		properties = append(properties, ancestor.own...)
	}
	slices.SortFunc(properties, compareProperties)
	return slices.Compact(properties)
}

func (class *Class) String() string {
	return class.URI
}

// Property is a property of the ontology.
type Property struct {
	URI string

	labels     map[string]string
	domain     *Class
	rng        string
	inverse    *Property
	object     bool
	functional bool
}

// Label returns the label of this property in the given language.
func (property *Property) Label(lang string) string {
	return label(property.labels, lang, property.URI)
}

// Domain returns the domain of this property, or nil.
func (property *Property) Domain() *Class {
	return property.domain
}

// Range returns the uri of the range of this property, or "".
func (property *Property) Range() string {
	return property.rng
}

// IsObjectProperty checks if the values of this property are resources.
func (property *Property) IsObjectProperty() bool {
	return property.object
}

// IsFunctional checks if this property has at most one value per object.
func (property *Property) IsFunctional() bool {
	return property.functional
}

// Inverse returns the inverse of this property, or nil.
func (property *Property) Inverse() *Property {
	return property.inverse
}

func (property *Property) String() string {
	return property.URI
}
