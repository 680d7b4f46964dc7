package semantic

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/haxdai/SWBPlatform-sub000/internal/rdf"
	"github.com/haxdai/SWBPlatform-sub000/internal/rdf/vocab"
	"github.com/haxdai/SWBPlatform-sub000/internal/triplestore"
)

// Object is a resource of a model.
//
// The statements of an object are loaded from the store on first access,
// and reloaded after [Object.Refresh].
// Objects should be obtained from [Model.Object] so that they are shared.
type Object struct {
	model *Model
	uri   string

	m      sync.Mutex
	loaded bool
	values map[string][]rdf.Term // values by property
	stmts  []rdf.Statement
}

// URI returns the uri of this object.
func (object *Object) URI() string {
	return object.uri
}

// Model returns the model this object belongs to.
func (object *Object) Model() *Model {
	return object.model
}

// Refresh discards the loaded statements of this object.
func (object *Object) Refresh() {
	object.m.Lock()
	defer object.m.Unlock()

	object.loaded = false
	object.values = nil
	object.stmts = nil
}

// load loads the statements about this object, unless they are already loaded.
// object.m must be held.
func (object *Object) load(ctx context.Context) error {
	if object.loaded {
		return nil
	}

	subject := rdf.IRI(object.uri)
	stmts, err := triplestore.Collect(ctx, object.model.Store, object.model.pattern(&subject, nil, nil))
	if err != nil {
		return fmt.Errorf("failed to load %q: %w", object.uri, err)
	}
	triplestore.Sort(stmts)

	values := make(map[string][]rdf.Term)
	for _, stmt := range stmts {
		values[stmt.Predicate.Value] = append(values[stmt.Predicate.Value], stmt.Object)
	}

	object.stmts = stmts
	object.values = values
	object.loaded = true
	return nil
}

// Statements returns all statements with this object as subject.
func (object *Object) Statements(ctx context.Context) ([]rdf.Statement, error) {
	object.m.Lock()
	defer object.m.Unlock()

	if err := object.load(ctx); err != nil {
		return nil, err
	}
	return slices.Clone(object.stmts), nil
}

// GetAll returns all values of the given property.
func (object *Object) GetAll(ctx context.Context, property string) ([]rdf.Term, error) {
	object.m.Lock()
	defer object.m.Unlock()

	if err := object.load(ctx); err != nil {
		return nil, err
	}
	return slices.Clone(object.values[expand(property)]), nil
}

// Get returns the first value of the given property.
// If the property has no value, returns ErrNoValue.
func (object *Object) Get(ctx context.Context, property string) (rdf.Term, error) {
	values, err := object.GetAll(ctx, property)
	if err != nil {
		return rdf.Term{}, err
	}
	if len(values) == 0 {
		return rdf.Term{}, fmt.Errorf("%w: %q", ErrNoValue, expand(property))
	}
	return values[0], nil
}

// Properties returns the uris of all properties that have a value, in order.
func (object *Object) Properties(ctx context.Context) ([]string, error) {
	object.m.Lock()
	defer object.m.Unlock()

	if err := object.load(ctx); err != nil {
		return nil, err
	}
	return slices.Sorted(maps.Keys(object.values)), nil
}

// Types returns the uris of the rdf:types of this object, in order.
func (object *Object) Types(ctx context.Context) ([]string, error) {
	values, err := object.GetAll(ctx, vocab.Type)
	if err != nil {
		return nil, err
	}

	types := make([]string, 0, len(values))
	for _, value := range values {
		if value.IsIRI() {
			types = append(types, value.Value)
		}
	}
	return types, nil
}

// Class returns the most specific class of this object known to the ontology.
// If several types are equally specific, the first in uri order is returned.
func (object *Object) Class(ctx context.Context) (*Class, error) {
	types, err := object.Types(ctx)
	if err != nil {
		return nil, err
	}

	ontology := object.model.Ontology
	if ontology == nil {
		return nil, fmt.Errorf("%w: model %q has no ontology", ErrClassNotFound, object.model.Name)
	}

	var classes []*Class
	for _, tp := range types {
		if class, err := ontology.Class(tp); err == nil {
			classes = append(classes, class)
		}
	}
	if class := mostSpecific(classes); class != nil {
		return class, nil
	}
	return nil, fmt.Errorf("%w: no known type for %q", ErrClassNotFound, object.uri)
}

// mostSpecific returns the first class that has no strict sub class in classes.
// Classes that are sub classes of each other count as equivalent.
func mostSpecific(classes []*Class) *Class {
	slices.SortFunc(classes, compareClasses)

outer:
	for _, candidate := range classes {
		for _, other := range classes {
			if other.URI != candidate.URI && other.IsSubClassOf(candidate) && !candidate.IsSubClassOf(other) {
				continue outer
			}
		}
		return candidate
	}
	if len(classes) > 0 {
		return classes[0]
	}
	return nil
}

// Is checks if this object is an instance of class, or of one of its sub classes.
func (object *Object) Is(ctx context.Context, class string) (bool, error) {
	types, err := object.Types(ctx)
	if err != nil {
		return false, err
	}
	return matchesClass(object.model.Ontology, types, expand(class)), nil
}

//
// Writing
//

// Set replaces all values of property with the given values.
// Calling Set without values removes the property.
func (object *Object) Set(ctx context.Context, property string, values ...rdf.Term) error {
	property = expand(property)

	old, err := object.GetAll(ctx, property)
	if err != nil {
		return err
	}

	subject := rdf.IRI(object.uri)
	predicate := rdf.IRI(property)

	stmts := make([]rdf.Statement, len(values))
	for i, value := range values {
		stmts[i] = rdf.Statement{Subject: subject, Predicate: predicate, Object: value, Graph: object.model.Graph}
	}
	if err := triplestore.Validate(stmts); err != nil {
		return fmt.Errorf("failed to set %q: %w", property, err)
	}

	if _, err := object.model.Store.Remove(ctx, object.model.pattern(&subject, &predicate, nil)); err != nil {
		object.Refresh()
		return fmt.Errorf("failed to remove %q: %w", property, err)
	}
	if len(stmts) > 0 {
		if err := object.model.Store.Add(ctx, stmts...); err != nil {
			// the old values are gone already
			object.Refresh()
			object.model.changed(object.uri)
			return fmt.Errorf("failed to set %q: %w", property, err)
		}
	}

	return object.changed(ctx, property, links(old, values), links(values, old))
}

// Add adds a value to property.
// For functional properties, the value replaces existing values.
func (object *Object) Add(ctx context.Context, property string, value rdf.Term) error {
	property = expand(property)
	if p, err := object.property(property); err == nil && p.IsFunctional() {
		return object.Set(ctx, property, value)
	}

	err := object.model.Store.Add(ctx, rdf.Statement{
		Subject:   rdf.IRI(object.uri),
		Predicate: rdf.IRI(property),
		Object:    value,
		Graph:     object.model.Graph,
	})
	if err != nil {
		return fmt.Errorf("failed to add %q: %w", property, err)
	}
	return object.changed(ctx, property, nil, links([]rdf.Term{value}, nil))
}

// RemoveValue removes a single value from property.
func (object *Object) RemoveValue(ctx context.Context, property string, value rdf.Term) error {
	property = expand(property)

	subject := rdf.IRI(object.uri)
	count, err := object.model.Store.Remove(ctx, object.model.pattern(&subject, rdf.Ref(rdf.IRI(property)), &value))
	if err != nil {
		return fmt.Errorf("failed to remove %q: %w", property, err)
	}
	if count == 0 {
		return nil
	}
	return object.changed(ctx, property, links([]rdf.Term{value}, nil), nil)
}

// RemoveProperty removes all values of property.
func (object *Object) RemoveProperty(ctx context.Context, property string) error {
	return object.Set(ctx, property)
}

// property returns the ontology property with the given uri.
func (object *Object) property(uri string) (*Property, error) {
	if object.model.Ontology == nil {
		return nil, ErrPropertyNotFound
	}
	return object.model.Ontology.Property(uri)
}

// links returns the iris in values that are not in exclude
func links(values []rdf.Term, exclude []rdf.Term) (iris []string) {
	for _, value := range values {
		if value.IsIRI() && !slices.Contains(exclude, value) {
			iris = append(iris, value.Value)
		}
	}
	return iris
}

// changed updates bookkeeping after property of object was changed.
// removed and added hold the resources that are no longer or newly linked.
func (object *Object) changed(ctx context.Context, property string, removed, added []string) error {
	model := object.model
	self := rdf.IRI(object.uri)

	var targets []string
	if p, err := object.property(property); err == nil && p.Inverse() != nil {
		inverse := rdf.IRI(p.Inverse().URI)
		for _, target := range removed {
			t := rdf.IRI(target)
			if _, err := model.Store.Remove(ctx, model.pattern(&t, &inverse, &self)); err != nil {
				return fmt.Errorf("failed to remove inverse of %q: %w", property, err)
			}
		}
		for _, target := range added {
			err := model.Store.Add(ctx, rdf.Statement{Subject: rdf.IRI(target), Predicate: inverse, Object: self, Graph: model.Graph})
			if err != nil {
				return fmt.Errorf("failed to add inverse of %q: %w", property, err)
			}
		}
		targets = append(append(targets, removed...), added...)
	}

	if property == vocab.SameAs {
		for _, target := range added {
			if err := model.alias(target, object.uri); err != nil {
				return err
			}
		}
	}

	if property != vocab.Updated {
		if err := object.touch(ctx); err != nil {
			return err
		}
	}

	object.Refresh()
	for _, target := range targets {
		model.Cache.Invalidate(target)
	}

	model.changed(object.uri, targets...)
	model.notify(ctx, Updated, object, property, nil)
	return nil
}

// touch sets the update time of this object to now.
func (object *Object) touch(ctx context.Context) error {
	subject := rdf.IRI(object.uri)
	updated := rdf.IRI(vocab.Updated)

	if _, err := object.model.Store.Remove(ctx, object.model.pattern(&subject, &updated, nil)); err != nil {
		return err
	}
	return object.model.Store.Add(ctx, rdf.Statement{
		Subject:   subject,
		Predicate: updated,
		Object:    dateTime(time.Now()),
		Graph:     object.model.Graph,
	})
}

//
// Typed access
//

// String returns the lexical value of the first value of property.
func (object *Object) String(ctx context.Context, property string) (string, error) {
	value, err := object.Get(ctx, property)
	return value.Value, err
}

// Text returns the value of property in the given language.
// It falls back to a value without language, and then to the first value.
func (object *Object) Text(ctx context.Context, property, lang string) (string, error) {
	values, err := object.GetAll(ctx, property)
	if err != nil {
		return "", err
	}
	if len(values) == 0 {
		return "", fmt.Errorf("%w: %q", ErrNoValue, expand(property))
	}

	labels := make(map[string]string, len(values))
	for _, value := range values {
		if _, ok := labels[value.Lang]; !ok {
			labels[value.Lang] = value.Value
		}
	}
	if text, ok := labels[lang]; ok {
		return text, nil
	}
	if text, ok := labels[""]; ok {
		return text, nil
	}
	return values[0].Value, nil
}

// DisplayName returns the rdfs:label of this object in the given language.
// If the object has no label, the local name of its uri is returned.
func (object *Object) DisplayName(ctx context.Context, lang string) (string, error) {
	text, err := object.Text(ctx, vocab.Label, lang)
	if err == nil {
		return text, nil
	}
	if isNoValue(err) {
		return localName(object.uri), nil
	}
	return "", err
}

// Int returns the first value of property as an integer.
func (object *Object) Int(ctx context.Context, property string) (int64, error) {
	value, err := object.Get(ctx, property)
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(value.Value, 10, 64)
}

// Float returns the first value of property as a float.
func (object *Object) Float(ctx context.Context, property string) (float64, error) {
	value, err := object.Get(ctx, property)
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(value.Value, 64)
}

// Bool returns the first value of property as a boolean.
func (object *Object) Bool(ctx context.Context, property string) (bool, error) {
	value, err := object.Get(ctx, property)
	if err != nil {
		return false, err
	}
	return strconv.ParseBool(value.Value)
}

// Time returns the first value of property as a time.
// Both xsd:dateTime and xsd:date values are supported.
func (object *Object) Time(ctx context.Context, property string) (time.Time, error) {
	value, err := object.Get(ctx, property)
	if err != nil {
		return time.Time{}, err
	}
	return parseTime(value.Value)
}

// SetString sets property to a single plain literal.
func (object *Object) SetString(ctx context.Context, property, value string) error {
	return object.Set(ctx, property, rdf.Literal(value))
}

// SetInt sets property to a single integer literal.
func (object *Object) SetInt(ctx context.Context, property string, value int64) error {
	return object.Set(ctx, property, rdf.Int(value))
}

// SetFloat sets property to a single double literal.
func (object *Object) SetFloat(ctx context.Context, property string, value float64) error {
	return object.Set(ctx, property, rdf.Float(value))
}

// SetBool sets property to a single boolean literal.
func (object *Object) SetBool(ctx context.Context, property string, value bool) error {
	return object.Set(ctx, property, rdf.Bool(value))
}

// SetTime sets property to a single dateTime literal.
func (object *Object) SetTime(ctx context.Context, property string, value time.Time) error {
	return object.Set(ctx, property, dateTime(value))
}

func dateTime(value time.Time) rdf.Term {
	return rdf.TypedLiteral(value.UTC().Format(time.RFC3339Nano), vocab.DateTime)
}

func parseTime(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, value)
}

//
// Links
//

// Link returns the object referenced by the first resource value of property.
func (object *Object) Link(ctx context.Context, property string) (*Object, error) {
	values, err := object.GetAll(ctx, property)
	if err != nil {
		return nil, err
	}
	for _, value := range values {
		if value.IsIRI() {
			return object.model.Object(ctx, value.Value)
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrNoValue, expand(property))
}

// Links returns the objects referenced by property.
// References to resources without statements in the model are skipped.
func (object *Object) Links(ctx context.Context, property string) ([]*Object, error) {
	values, err := object.GetAll(ctx, property)
	if err != nil {
		return nil, err
	}

	var objects []*Object
	for _, value := range values {
		if !value.IsIRI() {
			continue
		}
		target, err := object.model.Object(ctx, value.Value)
		if isNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		objects = append(objects, target)
	}
	return objects, nil
}

// AddLink adds a reference to target to property.
func (object *Object) AddLink(ctx context.Context, property string, target *Object) error {
	return object.Add(ctx, property, rdf.IRI(target.URI()))
}

// SetLink makes property reference only target.
func (object *Object) SetLink(ctx context.Context, property string, target *Object) error {
	return object.Set(ctx, property, rdf.IRI(target.URI()))
}
