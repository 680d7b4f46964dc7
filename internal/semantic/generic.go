package semantic

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/haxdai/SWBPlatform-sub000/internal/rdf"
	"github.com/haxdai/SWBPlatform-sub000/internal/rdf/vocab"
)

// TagName is the struct tag holding the property of a field.
//
// The special value "@uri" receives the uri of the object.
// Fields without a tag, or with tag "-", are ignored.
const TagName = "swb"

const uriTag = "@uri"

var (
	timeType   = reflect.TypeFor[time.Time]()
	termType   = reflect.TypeFor[rdf.Term]()
	objectType = reflect.TypeFor[*Object]()
)

var errUnsupportedField = errors.New("semantic: unsupported field type")

// Registry binds go struct types to classes.
// The zero value is ready to use.
type Registry struct {
	m     sync.RWMutex
	types map[string]*binding
}

type binding struct {
	class  string
	tp     reflect.Type // struct type
	fields []field
}

type field struct {
	index    int
	property string // expanded property, or uriTag
}

// Register binds the struct type of prototype to class.
// prototype must be a struct or a pointer to a struct.
func (registry *Registry) Register(class string, prototype any) error {
	tp := reflect.TypeOf(prototype)
	if tp != nil && tp.Kind() == reflect.Pointer {
		tp = tp.Elem()
	}
	if tp == nil || tp.Kind() != reflect.Struct {
		return fmt.Errorf("semantic: prototype for %q is not a struct", class)
	}

	b, err := bind(expand(class), tp)
	if err != nil {
		return err
	}

	registry.m.Lock()
	defer registry.m.Unlock()

	if registry.types == nil {
		registry.types = make(map[string]*binding)
	}
	registry.types[b.class] = b
	return nil
}

func bind(class string, tp reflect.Type) (*binding, error) {
	b := &binding{class: class, tp: tp}
	for i := range tp.NumField() {
		sf := tp.Field(i)
		tag, ok := sf.Tag.Lookup(TagName)
		if !ok || tag == "-" || !sf.IsExported() {
			continue
		}

		if tag == uriTag {
			if sf.Type.Kind() != reflect.String {
				return nil, fmt.Errorf("%w: %s.%s must be a string", errUnsupportedField, tp.Name(), sf.Name)
			}
			b.fields = append(b.fields, field{index: i, property: uriTag})
			continue
		}

		if !supported(sf.Type) {
			return nil, fmt.Errorf("%w: %s.%s has type %s", errUnsupportedField, tp.Name(), sf.Name, sf.Type)
		}
		b.fields = append(b.fields, field{index: i, property: expand(tag)})
	}
	return b, nil
}

func supported(tp reflect.Type) bool {
	switch tp {
	case timeType, termType, objectType:
		return true
	}
	switch tp.Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	case reflect.Slice:
		elem := tp.Elem()
		return elem.Kind() == reflect.String || elem == termType || elem == objectType
	}
	return false
}

// Classes returns the uris of all registered classes.
func (registry *Registry) Classes() []string {
	registry.m.RLock()
	defer registry.m.RUnlock()

	classes := make([]string, 0, len(registry.types))
	for class := range registry.types {
		classes = append(classes, class)
	}
	return classes
}

// find finds the binding for the most specific registered class of object
func (registry *Registry) find(ctx context.Context, object *Object) (*binding, error) {
	types, err := object.Types(ctx)
	if err != nil {
		return nil, err
	}

	registry.m.RLock()
	defer registry.m.RUnlock()

	// exact types win if there is no ontology
	ontology := object.model.Ontology
	if ontology == nil {
		for _, tp := range types {
			if b, ok := registry.types[tp]; ok {
				return b, nil
			}
		}
		return nil, fmt.Errorf("%w: %q", ErrNotRegistered, object.uri)
	}

	var candidates []*Class
	for class := range registry.types {
		target, err := ontology.Class(class)
		if err != nil {
			continue
		}
		if matchesClass(ontology, types, target.URI) {
			candidates = append(candidates, target)
		}
	}

	if class := mostSpecific(candidates); class != nil {
		return registry.types[class.URI], nil
	}

	for _, tp := range types {
		if b, ok := registry.types[tp]; ok {
			return b, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrNotRegistered, object.uri)
}

// Instantiate creates a new value for object.
// The type of the value is the one registered for the most specific class of object,
// walking up the super classes if needed.
// The returned value is a pointer to a struct, filled as by [Registry.Fill].
func (registry *Registry) Instantiate(ctx context.Context, object *Object) (any, error) {
	b, err := registry.find(ctx, object)
	if err != nil {
		return nil, err
	}

	value := reflect.New(b.tp)
	if err := b.fill(ctx, object, value.Elem()); err != nil {
		return nil, err
	}
	return value.Interface(), nil
}

// Fill fills the tagged fields of dest with the values of object.
// dest must be a pointer to a struct.
// Fields whose property has no value are left unchanged.
func Fill(ctx context.Context, object *Object, dest any) error {
	value, b, err := reflectStruct(dest)
	if err != nil {
		return err
	}
	return b.fill(ctx, object, value)
}

// Store writes the tagged fields of value back to object.
// value must be a struct or a pointer to a struct.
//
// Empty strings, zero times and empty slices remove the property.
func Store(ctx context.Context, object *Object, value any) error {
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return fmt.Errorf("semantic: cannot store %T", value)
	}

	b, err := bind("", rv.Type())
	if err != nil {
		return err
	}

	for _, f := range b.fields {
		if f.property == uriTag {
			continue
		}

		terms, err := toTerms(object, f.property, rv.Field(f.index))
		if err != nil {
			return err
		}
		if err := object.Set(ctx, f.property, terms...); err != nil {
			return err
		}
	}
	return nil
}

func reflectStruct(dest any) (reflect.Value, *binding, error) {
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return reflect.Value{}, nil, fmt.Errorf("semantic: expected a pointer to a struct, got %T", dest)
	}
	rv = rv.Elem()

	b, err := bind("", rv.Type())
	if err != nil {
		return reflect.Value{}, nil, err
	}
	return rv, b, nil
}

func (b *binding) fill(ctx context.Context, object *Object, dest reflect.Value) error {
	for _, f := range b.fields {
		target := dest.Field(f.index)

		if f.property == uriTag {
			target.SetString(object.uri)
			continue
		}

		values, err := object.GetAll(ctx, f.property)
		if err != nil {
			return err
		}
		if len(values) == 0 {
			continue
		}

		if err := setField(ctx, object, target, values); err != nil {
			return fmt.Errorf("failed to fill %s from %q: %w", dest.Type().Field(f.index).Name, f.property, err)
		}
	}
	return nil
}

func setField(ctx context.Context, object *Object, target reflect.Value, values []rdf.Term) error {
	first := values[0]

	switch target.Type() {
	case termType:
		target.Set(reflect.ValueOf(first))
		return nil
	case timeType:
		t, err := parseTime(first.Value)
		if err != nil {
			return err
		}
		target.Set(reflect.ValueOf(t))
		return nil
	case objectType:
		linked, err := object.model.Object(ctx, first.Value)
		if err != nil {
			return err
		}
		target.Set(reflect.ValueOf(linked))
		return nil
	}

	switch target.Kind() {
	case reflect.String:
		target.SetString(first.Value)
	case reflect.Bool:
		b, err := strconv.ParseBool(first.Value)
		if err != nil {
			return err
		}
		target.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := strconv.ParseInt(first.Value, 10, target.Type().Bits())
		if err != nil {
			return err
		}
		target.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(first.Value, 10, target.Type().Bits())
		if err != nil {
			return err
		}
		target.SetUint(u)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(first.Value, target.Type().Bits())
		if err != nil {
			return err
		}
		target.SetFloat(f)
	case reflect.Slice:
		slice := reflect.MakeSlice(target.Type(), 0, len(values))
		for _, value := range values {
			switch target.Type().Elem() {
			case termType:
				slice = reflect.Append(slice, reflect.ValueOf(value))
			case objectType:
				linked, err := object.model.Object(ctx, value.Value)
				if isNotFound(err) {
					continue
				}
				if err != nil {
					return err
				}
				slice = reflect.Append(slice, reflect.ValueOf(linked))
			default:
				slice = reflect.Append(slice, reflect.ValueOf(value.Value).Convert(target.Type().Elem()))
			}
		}
		target.Set(slice)
	}
	return nil
}

// toTerms converts a field value into terms for property.
func toTerms(object *Object, property string, value reflect.Value) ([]rdf.Term, error) {
	switch value.Type() {
	case termType:
		term := value.Interface().(rdf.Term)
		if term.Kind == rdf.KindInvalid {
			return nil, nil
		}
		return []rdf.Term{term}, nil
	case timeType:
		t := value.Interface().(time.Time)
		if t.IsZero() {
			return nil, nil
		}
		return []rdf.Term{dateTime(t)}, nil
	case objectType:
		if value.IsNil() {
			return nil, nil
		}
		return []rdf.Term{rdf.IRI(value.Interface().(*Object).URI())}, nil
	}

	switch value.Kind() {
	case reflect.String:
		if value.String() == "" {
			return nil, nil
		}
		return []rdf.Term{object.text(property, value.String())}, nil
	case reflect.Bool:
		return []rdf.Term{rdf.Bool(value.Bool())}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return []rdf.Term{rdf.Int(value.Int())}, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return []rdf.Term{rdf.TypedLiteral(strconv.FormatUint(value.Uint(), 10), vocab.Integer)}, nil
	case reflect.Float32, reflect.Float64:
		return []rdf.Term{rdf.Float(value.Float())}, nil
	case reflect.Slice:
		terms := make([]rdf.Term, 0, value.Len())
		for i := range value.Len() {
			elem, err := toTerms(object, property, value.Index(i))
			if err != nil {
				return nil, err
			}
			terms = append(terms, elem...)
		}
		return terms, nil
	}
	return nil, fmt.Errorf("%w: %s", errUnsupportedField, value.Type())
}

// text returns a term for a string value of property.
// Values of object properties become iris, everything else a plain literal.
func (object *Object) text(property, value string) rdf.Term {
	if p, err := object.property(property); err == nil && p.IsObjectProperty() && strings.Contains(value, ":") {
		return rdf.IRI(value)
	}
	return rdf.Literal(value)
}
