package semantic

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/haxdai/SWBPlatform-sub000/internal/dict"
	"github.com/haxdai/SWBPlatform-sub000/internal/rdf"
	"github.com/haxdai/SWBPlatform-sub000/internal/rdf/vocab"
	"github.com/haxdai/SWBPlatform-sub000/internal/triplestore"
)

// Options configure a model.
type Options struct {
	// Graph is the graph holding the statements of this model.
	// The empty string denotes the default graph.
	Graph string

	Ontology  *Ontology  // used for class lookups and inverse properties; may be nil
	Observers *Observers // notified about changes; may be nil
	Cache     *Cache     // object cache; nil creates a new cache of CacheSize
	CacheSize int

	Logger *slog.Logger

	// OnAccess is called whenever an object is retrieved from the model.
	OnAccess func(uri string)

	// OnChange is called whenever the statements about an object were changed through the model.
	OnChange func(uri string)

	// OnReset is called when an unknown set of objects was changed, such as after an import.
	OnReset func()
}

// Model is a set of objects stored in a single graph of a triplestore.
type Model struct {
	Name      string
	Namespace string // prefix for the uris of new objects
	Graph     string

	Store     triplestore.Store
	Ontology  *Ontology
	Observers *Observers
	Cache     *Cache

	logger   *slog.Logger
	onAccess func(uri string)
	onChange func(uri string)
	onReset  func()

	aliases *dict.Dict // owl:sameAs aliases, mapped to their canonical uri
}

// NewModel creates a new model.
func NewModel(name, namespace string, store triplestore.Store, opts Options) (*Model, error) {
	aliases, err := dict.Open(dict.MemoryEngine{})
	if err != nil {
		return nil, fmt.Errorf("failed to open alias dictionary: %w", err)
	}

	model := &Model{
		Name:      name,
		Namespace: namespace,
		Graph:     opts.Graph,

		Store:     store,
		Ontology:  opts.Ontology,
		Observers: opts.Observers,
		Cache:     opts.Cache,

		logger:   opts.Logger,
		onAccess: opts.OnAccess,
		onChange: opts.OnChange,
		onReset:  opts.OnReset,

		aliases: aliases,
	}
	if model.Cache == nil {
		model.Cache = NewCache(opts.CacheSize)
	}
	if model.logger == nil {
		model.logger = slog.Default()
	}
	return model, nil
}

// URI returns the uri of an object with the given id in this model.
func (model *Model) URI(id string) string {
	if strings.Contains(id, "://") {
		return id
	}
	return model.Namespace + id
}

func (model *Model) pattern(subject, predicate, object *rdf.Term) rdf.Pattern {
	return rdf.Pattern{Subject: subject, Predicate: predicate, Object: object, Graph: model.Graph}
}

// Exists checks if the model contains any statement about uri.
func (model *Model) Exists(ctx context.Context, uri string) (bool, error) {
	count, err := model.Store.Count(ctx, model.pattern(rdf.Ref(rdf.IRI(uri)), nil, nil))
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// NewObject creates a new object of the given class.
// If id is empty, a random id is generated.
// If the ontology of this model does not know class, returns ErrClassNotFound.
func (model *Model) NewObject(ctx context.Context, class, id string) (*Object, error) {
	class = expand(class)
	if model.Ontology != nil {
		if _, err := model.Ontology.Class(class); err != nil {
			return nil, err
		}
	}

	if id == "" {
		id = uuid.NewString()
	}
	uri := model.URI(id)

	exists, err := model.Exists(ctx, uri)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: %q", ErrExists, uri)
	}

	subject := rdf.IRI(uri)
	err = model.Store.Add(ctx,
		rdf.Statement{Subject: subject, Predicate: rdf.IRI(vocab.Type), Object: rdf.IRI(class), Graph: model.Graph},
		rdf.Statement{Subject: subject, Predicate: rdf.IRI(vocab.Created), Object: dateTime(time.Now()), Graph: model.Graph},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create object: %w", err)
	}

	object := &Object{model: model, uri: uri}
	model.Cache.Put(object)

	model.changed(uri)
	model.notify(ctx, Created, object, "", nil)
	return object, nil
}

// Object returns the object with the given uri.
// Aliases declared with owl:sameAs resolve to their canonical object.
// If the model holds no statements about the object, returns ErrNotFound.
func (model *Model) Object(ctx context.Context, uri string) (*Object, error) {
	uri, err := model.Canonical(uri)
	if err != nil {
		return nil, err
	}

	object, err := model.Cache.Get(ctx, uri, func(ctx context.Context) (*Object, error) {
		exists, err := model.Exists(ctx, uri)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, uri)
		}
		return &Object{model: model, uri: uri}, nil
	})
	if err != nil {
		return nil, err
	}

	if model.onAccess != nil {
		model.onAccess(uri)
	}
	return object, nil
}

// Canonical returns the canonical uri for uri.
// Unless uri was declared an alias, it is returned unchanged.
func (model *Model) Canonical(uri string) (string, error) {
	id, ok, err := model.aliases.Lookup(rdf.IRI(uri).Key())
	if err != nil || !ok {
		return uri, err
	}
	key, ok, err := model.aliases.Resolve(id)
	if err != nil || !ok {
		return uri, err
	}
	return strings.TrimPrefix(key, "I"), nil
}

// LoadAliases reads all owl:sameAs statements of this model.
// For a statement "a owl:sameAs b", a becomes an alias of b.
func (model *Model) LoadAliases(ctx context.Context) error {
	stmts, err := triplestore.Collect(ctx, model.Store, model.pattern(nil, rdf.Ref(rdf.IRI(vocab.SameAs)), nil))
	if err != nil {
		return fmt.Errorf("failed to read aliases: %w", err)
	}
	for _, stmt := range stmts {
		if !stmt.Subject.IsIRI() || !stmt.Object.IsIRI() {
			continue
		}
		if err := model.alias(stmt.Object.Value, stmt.Subject.Value); err != nil {
			return err
		}
	}
	return nil
}

func (model *Model) alias(canonical, alias string) error {
	canonical, err := model.Canonical(canonical)
	if err != nil {
		return err
	}
	if canonical == alias {
		return nil
	}
	if _, err := model.aliases.MarkIdentical(rdf.IRI(canonical).Key(), rdf.IRI(alias).Key()); err != nil {
		return fmt.Errorf("failed to record alias: %w", err)
	}
	model.Cache.Remove(alias)
	return nil
}

// RemoveObject removes all statements with uri as subject or object.
func (model *Model) RemoveObject(ctx context.Context, uri string) error {
	object, err := model.Object(ctx, uri)
	if err != nil {
		return err
	}
	types, err := object.Types(ctx)
	if err != nil {
		return err
	}

	term := rdf.IRI(object.uri)

	// objects linking here are changed as well
	var linking []string
	err = model.Store.Match(ctx, model.pattern(nil, nil, &term), func(stmt rdf.Statement) error {
		if stmt.Subject.IsIRI() {
			linking = append(linking, stmt.Subject.Value)
		}
		return nil
	})
	if err != nil {
		return err
	}
	slices.Sort(linking)
	linking = slices.Compact(linking)

	if _, err := model.Store.Remove(ctx, model.pattern(&term, nil, nil)); err != nil {
		return fmt.Errorf("failed to remove object: %w", err)
	}
	if _, err := model.Store.Remove(ctx, model.pattern(nil, nil, &term)); err != nil {
		return fmt.Errorf("failed to remove references: %w", err)
	}

	model.Cache.Remove(object.uri)
	object.Refresh()
	for _, uri := range linking {
		model.Cache.Invalidate(uri)
	}

	model.changed(object.uri, linking...)
	model.notify(ctx, Removed, object, "", types)
	return nil
}

// Instances returns all objects that have class as a type.
// When inferred is true, instances of sub classes are included.
// Objects are returned ordered by uri.
func (model *Model) Instances(ctx context.Context, class string, inferred bool) ([]*Object, error) {
	classes := []string{expand(class)}
	if inferred && model.Ontology != nil {
		c, err := model.Ontology.Class(class)
		if err != nil {
			return nil, err
		}
		for _, sub := range c.SubClasses(false) {
			classes = append(classes, sub.URI)
		}
	}

	var uris []string
	for _, class := range classes {
		err := model.Store.Match(ctx, model.pattern(nil, rdf.Ref(rdf.IRI(vocab.Type)), rdf.Ref(rdf.IRI(class))), func(stmt rdf.Statement) error {
			if stmt.Subject.IsIRI() {
				uris = append(uris, stmt.Subject.Value)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	slices.Sort(uris)
	uris = slices.Compact(uris)

	objects := make([]*Object, 0, len(uris))
	for _, uri := range uris {
		object, err := model.Object(ctx, uri)
		if err != nil {
			return nil, err
		}
		objects = append(objects, object)
	}
	return objects, nil
}

// importBatchSize is the number of statements added to the store at once during import
const importBatchSize = 1024

// Import reads statements in the given format from r into this model.
// Graph names in the input are ignored.
// Returns the number of statements read.
func (model *Model) Import(ctx context.Context, r io.Reader, format rdf.Format) (count int, err error) {
	batch := make([]rdf.Statement, 0, importBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := model.Store.Add(ctx, batch...)
		batch = batch[:0]
		return err
	}

	err = rdf.Decode(r, format, model.Graph, func(stmt rdf.Statement) error {
		stmt.Graph = model.Graph
		batch = append(batch, stmt)
		count++

		if len(batch) < importBatchSize {
			return nil
		}
		return flush()
	})
	if err == nil {
		err = flush()
	}

	// earlier batches may have been written even if the import failed
	model.Cache.Clear()
	if count > 0 && model.onReset != nil {
		model.onReset()
	}
	if err != nil {
		return count, fmt.Errorf("failed to import: %w", err)
	}

	model.logger.Info("imported statements", slog.String("model", model.Name), slog.Int("count", count))
	return count, model.LoadAliases(ctx)
}

// Export writes all statements of this model to w.
func (model *Model) Export(ctx context.Context, w io.Writer, format rdf.Format) error {
	stmts, err := triplestore.Collect(ctx, model.Store, model.pattern(nil, nil, nil))
	if err != nil {
		return fmt.Errorf("failed to read model: %w", err)
	}
	triplestore.Sort(stmts)
	return rdf.Encode(w, format, stmts)
}

// changed calls the change hook for all uris
func (model *Model) changed(uri string, others ...string) {
	if model.onChange == nil {
		return
	}
	model.onChange(uri)
	for _, other := range others {
		model.onChange(other)
	}
}

// notify notifies the observers of this model.
// When types is nil, the current types of object are used.
func (model *Model) notify(ctx context.Context, kind EventKind, object *Object, property string, types []string) {
	if model.Observers == nil {
		return
	}
	if types == nil {
		var err error
		types, err = object.Types(ctx)
		if err != nil {
			model.logger.Error("failed to read types", slog.String("object", object.uri), slog.Any("err", err))
		}
	}
	model.Observers.Notify(model.Ontology, Event{
		Kind:     kind,
		Object:   object,
		Property: property,
		Types:    types,
	})
}

// Close releases resources held by the model.
// The underlying store is not closed.
func (model *Model) Close() error {
	model.Cache.Clear()
	return model.aliases.Close()
}
