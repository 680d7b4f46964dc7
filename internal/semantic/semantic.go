// Package semantic represents domain objects as rdf resources.
//
// An [Ontology] describes classes and properties.
// A [Model] is a graph inside a triplestore; its resources are exposed as [Object]s,
// which load their statements lazily and are shared through a [Cache].
package semantic

import (
	"errors"

	"github.com/haxdai/SWBPlatform-sub000/internal/rdf/vocab"
)

var (
	ErrClassNotFound    = errors.New("semantic: class not found")
	ErrPropertyNotFound = errors.New("semantic: property not found")
	ErrNotFound         = errors.New("semantic: object not found")
	ErrExists           = errors.New("semantic: object already exists")
	ErrNoValue          = errors.New("semantic: property has no value")
	ErrNotRegistered    = errors.New("semantic: no type registered for class")
)

// expand expands a prefixed property or class name
func expand(name string) string {
	return vocab.Expand(name)
}

func isNoValue(err error) bool {
	return errors.Is(err, ErrNoValue)
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
