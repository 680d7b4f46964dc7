package semantic

import (
	"fmt"
	"log/slog"
	"sync"
)

// EventKind is the kind of change an observer is notified about.
type EventKind int

const (
	Created EventKind = iota + 1
	Updated
	Removed
)

func (kind EventKind) String() string {
	switch kind {
	case Created:
		return "created"
	case Updated:
		return "updated"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// Event describes a change to an object.
type Event struct {
	Kind   EventKind
	Object *Object

	// Property is the uri of the changed property, if any.
	Property string

	// Types holds the types of the object at the time of the event.
	// For removed objects, these are the types before removal.
	Types []string
}

// Observer is notified about changes to objects.
type Observer interface {
	Notify(event Event) error
}

// ObserverFunc implements Observer.
type ObserverFunc func(event Event) error

func (of ObserverFunc) Notify(event Event) error {
	return of(event)
}

// Observers dispatches events to observers.
// The zero value is ready to use.
type Observers struct {
	Logger *slog.Logger

	m         sync.RWMutex
	global    []Observer
	classes   []string
	observers []Observer
}

// Observe registers obs for events on instances of class and its sub classes.
// An empty class registers a global observer.
func (observers *Observers) Observe(class string, obs Observer) {
	observers.m.Lock()
	defer observers.m.Unlock()

	if class == "" {
		observers.global = append(observers.global, obs)
		return
	}
	observers.classes = append(observers.classes, expand(class))
	observers.observers = append(observers.observers, obs)
}

// Notify dispatches event to all matching observers.
// The ontology is used to match sub classes, and may be nil.
//
// Observers are called synchronously in order of registration.
// Errors and panics of observers are logged and do not stop other observers.
func (observers *Observers) Notify(ontology *Ontology, event Event) {
	if observers == nil {
		return
	}

	observers.m.RLock()
	targets := make([]Observer, 0, len(observers.global))
	targets = append(targets, observers.global...)
	for i, class := range observers.classes {
		if matchesClass(ontology, event.Types, class) {
			targets = append(targets, observers.observers[i])
		}
	}
	observers.m.RUnlock()

	for _, target := range targets {
		if err := notify(target, event); err != nil {
			observers.logger().Error("observer failed",
				slog.String("kind", event.Kind.String()),
				slog.String("object", event.Object.URI()),
				slog.Any("err", err),
			)
		}
	}
}

func (observers *Observers) logger() *slog.Logger {
	if observers.Logger == nil {
		return slog.Default()
	}
	return observers.Logger
}

func notify(target Observer, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("observer panic: %v", r)
		}
	}()
	return target.Notify(event)
}

// matchesClass checks if any of types is class or a sub class of class.
func matchesClass(ontology *Ontology, types []string, class string) bool {
	var target *Class
	if ontology != nil {
		target, _ = ontology.Class(class)
	}

	for _, tp := range types {
		if tp == class {
			return true
		}
		if target == nil {
			continue
		}
		if c, err := ontology.Class(tp); err == nil && c.IsSubClassOf(target) {
			return true
		}
	}
	return false
}
