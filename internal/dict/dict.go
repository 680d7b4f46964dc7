package dict

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
)

// Entry is the value stored for every key in a dictionary.
type Entry struct {
	// Canonical is the id used for lookups.
	// It differs from Literal when the key was marked identical to another key.
	Canonical ID

	// Literal is the id originally assigned to the key.
	Literal ID
}

// MarshalEntry encodes an entry as two consecutive ids.
func MarshalEntry(entry Entry) ([]byte, error) {
	return EncodeIDs(entry.Canonical, entry.Literal), nil
}

// UnmarshalEntry decodes an entry encoded with MarshalEntry.
func UnmarshalEntry(dest *Entry, src []byte) error {
	return UnmarshalIDs(src, &dest.Canonical, &dest.Literal)
}

// Engine creates the storages backing a Dict.
type Engine interface {
	Forward() (Storage[string, Entry], error)
	Reverse() (Storage[ID, string], error)
}

// MemoryEngine keeps dictionaries in memory.
type MemoryEngine struct{}

func (MemoryEngine) Forward() (Storage[string, Entry], error) {
	return NewMemory[string, Entry](0), nil
}

func (MemoryEngine) Reverse() (Storage[ID, string], error) {
	return NewMemory[ID, string](0), nil
}

// LevelEngine keeps dictionaries inside a leveldb database.
//
// Either DB (shared with other users, keys are prefixed) or Path (one
// database per direction) must be set.
type LevelEngine struct {
	DB   *leveldb.DB
	Path string
}

var (
	forwardPrefix = []byte("d:f:")
	reversePrefix = []byte("d:r:")
)

func (le LevelEngine) Forward() (Storage[string, Entry], error) {
	var ls *LevelDB[string, Entry]
	if le.DB != nil {
		ls = WrapLevelDB[string, Entry](le.DB, forwardPrefix)
	} else {
		var err error
		ls, err = OpenLevelDB[string, Entry](filepath.Join(le.Path, "forward.leveldb"), false)
		if err != nil {
			return nil, err
		}
	}

	ls.MarshalKey = func(key string) ([]byte, error) { return []byte(key), nil }
	ls.UnmarshalKey = func(dest *string, src []byte) error {
		*dest = string(src)
		return nil
	}
	ls.MarshalValue = MarshalEntry
	ls.UnmarshalValue = UnmarshalEntry
	return ls, nil
}

func (le LevelEngine) Reverse() (Storage[ID, string], error) {
	var ls *LevelDB[ID, string]
	if le.DB != nil {
		ls = WrapLevelDB[ID, string](le.DB, reversePrefix)
	} else {
		var err error
		ls, err = OpenLevelDB[ID, string](filepath.Join(le.Path, "reverse.leveldb"), false)
		if err != nil {
			return nil, err
		}
	}

	ls.MarshalKey = MarshalID
	ls.UnmarshalKey = UnmarshalID
	ls.MarshalValue = func(value string) ([]byte, error) { return []byte(value), nil }
	ls.UnmarshalValue = func(dest *string, src []byte) error {
		*dest = string(src)
		return nil
	}
	return ls, nil
}

// Dict holds forward and reverse mappings between keys and ids.
//
// Lookups may happen concurrently; calls that assign ids are serialized internally.
// The zero Dict is not ready for use, see [Open].
type Dict struct {
	m sync.Mutex // held while assigning ids

	forward Storage[string, Entry]
	reverse Storage[ID, string]

	last ID // last id handed out
}

// Open opens a dictionary using the given engine.
// Existing mappings in the engine are kept.
func Open(engine Engine) (_ *Dict, err error) {
	var dict Dict

	dict.forward, err = engine.Forward()
	if err != nil {
		return nil, fmt.Errorf("failed to open forward storage: %w", err)
	}

	dict.reverse, err = engine.Reverse()
	if err != nil {
		dict.forward.Close()
		return nil, fmt.Errorf("failed to open reverse storage: %w", err)
	}

	// ids are handed out densely, so the counter can be recovered from the size.
	count, err := dict.reverse.Count()
	if err != nil {
		dict.Close()
		return nil, fmt.Errorf("failed to count reverse storage: %w", err)
	}
	dict.last = FromUint32(uint32(count))

	return &dict, nil
}

// Len returns the number of ids handed out so far.
func (dict *Dict) Len() int {
	dict.m.Lock()
	defer dict.m.Unlock()

	return int(dict.last.Uint32())
}

// Intern returns the entry for key, assigning a new id if needed.
func (dict *Dict) Intern(key string) (Entry, error) {
	entry, _, err := dict.intern(key)
	return entry, err
}

func (dict *Dict) intern(key string) (entry Entry, old bool, err error) {
	// fast path: no lock needed
	entry, ok, err := dict.forward.Get(key)
	if err != nil || ok {
		return entry, ok, err
	}

	dict.m.Lock()
	defer dict.m.Unlock()

	// someone else might have added it in the meantime
	entry, ok, err = dict.forward.Get(key)
	if err != nil || ok {
		return entry, ok, err
	}

	id := dict.last.Inc()
	entry = Entry{Canonical: id, Literal: id}

	if err := dict.reverse.Set(id, key); err != nil {
		return entry, false, fmt.Errorf("failed to store reverse mapping: %w", err)
	}
	if err := dict.forward.Set(key, entry); err != nil {
		return entry, false, fmt.Errorf("failed to store forward mapping: %w", err)
	}
	return entry, false, nil
}

// Lookup returns the canonical id for key without assigning one.
// The boolean indicates if key is known.
func (dict *Dict) Lookup(key string) (ID, bool, error) {
	entry, ok, err := dict.forward.Get(key)
	return entry.Canonical, ok, err
}

// Resolve returns the key belonging to id.
func (dict *Dict) Resolve(id ID) (string, bool, error) {
	return dict.reverse.Get(id)
}

// MarkIdentical makes alias resolve to the canonical id of canonical.
// Every key that previously resolved to the canonical id of alias is updated as well.
//
// This potentially iterates over the entire dictionary, and should be used sparingly.
func (dict *Dict) MarkIdentical(canonical, alias string) (ID, error) {
	target, err := dict.Intern(canonical)
	if err != nil {
		return ID{}, err
	}
	source, old, err := dict.intern(alias)
	if err != nil {
		return ID{}, err
	}
	if source.Canonical == target.Canonical {
		return target.Canonical, nil
	}

	dict.m.Lock()
	defer dict.m.Unlock()

	if !old {
		source.Canonical = target.Canonical
		return target.Canonical, dict.forward.Set(alias, source)
	}

	// collect first, as storages may not be modified during iteration
	var update []string
	err = dict.forward.Iterate(func(key string, entry Entry) error {
		if entry.Canonical == source.Canonical && key != canonical {
			update = append(update, key)
		}
		return nil
	})
	if err != nil {
		return ID{}, err
	}

	for _, key := range update {
		entry, _, err := dict.forward.Get(key)
		if err != nil {
			return ID{}, err
		}
		entry.Canonical = target.Canonical
		if err := dict.forward.Set(key, entry); err != nil {
			return ID{}, err
		}
	}
	return target.Canonical, nil
}

// Close closes the storages backing this dictionary.
func (dict *Dict) Close() error {
	var errs []error
	if dict.forward != nil {
		errs = append(errs, dict.forward.Close())
		dict.forward = nil
	}
	if dict.reverse != nil {
		errs = append(errs, dict.reverse.Close())
		dict.reverse = nil
	}
	return errors.Join(errs...)
}
