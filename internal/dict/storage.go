package dict

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Storage is something that holds a set of key-value pairs.
type Storage[Key comparable, Value any] interface {
	// Close closes this storage
	Close() error

	// Set sets the given key to the given value
	Set(key Key, value Value) error

	// Get retrieves the value for key.
	// The second value indicates if the value was found.
	Get(key Key) (Value, bool, error)

	// Has is like Get, but returns only the second value.
	Has(key Key) (bool, error)

	// Delete deletes the given key from this storage
	Delete(key Key) error

	// Iterate calls f for all entries in Storage.
	//
	// When any f returns a non-nil error, that error is returned immediately to the caller
	// and iteration stops.
	//
	// There is no guarantee on order.
	Iterate(f func(Key, Value) error) error

	// Count counts the number of elements in this store
	Count() (uint64, error)
}

// Memory implements Storage as an in-memory map.
// It is safe for concurrent use.
type Memory[Key comparable, Value any] struct {
	m    sync.RWMutex
	data map[Key]Value
}

// NewMemory creates a new memory storage with the given capacity hint.
func NewMemory[Key comparable, Value any](size int) *Memory[Key, Value] {
	return &Memory[Key, Value]{data: make(map[Key]Value, size)}
}

func (ms *Memory[Key, Value]) Set(key Key, value Value) error {
	ms.m.Lock()
	defer ms.m.Unlock()

	if ms.data == nil {
		ms.data = make(map[Key]Value)
	}
	ms.data[key] = value
	return nil
}

func (ms *Memory[Key, Value]) Get(key Key) (Value, bool, error) {
	ms.m.RLock()
	defer ms.m.RUnlock()

	value, ok := ms.data[key]
	return value, ok, nil
}

func (ms *Memory[Key, Value]) Has(key Key) (bool, error) {
	_, ok, err := ms.Get(key)
	return ok, err
}

func (ms *Memory[Key, Value]) Delete(key Key) error {
	ms.m.Lock()
	defer ms.m.Unlock()

	delete(ms.data, key)
	return nil
}

// Iterate calls f for every entry.
// f must not modify ms.
func (ms *Memory[Key, Value]) Iterate(f func(Key, Value) error) error {
	ms.m.RLock()
	defer ms.m.RUnlock()

	for key, value := range ms.data {
		if err := f(key, value); err != nil {
			return err
		}
	}
	return nil
}

func (ms *Memory[Key, Value]) Count() (uint64, error) {
	ms.m.RLock()
	defer ms.m.RUnlock()

	return uint64(len(ms.data)), nil
}

// Close deletes all values from this storage
func (ms *Memory[Key, Value]) Close() error {
	ms.m.Lock()
	defer ms.m.Unlock()

	ms.data = nil
	return nil
}

// LevelDB implements Storage on top of a leveldb database.
//
// Keys may optionally be stored underneath a prefix, which allows several
// storages to share a single database.
type LevelDB[Key comparable, Value any] struct {
	DB     *leveldb.DB
	Prefix []byte

	// when set, Close does not close DB
	Shared bool

	MarshalKey     func(key Key) ([]byte, error)
	UnmarshalKey   func(dest *Key, src []byte) error
	MarshalValue   func(value Value) ([]byte, error)
	UnmarshalValue func(dest *Value, src []byte) error
}

// OpenLevelDB opens (or creates) a leveldb storage at the given path.
// When wipe is true, any existing data at path is deleted first.
//
// Keys and values default to a json encoding.
func OpenLevelDB[Key comparable, Value any](path string, wipe bool) (*LevelDB[Key, Value], error) {
	if wipe {
		if err := os.RemoveAll(path); err != nil {
			return nil, fmt.Errorf("failed to wipe %q: %w", path, err)
		}
	}

	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open leveldb: %w", err)
	}

	return WrapLevelDB[Key, Value](db, nil), nil
}

// WrapLevelDB creates a new storage for the given database and key prefix.
// The returned storage does not own db.
func WrapLevelDB[Key comparable, Value any](db *leveldb.DB, prefix []byte) *LevelDB[Key, Value] {
	return &LevelDB[Key, Value]{
		DB:     db,
		Prefix: prefix,
		Shared: prefix != nil,

		MarshalKey: func(key Key) ([]byte, error) {
			return json.Marshal(key)
		},
		UnmarshalKey: func(dest *Key, src []byte) error {
			return json.Unmarshal(src, dest)
		},
		MarshalValue: func(value Value) ([]byte, error) {
			return json.Marshal(value)
		},
		UnmarshalValue: func(dest *Value, src []byte) error {
			return json.Unmarshal(src, dest)
		},
	}
}

func (ls *LevelDB[Key, Value]) key(key Key) ([]byte, error) {
	keyB, err := ls.MarshalKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal key: %w", err)
	}
	if len(ls.Prefix) == 0 {
		return keyB, nil
	}
	return append(append(make([]byte, 0, len(ls.Prefix)+len(keyB)), ls.Prefix...), keyB...), nil
}

func (ls *LevelDB[Key, Value]) Set(key Key, value Value) error {
	keyB, err := ls.key(key)
	if err != nil {
		return err
	}
	valueB, err := ls.MarshalValue(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return ls.DB.Put(keyB, valueB, nil)
}

func (ls *LevelDB[Key, Value]) Get(key Key) (value Value, ok bool, err error) {
	keyB, err := ls.key(key)
	if err != nil {
		return value, false, err
	}

	valueB, err := ls.DB.Get(keyB, nil)
	if err == leveldb.ErrNotFound {
		return value, false, nil
	}
	if err != nil {
		return value, false, err
	}

	if err := ls.UnmarshalValue(&value, valueB); err != nil {
		return value, false, fmt.Errorf("failed to unmarshal value: %w", err)
	}
	return value, true, nil
}

func (ls *LevelDB[Key, Value]) Has(key Key) (bool, error) {
	keyB, err := ls.key(key)
	if err != nil {
		return false, err
	}
	return ls.DB.Has(keyB, nil)
}

func (ls *LevelDB[Key, Value]) Delete(key Key) error {
	keyB, err := ls.key(key)
	if err != nil {
		return err
	}
	return ls.DB.Delete(keyB, nil)
}

func (ls *LevelDB[Key, Value]) rng() *util.Range {
	if len(ls.Prefix) == 0 {
		return nil
	}
	return util.BytesPrefix(ls.Prefix)
}

func (ls *LevelDB[Key, Value]) Iterate(f func(Key, Value) error) error {
	it := ls.DB.NewIterator(ls.rng(), nil)
	defer it.Release()

	for it.Next() {
		var key Key
		if err := ls.UnmarshalKey(&key, it.Key()[len(ls.Prefix):]); err != nil {
			return fmt.Errorf("failed to unmarshal key: %w", err)
		}
		var value Value
		if err := ls.UnmarshalValue(&value, it.Value()); err != nil {
			return fmt.Errorf("failed to unmarshal value: %w", err)
		}
		if err := f(key, value); err != nil {
			return err
		}
	}
	return it.Error()
}

func (ls *LevelDB[Key, Value]) Count() (count uint64, err error) {
	it := ls.DB.NewIterator(ls.rng(), nil)
	defer it.Release()

	for it.Next() {
		count++
	}
	if err := it.Error(); err != nil {
		return 0, err
	}
	return count, nil
}

func (ls *LevelDB[Key, Value]) Close() error {
	if ls.DB == nil || ls.Shared {
		ls.DB = nil
		return nil
	}
	err := ls.DB.Close()
	ls.DB = nil
	return err
}
