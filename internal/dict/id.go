// Package dict implements dictionary encoding of rdf terms into compact ids.
package dict

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// cspell:words dict

// ID identifies a single interned term.
// The zero ID is never handed out and is used to signal absence.
//
// Internally an ID is a big endian uint32, so that byte-wise comparison
// of encoded ids matches numerical comparison.
type ID [4]byte

// IDLen is the length of an encoded ID
const IDLen = len(ID{})

// Valid checks if this ID is valid
func (id ID) Valid() bool {
	return id != ID{}
}

// Reset resets this id to the invalid id
func (id *ID) Reset() {
	*id = ID{}
}

// Uint32 returns the numerical value of this id.
func (id ID) Uint32() uint32 {
	return binary.BigEndian.Uint32(id[:])
}

// FromUint32 returns the id with the given numerical value.
func FromUint32(value uint32) (id ID) {
	binary.BigEndian.PutUint32(id[:], value)
	return
}

// Inc increments this ID and returns the new value.
//
// Inc panics when the id space is exhausted.
func (id *ID) Inc() ID {
	value := id.Uint32() + 1
	if value == 0 {
		panic("Inc: Overflow")
	}
	*id = FromUint32(value)
	return *id
}

// Compare compares this id to another id.
func (id ID) Compare(other ID) int {
	return bytes.Compare(id[:], other[:])
}

func (id ID) String() string {
	return fmt.Sprintf("ID(%d)", id.Uint32())
}

// Encode writes id into dest, which must be at least IDLen bytes long.
func (id ID) Encode(dest []byte) {
	_ = dest[IDLen-1] // bounds hint
	copy(dest, id[:])
}

// Decode reads id from src, which must be at least IDLen bytes long.
func (id *ID) Decode(src []byte) {
	_ = src[IDLen-1] // bounds hint
	copy(id[:], src)
}

// EncodeIDs encodes ids sequentially into a new slice.
func EncodeIDs(ids ...ID) []byte {
	dest := make([]byte, len(ids)*IDLen)
	for i, id := range ids {
		id.Encode(dest[i*IDLen:])
	}
	return dest
}

// DecodeID decodes the id with the given index from src.
func DecodeID(src []byte, index int) (id ID) {
	id.Decode(src[index*IDLen:])
	return
}

var errShortID = errors.New("dict: not enough bytes for id")

// MarshalID encodes a single id.
func MarshalID(id ID) ([]byte, error) {
	return EncodeIDs(id), nil
}

// UnmarshalID is like Decode, but returns an error when src is too short.
func UnmarshalID(dest *ID, src []byte) error {
	if len(src) < IDLen {
		return errShortID
	}
	dest.Decode(src)
	return nil
}

// UnmarshalIDs decodes one id for every destination.
func UnmarshalIDs(src []byte, dests ...*ID) error {
	if len(src) < len(dests)*IDLen {
		return errShortID
	}
	for i, dest := range dests {
		dest.Decode(src[i*IDLen:])
	}
	return nil
}
