package dict

import (
	"bytes"
	"fmt"
	"math/rand"
	"testing"
)

func ExampleID() {
	// the zero id isn't valid
	var id ID
	fmt.Println(id)
	fmt.Println(id.Valid())

	// after incrementing it is
	fmt.Println(id.Inc())
	fmt.Println(id.Valid())

	fmt.Println(id.Compare(FromUint32(10)))

	// Output: ID(0)
	// false
	// ID(1)
	// true
	// -1
}

const testIDSmall = 1 << 12

func TestID_Inc(t *testing.T) {
	var id ID
	for i := 0; i < testIDSmall; i++ {
		if got := int(id.Uint32()); got != i {
			t.Fatalf("Inc() got %d, want %d", got, i)
		}
		id.Inc()
	}
}

func TestID_Compare(t *testing.T) {
	source := rand.New(rand.NewSource(42))
	for i := 0; i < 1000; i++ {
		a, b := source.Uint32(), source.Uint32()
		idA, idB := FromUint32(a), FromUint32(b)

		want := 0
		switch {
		case a < b:
			want = -1
		case a > b:
			want = 1
		}

		if got := idA.Compare(idB); got != want {
			t.Errorf("Compare(%d, %d) = %d, want %d", a, b, got, want)
		}
		if got := bytes.Compare(EncodeIDs(idA), EncodeIDs(idB)); got != want {
			t.Errorf("bytes.Compare(%d, %d) = %d, want %d", a, b, got, want)
		}
	}
}

func TestEncodeIDs(t *testing.T) {
	ids := []ID{FromUint32(1), FromUint32(1 << 20), FromUint32(7)}
	encoded := EncodeIDs(ids...)
	for i, want := range ids {
		if got := DecodeID(encoded, i); got != want {
			t.Errorf("DecodeID(%d) = %s, want %s", i, got, want)
		}
	}

	var a, b ID
	if err := UnmarshalIDs(encoded[:IDLen], &a, &b); err == nil {
		t.Error("UnmarshalIDs() on short input did not fail")
	}
}
