package dict

import (
	"fmt"
	"strconv"
	"testing"
)

func ExampleDict() {
	dict, _ := Open(MemoryEngine{})
	defer dict.Close()

	intern := func(key string) {
		entry, err := dict.Intern(key)
		fmt.Println("intern", key, entry.Canonical, err)
	}

	intern("hello")
	intern("world")
	intern("earth")
	intern("hello")

	dict.MarkIdentical("earth", "world")

	lookup := func(key string) {
		id, ok, err := dict.Lookup(key)
		fmt.Println("lookup", key, id, ok, err)
	}
	lookup("world")
	lookup("earth")
	lookup("mars")

	key, _, _ := dict.Resolve(FromUint32(2))
	fmt.Println("resolve", key)

	// Output: intern hello ID(1) <nil>
	// intern world ID(2) <nil>
	// intern earth ID(3) <nil>
	// intern hello ID(1) <nil>
	// lookup world ID(3) true <nil>
	// lookup earth ID(3) true <nil>
	// lookup mars ID(0) false <nil>
	// resolve world
}

// engineTest performs a test for a given engine
func engineTest(t *testing.T, engine Engine, N int) {
	dict, err := Open(engine)
	if err != nil {
		t.Fatalf("Open() returned error %s", err)
	}
	defer dict.Close()

	// make i == i + 1
	for i := 0; i < N; i += 2 {
		canon, err := dict.MarkIdentical(strconv.Itoa(i), strconv.Itoa(i+1))
		if err != nil {
			t.Fatalf("MarkIdentical returned error %s", err)
		}
		if got, want := canon.Uint32(), uint32(i+1); got != want {
			t.Errorf("MarkIdentical() got id = %d, want = %d", got, want)
		}
	}

	// check that forward mappings work
	for i := 0; i < N; i++ {
		id, ok, err := dict.Lookup(strconv.Itoa(i))
		if err != nil || !ok {
			t.Errorf("Lookup() returned ok = %v, error %v", ok, err)
		}
		if got, want := int(id.Uint32()), i-(i%2)+1; got != want {
			t.Errorf("Lookup() got = %d, want = %d", got, want)
		}
	}

	// check that reverse mappings work
	for i := 1; i < N; i++ {
		got, ok, err := dict.Resolve(FromUint32(uint32(i)))
		if err != nil || !ok {
			t.Errorf("Resolve() returned ok = %v, error %v", ok, err)
		}
		if want := strconv.Itoa(i - 1); got != want {
			t.Errorf("Resolve(%d) got = %q, want = %q", i, got, want)
		}
	}

	if got := dict.Len(); got != N {
		t.Errorf("Len() = %d, want = %d", got, N)
	}
}

func TestMemoryEngine(t *testing.T) {
	engineTest(t, MemoryEngine{}, 10_000)
}

func TestLevelEngine(t *testing.T) {
	engineTest(t, LevelEngine{Path: t.TempDir()}, 10_000)
}

func TestLevelEngine_Reopen(t *testing.T) {
	dir := t.TempDir()

	dict, err := Open(LevelEngine{Path: dir})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		if _, err := dict.Intern(strconv.Itoa(i)); err != nil {
			t.Fatal(err)
		}
	}
	if err := dict.Close(); err != nil {
		t.Fatal(err)
	}

	dict, err = Open(LevelEngine{Path: dir})
	if err != nil {
		t.Fatal(err)
	}
	defer dict.Close()

	entry, err := dict.Intern("new")
	if err != nil {
		t.Fatal(err)
	}
	if got := entry.Canonical.Uint32(); got != 11 {
		t.Errorf("Intern() after reopen got id %d, want 11", got)
	}

	id, ok, err := dict.Lookup("3")
	if err != nil || !ok || id.Uint32() != 4 {
		t.Errorf("Lookup() after reopen = %s, %v, %v", id, ok, err)
	}
}
