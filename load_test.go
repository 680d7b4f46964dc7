package swb

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/haxdai/SWBPlatform-sub000/internal/rdf"
)

func TestFindSources(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.ttl", "a.nq", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}
	single := filepath.Join(dir, "a.nq")

	got, err := FindSources(dir, single)
	if err != nil {
		t.Fatal(err)
	}
	want := []Source{
		{Path: single, Format: rdf.NQuads},
		{Path: filepath.Join(dir, "b.ttl"), Format: rdf.Turtle},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("FindSources() = %v, want %v", got, want)
	}

	if _, err := FindSources(); err == nil {
		t.Error("FindSources() without arguments did not fail")
	}
	if _, err := FindSources(filepath.Join(dir, "notes.txt")); err == nil {
		t.Error("FindSources() accepted an unknown format")
	}
	if _, err := FindSources(t.TempDir()); err == nil {
		t.Error("FindSources() accepted an empty directory")
	}
}
