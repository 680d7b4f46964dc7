// Package swb holds helpers shared by the platform commands.
package swb

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/haxdai/SWBPlatform-sub000/internal/rdf"
)

var errNoSources = errors.New("need at least one file or directory")

// Source is a file holding rdf statements.
type Source struct {
	Path   string
	Format rdf.Format
}

// FindSources finds the rdf files named by paths.
//
// Files are used as given, their format is guessed from their extension.
// Directories contribute every file with a known rdf extension directly inside them, ordered by name.
// FindSources does not guarantee that sources are loadable.
func FindSources(paths ...string) ([]Source, error) {
	if len(paths) == 0 {
		return nil, errNoSources
	}

	var sources []Source
	for _, path := range paths {
		isDir, err := isDirectory(path)
		if err != nil {
			return nil, err
		}

		if !isDir {
			format, err := rdf.FormatFromPath(path)
			if err != nil {
				return nil, err
			}
			sources = append(sources, Source{Path: path, Format: format})
			continue
		}

		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, err
		}

		found := 0
		for _, entry := range entries {
			if !entry.Type().IsRegular() {
				continue
			}
			format, err := rdf.FormatFromPath(entry.Name())
			if err != nil {
				continue
			}
			sources = append(sources, Source{Path: filepath.Join(path, entry.Name()), Format: format})
			found++
		}
		if found == 0 {
			return nil, fmt.Errorf("no rdf files in %q", path)
		}
	}

	// a file named twice is only imported once
	seen := make(map[string]struct{}, len(sources))
	return slices.DeleteFunc(sources, func(source Source) bool {
		_, dup := seen[source.Path]
		seen[source.Path] = struct{}{}
		return dup
	}), nil
}

func isDirectory(path string) (ok bool, err error) {
	stats, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return stats.Mode().IsDir(), nil
}
