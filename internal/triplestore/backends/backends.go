// Package backends opens triplestores from their configuration.
package backends

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/haxdai/SWBPlatform-sub000/internal/config"
	"github.com/haxdai/SWBPlatform-sub000/internal/ddl"
	"github.com/haxdai/SWBPlatform-sub000/internal/triplestore"
	"github.com/haxdai/SWBPlatform-sub000/internal/triplestore/cached"
	"github.com/haxdai/SWBPlatform-sub000/internal/triplestore/leveldb"
	"github.com/haxdai/SWBPlatform-sub000/internal/triplestore/memory"
	"github.com/haxdai/SWBPlatform-sub000/internal/triplestore/remote"
	"github.com/haxdai/SWBPlatform-sub000/internal/triplestore/sqlstore"
)

// Open opens the store described by sc.
func Open(ctx context.Context, sc config.StoreConfig, logger *slog.Logger) (triplestore.Store, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}

	store, err := open(ctx, sc, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", sc.Type, err)
	}

	if sc.Cache {
		return cached.New(store, sc.CacheSize), nil
	}
	return store, nil
}

func open(ctx context.Context, sc config.StoreConfig, logger *slog.Logger) (triplestore.Store, error) {
	switch sc.Type {
	case config.StoreMemory:
		return memory.New(), nil
	case config.StoreLevelDB:
		return leveldb.Open(sc.Path, false)
	case config.StoreSQL:
		var schema *ddl.Schema
		if sc.Schema != "" {
			var err error
			schema, err = ddl.ParseFile(sc.Schema)
			if err != nil {
				return nil, err
			}
		}
		return sqlstore.Open(ctx, sqlstore.Config{
			Driver:      sc.Driver,
			DSN:         sc.DSN,
			Dialect:     sc.Dialect,
			Schema:      schema,
			MaxSessions: sc.MaxSessions,
			Logger:      logger,
		})
	case config.StoreRemote:
		return remote.New(sc.URL, nil)
	}
	panic("never reached")
}
