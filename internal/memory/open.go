package memory

import (
	"context"
	"fmt"
)

// Store backends accepted by Open.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
)

// schemaStore is a store that can create its own tables or indexes.
type schemaStore interface {
	Store
	InitSchema(ctx context.Context) error
}

// Open connects to the named backend and prepares its schema. dsn is a SQLite
// path, a Postgres URL or a Mongo URI; database is only used by Mongo.
func Open(ctx context.Context, backend, dsn, database string) (Store, error) {
	var (
		store schemaStore
		err   error
	)

	switch backend {
	case BackendSQLite, "":
		store, err = NewSQLiteStore(ctx, dsn)
	case BackendPostgres:
		store, err = NewPostgresStore(ctx, dsn)
	case BackendMongo:
		store, err = NewMongoStore(ctx, dsn, database)
	default:
		return nil, fmt.Errorf("unknown store backend: %q", backend)
	}
	if err != nil {
		return nil, err
	}

	if err := store.InitSchema(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize %s schema: %w", backend, err)
	}
	return store, nil
}
