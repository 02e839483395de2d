// Package storage selects the persistence backend.
package storage

import (
	"context"
	"fmt"

	"github.com/bobmcallan/simtrade/internal/common"
	"github.com/bobmcallan/simtrade/internal/interfaces"
	"github.com/bobmcallan/simtrade/internal/storage/sqlstore"
	"github.com/bobmcallan/simtrade/internal/storage/surrealdb"
)

// NewStorageManager opens the backend named in config.
// Supported backends: "sqlite" (default), "postgres", "surrealdb".
func NewStorageManager(ctx context.Context, logger *common.Logger, config common.StorageConfig) (interfaces.StorageManager, error) {
	backend := config.Backend
	if backend == "" {
		backend = common.BackendSQLite
	}

	var (
		m   interfaces.StorageManager
		err error
	)
	switch backend {
	case common.BackendSQLite:
		m, err = asManager(sqlstore.OpenSQLite(ctx, config.DSN, logger))

	case common.BackendPostgres:
		if config.DSN == "" {
			return nil, fmt.Errorf("postgres backend requires storage.dsn")
		}
		m, err = asManager(sqlstore.OpenPostgres(ctx, config.DSN, logger))

	case common.BackendSurrealDB:
		m, err = asManager(surrealdb.NewManager(ctx, logger, config))

	default:
		return nil, fmt.Errorf("unknown storage backend: %s (supported: sqlite, postgres, surrealdb)", backend)
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// asManager drops the typed nil a failed constructor returns.
func asManager[T interfaces.StorageManager](m T, err error) (interfaces.StorageManager, error) {
	if err != nil {
		return nil, err
	}
	return m, nil
}
