package core

import (
	"context"
	"fmt"
	"os"

	"blockcore/internal/infra/persistence/memory"
	"blockcore/internal/infra/persistence/postgres"
	"blockcore/internal/infra/persistence/sqlite"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// OpenProjectStore selects a backend using environment variables. Defaults
// to sqlite when unset.
//
//	BLOCKCORE_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	BLOCKCORE_SQLITE_PATH: path to sqlite file (default ./blockcore.db)
//	BLOCKCORE_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenProjectStore(ctx context.Context) (ProjectStore, error) {
	driver := os.Getenv("BLOCKCORE_STORAGE_DRIVER")
	if driver == "" {
		driver = string(StorageSQLite)
	}
	switch StorageDriver(driver) {
	case StorageMemory:
		return memory.NewStore(), nil
	case StorageSQLite:
		return sqlite.NewStore(os.Getenv("BLOCKCORE_SQLITE_PATH"))
	case StoragePostgres:
		return postgres.NewStore(ctx, os.Getenv("BLOCKCORE_POSTGRES_DSN"))
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
