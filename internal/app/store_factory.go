package app

import (
	"fmt"

	"github.com/suseoaa/oaacore/internal/store"
	"github.com/suseoaa/oaacore/internal/store/postgres"
	"github.com/suseoaa/oaacore/internal/store/sqlite"
)

func NewStore(dsn, migrationsDir string) (store.LocalStore, error) {
	switch store.DetectType(dsn) {
	case store.DBTypePostgres:
		return postgres.NewPostgresStore(dsn, migrationsDir)
	case store.DBTypeSQLite:
		return sqlite.NewSQLiteStore(dsn, migrationsDir)
	default:
		return nil, fmt.Errorf("unable to determine database type from DSN: %s", dsn)
	}
}
