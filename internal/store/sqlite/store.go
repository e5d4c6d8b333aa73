// internal/store/sqlite/store.go
package sqlite

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/suseoaa/oaacore/internal/store"
)

type SQLiteStore struct {
	store.BaseStore
}

func NewSQLiteStore(dsn, migrationsDir string) (*SQLiteStore, error) {
	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &SQLiteStore{BaseStore: store.BaseStore{
		DB: db,
		Converter: func(query string) string {
			return query
		},
	}}

	if migrationsDir != "" {
		if err := s.ApplyMigrations(migrationsDir, translateToSQLite); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply migrations: %w", err)
		}
	}

	return s, nil
}

// translateToSQLite converts Postgres SQL to SQLite dialect. BIGSERIAL
// becomes a plain INTEGER, the separate PRIMARY KEY constraint then
// makes it a rowid alias so inserts still auto-assign ids.
func translateToSQLite(sql string) string {
	replacements := map[string]string{
		"BIGSERIAL":    "INTEGER",
		"BIGINT":       "INTEGER",
		"TRUE":         "1",
		"FALSE":        "0",
		"RETURNING":    "",
		"to_timestamp": "datetime",
		"now()":        "CURRENT_TIMESTAMP",
		"::text":       "",
	}
	result := sql
	for from, to := range replacements {
		result = strings.ReplaceAll(result, from, to)
	}
	return result
}
