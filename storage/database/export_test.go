package database

import (
	"context"
	"database/sql"
)

func MissingColumns(db *sql.DB, want map[string][]string) ([]string, error) {
	return missingColumns(context.Background(), db, want)
}

var DSN = dsn
