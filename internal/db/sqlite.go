package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// OpenSQLite opens a file-backed SQLite database. Writers are serialized
// through a single connection and transactions take the write lock up front,
// so the attempt row lock used on PostgreSQL is not needed here.
func OpenSQLite(ctx context.Context, path string) (*Conn, error) {
	if strings.TrimSpace(path) == "" {
		path = "prepquiz.db"
	}

	dsn := "file:" + path + "?_foreign_keys=on&_busy_timeout=5000&_txlock=immediate"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := ping(ctx, db); err != nil {
		return nil, err
	}
	return &Conn{DB: db, Dialect: SQLite}, nil
}
