package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// Conn pairs a pool with the SQL dialect spoken by its driver.
type Conn struct {
	*sql.DB
	Dialect Dialect
}

// Rebind rewrites ? placeholders into the dialect's bind syntax.
func (d Dialect) Rebind(query string) string {
	if d != Postgres {
		return query
	}
	var sb strings.Builder
	sb.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteByte(query[i])
	}
	return sb.String()
}

// ForUpdate is the row-lock suffix for SELECTs inside a write transaction.
func (d Dialect) ForUpdate() string {
	if d == Postgres {
		return " FOR UPDATE"
	}
	return ""
}

type Options struct {
	Driver   string
	DSN      string
	Postgres PostgresConfig
}

// Open connects to the configured backend.
func Open(ctx context.Context, opts Options) (*Conn, error) {
	switch Dialect(strings.ToLower(strings.TrimSpace(opts.Driver))) {
	case Postgres, "pgx", "":
		return OpenPostgresWithConfig(ctx, opts.DSN, opts.Postgres)
	case SQLite, "sqlite3":
		return OpenSQLite(ctx, opts.DSN)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", opts.Driver)
	}
}
