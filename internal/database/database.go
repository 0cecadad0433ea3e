package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect selects placeholder syntax and driver.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// ResolveURL returns the configured database URL, falling back to DATABASE_URL.
func ResolveURL(configured string) string {
	if direct := strings.TrimSpace(configured); direct != "" {
		return direct
	}
	return strings.TrimSpace(os.Getenv("DATABASE_URL"))
}

// DialectOf reports which dialect a database URL selects.
func DialectOf(url string) Dialect {
	lower := strings.ToLower(url)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return DialectPostgres
	}
	return DialectSQLite
}

// Open opens and pings the database at url. postgres:// URLs go through lib/pq; anything
// else is a SQLite file path, optionally prefixed with sqlite://.
func Open(ctx context.Context, url string) (*sql.DB, Dialect, error) {
	if url == "" {
		return nil, "", fmt.Errorf("database URL is empty")
	}

	dialect := DialectOf(url)
	dsn := url
	if dialect == DialectSQLite {
		dsn = strings.TrimPrefix(dsn, "sqlite://")
		if err := ensureDir(dsn); err != nil {
			return nil, "", err
		}
		if !strings.Contains(dsn, "_pragma=") {
			sep := "?"
			if strings.Contains(dsn, "?") {
				sep = "&"
			}
			dsn += sep + "_pragma=busy_timeout(5000)"
		}
	}

	db, err := openDB(string(dialect), dsn)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open db: %w", err)
	}
	if dialect == DialectSQLite {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, "", fmt.Errorf("failed to ping db: %w", err)
	}

	return db, dialect, nil
}

// ensureDir creates the parent directory of a SQLite file path.
func ensureDir(dsn string) error {
	path, _, _ := strings.Cut(dsn, "?")
	if path == "" || path == ":memory:" || strings.HasPrefix(path, "file:") {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create database dir: %w", err)
	}
	return nil
}

// Rebind rewrites ? placeholders into $n placeholders for PostgreSQL.
func Rebind(d Dialect, query string) string {
	if d != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
