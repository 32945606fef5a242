package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"regexp"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added order_date index on the target table
// 2 - Added audit columns (created_date/by, modified_date/by)
const currentSchemaVersion = 2

// identRe restricts table identifiers to names that are safe to interpolate
// into SQL text. Table and staging-prefix names come from configuration, not
// from data, but the guard keeps a typo from turning into injected SQL.
var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Store provides durable storage for the sales order target table.
// Uses SQLite with WAL mode for concurrent read access.
type Store struct {
	db            *sql.DB
	table         string
	stagingPrefix string
}

// Open creates or opens a SQLite database at the given path and ensures the
// target table exists. Applies required pragmas and migrations automatically,
// then sweeps any staging tables left behind by an aborted prior run.
//
// This function is idempotent - safe to call multiple times.
func Open(path, table, stagingPrefix string) (*Store, error) {
	if !identRe.MatchString(table) {
		return nil, fmt.Errorf("invalid table identifier %q", table)
	}
	if !identRe.MatchString(stagingPrefix) {
		return nil, fmt.Errorf("invalid staging prefix %q", stagingPrefix)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db, table); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &Store{db: db, table: table, stagingPrefix: stagingPrefix}

	if err := s.sweepStaging(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to sweep stale staging tables: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Table returns the target table name.
func (s *Store) Table() string {
	return s.table
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates the target table if it doesn't exist and runs
// migrations. This function is idempotent.
func applySchema(db *sql.DB, table string) error {
	if _, err := db.Exec(fmt.Sprintf(schemaSQL, table)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db, table); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB, table string) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db, table); err != nil {
			return err
		}
		version = 1
	}

	if version < 2 {
		if err := migrateToV2(db, table); err != nil {
			return err
		}
		version = 2
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 adds the order_date index for databases created before the
// index was part of schema.sql. CREATE INDEX IF NOT EXISTS is a no-op when
// the index already exists.
func migrateToV1(db *sql.DB, table string) error {
	_, err := db.Exec(fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS idx_%[1]s_order_date ON %[1]s(order_date)", table))
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// migrateToV2 adds the audit columns to tables created before they were part
// of schema.sql. ALTER TABLE ADD COLUMN has no IF NOT EXISTS, so columns
// already present (fresh databases get them from schema.sql) are skipped.
func migrateToV2(db *sql.DB, table string) error {
	existing, err := columnSet(db, table)
	if err != nil {
		return fmt.Errorf("migrate to v2: %w", err)
	}

	auditColumns := []struct{ name, ddl string }{
		{"created_date", "TEXT NOT NULL DEFAULT ''"},
		{"created_by", "TEXT NOT NULL DEFAULT 'tidemark'"},
		{"modified_date", "TEXT NOT NULL DEFAULT ''"},
		{"modified_by", "TEXT NOT NULL DEFAULT 'tidemark'"},
	}
	for _, col := range auditColumns {
		if existing[col.name] {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, col.name, col.ddl)
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate to v2: add %s: %w", col.name, err)
		}
	}
	return nil
}

// columnSet returns the column names of table as a set.
func columnSet(db *sql.DB, table string) (map[string]bool, error) {
	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		return nil, fmt.Errorf("table info for %s: %w", table, err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt any
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan column info: %w", err)
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

// sweepStaging drops staging tables left behind by runs that died between
// committing a merge and dropping their staging table. Normal runs dispose
// of staging inside the merge transaction, so this usually finds nothing.
func (s *Store) sweepStaging() error {
	rows, err := s.db.Query(
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name LIKE ?",
		s.stagingPrefix+"_%")
	if err != nil {
		return fmt.Errorf("list staging tables: %w", err)
	}
	defer rows.Close()

	var stale []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("scan staging table name: %w", err)
		}
		stale = append(stale, name)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate staging tables: %w", err)
	}

	for _, name := range stale {
		if !identRe.MatchString(name) {
			continue
		}
		if _, err := s.db.Exec("DROP TABLE IF EXISTS " + name); err != nil {
			return fmt.Errorf("drop stale staging table %s: %w", name, err)
		}
		slog.Warn("dropped stale staging table", "table", name)
	}

	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
