// Package sqlstore implements the storage interfaces on database/sql for the
// SQLite and Postgres backends. Both share one schema and one set of
// statements; only placeholders and column types differ.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "modernc.org/sqlite"             // registers the "sqlite" driver

	"github.com/bobmcallan/simtrade/internal/common"
	"github.com/bobmcallan/simtrade/internal/interfaces"
)

type dialect struct {
	name      string
	driver    string
	floatType string
	numbered  bool // $1, $2 placeholders instead of ?
}

var (
	sqliteDialect   = dialect{name: common.BackendSQLite, driver: "sqlite", floatType: "REAL"}
	postgresDialect = dialect{name: common.BackendPostgres, driver: "pgx", floatType: "DOUBLE PRECISION", numbered: true}
)

// rebind rewrites ? placeholders for dialects that number them.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Store implements interfaces.StorageManager and every store it exposes.
type Store struct {
	db      *sql.DB
	dialect dialect
	logger  *common.Logger
}

// OpenSQLite opens (creating if needed) a SQLite database file.
func OpenSQLite(ctx context.Context, path string, logger *common.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open(sqliteDialect.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// single writer
	db.SetMaxOpenConns(1)
	return newStore(ctx, db, sqliteDialect, logger)
}

// OpenPostgres connects to Postgres through the pgx stdlib driver.
func OpenPostgres(ctx context.Context, dsn string, logger *common.Logger) (*Store, error) {
	db, err := sql.Open(postgresDialect.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	db.SetMaxOpenConns(8)
	return newStore(ctx, db, postgresDialect, logger)
}

func newStore(ctx context.Context, db *sql.DB, d dialect, logger *common.Logger) (*Store, error) {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", d.name, err)
	}
	s := &Store{db: db, dialect: d, logger: logger}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info().Str("backend", d.name).Msg("SQL storage initialized")
	return s, nil
}

func (s *Store) BarStore() interfaces.BarStore {
	return s
}

func (s *Store) FundamentalStore() interfaces.FundamentalStore {
	return s
}

func (s *Store) SyncStatusStore() interfaces.SyncStatusStore {
	return s
}

func (s *Store) StockStore() interfaces.StockStore {
	return s
}

// Backend returns "sqlite" or "postgres".
func (s *Store) Backend() string {
	return s.dialect.name
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.dialect.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.dialect.rebind(query), args...)
}

// upsertSQL builds an INSERT ... ON CONFLICT DO UPDATE for every non-key column.
func upsertSQL(table string, cols, key []string) string {
	isKey := make(map[string]bool, len(key))
	for _, k := range key {
		isKey[k] = true
	}
	sets := make([]string, 0, len(cols))
	for _, c := range cols {
		if !isKey[c] {
			sets = append(sets, fmt.Sprintf("%s = excluded.%s", c, c))
		}
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		table, strings.Join(cols, ", "), placeholders, strings.Join(key, ", "), strings.Join(sets, ", "))
}

// upsertAll writes rows in one transaction with a prepared statement.
func upsertAll[T any](ctx context.Context, s *Store, stmtSQL string, rows []T, args func(*T) []any) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.dialect.rebind(stmtSQL))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for i := range rows {
		if _, err := stmt.ExecContext(ctx, args(&rows[i])...); err != nil {
			return 0, fmt.Errorf("failed to upsert row %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit upsert: %w", err)
	}
	return len(rows), nil
}

// Compile-time check
var _ interfaces.StorageManager = (*Store)(nil)
