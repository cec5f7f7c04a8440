/*
Package sqlstore provides a SQL-backed implementation of bank.TxStore for
SQLite and PostgreSQL.

PURPOSE:
  Implements every persistence interface (ledger, members, quota, badges,
  draws, rewards) with one set of queries. The two engines differ only in
  placeholder syntax and in how a member-scoped transaction is isolated.

DIALECTS:
  sqlite3:  mattn/go-sqlite3. One pooled connection and BEGIN IMMEDIATE,
            so units of work are serialized by the single writer.
  postgres: lib/pq. Each WithMemberTx takes SELECT ... FOR UPDATE row
            locks on the member rows, in id order to avoid deadlocks.

KEY TABLES:
  transactions:   Append-only ledger, unique (member_id, seq)
  badges:         Unique (member_id, condition_key), ticket_used flag
  quota_counters: Primary key (member_id, quota_date)
  lottery_draws:  Resolved draws, unique badge_id
  rewards:        Catalog and wishlist
  members:        Member records

MIGRATION:
  Schema lives in migrations/*.sql, embedded and applied with goose on
  Open. The same migration runs on both dialects.

ERROR MAPPING:
  Unique violation on (member_id, seq)   -> bank.ErrConcurrencyConflict
  Unique violation on transactions.id    -> bank.ErrDuplicateTransaction
  SQLite "database is locked"            -> bank.ErrConcurrencyConflict

USAGE:
  store, err := sqlstore.OpenSQLite("./data/points.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - bank/store.go: Interface definitions
  - bank/store/memory.go: In-memory implementation for testing
*/
package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/warp/points-engine/bank"
)

//go:embed migrations/*.sql
var migrations embed.FS

// migrateMu guards goose's package-level configuration.
var migrateMu sync.Mutex

// Dialect names a supported database engine.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite3"
	DialectPostgres Dialect = "postgres"
)

// timeLayout is fixed-width so text timestamps order correctly.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn runs queries against either the pool or an open transaction.
type conn struct {
	q       querier
	dialect Dialect
}

// Store implements bank.TxStore.
type Store struct {
	*conn
	db *sql.DB
}

// OpenSQLite opens (or creates) a SQLite database. Use ":memory:" for an
// in-memory database.
func OpenSQLite(path string) (*Store, error) {
	return Open(DialectSQLite, path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
}

// OpenPostgres connects to PostgreSQL using a lib/pq DSN or URL.
func OpenPostgres(dsn string) (*Store, error) {
	return Open(DialectPostgres, dsn)
}

// Open connects with the given dialect and applies migrations.
func Open(dialect Dialect, dsn string) (*Store, error) {
	if dialect != DialectSQLite && dialect != DialectPostgres {
		return nil, fmt.Errorf("unsupported database driver %q", dialect)
	}
	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if dialect == DialectSQLite {
		// A single connection keeps ":memory:" databases shared and makes
		// the connection itself the write lock.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := Migrate(db, dialect); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{conn: &conn{q: db, dialect: dialect}, db: db}, nil
}

// Migrate applies all embedded migrations.
func Migrate(db *sql.DB, dialect Dialect) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect(string(dialect)); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the pool for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// Dialect returns the store's engine.
func (s *Store) Dialect() Dialect { return s.dialect }

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithMemberTx runs fn inside a database transaction. On PostgreSQL the
// member rows are locked FOR UPDATE first.
func (s *Store) WithMemberTx(ctx context.Context, members []bank.MemberID, fn func(bank.Store) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError(fmt.Errorf("begin transaction: %w", err))
	}
	defer sqlTx.Rollback()

	c := &conn{q: sqlTx, dialect: s.dialect}
	if s.dialect == DialectPostgres {
		ids := slices.Clone(members)
		slices.Sort(ids)
		for _, id := range slices.Compact(ids) {
			if _, err := c.exec(ctx, `SELECT id FROM members WHERE id = ? FOR UPDATE`, string(id)); err != nil {
				return mapError(fmt.Errorf("lock member %s: %w", id, err))
			}
		}
	}

	if err := fn(c); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return mapError(fmt.Errorf("commit: %w", err))
	}
	return nil
}

// Reset deletes all data. Used by demo scenarios and tests.
func (s *Store) Reset(ctx context.Context) error {
	for _, table := range []string{"lottery_draws", "quota_counters", "badges", "transactions", "rewards", "members"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("reset %s: %w", table, err)
		}
	}
	return nil
}

// DeleteFamilyData removes every row belonging to a family atomically.
func (s *Store) DeleteFamilyData(ctx context.Context, familyID bank.FamilyID) (bank.PurgeResult, error) {
	var res bank.PurgeResult
	err := s.WithMemberTx(ctx, nil, func(st bank.Store) error {
		var err error
		res, err = st.DeleteFamilyData(ctx, familyID)
		return err
	})
	return res, err
}

// DeleteFamilyData on a conn runs the cascade with the conn's querier.
func (c *conn) DeleteFamilyData(ctx context.Context, familyID bank.FamilyID) (bank.PurgeResult, error) {
	var res bank.PurgeResult
	steps := []struct {
		n     *int64
		query string
	}{
		{&res.Quota, `DELETE FROM quota_counters WHERE member_id IN (SELECT id FROM members WHERE family_id = ?)`},
		{&res.Draws, `DELETE FROM lottery_draws WHERE family_id = ?`},
		{&res.Badges, `DELETE FROM badges WHERE family_id = ?`},
		{&res.Transactions, `DELETE FROM transactions WHERE family_id = ?`},
		{&res.Rewards, `DELETE FROM rewards WHERE family_id = ?`},
		{&res.Members, `DELETE FROM members WHERE family_id = ?`},
	}
	for _, step := range steps {
		result, err := c.exec(ctx, step.query, string(familyID))
		if err != nil {
			return bank.PurgeResult{}, fmt.Errorf("purge family %s: %w", familyID, err)
		}
		if *step.n, err = result.RowsAffected(); err != nil {
			return bank.PurgeResult{}, err
		}
	}
	return res, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (c *conn) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.q.ExecContext(ctx, c.rebind(query), args...)
}

func (c *conn) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.q.QueryContext(ctx, c.rebind(query), args...)
}

func (c *conn) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return c.q.QueryRowContext(ctx, c.rebind(query), args...)
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (c *conn) rebind(query string) string {
	if c.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
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

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func formatTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTimePtr(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}

func isBusyError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "database is locked") ||
		strings.Contains(err.Error(), "could not serialize access") ||
		strings.Contains(err.Error(), "deadlock detected"))
}

// mapError translates driver errors that callers should classify.
func mapError(err error) error {
	if isBusyError(err) {
		return fmt.Errorf("%w: %v", bank.ErrConcurrencyConflict, err)
	}
	return err
}

func isNoRows(err error) bool { return errors.Is(err, sql.ErrNoRows) }

var _ bank.TxStore = (*Store)(nil)
