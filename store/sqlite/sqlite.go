/*
Package sqlite provides a SQLite-backed implementation of the leave store.

PURPOSE:
  Implements leave.TxStore using SQLite. Every repository method lives on
  queries, which runs against either the *sql.DB or an open *sql.Tx, so
  the same code serves plain calls and WithTx callbacks.

KEY TABLES:
  absence_types:         configuration, incl. the public holiday flag
  absence_periods:       entitlement windows
  public_holidays:       date-stamped days off
  contracts:             contact employment windows (period_end NULL = open)
  leave_requests:        requests, one row each
  leave_request_dates:   one row per covered day of a request
  leave_balance_changes: the signed ledger, amounts stored as decimal text
  entitlements:          entitlement rows (value = sum of their changes)
  option_values:         runtime vocabulary for statuses and types

INDEXES:
  - idx_absence_types_public_holiday: at most one active flagged type
  - idx_balance_changes_source: ledger lookups by source row
  - idx_request_dates_date: day lookups for reconciliation

CONCURRENCY:
  The pool holds a single connection, so writes are serialized by
  database/sql and ":memory:" databases are shared by every call.
  Do not call the outer Store from inside a WithTx callback; use the
  Store passed to the callback.

MIGRATION:
  Schema is versioned with golang-migrate (migrations/*.sql, embedded)
  and applied on New().

USAGE:
  store, err := sqlite.New("./leave.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - leave/store.go: Interface definitions
  - leave/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/leave"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// querier is the subset of *sql.DB and *sql.Tx the queries need.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries implements leave.Store against a querier.
type queries struct {
	q querier
}

// Store implements leave.TxStore using SQLite.
type Store struct {
	*queries
	db *sql.DB
}

var (
	_ leave.TxStore = (*Store)(nil)
	_ leave.Store   = (*queries)(nil)
)

// New creates a new SQLite store with the given database path and applies
// pending migrations. Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := Migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{queries: &queries{q: db}, db: db}, nil
}

// Migrate applies every pending up migration to db.
func Migrate(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("create migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	// m.Close would close db as well; the source is embedded so nothing leaks.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// WithTx executes fn within a transaction.
func (s *Store) WithTx(ctx context.Context, fn func(leave.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&queries{q: tx}); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Helper functions

func nullDate(d *leave.Date) sql.NullString {
	if d == nil || d.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func parseDate(s string) (leave.Date, error) {
	return leave.ParseDate(s)
}

func parseNullDate(ns sql.NullString) (*leave.Date, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	d, err := leave.ParseDate(ns.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return v, nil
}

// timeLayout is fixed width so created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}

// checkAffected turns an update that touched no rows into a NotFoundError.
func checkAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &leave.NotFoundError{Kind: kind, ID: id}
	}
	return nil
}

func notFoundOr(err error, kind, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return &leave.NotFoundError{Kind: kind, ID: id}
	}
	return err
}
