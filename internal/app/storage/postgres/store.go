// Package postgres implements the storage interfaces on PostgreSQL.
package postgres

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/maxnate/infinit-butchery/internal/app/storage"
)

// Store is a PostgreSQL-backed implementation of the storage interfaces.
type Store struct {
	db *sqlx.DB
}

var _ storage.TenantStore = (*Store)(nil)
var _ storage.CatalogStore = (*Store)(nil)
var _ storage.OrderStore = (*Store)(nil)
var _ storage.DeliveryStore = (*Store)(nil)
var _ storage.PaymentStore = (*Store)(nil)

// Open connects to the database at dsn and verifies the connection.
func Open(dsn string) (*Store, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing connection. Used by tests.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: sqlx.NewDb(db, "postgres")}
}

// DB exposes the underlying connection for migrations.
func (s *Store) DB() *sql.DB { return s.db.DB }

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

func isNoRows(err error) bool { return errors.Is(err, sql.ErrNoRows) }

// nullTime maps zero times onto SQL NULL.
func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func fromNullTime(t sql.NullTime) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time
}
