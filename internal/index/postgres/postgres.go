// Package postgres implements the event index backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"embed"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/pfrederiksen/venue-events/internal/index"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Index implements index.Index backed by a PostgreSQL database.
type Index struct {
	db *sql.DB
}

// Compile-time check that Index implements index.Index.
var _ index.Index = (*Index)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string) (*Index, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Index{db: db}, nil
}

// NewWithDB wraps an already-migrated database handle.
func NewWithDB(db *sql.DB) *Index {
	return &Index{db: db}
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *Index) Close() error {
	return s.db.Close()
}

// Ping reports index.ErrUnavailable when the database cannot be reached.
func (s *Index) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", index.ErrUnavailable, err)
	}
	return nil
}

func (s *Index) Upsert(ctx context.Context, doc index.Document) error {
	return classify(queryUpsert(ctx, s.db, doc))
}

func (s *Index) Search(ctx context.Context, q index.Query) ([]index.Document, error) {
	docs, err := querySearch(ctx, s.db, q)
	return docs, classify(err)
}

func (s *Index) Cities(ctx context.Context) ([]string, error) {
	cities, err := queryCities(ctx, s.db)
	return cities, classify(err)
}

// classify marks connection-level failures as index.ErrUnavailable so the
// pipeline can tell an unreachable database from a rejected row.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", index.ErrUnavailable, err)
	}
	return err
}
