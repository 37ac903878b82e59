// store.go: connection providers and the store handle the engine runs on.
package persist

import (
	"context"
	"database/sql"
	"strings"

	// Database drivers, selected by configuration once per deployment.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	_ "github.com/microsoft/go-mssqldb"

	"github.com/examforge/examforge/internal/conf"
	"github.com/examforge/examforge/internal/errors"
)

// Provider produces a live database handle for one dialect.
type Provider interface {
	Open() (*sql.DB, error)
	Dialect() Dialect
}

// SQLServerProvider opens dialect A stores.
type SQLServerProvider struct {
	DSN string
}

func (p *SQLServerProvider) Open() (*sql.DB, error) {
	return sql.Open("sqlserver", p.DSN)
}

func (p *SQLServerProvider) Dialect() Dialect {
	return sqlServerDialect{}
}

// SQLiteProvider opens dialect B stores backed by SQLite.
type SQLiteProvider struct {
	DSN string
}

func (p *SQLiteProvider) Open() (*sql.DB, error) {
	return sql.Open("sqlite3", p.DSN)
}

func (p *SQLiteProvider) Dialect() Dialect {
	return limitOffsetDialect{name: conf.DialectSQLite, quoteOpen: `"`, quoteClose: `"`}
}

// MySQLProvider opens dialect B stores backed by MySQL.
type MySQLProvider struct {
	DSN string
}

func (p *MySQLProvider) Open() (*sql.DB, error) {
	dsn := p.DSN
	if !strings.Contains(dsn, "parseTime") {
		if strings.Contains(dsn, "?") {
			dsn += "&parseTime=true"
		} else {
			dsn += "?parseTime=true"
		}
	}
	return sql.Open("mysql", dsn)
}

func (p *MySQLProvider) Dialect() Dialect {
	return limitOffsetDialect{name: conf.DialectMySQL, quoteOpen: "`", quoteClose: "`"}
}

// NewProvider selects a provider from the deployment configuration.
func NewProvider(settings *conf.StoreSettings) (Provider, error) {
	switch settings.Dialect {
	case conf.DialectSQLServer:
		return &SQLServerProvider{DSN: settings.DSN}, nil
	case conf.DialectSQLite:
		return &SQLiteProvider{DSN: settings.DSN}, nil
	case conf.DialectMySQL:
		return &MySQLProvider{DSN: settings.DSN}, nil
	default:
		return nil, errors.Newf("unsupported store dialect %q", settings.Dialect).
			Component("persist").
			Category(errors.CategoryConfiguration).
			Build()
	}
}

// Store is the shared handle every repository runs on: a pooled database
// handle, the dialect chosen at deployment, and the coercion registry
// constructed at process start. The pool hands each logical operation its
// own connection and reclaims it on every exit path.
type Store struct {
	db       *sql.DB
	dialect  Dialect
	registry *Registry
}

// OpenStore opens the provider's database and verifies connectivity.
func OpenStore(ctx context.Context, p Provider, registry *Registry) (*Store, error) {
	db, err := p.Open()
	if err != nil {
		return nil, errors.New(err).
			Component("persist").
			Category(errors.CategoryTransientStore).
			Context("dialect", p.Dialect().Name()).
			Build()
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.New(err).
			Component("persist").
			Category(errors.CategoryTransientStore).
			Context("dialect", p.Dialect().Name()).
			Build()
	}
	getLogger().Info("store opened", "dialect", p.Dialect().Name())
	return &Store{db: db, dialect: p.Dialect(), registry: registry}, nil
}

// NewStoreFromDB wraps an already-open handle. Tests use this with in-memory
// SQLite.
func NewStoreFromDB(db *sql.DB, dialect Dialect, registry *Registry) *Store {
	return &Store{db: db, dialect: dialect, registry: registry}
}

// DB exposes the underlying handle for raw passthrough queries.
func (s *Store) DB() *sql.DB { return s.db }

// Dialect returns the deployment's dialect.
func (s *Store) Dialect() Dialect { return s.dialect }

// Registry returns the coercion registry the store was opened with.
func (s *Store) Registry() *Registry { return s.registry }

// Close releases the pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// withTx runs fn inside a transaction: begin before the first statement,
// commit only after the last statement succeeds, roll back on any failure or
// panic and re-raise.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.New(err).
			Component("persist").
			Category(errors.CategoryTransientStore).
			Context("operation", "begin-transaction").
			Build()
	}
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
	}()
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.New(err).
			Component("persist").
			Category(errors.CategoryTransientStore).
			Context("operation", "commit-transaction").
			Build()
	}
	return nil
}
