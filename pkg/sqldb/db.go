package sqldb

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v4/stdlib" // pgx driver
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"           // postgres driver
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver (cgo)
	_ "modernc.org/sqlite"          // sqlite driver (pure Go)

	"mercator-hq/cleaner/pkg/cleaner"
	"mercator-hq/cleaner/pkg/dialect"
)

// Config configures the connection pool.
type Config struct {
	// Driver is one of "pgx", "postgres", "sqlite" or "sqlite3".
	Driver string

	// URI is the driver connection string. For SQLite drivers a plain
	// file path is accepted.
	URI string

	MaxOpenConns   int
	MaxIdleConns   int
	ConnectTimeout time.Duration
}

// DB is a pooled database handle implementing cleaner.Database.
type DB struct {
	db           *sqlx.DB
	dialect      dialect.Dialect
	introspector cleaner.Introspector
	logger       *slog.Logger
}

// Open connects to the database and verifies the connection.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	d, ok := dialect.ForDriver(cfg.Driver)
	if !ok {
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if cfg.URI == "" {
		return nil, fmt.Errorf("database uri cannot be empty")
	}

	dsn := cfg.URI
	if d == dialect.SQLite {
		dsn = sqliteDSN(cfg.Driver, cfg.URI)
	}

	db, err := sqlx.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	logger.Debug("Database connection established",
		"driver", cfg.Driver,
		"dialect", d.Name(),
	)
	return NewFromDB(db, d, logger), nil
}

// NewFromDB wraps an already opened handle.
func NewFromDB(db *sqlx.DB, d dialect.Dialect, logger *slog.Logger) *DB {
	if logger == nil {
		logger = slog.Default()
	}
	out := &DB{db: db, dialect: d, logger: logger.With("component", "sqldb")}
	if d == dialect.SQLite {
		out.introspector = &sqliteIntrospector{db: db}
	} else {
		out.introspector = &postgresIntrospector{db: db}
	}
	return out
}

// Begin starts a batch transaction.
func (d *DB) Begin(ctx context.Context) (cleaner.Tx, error) {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", classify(ctx, err))
	}
	return &Tx{tx: tx, dialect: d.dialect, logger: d.logger}, nil
}

// Introspector returns the catalog reader for the dialect.
func (d *DB) Introspector() cleaner.Introspector { return d.introspector }

// Dialect returns the SQL dialect of the connection.
func (d *DB) Dialect() dialect.Dialect { return d.dialect }

// Ping verifies the database is reachable.
func (d *DB) Ping(ctx context.Context) error { return d.db.PingContext(ctx) }

// Close closes the pool.
func (d *DB) Close() error { return d.db.Close() }

// sqliteDSN enables foreign key enforcement and makes time values sortable
// as text. The parameter names differ between the two SQLite drivers.
func sqliteDSN(driver, uri string) string {
	var params []string
	switch driver {
	case "sqlite3":
		if !strings.Contains(uri, "_foreign_keys") && !strings.Contains(uri, "_fk=") {
			params = append(params, "_foreign_keys=1")
		}
	default:
		if !strings.Contains(uri, "foreign_keys(") {
			params = append(params, "_pragma=foreign_keys(1)")
		}
		if !strings.Contains(uri, "_time_format") {
			params = append(params, "_time_format=sqlite")
		}
	}
	if len(params) == 0 {
		return uri
	}
	sep := "?"
	if strings.Contains(uri, "?") {
		sep = "&"
	}
	return uri + sep + strings.Join(params, "&")
}
