package repository

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Config struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// DB bundles the ent SQL driver with the handles that own its connections.
type DB struct {
	Driver  *entsql.Driver
	Dialect string
	pool    *pgxpool.Pool
	sqlDB   *sql.DB
}

// Open creates a pgx pool and wraps it for ent's SQL driver.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	logger.Info("db.connect.start", "dialect", dialect.Postgres)
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("db.connect.failed", "error", err)
		return nil, err
	}

	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = cfg.MinConns
	}
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.ConnConfig.RuntimeParams["application_name"] = "purchase-sync"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprint(cfg.StatementTimeout.Milliseconds())
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(dialCtx, pc)
	if err != nil {
		logger.Error("db.connect.failed", "error", err)
		return nil, err
	}

	sqlDB := stdlib.OpenDBFromPool(pool)
	logger.Info("db.connect.ok", "dialect", dialect.Postgres)
	return &DB{
		Driver:  entsql.OpenDB(dialect.Postgres, sqlDB),
		Dialect: dialect.Postgres,
		pool:    pool,
		sqlDB:   sqlDB,
	}, nil
}

// OpenSQLite opens a SQLite database, e.g. ":memory:" or "file:sync.db".
// An in-memory database is pinned to one connection so every query sees it.
func OpenSQLite(ctx context.Context, dsn string, logger *slog.Logger) (*DB, error) {
	if dsn == "" {
		dsn = ":memory:"
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if strings.Contains(dsn, ":memory:") {
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	logger.Info("db.connect.ok", "dialect", dialect.SQLite, "dsn", dsn)
	return &DB{
		Driver:  entsql.OpenDB(dialect.SQLite, sqlDB),
		Dialect: dialect.SQLite,
		sqlDB:   sqlDB,
	}, nil
}

// Migrate creates the tables if they do not exist.
func (d *DB) Migrate(ctx context.Context, logger *slog.Logger) error {
	name := "migrations/postgres.sql"
	if d.Dialect == dialect.SQLite {
		name = "migrations/sqlite.sql"
	}
	ddl, err := migrations.ReadFile(name)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	n := 0
	for _, stmt := range strings.Split(string(ddl), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if err := d.Driver.Exec(ctx, stmt, []any{}, nil); err != nil {
			logger.Error("db.migrate.failed", "statement", firstLine(stmt), "error", err)
			return fmt.Errorf("migrate: %w", err)
		}
		n++
	}
	logger.Info("db.migrate.ok", "dialect", d.Dialect, "statements", n)
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// Close closes the database connections gracefully
func (d *DB) Close(logger *slog.Logger) {
	logger.Info("db.close")
	if d.Driver != nil {
		if err := d.Driver.Close(); err != nil {
			logger.Error("db.close.failed", "error", err)
		}
	}
	if d.pool != nil {
		d.pool.Close()
	}
}

// HealthCheck pings the database.
func (d *DB) HealthCheck(ctx context.Context, timeout time.Duration, logger *slog.Logger) error {
	logger.Debug("db.ping")
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if d.pool != nil {
		return d.pool.Ping(ctx)
	}
	return d.sqlDB.PingContext(ctx)
}
