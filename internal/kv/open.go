package kv

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite" // register "sqlite" database/sql driver

	"github.com/JonMunkholm/coursedesk/internal/config"
)

// Open builds the backend selected by cfg.Driver. SQL backends are
// migrated when cfg.AutoMigrate is set.
func Open(ctx context.Context, cfg config.StorageConfig) (Backend, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", config.DriverMemory:
		slog.Info("using in-memory kv store")
		return NewMemory(), nil
	case config.DriverPostgres:
		return openPostgres(ctx, cfg)
	case config.DriverSQLite:
		return openSQLite(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func openPostgres(ctx context.Context, cfg config.StorageConfig) (Backend, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	}

	if cfg.AutoMigrate {
		// goose needs database/sql; the adapter shares the pool and must not close it.
		db := stdlib.OpenDBFromPool(pool)
		err := Migrate(ctx, db, DialectPostgres)
		_ = db.Close()
		if err != nil {
			pool.Close()
			return nil, err
		}
	}

	return NewPG(pool), nil
}

func openSQLite(ctx context.Context, cfg config.StorageConfig) (Backend, error) {
	db, err := sql.Open("sqlite", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(cfg.MaxConnLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	slog.Info("opened sqlite kv store", "path", cfg.URL)

	if cfg.AutoMigrate {
		if err := Migrate(ctx, db, DialectSQLite); err != nil {
			db.Close()
			return nil, err
		}
	}

	return NewSQL(db, DialectSQLite), nil
}
