package main

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/whennemuth/deltasync/internal/config"
	"github.com/whennemuth/deltasync/internal/store"
	"github.com/whennemuth/deltasync/pkg/clock"
	deltaerrors "github.com/whennemuth/deltasync/pkg/errors"
)

// buildRelationalBackend opens a *sql.DB for cfg.Relational.Type and
// wraps it in a RelationalStoreBackend, ensuring the shared history table
// exists.
func buildRelationalBackend(cfg config.Config, log zerolog.Logger) (*store.RelationalStoreBackend, error) {
	dialect, ok := store.ParseDialect(cfg.Relational.Type)
	if !ok {
		return nil, deltaerrors.Config(fmt.Sprintf("unknown relational type %q", cfg.Relational.Type), nil)
	}

	dsn, driver, err := dsnFor(dialect, cfg.Relational)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, deltaerrors.IO("open database", err)
	}

	backend, err := store.NewRelationalStoreBackend(db, store.RelationalConfig{Dialect: dialect}, clock.NewReal(), log)
	if err != nil {
		return nil, err
	}
	if err := backend.EnsureHistoryTable(context.Background()); err != nil {
		return nil, err
	}
	return backend, nil
}

func dsnFor(dialect store.Dialect, cfg config.RelationalConfig) (dsn, driver string, err error) {
	switch dialect {
	case store.DialectSQLite:
		filename := cfg.Filename
		if filename == "" {
			filename = "deltasync.db"
		}
		return filename, "sqlite", nil
	case store.DialectMySQL:
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s", cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database), "mysql", nil
	case store.DialectPostgreSQL:
		sslMode := "disable"
		if cfg.SSL {
			sslMode = "require"
		}
		return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
			cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database, sslMode), "pgx", nil
	default:
		return "", "", deltaerrors.Config(fmt.Sprintf("unsupported relational dialect %q", dialect), nil)
	}
}
