//go:build cgo

package dolt

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	embedded "github.com/dolthub/driver"
)

// embeddedDSN builds a dolthub/driver DSN. The driver resolves relative
// paths against its own working directory, so dir must be absolute.
func embeddedDSN(dir string, cfg *Config, database string) string {
	q := url.Values{}
	q.Set("commitname", cfg.CommitterName)
	q.Set("commitemail", cfg.CommitterEmail)
	if database != "" {
		q.Set("database", database)
	}
	return "file://" + dir + "?" + q.Encode()
}

// openEngine starts an embedded engine on dsn. The engine is single-writer,
// so the pool holds one connection.
func openEngine(dsn string) (*sql.DB, *embedded.Connector, error) {
	cfg, err := embedded.ParseDSN(dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("dolt dsn: %w", err)
	}
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second
	cfg.BackOff = bo

	connector, err := embedded.NewConnector(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("dolt engine: %w", err)
	}
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	return db, connector, nil
}

// bootstrap runs fn on a throwaway engine so locks are released before the
// long-lived one opens.
func bootstrap(dsn string, fn func(*sql.DB) error) error {
	db, connector, err := openEngine(dsn)
	if err != nil {
		return err
	}
	defer func() {
		_ = db.Close()
		_ = connector.Close()
	}()
	return fn(db)
}

func newEmbeddedMode(ctx context.Context, cfg *Config) (*DoltStore, error) {
	dir, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("dolt path: %w", err)
	}
	if fi, err := os.Stat(dir); err == nil && !fi.IsDir() {
		return nil, fmt.Errorf("dolt path %s is not a directory", dir)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}

	err = bootstrap(embeddedDSN(dir, cfg, ""), func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, "CREATE DATABASE IF NOT EXISTS `"+cfg.Database+"`")
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create database %s: %w", cfg.Database, err)
	}

	dsn := embeddedDSN(dir, cfg, cfg.Database)
	if err := bootstrap(dsn, func(db *sql.DB) error { return migrate(ctx, db) }); err != nil {
		return nil, err
	}

	db, connector, err := openEngine(dsn)
	if err != nil {
		return nil, err
	}
	// The driver keeps the context of its first connection for the session,
	// so that connection must not be opened with a cancelable one.
	if err := db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		_ = connector.Close()
		return nil, fmt.Errorf("ping embedded dolt: %w", err)
	}
	return &DoltStore{db: db, path: dir, engine: connector}, nil
}
