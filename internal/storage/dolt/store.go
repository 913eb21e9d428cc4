// Package dolt stores tasks, profiles and accounts in Dolt.
//
// A store either embeds the Dolt engine in-process (github.com/dolthub/driver,
// CGO builds only) or talks to a running dolt sql-server over the MySQL
// protocol.
package dolt

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/go-sql-driver/mysql"

	"github.com/cloudsbay/tasker/internal/storage"
)

// DefaultSQLPort is where dolt sql-server listens unless told otherwise.
const DefaultSQLPort = 3307

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("dolt store is closed")

// Config selects and parameterises the connection mode.
type Config struct {
	Path           string // embedded: database directory
	CommitterName  string
	CommitterEmail string
	Database       string // default "tasker"

	ServerMode     bool
	ServerHost     string // default 127.0.0.1
	ServerPort     int    // default DefaultSQLPort
	ServerUser     string // default root
	ServerPassword string // falls back to TASKER_DOLT_PASSWORD
	ServerTLS      bool
}

// DoltStore implements storage.Storage on a Dolt database.
type DoltStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	server bool
	engine io.Closer // embedded only; holds the directory lock
}

var _ storage.Storage = (*DoltStore)(nil)

// New opens the store described by cfg and applies the schema.
func New(ctx context.Context, cfg *Config) (*DoltStore, error) {
	cfg.withDefaults()
	if !databaseNameRe.MatchString(cfg.Database) {
		return nil, fmt.Errorf("database name %q: use letters, digits, '_' or '-', starting with a letter or '_'", cfg.Database)
	}
	if cfg.ServerMode {
		return openServer(ctx, cfg)
	}
	if cfg.Path == "" {
		return nil, errors.New("dolt: embedded mode needs a database path")
	}
	return newEmbeddedMode(ctx, cfg)
}

func (c *Config) withDefaults() {
	if c.Database == "" {
		c.Database = "tasker"
	}
	if c.CommitterName == "" {
		c.CommitterName = "tasker"
	}
	if c.CommitterEmail == "" {
		c.CommitterEmail = "tasker@local"
	}
	if !c.ServerMode {
		return
	}
	if c.ServerHost == "" {
		c.ServerHost = "127.0.0.1"
	}
	if c.ServerPort == 0 {
		c.ServerPort = DefaultSQLPort
	}
	if c.ServerUser == "" {
		c.ServerUser = "root"
	}
	if c.ServerPassword == "" {
		c.ServerPassword = os.Getenv("TASKER_DOLT_PASSWORD")
	}
}

// Identifiers are interpolated inside backticks, so they are restricted.
var databaseNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_\-]{0,63}$`)

// dsn renders a go-sql-driver/mysql DSN. An empty database connects
// without selecting one.
func (c *Config) dsn(database string) string {
	user := c.ServerUser
	if c.ServerPassword != "" {
		user += ":" + c.ServerPassword
	}
	params := "parseTime=true"
	if c.ServerTLS {
		params += "&tls=true"
	}
	addr := net.JoinHostPort(c.ServerHost, strconv.Itoa(c.ServerPort))
	return fmt.Sprintf("%s@tcp(%s)/%s?%s", user, addr, database, params)
}

// retry runs op with exponential backoff for up to 30s. The mysql driver
// does not retry the initial handshake, so a server that is still starting
// gets that long to come up.
func retry(ctx context.Context, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second
	return backoff.Retry(op, backoff.WithContext(bo, ctx))
}

func openServer(ctx context.Context, cfg *Config) (*DoltStore, error) {
	addr := net.JoinHostPort(cfg.ServerHost, strconv.Itoa(cfg.ServerPort))
	probe, err := net.DialTimeout("tcp", addr, 500*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("no dolt sql-server at %s (start one with 'dolt sql-server'): %w", addr, err)
	}
	_ = probe.Close()

	if err := createDatabase(ctx, cfg); err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", cfg.dsn(cfg.Database))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", addr, err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", addr, err)
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &DoltStore{db: db, server: true}, nil
}

func createDatabase(ctx context.Context, cfg *Config) error {
	db, err := sql.Open("mysql", cfg.dsn(""))
	if err != nil {
		return err
	}
	defer db.Close()

	stmt := "CREATE DATABASE IF NOT EXISTS `" + cfg.Database + "`"
	err = retry(ctx, func() error {
		_, err := db.ExecContext(ctx, stmt)
		switch {
		case err == nil, isDatabaseExists(err):
			// Dolt can report 1007 despite IF NOT EXISTS.
			return nil
		case strings.Contains(strings.ToLower(err.Error()), "access denied"):
			return backoff.Permanent(err)
		default:
			return err
		}
	})
	if err != nil {
		return fmt.Errorf("create database %s: %w", cfg.Database, err)
	}
	return nil
}

func isDatabaseExists(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database exists") || strings.Contains(msg, "1007")
}

func migrate(ctx context.Context, db *sql.DB) error {
	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m.stmt); err != nil {
			return fmt.Errorf("migrate %s: %w", m.name, err)
		}
	}
	return nil
}

// Close releases the connection pool and, when embedded, the engine.
func (s *DoltStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	if s.db != nil {
		errs = append(errs, s.db.Close())
		s.db = nil
	}
	if s.engine != nil {
		if err := s.engine.Close(); !errors.Is(err, context.Canceled) {
			errs = append(errs, err)
		}
		s.engine = nil
	}
	return errors.Join(errs...)
}

// Path is the embedded database directory, empty in server mode.
func (s *DoltStore) Path() string { return s.path }

// IsServerMode reports whether the store talks to a dolt sql-server.
func (s *DoltStore) IsServerMode() bool { return s.server }

// conn returns the pool, or ErrClosed.
func (s *DoltStore) conn() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, ErrClosed
	}
	return s.db, nil
}
