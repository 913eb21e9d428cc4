// Package factory opens the storage backend selected by configuration.
package factory

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cloudsbay/tasker/internal/config"
	"github.com/cloudsbay/tasker/internal/storage"
	"github.com/cloudsbay/tasker/internal/storage/memory"
	"github.com/cloudsbay/tasker/internal/storage/sqlite"
)

// Backend names accepted by storage.backend.
const (
	BackendDolt   = "dolt"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// BackendFactory is a function that creates a storage backend
type BackendFactory func(ctx context.Context, opts Options) (storage.Storage, error)

// backendRegistry holds registered backend factories
var backendRegistry = make(map[string]BackendFactory)

// RegisterBackend registers a storage backend factory
func RegisterBackend(name string, factory BackendFactory) {
	backendRegistry[name] = factory
}

func init() {
	RegisterBackend(BackendMemory, func(context.Context, Options) (storage.Storage, error) {
		return memory.New(), nil
	})
	RegisterBackend(BackendSQLite, func(ctx context.Context, opts Options) (storage.Storage, error) {
		if opts.Path == "" {
			return nil, fmt.Errorf("sqlite backend requires a path")
		}
		s, err := sqlite.Open(ctx, opts.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
}

// Options configures how the storage backend is opened
type Options struct {
	Path string // Database directory (dolt) or file (sqlite)

	// Dolt server mode options
	ServerMode     bool   // Connect to dolt sql-server instead of embedded
	ServerHost     string // Server host (default: 127.0.0.1)
	ServerPort     int    // Server port (default: 3307)
	ServerUser     string // MySQL user (default: root)
	ServerPassword string
	ServerTLS      bool
	Database       string // Database name (default: tasker)
}

// New creates a storage backend by name. An empty name selects dolt.
func New(ctx context.Context, backend string, opts Options) (storage.Storage, error) {
	backend = strings.ToLower(strings.TrimSpace(backend))
	if backend == "" {
		backend = BackendDolt
	}
	if factory, ok := backendRegistry[backend]; ok {
		return factory(ctx, opts)
	}
	return nil, fmt.Errorf("unknown storage backend: %s (supported: %s)", backend, strings.Join(Backends(), ", "))
}

// Backends lists the registered backend names
func Backends() []string {
	names := make([]string, 0, len(backendRegistry))
	for name := range backendRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OptionsFromConfig builds Options for backend from the loaded configuration.
func OptionsFromConfig(backend string) Options {
	switch backend {
	case BackendSQLite:
		return Options{Path: config.PathIn("sqlite.path", "tasker.db")}
	case BackendMemory:
		return Options{}
	default:
		return Options{
			Path:           config.PathIn("dolt.path", "dolt"),
			ServerMode:     config.GetBool("dolt.server"),
			ServerHost:     config.GetString("dolt.host"),
			ServerPort:     config.GetInt("dolt.port"),
			ServerUser:     config.GetString("dolt.user"),
			ServerPassword: config.GetString("dolt.password"),
			ServerTLS:      config.GetBool("dolt.tls"),
			Database:       config.GetString("dolt.database"),
		}
	}
}

// NewFromConfig opens the backend named by storage.backend.
func NewFromConfig(ctx context.Context) (storage.Storage, error) {
	backend := config.GetString("storage.backend")
	return New(ctx, backend, OptionsFromConfig(backend))
}

// DefaultPath is where a backend keeps its files under dataDir.
func DefaultPath(dataDir, backend string) string {
	if backend == BackendSQLite {
		return filepath.Join(dataDir, "tasker.db")
	}
	return filepath.Join(dataDir, "dolt")
}
