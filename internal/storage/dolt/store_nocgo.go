//go:build !cgo

package dolt

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmbeddedUnavailable is returned for embedded mode in CGO-less builds.
var ErrEmbeddedUnavailable = errors.New("embedded dolt needs a CGO build")

func newEmbeddedMode(_ context.Context, cfg *Config) (*DoltStore, error) {
	return nil, fmt.Errorf("open %s: %w (set dolt.server=true to use a dolt sql-server)", cfg.Path, ErrEmbeddedUnavailable)
}
