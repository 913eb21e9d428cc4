package factory

import (
	"context"

	"github.com/cloudsbay/tasker/internal/storage"
	"github.com/cloudsbay/tasker/internal/storage/dolt"
)

func init() {
	RegisterBackend(BackendDolt, func(ctx context.Context, opts Options) (storage.Storage, error) {
		s, err := dolt.New(ctx, &dolt.Config{
			Path:           opts.Path,
			Database:       opts.Database,
			ServerMode:     opts.ServerMode,
			ServerHost:     opts.ServerHost,
			ServerPort:     opts.ServerPort,
			ServerUser:     opts.ServerUser,
			ServerPassword: opts.ServerPassword,
			ServerTLS:      opts.ServerTLS,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	})
}
