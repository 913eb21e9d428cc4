// Package objectstore stores binary blobs (profile pictures) in a NATS
// JetStream object store bucket.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// DefaultBucket holds profile pictures.
const DefaultBucket = "profile_pictures"

// ErrNotFound is returned by Get and Delete for unknown paths.
var ErrNotFound = errors.New("object not found")

// Store uploads objects into a single bucket.
type Store struct {
	bucket    string
	publicURL string
	obs       jetstream.ObjectStore
	logger    *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithPublicURL sets the base URL returned links are built on. Without it
// links have the form nats://<bucket>/<key>.
func WithPublicURL(base string) Option {
	return func(s *Store) { s.publicURL = strings.TrimRight(base, "/") }
}

// WithLogger sets the store's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// Open binds to bucket on nc, creating it when missing.
func Open(ctx context.Context, nc *nats.Conn, bucket string, opts ...Option) (*Store, error) {
	if nc == nil {
		return nil, fmt.Errorf("objectstore: nil connection")
	}
	if bucket == "" {
		bucket = DefaultBucket
	}
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("objectstore: jetstream: %w", err)
	}
	obs, err := js.CreateOrUpdateObjectStore(ctx, jetstream.ObjectStoreConfig{
		Bucket:      bucket,
		Description: "tasker uploads",
		Storage:     jetstream.FileStorage,
	})
	if err != nil {
		return nil, fmt.Errorf("objectstore: bucket %s: %w", bucket, err)
	}
	s := &Store{bucket: bucket, obs: obs, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Bucket returns the bucket name.
func (s *Store) Bucket() string { return s.bucket }

// Upload stores data under path and returns a link to it. A leading
// "<bucket>/" segment is treated as the bucket itself, so
// "profile_pictures/uid.jpg" lands on key "uid.jpg".
func (s *Store) Upload(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	key, err := s.key(path)
	if err != nil {
		return "", err
	}
	meta := jetstream.ObjectMeta{Name: key}
	if contentType != "" {
		meta.Headers = nats.Header{"Content-Type": []string{contentType}}
	}
	info, err := s.obs.Put(ctx, meta, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", path, err)
	}
	s.logger.Debug("object uploaded", "bucket", s.bucket, "key", key, "size", info.Size)
	return s.URL(key), nil
}

// Get returns the object's bytes and content type.
func (s *Store) Get(ctx context.Context, path string) ([]byte, string, error) {
	key, err := s.key(path)
	if err != nil {
		return nil, "", err
	}
	res, err := s.obs.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrObjectNotFound) {
			return nil, "", fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return nil, "", fmt.Errorf("get %s: %w", path, err)
	}
	defer func() { _ = res.Close() }()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(res); err != nil {
		return nil, "", fmt.Errorf("read %s: %w", path, err)
	}
	info, err := res.Info()
	if err != nil {
		return nil, "", fmt.Errorf("info %s: %w", path, err)
	}
	return buf.Bytes(), info.Headers.Get("Content-Type"), nil
}

// Delete removes the object at path.
func (s *Store) Delete(ctx context.Context, path string) error {
	key, err := s.key(path)
	if err != nil {
		return err
	}
	if err := s.obs.Delete(ctx, key); err != nil {
		if errors.Is(err, jetstream.ErrObjectNotFound) {
			return fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

// URL returns the link for key.
func (s *Store) URL(key string) string {
	if s.publicURL != "" {
		return s.publicURL + "/" + s.bucket + "/" + key
	}
	return "nats://" + s.bucket + "/" + key
}

func (s *Store) key(path string) (string, error) {
	key := strings.TrimPrefix(strings.TrimLeft(path, "/"), s.bucket+"/")
	if key == "" {
		return "", fmt.Errorf("objectstore: empty path")
	}
	return key, nil
}
