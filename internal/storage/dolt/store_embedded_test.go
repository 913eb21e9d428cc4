//go:build cgo

package dolt

import (
	"context"
	"testing"

	"github.com/cloudsbay/tasker/internal/storage"
	"github.com/cloudsbay/tasker/internal/testutil/teststore"
)

func TestEmbeddedConformance(t *testing.T) {
	if testing.Short() {
		t.Skip("embedded dolt is slow; skipped in -short")
	}
	teststore.Run(t, func(t *testing.T) storage.Storage {
		s, err := New(context.Background(), &Config{Path: t.TempDir()})
		if err != nil {
			t.Fatalf("open embedded dolt: %v", err)
		}
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestEmbeddedReopenKeepsData(t *testing.T) {
	if testing.Short() {
		t.Skip("embedded dolt is slow; skipped in -short")
	}
	ctx := context.Background()
	dir := t.TempDir()

	s, err := New(ctx, &Config{Path: dir})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if s.IsServerMode() || s.Path() == "" {
		t.Errorf("expected embedded store with a path")
	}
	if err := s.SaveTask(ctx, teststore.NewTask("t-1", "owner", "persisted", 0)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s2, err := New(ctx, &Config{Path: dir})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = s2.Close() }()
	got, err := s2.ListTasks(ctx, "owner")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].Name != "persisted" {
		t.Errorf("got %+v, want one persisted task", got)
	}
}
