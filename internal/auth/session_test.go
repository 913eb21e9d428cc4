package auth

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudsbay/tasker/internal/storage/memory"
)

func TestFileSessionStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	fs := NewFileSessionStore(path)

	s, err := fs.Load()
	require.NoError(t, err)
	assert.Nil(t, s)

	want := &Session{UID: "uid-1", Email: "ann@example.com", Token: "tok", ExpiresAt: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, fs.Save(want))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := fs.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, fs.Clear())
	require.NoError(t, fs.Clear())
	got, err = fs.Load()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFileSessionStoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))
	_, err := NewFileSessionStore(path).Load()
	assert.Error(t, err)
}

func TestProviderWithFileSessionsSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")
	n := &captureNotifier{}
	accounts := memory.New()

	p1, err := NewProvider(accounts, NewFileSessionStore(path), []byte("k"), WithNotifier(n), WithLogger(quiet))
	require.NoError(t, err)
	s, err := p1.SignUp(ctx, "ann@example.com", "hunter22")
	require.NoError(t, err)

	p2, err := NewProvider(accounts, NewFileSessionStore(path), []byte("k"), WithLogger(quiet))
	require.NoError(t, err)
	cur, err := p2.CurrentSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, s.UID, cur.UID)

	p3, err := NewProvider(accounts, NewFileSessionStore(path), []byte("other-key"), WithLogger(quiet))
	require.NoError(t, err)
	_, err = p3.CurrentSession(ctx)
	assert.ErrorIs(t, err, ErrNoSession, "token signed with another key is rejected")
}

func TestWatchSessionSeesSaveAndClear(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.json")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan struct{}, 16)
	done := make(chan error, 1)
	go func() {
		done <- WatchSession(ctx, path, quiet, func() { events <- struct{}{} })
	}()

	fs := NewFileSessionStore(path)
	// The watcher may not be registered yet; keep saving until it reports.
	deadline := time.After(5 * time.Second)
	for seen := false; !seen; {
		require.NoError(t, fs.Save(&Session{UID: "uid-1"}))
		select {
		case <-events:
			seen = true
		case <-time.After(50 * time.Millisecond):
		case <-deadline:
			t.Fatal("no event for save")
		}
	}

	// Unrelated files in the directory are ignored.
	for len(events) > 0 {
		<-events
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o600))
	require.NoError(t, fs.Clear())
	select {
	case <-events:
	case <-time.After(5 * time.Second):
		t.Fatal("no event for clear")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
