package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudsbay/tasker/internal/prioritize"
	"github.com/cloudsbay/tasker/internal/storage/memory"
	"github.com/cloudsbay/tasker/internal/testutil/teststore"
	"github.com/cloudsbay/tasker/internal/types"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type stubGenerator struct {
	mu    sync.Mutex
	reply string
	err   error
	calls int
}

func (g *stubGenerator) Generate(context.Context, string, string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return g.reply, g.err
}

func (g *stubGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// flakyStore fails SaveTask or ListTasks on demand.
type flakyStore struct {
	*memory.MemoryStorage
	failSave atomic.Bool
	failList atomic.Bool
	lists    atomic.Int32
}

func (s *flakyStore) SaveTask(ctx context.Context, t *types.Task) error {
	if s.failSave.Load() {
		return errors.New("disk full")
	}
	return s.MemoryStorage.SaveTask(ctx, t)
}

func (s *flakyStore) ListTasks(ctx context.Context, owner string) ([]*types.Task, error) {
	s.lists.Add(1)
	if s.failList.Load() {
		return nil, errors.New("connection refused")
	}
	return s.MemoryStorage.ListTasks(ctx, owner)
}

func signedIn(owner string) OwnerFunc {
	return func() (string, bool) { return owner, true }
}

func signedOut() (string, bool) { return "", false }

type fixture struct {
	store *flakyStore
	gen   *stubGenerator
	c     *Coordinator
}

func newFixture(t *testing.T, owner OwnerFunc, opts ...Option) *fixture {
	t.Helper()
	store := &flakyStore{MemoryStorage: memory.New()}
	gen := &stubGenerator{reply: "Pay bills"}
	engine := prioritize.NewEngine(gen, prioritize.WithLogger(quiet))
	n := 0
	opts = append([]Option{
		WithLogger(quiet),
		WithClock(func() time.Time { return time.Date(2025, 6, 20, 9, 0, 0, 0, time.UTC) }),
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("gen-%d", n)
		}),
	}, opts...)
	return &fixture{store: store, gen: gen, c: New(store, engine, owner, opts...)}
}

func (f *fixture) seed(t *testing.T, tasks ...*types.Task) {
	t.Helper()
	for _, task := range tasks {
		require.NoError(t, f.store.MemoryStorage.SaveTask(context.Background(), task))
	}
}

func TestLoadAllTasksPublishesOwnerSubset(t *testing.T) {
	f := newFixture(t, signedIn("alice"))
	f.seed(t,
		teststore.NewTask("a1", "alice", "Pay bills", 0),
		teststore.NewTask("b1", "bob", "Bob's task", time.Minute),
		teststore.NewTask("a2", "alice", "Read book", 2*time.Minute),
	)

	require.NoError(t, f.c.LoadAllTasks(context.Background()))

	got := f.c.Tasks().Get()
	require.Len(t, got, 2)
	for _, task := range got {
		assert.Equal(t, "alice", task.OwnerID)
	}
	assert.Equal(t, 0, f.gen.Calls(), "no engine call")
}

func TestCompleteTaskChangesOnlyStatusAndUpdatedAt(t *testing.T) {
	f := newFixture(t, signedIn("alice"))
	orig := teststore.NewTask("a1", "alice", "Pay bills", 0)
	orig.Description = "electricity"
	f.seed(t, orig)
	ctx := context.Background()
	require.NoError(t, f.c.LoadAllTasks(ctx))
	before := *f.c.Tasks().Get()[0]

	require.NoError(t, f.c.CompleteTask(ctx, &before))
	assert.Equal(t, types.StatusPending, before.Status, "caller's copy untouched")

	require.NoError(t, f.c.LoadAllTasks(ctx))
	after := f.c.Tasks().Get()
	require.Len(t, after, 1)
	got := *after[0]

	assert.Equal(t, types.StatusComplete, got.Status)
	assert.True(t, got.UpdatedAt.After(before.UpdatedAt))

	got.Status = before.Status
	got.UpdatedAt = before.UpdatedAt
	assert.Equal(t, before, got, "no other field changes")
}

func TestFailingSaveLeavesListUnchanged(t *testing.T) {
	f := newFixture(t, signedIn("alice"))
	f.seed(t, teststore.NewTask("a1", "alice", "Pay bills", 0))
	ctx := context.Background()
	require.NoError(t, f.c.LoadAllTasks(ctx))
	snapshot := f.c.Tasks().Get()

	f.store.failSave.Store(true)

	assert.NotPanics(t, func() {
		err := f.c.AddTask(ctx, &types.Task{Name: "New one"})
		assert.Error(t, err)
		err = f.c.CompleteTask(ctx, snapshot[0])
		assert.Error(t, err)
	})
	assert.Equal(t, snapshot, f.c.Tasks().Get())
	assert.Equal(t, types.StatusPending, f.c.Tasks().Get()[0].Status)
}

func TestFailingListLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t, signedIn("alice"))
	f.seed(t, teststore.NewTask("a1", "alice", "Pay bills", 0))
	ctx := context.Background()
	require.NoError(t, f.c.LoadTasks(ctx))
	tasksBefore := f.c.Tasks().Get()
	topBefore := f.c.Highest().Get()
	require.NotNil(t, topBefore)

	f.store.failList.Store(true)
	require.Error(t, f.c.LoadTasks(ctx))
	require.Error(t, f.c.LoadMostPrioritizedTask(ctx))

	assert.Equal(t, tasksBefore, f.c.Tasks().Get())
	assert.Same(t, topBefore, f.c.Highest().Get())
}

func TestNoSession(t *testing.T) {
	f := newFixture(t, signedOut)
	ctx := context.Background()

	assert.ErrorIs(t, f.c.LoadAllTasks(ctx), ErrNoSession)
	assert.ErrorIs(t, f.c.LoadTasks(ctx), ErrNoSession)
	assert.ErrorIs(t, f.c.LoadMostPrioritizedTask(ctx), ErrNoSession)
	assert.ErrorIs(t, f.c.AddTask(ctx, &types.Task{Name: "x"}), ErrNoSession)
	assert.ErrorIs(t, f.c.CompleteTask(ctx, &types.Task{ID: "x"}), ErrNoSession)
	assert.Nil(t, f.c.Tasks().Get())
	assert.EqualValues(t, 0, f.store.lists.Load())
}

func TestAddTaskFillsDefaultsAndReloads(t *testing.T) {
	f := newFixture(t, signedIn("alice"))
	ctx := context.Background()

	task := &types.Task{Name: "Water plants", Deadline: "2025-07-04"}
	require.NoError(t, f.c.AddTask(ctx, task))

	assert.Equal(t, "gen-1", task.ID)
	assert.Equal(t, "alice", task.OwnerID)
	assert.Equal(t, types.PriorityLow, task.Priority)
	assert.Equal(t, types.StatusPending, task.Status)
	assert.False(t, task.CreatedAt.IsZero())

	got := f.c.Tasks().Get()
	require.Len(t, got, 1)
	assert.Equal(t, "Water plants", got[0].Name)
	assert.Equal(t, 0, f.gen.Calls(), "adding reloads without prioritizing")
}

func TestAddTaskValidation(t *testing.T) {
	f := newFixture(t, signedIn("alice"))
	ctx := context.Background()

	assert.Error(t, f.c.AddTask(ctx, &types.Task{Name: ""}))
	assert.Error(t, f.c.AddTask(ctx, &types.Task{Name: "theirs", OwnerID: "bob"}))
	assert.Error(t, f.c.AddTask(ctx, nil))
	assert.EqualValues(t, 0, f.store.lists.Load(), "invalid tasks never reach the store")
}

func TestLoadTasksPrioritizesPendingSubset(t *testing.T) {
	f := newFixture(t, signedIn("alice"))
	done := teststore.NewTask("a0", "alice", "Old chore", 0)
	done.Status = types.StatusComplete
	f.seed(t,
		done,
		teststore.NewTask("a1", "alice", "Pay bills", time.Minute),
		teststore.NewTask("a2", "alice", "Read book", 2*time.Minute),
	)

	require.NoError(t, f.c.LoadTasks(context.Background()))

	assert.Len(t, f.c.Tasks().Get(), 3, "all of the owner's tasks are published")
	top := f.c.Highest().Get()
	require.NotNil(t, top)
	assert.Equal(t, "a1", top.ID)

	st := f.c.Status().Get()
	assert.Equal(t, prioritize.PhaseSuccess, st.Phase)
	assert.Len(t, st.Tasks, 3, "success carries the full list, completed tasks included")
}

func TestLoadMostPrioritizedTaskOnlyPublishesTop(t *testing.T) {
	f := newFixture(t, signedIn("alice"))
	f.seed(t, teststore.NewTask("a1", "alice", "Pay bills", 0))

	require.NoError(t, f.c.LoadMostPrioritizedTask(context.Background()))
	assert.Nil(t, f.c.Tasks().Get(), "task list not published")
	require.NotNil(t, f.c.Highest().Get())
	assert.Equal(t, "a1", f.c.Highest().Get().ID)
}

func TestEngineFailureSurfacesOnStatus(t *testing.T) {
	f := newFixture(t, signedIn("alice"))
	f.gen.err = errors.New("rate limited")
	f.seed(t, teststore.NewTask("a1", "alice", "Pay bills", 0))

	require.NoError(t, f.c.LoadTasks(context.Background()))
	assert.Len(t, f.c.Tasks().Get(), 1)
	st := f.c.Status().Get()
	assert.Equal(t, prioritize.PhaseError, st.Phase)
	assert.Contains(t, st.Message, "rate limited")
}

func TestRefreshCycle(t *testing.T) {
	f := newFixture(t, signedIn("alice"), WithInterval(10*time.Millisecond))
	f.seed(t, teststore.NewTask("a1", "alice", "Pay bills", 0))

	require.NoError(t, f.c.Start(context.Background()))
	assert.ErrorIs(t, f.c.Start(context.Background()), ErrAlreadyRunning)
	assert.True(t, f.c.Running())

	require.Eventually(t, func() bool { return f.gen.Calls() >= 3 }, 2*time.Second, 5*time.Millisecond)

	f.c.Stop()
	assert.False(t, f.c.Running())
	calls := f.gen.Calls()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, calls, f.gen.Calls(), "no refresh after Stop")

	f.c.Stop() // idempotent
	require.NoError(t, f.c.Start(context.Background()), "restart after stop")
	f.c.Stop()
}

func TestRefreshRunsImmediately(t *testing.T) {
	f := newFixture(t, signedIn("alice"), WithInterval(time.Hour))
	f.seed(t, teststore.NewTask("a1", "alice", "Pay bills", 0))

	require.NoError(t, f.c.Start(context.Background()))
	defer f.c.Stop()
	require.Eventually(t, func() bool { return len(f.c.Tasks().Get()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, f.gen.Calls())
}

func TestRefreshStopsWithContext(t *testing.T) {
	f := newFixture(t, signedIn("alice"), WithInterval(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, f.c.Start(ctx))
	cancel()
	f.c.Stop() // must not hang
}

// switchableOwner is a session that can sign out and sign in as someone else.
type switchableOwner struct {
	mu    sync.Mutex
	owner string
}

func (s *switchableOwner) set(owner string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owner = owner
}

func (s *switchableOwner) get() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owner, s.owner != ""
}

func TestOwnerSwitchClearsPreviousOwnersState(t *testing.T) {
	session := &switchableOwner{owner: "alice"}
	f := newFixture(t, session.get)
	f.seed(t,
		teststore.NewTask("a1", "alice", "Pay bills", 0),
		teststore.NewTask("b1", "bob", "Walk dog", time.Minute),
	)
	ctx := context.Background()

	require.NoError(t, f.c.LoadTasks(ctx))
	require.NotNil(t, f.c.Highest().Get())
	require.Len(t, f.c.Tasks().Get(), 1)

	session.set("")
	assert.ErrorIs(t, f.c.LoadAllTasks(ctx), ErrNoSession)
	assert.Nil(t, f.c.Tasks().Get(), "signed out: no tasks published")
	assert.Nil(t, f.c.Highest().Get(), "signed out: no top task published")

	session.set("bob")
	f.gen.mu.Lock()
	f.gen.err = errors.New("rate limited")
	f.gen.mu.Unlock()

	require.NoError(t, f.c.LoadMostPrioritizedTask(ctx))
	assert.Nil(t, f.c.Highest().Get(), "a failed pick never shows the previous owner's task")
	assert.Equal(t, prioritize.PhaseError, f.c.Status().Get().Phase)
	for _, task := range f.c.Tasks().Get() {
		assert.Equal(t, "bob", task.OwnerID)
	}
}

func TestDirectOwnerSwitchWithoutSignOut(t *testing.T) {
	session := &switchableOwner{owner: "alice"}
	f := newFixture(t, session.get)
	f.seed(t, teststore.NewTask("a1", "alice", "Pay bills", 0))
	ctx := context.Background()

	require.NoError(t, f.c.LoadTasks(ctx))
	require.NotNil(t, f.c.Highest().Get())

	session.set("bob")
	f.store.failList.Store(true)
	require.Error(t, f.c.LoadAllTasks(ctx))
	assert.Nil(t, f.c.Tasks().Get(), "alice's list is gone even though bob's load failed")
	assert.Nil(t, f.c.Highest().Get())
	assert.Equal(t, prioritize.PhaseInitial, f.c.Status().Get().Phase)
}

func TestResetClearsEverything(t *testing.T) {
	f := newFixture(t, signedIn("alice"))
	f.seed(t, teststore.NewTask("a1", "alice", "Pay bills", 0))
	require.NoError(t, f.c.LoadTasks(context.Background()))

	f.c.Reset()
	assert.Nil(t, f.c.Tasks().Get())
	assert.Nil(t, f.c.Highest().Get())
	assert.Equal(t, prioritize.PhaseInitial, f.c.Status().Get().Phase)
}
