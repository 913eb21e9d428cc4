// Package tasks coordinates the signed-in user's task list: loading it
// from the store, running prioritization over the pending subset, and
// refreshing both on a fixed interval.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cloudsbay/tasker/internal/idgen"
	"github.com/cloudsbay/tasker/internal/prioritize"
	"github.com/cloudsbay/tasker/internal/state"
	"github.com/cloudsbay/tasker/internal/storage"
	"github.com/cloudsbay/tasker/internal/types"
)

// DefaultRefreshInterval is the period of the refresh cycle.
const DefaultRefreshInterval = 2 * time.Minute

var (
	// ErrNoSession is returned when no user is signed in.
	ErrNoSession = errors.New("no signed-in user")
	// ErrAlreadyRunning is returned by Start on a running coordinator.
	ErrAlreadyRunning = errors.New("refresh cycle already running")
)

// OwnerFunc reports the current owner id, or false when signed out.
type OwnerFunc func() (string, bool)

// Coordinator owns the published task list. A failed call never touches
// published state, and nothing loaded for one owner is published while
// another owner is signed in.
type Coordinator struct {
	store    storage.TaskStore
	engine   *prioritize.Engine
	owner    OwnerFunc
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string

	tasks *state.Value[[]*types.Task]

	// current is the owner whose tasks are published, "" when none.
	stateMu sync.Mutex
	current string

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithInterval sets the refresh period. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithLogger sets the coordinator's logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock overrides time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// WithIDGenerator overrides task id generation.
func WithIDGenerator(fn func() string) Option {
	return func(c *Coordinator) {
		if fn != nil {
			c.newID = fn
		}
	}
}

// New creates a coordinator. The refresh cycle does not run until Start.
func New(store storage.TaskStore, engine *prioritize.Engine, owner OwnerFunc, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:    store,
		engine:   engine,
		owner:    owner,
		interval: DefaultRefreshInterval,
		logger:   slog.Default(),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    idgen.NewTaskID,
		tasks:    state.New[[]*types.Task](nil),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Tasks publishes the owner's task list.
func (c *Coordinator) Tasks() *state.Value[[]*types.Task] { return c.tasks }

// Status publishes the prioritization status.
func (c *Coordinator) Status() *state.Value[prioritize.Status] { return c.engine.Status() }

// Highest publishes the most urgent pending task.
func (c *Coordinator) Highest() *state.Value[*types.Task] { return c.engine.Highest() }

// Reset clears the published list, the top task and the prioritization
// status. Call it when the session ends.
func (c *Coordinator) Reset() {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.resetLocked()
}

func (c *Coordinator) resetLocked() {
	c.current = ""
	c.tasks.Set(nil)
	c.engine.Reset()
}

// claim makes owner the published owner, clearing state left by anyone else.
func (c *Coordinator) claim(owner string) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.current == owner {
		return
	}
	if c.current != "" {
		c.logger.Debug("owner changed, clearing published tasks", "from", c.current, "to", owner)
	}
	c.resetLocked()
	c.current = owner
}

// publish sets the list only if owner is still the published owner.
func (c *Coordinator) publish(owner string, list []*types.Task) bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.current != owner {
		return false
	}
	c.tasks.Set(list)
	return true
}

// prioritize runs the engine and discards its result if the owner changed
// while the call was in flight.
func (c *Coordinator) prioritize(ctx context.Context, owner string, list []*types.Task) {
	_, _ = c.engine.Prioritize(ctx, list)
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.current != owner {
		c.logger.Debug("discarding prioritization for previous owner", "owner", owner)
		c.engine.Reset()
	}
}

// Start runs LoadTasks now and then every interval until Stop or ctx ends.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return ErrAlreadyRunning
	}
	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(loopCtx, c.done)
	c.logger.Debug("refresh cycle started", "interval", c.interval)
	return nil
}

// Stop cancels the refresh cycle and waits for it to exit. Stop on an
// idle coordinator is a no-op.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	c.logger.Debug("refresh cycle stopped")
}

// Running reports whether the refresh cycle is active.
func (c *Coordinator) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancel != nil
}

func (c *Coordinator) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		if err := c.LoadTasks(ctx); err != nil && ctx.Err() == nil {
			c.logger.Warn("refresh failed", "err", err)
		}
		timer := time.NewTimer(c.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// load lists the current owner's tasks, keeping only rows that owner holds.
func (c *Coordinator) load(ctx context.Context, op string) (string, []*types.Task, error) {
	owner, ok := c.owner()
	if !ok || owner == "" {
		c.logger.Warn("operation requires a signed-in user", "op", op)
		c.Reset()
		return "", nil, ErrNoSession
	}
	c.claim(owner)
	list, err := c.store.ListTasks(ctx, owner)
	if err != nil {
		c.logger.Error("failed to load tasks", "op", op, "owner", owner, "err", err)
		return owner, nil, fmt.Errorf("load tasks: %w", err)
	}
	return owner, types.FilterByOwner(list, owner), nil
}

// LoadAllTasks publishes the owner's tasks without prioritizing them.
func (c *Coordinator) LoadAllTasks(ctx context.Context) error {
	owner, list, err := c.load(ctx, "LoadAllTasks")
	if err != nil {
		return err
	}
	c.publish(owner, list)
	return nil
}

// LoadMostPrioritizedTask runs the engine over the pending tasks and
// publishes only its top pick. Engine failures surface on Status.
func (c *Coordinator) LoadMostPrioritizedTask(ctx context.Context) error {
	owner, list, err := c.load(ctx, "LoadMostPrioritizedTask")
	if err != nil {
		return err
	}
	c.prioritize(ctx, owner, types.Pending(list))
	return nil
}

// LoadTasks is one refresh cycle: load, publish, then prioritize. The
// engine picks from the pending subset and reports the full list on
// success.
func (c *Coordinator) LoadTasks(ctx context.Context) error {
	owner, list, err := c.load(ctx, "LoadTasks")
	if err != nil {
		return err
	}
	if !c.publish(owner, list) {
		return nil
	}
	c.prioritize(ctx, owner, list)
	return nil
}

// AddTask fills in owner, id and timestamps where missing, validates and
// saves the task, then reloads the list.
func (c *Coordinator) AddTask(ctx context.Context, task *types.Task) error {
	owner, ok := c.owner()
	if !ok || owner == "" {
		return ErrNoSession
	}
	if task == nil {
		return fmt.Errorf("task is required")
	}
	if task.OwnerID != "" && task.OwnerID != owner {
		return fmt.Errorf("task belongs to another user")
	}
	task.OwnerID = owner
	task.SetDefaults(c.now(), c.newID)
	if err := task.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}
	if err := c.store.SaveTask(ctx, task); err != nil {
		c.logger.Error("failed to save task", "op", "AddTask", "task", task.ID, "err", err)
		return fmt.Errorf("save task: %w", err)
	}
	c.logger.Info("task added", "task", task.ID, "owner", owner)
	return c.LoadAllTasks(ctx)
}

// CompleteTask saves a copy of task marked Complete and runs a refresh
// cycle. The caller's value is left untouched.
func (c *Coordinator) CompleteTask(ctx context.Context, task *types.Task) error {
	owner, ok := c.owner()
	if !ok || owner == "" {
		return ErrNoSession
	}
	if task == nil {
		return fmt.Errorf("task is required")
	}
	if task.OwnerID != owner {
		return fmt.Errorf("task %s belongs to another user", task.ID)
	}
	done := task.Clone()
	done.Status = types.StatusComplete
	done.UpdatedAt = c.now()
	if err := c.store.SaveTask(ctx, done); err != nil {
		c.logger.Error("failed to complete task", "op", "CompleteTask", "task", task.ID, "err", err)
		return fmt.Errorf("complete task: %w", err)
	}
	c.logger.Info("task completed", "task", task.ID)
	return c.LoadTasks(ctx)
}

// Find resolves an id or unique id prefix against the published list.
func (c *Coordinator) Find(ref string) (*types.Task, error) {
	return Resolve(c.tasks.Get(), ref)
}
