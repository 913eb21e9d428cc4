// Package prioritize asks a text generator which pending task is most
// urgent and maps its reply back onto the task list.
package prioritize

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/cloudsbay/tasker/internal/config"
	"github.com/cloudsbay/tasker/internal/state"
	"github.com/cloudsbay/tasker/internal/types"
)

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
}

// Engine runs prioritization requests and publishes their outcome.
// Concurrent Prioritize calls are serialized so published state always
// reflects one complete request.
type Engine struct {
	gen      Generator
	model    string
	template *Template
	mode     MatchMode
	logger   *slog.Logger

	mu      sync.Mutex
	status  *state.Value[Status]
	highest *state.Value[*types.Task]
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithModel sets the model name passed to the generator.
func WithModel(model string) EngineOption {
	return func(e *Engine) {
		if model != "" {
			e.model = model
		}
	}
}

// WithTemplate replaces the built-in prompt.
func WithTemplate(t *Template) EngineOption {
	return func(e *Engine) {
		if t != nil {
			e.template = t
		}
	}
}

// WithMatchMode selects exact or lenient reply matching.
func WithMatchMode(m MatchMode) EngineOption {
	return func(e *Engine) {
		if m != "" {
			e.mode = m
		}
	}
}

// WithLogger sets the engine's logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates an engine over gen.
func NewEngine(gen Generator, opts ...EngineOption) *Engine {
	e := &Engine{
		gen:      gen,
		model:    config.DefaultAIModel,
		template: DefaultTemplate(),
		mode:     MatchExact,
		logger:   slog.Default(),
		status:   state.New(Initial()),
		highest:  state.New[*types.Task](nil),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Status publishes Initial, Loading, Success or Error.
func (e *Engine) Status() *state.Value[Status] { return e.status }

// Highest publishes the most recent top task (nil when none matched).
func (e *Engine) Highest() *state.Value[*types.Task] { return e.highest }

// Model returns the model name sent to the generator.
func (e *Engine) Model() string { return e.model }

// Reset drops the published top task and returns Status to Initial. It
// waits for an in-flight Prioritize call to finish first.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.highest.Set(nil)
	e.status.Set(Initial())
}

// Prioritize makes exactly one generator call over the pending subset of
// tasks. On failure the status moves to Error and Highest keeps its
// previous value.
func (e *Engine) Prioritize(ctx context.Context, tasks []*types.Task) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.status.Set(Loading())
	published := append([]*types.Task(nil), tasks...)

	pending := types.Pending(tasks)
	if len(pending) == 0 {
		e.logger.Debug("no pending tasks, skipping generation")
		e.highest.Set(nil)
		e.status.Set(Success(published))
		return &Result{Tasks: published}, nil
	}

	prompt := e.template.Render(pending)
	reply, err := e.gen.Generate(ctx, e.model, prompt)
	if err == nil && strings.TrimSpace(reply) == "" {
		err = ErrEmptyResponse
	}
	if err != nil {
		gerr := &GenerationError{Model: e.model, Err: err}
		e.logger.Warn("prioritization failed", "model", e.model, "tasks", len(pending), "err", err)
		e.status.Set(Failed(gerr.Error()))
		return nil, gerr
	}

	top := Match(e.mode, reply, pending)
	if top == nil {
		e.logger.Debug("reply matched no pending task", "reply", strings.TrimSpace(reply), "mode", string(e.mode))
	} else {
		e.logger.Debug("top task selected", "task", top.ID)
	}

	e.highest.Set(top)
	e.status.Set(Success(published))
	return &Result{Tasks: published, Top: top, Reply: reply}, nil
}
