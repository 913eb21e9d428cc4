package prioritize

import (
	"errors"
	"fmt"

	"github.com/cloudsbay/tasker/internal/types"
)

// Phase is the lifecycle stage of a prioritization request.
type Phase int

const (
	PhaseInitial Phase = iota
	PhaseLoading
	PhaseSuccess
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseInitial:
		return "initial"
	case PhaseLoading:
		return "loading"
	case PhaseSuccess:
		return "success"
	case PhaseError:
		return "error"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Status is the value published on Engine.Status. Tasks is set only in
// PhaseSuccess and Message only in PhaseError.
type Status struct {
	Phase   Phase
	Tasks   []*types.Task
	Message string
}

// Initial is the status before any request.
func Initial() Status { return Status{Phase: PhaseInitial} }

// Loading marks a request in flight.
func Loading() Status { return Status{Phase: PhaseLoading} }

// Success carries the task list the request ran over.
func Success(tasks []*types.Task) Status {
	return Status{Phase: PhaseSuccess, Tasks: tasks}
}

// Failed carries a human-readable error message.
func Failed(msg string) Status { return Status{Phase: PhaseError, Message: msg} }

func (s Status) String() string {
	switch s.Phase {
	case PhaseSuccess:
		return fmt.Sprintf("success(%d tasks)", len(s.Tasks))
	case PhaseError:
		return "error: " + s.Message
	default:
		return s.Phase.String()
	}
}

// Result is what one Prioritize call produced. Top is nil when the reply
// named no pending task.
type Result struct {
	Tasks []*types.Task
	Top   *types.Task
	Reply string
}

// ErrEmptyResponse means the generator answered with nothing usable.
var ErrEmptyResponse = errors.New("empty response from text generator")

// GenerationError wraps any failure of the text-generation call.
type GenerationError struct {
	Model string
	Err   error
}

func (e *GenerationError) Error() string {
	if e.Model == "" {
		return fmt.Sprintf("text generation failed: %v", e.Err)
	}
	return fmt.Sprintf("text generation with %s failed: %v", e.Model, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }
