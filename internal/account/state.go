package account

import "fmt"

// Phase is the coarse authentication phase.
type Phase int

// Authentication phases.
const (
	PhaseUnauthenticated Phase = iota
	PhaseAuthenticated
	PhaseLoading
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseUnauthenticated:
		return "unauthenticated"
	case PhaseAuthenticated:
		return "authenticated"
	case PhaseLoading:
		return "loading"
	case PhaseError:
		return "error"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// AuthState is published by the coordinator. Message is set only in
// PhaseError.
type AuthState struct {
	Phase   Phase
	Message string
}

func Unauthenticated() AuthState { return AuthState{Phase: PhaseUnauthenticated} }
func Authenticated() AuthState   { return AuthState{Phase: PhaseAuthenticated} }
func Loading() AuthState         { return AuthState{Phase: PhaseLoading} }

// Failed is the error state carrying msg.
func Failed(msg string) AuthState { return AuthState{Phase: PhaseError, Message: msg} }

func (s AuthState) String() string {
	if s.Phase == PhaseError {
		return "error: " + s.Message
	}
	return s.Phase.String()
}
