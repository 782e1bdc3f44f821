package sandbox

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned once the runtime has been closed
	ErrClosed = errors.New("sandbox closed")

	// ErrTimeout is returned when an invocation outlives its deadline
	ErrTimeout = errors.New("invocation deadline exceeded")

	// ErrCanceled is returned when the caller gives up on an invocation
	ErrCanceled = errors.New("invocation canceled")

	// ErrNoEntry is returned when the entry object is not defined
	ErrNoEntry = errors.New("entry object not defined")

	// ErrNotCallable is returned when an entry member is not a function
	ErrNotCallable = errors.New("member is not callable")

	// ErrNotBound is returned by Call before BindEntry succeeded
	ErrNotBound = errors.New("entry object not bound")
)

// Phase identifies where a script error happened
type Phase string

const (
	PhaseCompile  Phase = "compile"
	PhaseEvaluate Phase = "evaluate"
)

// ScriptError reports a module source that failed to compile or threw at
// top level
type ScriptError struct {
	Phase   Phase
	Name    string
	Message string
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Phase, e.Name, e.Message)
}

// GuestError is a guest exception or rejected promise surfaced to the host
type GuestError struct {
	Message  string
	Code     string // code property of the thrown value, if any
	Rejected bool   // true for an unhandled rejection, false for a synchronous throw
}

func (e *GuestError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("guest error [%s]: %s", e.Code, e.Message)
	}
	return "guest error: " + e.Message
}
