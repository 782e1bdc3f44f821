package relay

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for errors.Is
var (
	ErrCompileFailed     = errors.New("module failed to compile")
	ErrMissingEntryPoint = errors.New("module entry point missing")
	ErrEngineInit        = errors.New("engine initialization failed")

	ErrGuestThrew     = errors.New("guest threw")
	ErrSchemaMismatch = errors.New("schema mismatch")
	ErrTimeout        = errors.New("invocation timed out")
	ErrCanceled       = errors.New("invocation canceled")
	ErrClosed         = errors.New("module closed")
	ErrUnsupported    = errors.New("operation not implemented")

	ErrNotFound = errors.New("module not found")
)

// LoadErrorKind classifies load failures
type LoadErrorKind int

const (
	LoadCompileFailed LoadErrorKind = iota + 1
	LoadMissingEntryPoint
	LoadEngineInit
)

func (k LoadErrorKind) String() string {
	switch k {
	case LoadCompileFailed:
		return "compile_failed"
	case LoadMissingEntryPoint:
		return "missing_entry_point"
	case LoadEngineInit:
		return "engine_init"
	default:
		return "unknown"
	}
}

func (k LoadErrorKind) sentinel() error {
	switch k {
	case LoadCompileFailed:
		return ErrCompileFailed
	case LoadMissingEntryPoint:
		return ErrMissingEntryPoint
	default:
		return ErrEngineInit
	}
}

// LoadError is returned by Runtime.Load
type LoadError struct {
	Kind    LoadErrorKind
	Module  string
	Message string
	Missing []string // operations the entry object lacks
	Err     error
}

func (e *LoadError) Error() string {
	switch {
	case len(e.Missing) > 0:
		return fmt.Sprintf("load %s: %s: missing %s", e.Module, e.Kind, strings.Join(e.Missing, ", "))
	case e.Message != "":
		return fmt.Sprintf("load %s: %s: %s", e.Module, e.Kind, e.Message)
	default:
		return fmt.Sprintf("load %s: %s", e.Module, e.Kind)
	}
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind
func (e *LoadError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// InvokeErrorKind classifies invocation failures
type InvokeErrorKind int

const (
	InvokeGuestThrew InvokeErrorKind = iota + 1
	InvokeSchemaMismatch
	InvokeTimeout
	InvokeCanceled
	InvokeClosed
	InvokeUnsupported
)

func (k InvokeErrorKind) String() string {
	switch k {
	case InvokeGuestThrew:
		return "guest_threw"
	case InvokeSchemaMismatch:
		return "schema_mismatch"
	case InvokeTimeout:
		return "timeout"
	case InvokeCanceled:
		return "canceled"
	case InvokeClosed:
		return "closed"
	case InvokeUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

func (k InvokeErrorKind) sentinel() error {
	switch k {
	case InvokeGuestThrew:
		return ErrGuestThrew
	case InvokeSchemaMismatch:
		return ErrSchemaMismatch
	case InvokeTimeout:
		return ErrTimeout
	case InvokeCanceled:
		return ErrCanceled
	case InvokeClosed:
		return ErrClosed
	default:
		return ErrUnsupported
	}
}

// InvokeError is returned by provider operations
type InvokeError struct {
	Kind      InvokeErrorKind
	Module    string
	Operation string
	Message   string
	Code      string // guest supplied error code, if any
	Path      string // failing field path for SchemaMismatch
	Err       error
}

func (e *InvokeError) Error() string {
	prefix := fmt.Sprintf("%s.%s: %s", e.Module, e.Operation, e.Kind)
	switch {
	case e.Kind == InvokeSchemaMismatch:
		return fmt.Sprintf("%s at %q: %s", prefix, e.Path, e.Message)
	case e.Message != "":
		return prefix + ": " + e.Message
	default:
		return prefix
	}
}

func (e *InvokeError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind. Unsupported operations
// also match ErrGuestThrew, since the guest provides no implementation.
func (e *InvokeError) Is(target error) bool {
	if target == e.Kind.sentinel() {
		return true
	}
	return e.Kind == InvokeUnsupported && target == ErrGuestThrew
}
