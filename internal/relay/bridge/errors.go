package bridge

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingField matches failures caused by an absent required field
	ErrMissingField = errors.New("missing required field")
	// ErrTypeMismatch matches failures caused by a value of the wrong shape
	ErrTypeMismatch = errors.New("type mismatch")
)

// ConversionFailure identifies the first field that could not be converted
type ConversionFailure struct {
	Path     string // e.g. "results[0].title"; empty for the root value
	Expected string // expected shape, e.g. "string"
	Actual   string // actual shape, e.g. "number"; empty when Missing
	Missing  bool
}

func (f *ConversionFailure) Error() string {
	path := f.Path
	if path == "" {
		path = "<root>"
	}
	if f.Missing {
		return fmt.Sprintf("missing required field %q (expected %s)", path, f.Expected)
	}
	return fmt.Sprintf("field %q: expected %s, got %s", path, f.Expected, f.Actual)
}

// Is matches ErrMissingField or ErrTypeMismatch
func (f *ConversionFailure) Is(target error) bool {
	switch target {
	case ErrMissingField:
		return f.Missing
	case ErrTypeMismatch:
		return !f.Missing
	}
	return false
}
