package types

import "fmt"

// Operation names a provider capability implemented by a module
type Operation string

const (
	OpInfo     Operation = "info"
	OpSearch   Operation = "search"
	OpMedia    Operation = "media"
	OpSources  Operation = "sources"
	OpStreams  Operation = "streams"
	OpPages    Operation = "pages"
	OpDiscover Operation = "discover"
)

// RequiredOperations lists the members every module must expose
var RequiredOperations = []Operation{
	OpInfo,
	OpSearch,
	OpMedia,
	OpSources,
	OpStreams,
	OpPages,
}

// IsRequired reports whether a module must implement the operation
func (o Operation) IsRequired() bool {
	for _, op := range RequiredOperations {
		if op == o {
			return true
		}
	}
	return false
}

// Valid reports whether the operation is known
func (o Operation) Valid() bool {
	return o.IsRequired() || o == OpDiscover
}

// ParseOperation converts a string to an Operation
func ParseOperation(s string) (Operation, error) {
	op := Operation(s)
	if !op.Valid() {
		return "", fmt.Errorf("unknown operation: %q", s)
	}
	return op, nil
}

func (o Operation) String() string {
	return string(o)
}
