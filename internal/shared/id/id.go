// Package id provides centralized ID generation for the Relay runtime.
//
// This package offers type-safe ULID generation with:
//   - Lexicographic sortability: Handles and invocations list in load order
//   - Prefixed types: Type-specific prefixes for debugging (mod_*, inv_*)
//   - Type safety: Separate types prevent ID misuse
//
// Design Principles:
//   - ULIDs only: Single ID format across the runtime
//   - K-sortable: Timeline queries without timestamps
//   - Debuggable: Prefixes make logs readable
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ============================================================================
// Type-Safe ID Wrappers
// ============================================================================

// ModuleID identifies a loaded module handle
type ModuleID string

// InvocationID identifies a single provider operation call
type InvocationID string

// TaskID identifies a host task queued by guest code
type TaskID string

// ============================================================================
// ID Prefixes (for debugging and type identification)
// ============================================================================

const (
	ModulePrefix     = "mod"
	InvocationPrefix = "inv"
	TaskPrefix       = "task"
)

// ============================================================================
// ULID Generator (Primary)
// ============================================================================

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex // Protects entropy reader
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a new ULID generator with monotonic entropy so IDs
// minted within the same millisecond still sort in creation order
func NewGenerator() *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// NewGeneratorWithEntropy creates a generator with custom entropy source
// Useful for testing with deterministic entropy
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{
		entropy: entropy,
	}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateString creates a new ULID as a string
func (g *Generator) GenerateString() string {
	return g.Generate().String()
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.GenerateString())
}

// ============================================================================
// Typed ID Generators
// ============================================================================

// NewModuleID generates a new module handle ID
func NewModuleID() ModuleID {
	return ModuleID(Default().GenerateWithPrefix(ModulePrefix))
}

// NewInvocationID generates a new invocation ID
func NewInvocationID() InvocationID {
	return InvocationID(Default().GenerateWithPrefix(InvocationPrefix))
}

// NewTaskID generates a new host task ID
func NewTaskID() TaskID {
	return TaskID(Default().GenerateWithPrefix(TaskPrefix))
}

// ============================================================================
// Type Conversion and Validation
// ============================================================================

func (id ModuleID) String() string     { return string(id) }
func (id InvocationID) String() string { return string(id) }
func (id TaskID) String() string       { return string(id) }

// IsValid checks if an ID string is a valid ULID
func IsValid(id string) bool {
	_, err := ulid.Parse(id)
	return err == nil
}

// Parse parses a ULID string
func Parse(id string) (ulid.ULID, error) {
	return ulid.Parse(id)
}

// ParseModuleID validates a prefixed module ID received from outside
func ParseModuleID(s string) (ModuleID, error) {
	prefix, rest, ok := strings.Cut(s, "_")
	if !ok || prefix != ModulePrefix {
		return "", fmt.Errorf("invalid module id %q: missing %s_ prefix", s, ModulePrefix)
	}
	if !IsValid(rest) {
		return "", fmt.Errorf("invalid module id %q: malformed ulid", s)
	}
	return ModuleID(s), nil
}

// Timestamp extracts the timestamp from a ULID, with or without prefix
func Timestamp(id string) (time.Time, error) {
	if _, rest, ok := strings.Cut(id, "_"); ok {
		id = rest
	}
	parsed, err := Parse(id)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
