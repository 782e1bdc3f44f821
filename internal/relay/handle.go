package relay

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/relay/internal/relay/sandbox"
	"github.com/GriffinCanCode/relay/internal/shared/id"
	"github.com/GriffinCanCode/relay/internal/shared/types"
)

// Handle is one loaded module. It owns exactly one engine.
type Handle struct {
	id       id.ModuleID
	name     string
	checksum string
	loadedAt time.Time
	ops      map[types.Operation]bool
	sandbox  *sandbox.Runtime
	runtime  *Runtime
	logger   *zap.Logger

	invocations atomic.Uint64
	failures    atomic.Uint64

	statsMu   sync.Mutex
	lastError string
	lastUsed  time.Time
}

// Stats summarizes a module's invocations
type Stats struct {
	Invocations uint64    `json:"invocations" yaml:"invocations"`
	Failures    uint64    `json:"failures" yaml:"failures"`
	Pending     int       `json:"pending" yaml:"pending"`
	LastError   string    `json:"lastError,omitempty" yaml:"lastError,omitempty"`
	LastUsed    time.Time `json:"lastUsed,omitempty" yaml:"lastUsed,omitempty"`
}

// Info describes a loaded module
type Info struct {
	ID         id.ModuleID `json:"id" yaml:"id"`
	Name       string      `json:"name" yaml:"name"`
	Checksum   string      `json:"checksum" yaml:"checksum"`
	LoadedAt   time.Time   `json:"loadedAt" yaml:"loadedAt"`
	Operations []string    `json:"operations" yaml:"operations"`
	Stats      Stats       `json:"stats" yaml:"stats"`
}

// Checksum returns the content hash of the module source
func (h *Handle) Checksum() string { return h.checksum }

// ID returns the handle identifier
func (h *Handle) ID() id.ModuleID { return h.id }

// Name returns the module name given at load
func (h *Handle) Name() string { return h.name }

// LoadedAt returns when the module was loaded
func (h *Handle) LoadedAt() time.Time { return h.loadedAt }

// Supports reports whether the module implements op
func (h *Handle) Supports(op types.Operation) bool {
	return h.ops[op]
}

// Operations lists the implemented operations
func (h *Handle) Operations() []string {
	ops := make([]string, 0, len(h.ops))
	for op, ok := range h.ops {
		if ok {
			ops = append(ops, op.String())
		}
	}
	sort.Strings(ops)
	return ops
}

// Stats returns a snapshot of invocation counters
func (h *Handle) Stats() Stats {
	h.statsMu.Lock()
	defer h.statsMu.Unlock()

	return Stats{
		Invocations: h.invocations.Load(),
		Failures:    h.failures.Load(),
		Pending:     h.sandbox.Pending(),
		LastError:   h.lastError,
		LastUsed:    h.lastUsed,
	}
}

// Describe returns a description of the module
func (h *Handle) Describe() Info {
	return Info{
		ID:         h.id,
		Name:       h.name,
		Checksum:   h.checksum,
		LoadedAt:   h.loadedAt,
		Operations: h.Operations(),
		Stats:      h.Stats(),
	}
}

// Close unloads the module from its runtime
func (h *Handle) Close() error {
	return h.runtime.Unload(h.id)
}

func (h *Handle) record(err error) {
	h.invocations.Add(1)

	h.statsMu.Lock()
	defer h.statsMu.Unlock()
	h.lastUsed = time.Now()
	if err != nil {
		h.failures.Add(1)
		h.lastError = err.Error()
	}
}
