package relay

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/relay/internal/infrastructure/logging"
	"github.com/GriffinCanCode/relay/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/relay/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/relay/internal/relay/cookies"
	"github.com/GriffinCanCode/relay/internal/relay/host"
	"github.com/GriffinCanCode/relay/internal/relay/network"
	"github.com/GriffinCanCode/relay/internal/relay/sandbox"
	"github.com/GriffinCanCode/relay/internal/shared/id"
	"github.com/GriffinCanCode/relay/internal/shared/types"
	"github.com/GriffinCanCode/relay/internal/shared/utils"
)

// Config configures module engines
type Config struct {
	EntryPoint    string        // global object exposing the provider operations
	InvokeTimeout time.Duration // per invocation deadline, also bounds load; 0 disables
	MaxCallStack  int
}

// DefaultConfig returns runtime defaults
func DefaultConfig() Config {
	return Config{
		EntryPoint:    "instance",
		InvokeTimeout: 60 * time.Second,
		MaxCallStack:  1024,
	}
}

// Option configures a Runtime
type Option func(*Runtime)

// WithLogger sets the runtime logger
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runtime) {
		r.logger = logger
	}
}

// WithMetrics enables module and invocation metrics
func WithMetrics(metrics *monitoring.Metrics) Option {
	return func(r *Runtime) {
		r.metrics = metrics
	}
}

// WithTracer records a span per invocation
func WithTracer(tracer *tracing.Tracer) Option {
	return func(r *Runtime) {
		r.tracer = tracer
	}
}

// Runtime owns every loaded module
type Runtime struct {
	config  Config
	host    *host.API
	logger  *zap.Logger
	metrics *monitoring.Metrics
	tracer  *tracing.Tracer

	mu      sync.RWMutex
	handles map[id.ModuleID]*Handle
	closed  bool
}

// NewRuntime creates a runtime. A nil api installs a host surface backed by
// a default executor and an in-memory cookie jar.
func NewRuntime(cfg Config, api *host.API, opts ...Option) *Runtime {
	defaults := DefaultConfig()
	if cfg.EntryPoint == "" {
		cfg.EntryPoint = defaults.EntryPoint
	}
	if cfg.InvokeTimeout < 0 {
		cfg.InvokeTimeout = 0
	}

	r := &Runtime{
		config:  cfg,
		host:    api,
		logger:  zap.NewNop(),
		handles: make(map[id.ModuleID]*Handle),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.host == nil {
		jar, _ := cookies.NewJar(nil)
		executor := network.NewExecutor(network.DefaultConfig(), jar, network.WithLogger(r.logger))
		r.host = host.New(executor, nil, jar, nil, host.WithLogger(r.logger))
	}

	return r
}

// Load evaluates source in a fresh engine and registers the module
func (r *Runtime) Load(ctx context.Context, name, source string) (*Handle, error) {
	if name == "" {
		name = "module"
	}

	h, err := r.load(ctx, name, source)
	if err != nil {
		var loadErr *LoadError
		outcome := "error"
		if errors.As(err, &loadErr) {
			outcome = loadErr.Kind.String()
		}
		r.metrics.RecordModuleLoad(outcome)
		r.logger.Warn("module load failed", append(logging.ModuleFields(name, ""), zap.Error(err))...)
		return nil, err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		h.sandbox.Close()
		return nil, &LoadError{Kind: LoadEngineInit, Module: name, Message: "runtime closed", Err: ErrClosed}
	}
	r.handles[h.id] = h
	active := len(r.handles)
	r.mu.Unlock()

	r.metrics.RecordModuleLoad(monitoring.OutcomeSuccess)
	r.metrics.SetModulesActive(active)
	r.logger.Info("module loaded", append(logging.ModuleFields(name, h.id.String()),
		zap.String("checksum", utils.ShortChecksum(h.checksum)),
		zap.Bool("discover", h.Supports(types.OpDiscover)),
	)...)
	return h, nil
}

func (r *Runtime) load(ctx context.Context, name, source string) (*Handle, error) {
	r.mu.RLock()
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return nil, &LoadError{Kind: LoadEngineInit, Module: name, Message: "runtime closed", Err: ErrClosed}
	}

	moduleID := id.NewModuleID()
	logger := r.logger.With(logging.ModuleFields(name, moduleID.String())...)

	sb, err := sandbox.New(sandbox.Config{
		MaxCallStack: r.config.MaxCallStack,
		Timeout:      r.config.InvokeTimeout,
	}, logger)
	if err != nil {
		return nil, &LoadError{Kind: LoadEngineInit, Module: name, Message: err.Error(), Err: err}
	}

	if r.config.InvokeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.InvokeTimeout)
		defer cancel()
	}

	fail := func(err *LoadError) (*Handle, error) {
		sb.Close()
		return nil, err
	}

	if err := r.host.Install(ctx, sb, name); err != nil {
		return fail(&LoadError{Kind: LoadEngineInit, Module: name, Message: err.Error(), Err: err})
	}

	if err := sb.Evaluate(ctx, name, source); err != nil {
		var scriptErr *sandbox.ScriptError
		if errors.As(err, &scriptErr) {
			return fail(&LoadError{Kind: LoadCompileFailed, Module: name, Message: scriptErr.Message, Err: err})
		}
		if ctx.Err() != nil {
			return fail(&LoadError{Kind: LoadCompileFailed, Module: name, Message: "top-level evaluation did not finish", Err: err})
		}
		return fail(&LoadError{Kind: LoadEngineInit, Module: name, Message: err.Error(), Err: err})
	}

	members := make([]string, 0, len(types.RequiredOperations)+1)
	for _, op := range types.RequiredOperations {
		members = append(members, op.String())
	}
	members = append(members, types.OpDiscover.String())

	available, err := sb.BindEntry(ctx, r.config.EntryPoint, members...)
	if err != nil {
		if errors.Is(err, sandbox.ErrNoEntry) {
			return fail(&LoadError{Kind: LoadMissingEntryPoint, Module: name, Message: err.Error(), Err: err})
		}
		return fail(&LoadError{Kind: LoadEngineInit, Module: name, Message: err.Error(), Err: err})
	}

	var missing []string
	for _, op := range types.RequiredOperations {
		if !available[op.String()] {
			missing = append(missing, op.String())
		}
	}
	if len(missing) > 0 {
		return fail(&LoadError{Kind: LoadMissingEntryPoint, Module: name, Missing: missing})
	}

	ops := make(map[types.Operation]bool, len(available))
	for member, ok := range available {
		ops[types.Operation(member)] = ok
	}

	return &Handle{
		id:       moduleID,
		name:     name,
		checksum: utils.Checksum(source),
		loadedAt: time.Now(),
		ops:      ops,
		sandbox:  sb,
		runtime:  r,
		logger:   logger,
	}, nil
}

// Get returns a loaded module
func (r *Runtime) Get(moduleID id.ModuleID) (*Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[moduleID]
	return h, ok
}

// List returns loaded modules in load order
func (r *Runtime) List() []*Handle {
	r.mu.RLock()
	handles := make([]*Handle, 0, len(r.handles))
	for _, h := range r.handles {
		handles = append(handles, h)
	}
	r.mu.RUnlock()

	// ULIDs sort by creation time
	sort.Slice(handles, func(i, j int) bool {
		return handles[i].id < handles[j].id
	})
	return handles
}

// Len returns the number of loaded modules
func (r *Runtime) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}

// Unload destroys a module's engine. In-flight invocations fail with
// ErrClosed.
func (r *Runtime) Unload(moduleID id.ModuleID) error {
	r.mu.Lock()
	h, ok := r.handles[moduleID]
	if ok {
		delete(r.handles, moduleID)
	}
	active := len(r.handles)
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, moduleID)
	}

	h.sandbox.Close()
	r.metrics.SetModulesActive(active)
	r.logger.Info("module unloaded", logging.ModuleFields(h.name, moduleID.String())...)
	return nil
}

// Close unloads every module. Later loads fail.
func (r *Runtime) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	handles := r.handles
	r.handles = make(map[id.ModuleID]*Handle)
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, h := range handles {
		wg.Add(1)
		go func(h *Handle) {
			defer wg.Done()
			h.sandbox.Close()
		}(h)
	}
	wg.Wait()

	r.metrics.SetModulesActive(0)
	return nil
}
