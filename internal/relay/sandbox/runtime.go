package sandbox

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

var identifier = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// step is one successful setup action, replayed when the engine is rebuilt
type step func(e *engine) error

// Runtime runs one module on a replaceable engine
type Runtime struct {
	config Config
	logger *zap.Logger

	engine atomic.Pointer[engine]

	stepsMu sync.Mutex
	steps   []step

	// Host operations run one at a time; each waits for its predecessor
	tasksMu sync.Mutex
	tail    chan struct{}
	pending atomic.Int64

	// Invocations
	gate       chan struct{}
	generation atomic.Uint64
	current    atomic.Pointer[invocation]

	faultMu sync.Mutex
	fault   error

	closing   chan struct{}
	baseCtx   context.Context
	cancelAll context.CancelFunc
	closeOnce sync.Once
}

type outcome struct {
	value interface{}
	err   error
}

type invocation struct {
	gen       uint64
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan outcome
	abandoned atomic.Bool
	finished  bool // loop only
}

// finish records the terminal outcome; later calls are ignored
func (inv *invocation) finish(out outcome) {
	if inv.finished {
		return
	}
	inv.finished = true
	inv.done <- out
}

// New creates a sandboxed runtime and starts its engine
func New(config Config, logger *zap.Logger) (*Runtime, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	idle := make(chan struct{})
	close(idle)

	r := &Runtime{
		config:    config,
		logger:    logger,
		tail:      idle,
		gate:      make(chan struct{}, 1),
		closing:   make(chan struct{}),
		baseCtx:   ctx,
		cancelAll: cancel,
	}

	e := newEngine(config)
	r.engine.Store(e)

	if err := r.do(context.Background(), e, r.setupGlobals); err != nil {
		r.Close()
		return nil, fmt.Errorf("setup globals: %w", err)
	}

	return r, nil
}

// setupGlobals configures global objects and security
func (r *Runtime) setupGlobals(e *engine) error {
	vm := e.vm

	// Remove dangerous globals, including the ones the event loop installs
	for _, name := range []string{"require", "process", "module", "exports", "console"} {
		if err := vm.Set(name, goja.Undefined()); err != nil {
			return err
		}
	}

	// Timers are no-ops
	noop := func(call goja.FunctionCall) goja.Value {
		return goja.Undefined()
	}
	for _, name := range []string{
		"setTimeout", "setInterval", "setImmediate",
		"clearTimeout", "clearInterval", "clearImmediate",
	} {
		if err := vm.Set(name, noop); err != nil {
			return err
		}
	}

	stringify, ok := goja.AssertFunction(vm.Get("JSON").ToObject(vm).Get("stringify"))
	if !ok {
		return errors.New("JSON.stringify unavailable")
	}
	e.stringify = stringify

	return nil
}

// setup runs s on the current engine and keeps it for rebuilds
func (r *Runtime) setup(ctx context.Context, s step) error {
	if err := r.do(ctx, r.engine.Load(), s); err != nil {
		return err
	}

	r.stepsMu.Lock()
	r.steps = append(r.steps, s)
	r.stepsMu.Unlock()
	return nil
}

// Evaluate compiles and runs module source at top level
func (r *Runtime) Evaluate(ctx context.Context, name, source string) error {
	program, err := goja.Compile(name, source, false)
	if err != nil {
		return &ScriptError{Phase: PhaseCompile, Name: name, Message: err.Error()}
	}

	return r.setup(ctx, func(e *engine) error {
		if _, err := e.vm.RunProgram(program); err != nil {
			message, _ := describeError(err)
			return &ScriptError{Phase: PhaseEvaluate, Name: name, Message: message}
		}
		return nil
	})
}

// BindEntry resolves the named entry object and reports which of members
// are callable on it. Call dispatches against the bound object.
func (r *Runtime) BindEntry(ctx context.Context, name string, members ...string) (map[string]bool, error) {
	if !identifier.MatchString(name) {
		return nil, fmt.Errorf("%w: invalid name %q", ErrNoEntry, name)
	}

	var available map[string]bool
	err := r.setup(ctx, func(e *engine) error {
		value := e.vm.Get(name)
		if value == nil {
			// let, const and class bindings live outside the global object
			v, err := e.vm.RunString(name)
			if err != nil {
				return fmt.Errorf("%w: %s", ErrNoEntry, name)
			}
			value = v
		}

		entry, ok := value.(*goja.Object)
		if !ok || goja.IsUndefined(value) || goja.IsNull(value) {
			return fmt.Errorf("%w: %s is not an object", ErrNoEntry, name)
		}

		available = make(map[string]bool, len(members))
		for _, member := range members {
			_, callable := goja.AssertFunction(entry.Get(member))
			available[member] = callable
		}
		e.entry = entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	return available, nil
}

// Call invokes member on the bound entry object with this bound to it and
// waits for its result, following returned promises. Calls are serialized
// for their full duration. If ctx ends first the call is orphaned: it keeps
// running to completion and its result is discarded. A call that outlives
// the deadline leaves its engine in an unknown state, so the engine is
// rebuilt from the recorded setup before the next call runs.
func (r *Runtime) Call(ctx context.Context, member string, args ...interface{}) (interface{}, error) {
	if err := r.acquire(ctx); err != nil {
		return nil, err
	}
	if err := r.faulted(); err != nil {
		r.release()
		return nil, err
	}

	e := r.engine.Load()
	invCtx, cancel := context.WithCancel(r.baseCtx)
	inv := &invocation{
		gen:    r.generation.Add(1),
		ctx:    invCtx,
		cancel: cancel,
		done:   make(chan outcome, 1),
	}
	r.current.Store(inv)

	if !r.post(e, func(e *engine) { r.start(e, inv, member, args) }) {
		cancel()
		r.release()
		return nil, ErrClosed
	}

	var (
		timer    *time.Timer
		deadline <-chan time.Time
	)
	if r.config.Timeout > 0 {
		timer = time.NewTimer(r.config.Timeout)
		deadline = timer.C
	}

	select {
	case out := <-inv.done:
		stopTimer(timer)
		r.complete(inv)
		return out.value, out.err
	case <-deadline:
		r.abandon(e, inv)
		return nil, ErrTimeout
	case <-r.closing:
		stopTimer(timer)
		cancel()
		return nil, ErrClosed
	case <-ctx.Done():
		go r.orphan(e, inv, timer, deadline)
		return nil, fmt.Errorf("%w: %w", ErrCanceled, ctx.Err())
	}
}

// Pending returns the number of queued or running host operations
func (r *Runtime) Pending() int {
	return int(r.pending.Load())
}

// Close stops the engine. Pending calls fail with ErrClosed and in-flight
// host work is canceled.
func (r *Runtime) Close() error {
	r.closeOnce.Do(func() {
		close(r.closing)
		r.cancelAll()
		r.engine.Load().stop()
	})
	return nil
}

func (r *Runtime) isClosing() bool {
	select {
	case <-r.closing:
		return true
	default:
		return false
	}
}

func (r *Runtime) faulted() error {
	r.faultMu.Lock()
	defer r.faultMu.Unlock()
	return r.fault
}

func (r *Runtime) acquire(ctx context.Context) error {
	if r.isClosing() {
		return ErrClosed
	}

	select {
	case r.gate <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrCanceled, ctx.Err())
	case <-r.closing:
		return ErrClosed
	}
}

func (r *Runtime) release() {
	<-r.gate
}

// complete ends an invocation that produced an outcome
func (r *Runtime) complete(inv *invocation) {
	inv.cancel()
	r.release()
}

// abandon gives up on an invocation past its deadline. Bumping the
// generation drops any host completion still in flight for it. The gate is
// held until a fresh engine is in place.
func (r *Runtime) abandon(e *engine, inv *invocation) {
	inv.abandoned.Store(true)
	r.generation.Add(1)
	e.vm.Interrupt(ErrTimeout.Error())
	inv.cancel()
	defer r.release()

	r.logger.Warn("invocation abandoned", zap.Duration("timeout", r.config.Timeout))

	if err := r.rebuild(e); err != nil && !errors.Is(err, ErrClosed) {
		r.logger.Error("engine rebuild failed", zap.Error(err))
		r.faultMu.Lock()
		r.fault = fmt.Errorf("%w: engine rebuild failed: %v", ErrClosed, err)
		r.faultMu.Unlock()
	}
}

// rebuild retires old and replays the recorded setup on a new engine
func (r *Runtime) rebuild(old *engine) error {
	go old.stop()

	r.stepsMu.Lock()
	steps := append([]step{r.setupGlobals}, r.steps...)
	r.stepsMu.Unlock()

	ctx := context.Background()
	if r.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		defer cancel()
	}

	e := newEngine(r.config)
	for _, s := range steps {
		if err := r.do(ctx, e, s); err != nil {
			go e.stop()
			return err
		}
	}

	r.engine.Store(e)
	if r.isClosing() {
		e.stop()
		return ErrClosed
	}

	r.logger.Info("engine rebuilt", zap.Int("steps", len(steps)))
	return nil
}

// orphan holds the gate for an invocation whose caller went away
func (r *Runtime) orphan(e *engine, inv *invocation, timer *time.Timer, deadline <-chan time.Time) {
	select {
	case <-inv.done:
		stopTimer(timer)
		r.complete(inv)
	case <-deadline:
		r.abandon(e, inv)
	case <-r.closing:
		stopTimer(timer)
		inv.cancel()
	}
}

// start runs on the loop
func (r *Runtime) start(e *engine, inv *invocation, member string, args []interface{}) {
	// Clear before checking so a deadline interrupt issued after the check
	// still lands
	e.vm.ClearInterrupt()
	if inv.abandoned.Load() || r.isClosing() {
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			inv.finish(outcome{err: fmt.Errorf("engine panic: %v", rec)})
		}
	}()

	if e.entry == nil {
		inv.finish(outcome{err: ErrNotBound})
		return
	}
	fn, ok := goja.AssertFunction(e.entry.Get(member))
	if !ok {
		inv.finish(outcome{err: fmt.Errorf("%w: %s", ErrNotCallable, member)})
		return
	}

	jsArgs := make([]goja.Value, len(args))
	for i, arg := range args {
		jsArgs[i] = e.toJS(arg)
	}

	ret, err := fn(e.entry, jsArgs...)
	if err != nil {
		inv.finish(outcome{err: guestError(err, false)})
		return
	}
	r.await(e, ret, inv)
}

// await finishes inv with ret, following it if it is a thenable
func (r *Runtime) await(e *engine, ret goja.Value, inv *invocation) {
	obj, ok := ret.(*goja.Object)
	if !ok {
		inv.finish(exportOutcome(ret))
		return
	}
	then, ok := goja.AssertFunction(obj.Get("then"))
	if !ok {
		inv.finish(exportOutcome(obj))
		return
	}

	onFulfilled := e.vm.ToValue(func(call goja.FunctionCall) goja.Value {
		inv.finish(exportOutcome(call.Argument(0)))
		return goja.Undefined()
	})
	onRejected := e.vm.ToValue(func(call goja.FunctionCall) goja.Value {
		message, code := describe(call.Argument(0))
		inv.finish(outcome{err: &GuestError{Message: message, Code: code, Rejected: true}})
		return goja.Undefined()
	})

	if _, err := then(obj, onFulfilled, onRejected); err != nil {
		inv.finish(outcome{err: guestError(err, true)})
	}
}

// exportOutcome exports a guest value, turning export panics into errors
func exportOutcome(v goja.Value) (out outcome) {
	defer func() {
		if rec := recover(); rec != nil {
			out = outcome{err: &GuestError{Message: fmt.Sprintf("export result: %v", rec)}}
		}
	}()
	return outcome{value: exportValue(v)}
}

// guestError converts an error returned by the engine
func guestError(err error, rejected bool) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return ErrTimeout
	}
	message, code := describeError(err)
	return &GuestError{Message: message, Code: code, Rejected: rejected}
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}
