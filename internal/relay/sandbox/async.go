package sandbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/relay/internal/shared/id"
)

// task is one queued host operation
type task struct {
	id      id.TaskID
	name    string
	gen     uint64
	ctx     context.Context
	run     AsyncFunc
	args    []interface{}
	engine  *engine
	settler *settler
}

// settler guards a guest promise so it settles exactly once
type settler struct {
	engine  *engine
	logger  *zap.Logger
	name    string
	resolve func(interface{})
	reject  func(interface{})
	settled bool // loop only
}

// settle resolves or rejects the promise. A second attempt is a bug in the
// host and is reported through DPanic.
func (s *settler) settle(value interface{}, err error) {
	if s.settled {
		s.logger.DPanic("host promise settled twice", zap.String("function", s.name))
		return
	}
	s.settled = true

	if err != nil {
		s.reject(s.engine.newError(err))
		return
	}
	s.resolve(s.engine.toJS(value))
}

// DefineAsync exposes fn to the guest as a global promise-returning
// function. Calls queue FIFO behind any host operation already running.
func (r *Runtime) DefineAsync(ctx context.Context, name string, fn AsyncFunc) error {
	return r.setup(ctx, func(e *engine) error {
		return e.vm.Set(name, func(call goja.FunctionCall) goja.Value {
			return r.enqueue(e, name, fn, call)
		})
	})
}

// DefineSync exposes fn to the guest as a global function returning undefined
func (r *Runtime) DefineSync(ctx context.Context, name string, fn SyncFunc) error {
	return r.setup(ctx, func(e *engine) error {
		return e.vm.Set(name, r.wrapSync(e, name, fn))
	})
}

// DefineObject exposes a global object whose methods are sync host functions
func (r *Runtime) DefineObject(ctx context.Context, name string, methods map[string]SyncFunc) error {
	return r.setup(ctx, func(e *engine) error {
		obj := e.vm.NewObject()
		for method, fn := range methods {
			if err := obj.Set(method, r.wrapSync(e, name+"."+method, fn)); err != nil {
				return err
			}
		}
		return e.vm.Set(name, obj)
	})
}

func (r *Runtime) wrapSync(e *engine, name string, fn SyncFunc) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("host function panicked",
					zap.String("function", name),
					zap.String("panic", fmt.Sprint(rec)),
				)
			}
		}()

		args := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			args[i] = e.render(arg)
		}
		fn(args)
		return goja.Undefined()
	}
}

// enqueue runs on the loop. The promise exists before the host work is
// queued.
func (r *Runtime) enqueue(e *engine, name string, fn AsyncFunc, call goja.FunctionCall) goja.Value {
	promise, resolve, reject := e.vm.NewPromise()
	s := &settler{
		engine:  e,
		logger:  r.logger,
		name:    name,
		resolve: func(v interface{}) { resolve(v) },
		reject:  func(v interface{}) { reject(v) },
	}

	args := make([]interface{}, len(call.Arguments))
	for i, arg := range call.Arguments {
		args[i] = exportValue(arg)
	}

	gen := r.generation.Load()
	ctx := r.baseCtx
	if inv := r.current.Load(); inv != nil && inv.gen == gen {
		ctx = inv.ctx
	}

	t := &task{
		id:      id.NewTaskID(),
		name:    name,
		gen:     gen,
		ctx:     ctx,
		run:     fn,
		args:    args,
		engine:  e,
		settler: s,
	}

	r.tasksMu.Lock()
	prev := r.tail
	done := make(chan struct{})
	r.tail = done
	r.tasksMu.Unlock()

	r.pending.Add(1)
	go r.work(t, prev, done)

	return e.vm.ToValue(promise)
}

// work runs t once every earlier host operation has finished
func (r *Runtime) work(t *task, prev <-chan struct{}, done chan struct{}) {
	defer close(done)
	defer r.pending.Add(-1)

	select {
	case <-prev:
	case <-r.closing:
		return
	}

	value, err := r.runTask(t)
	r.post(t.engine, func(e *engine) { r.deliver(t, value, err) })
}

func (r *Runtime) runTask(t *task) (value interface{}, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("host task panicked",
				zap.String("task", t.id.String()),
				zap.String("function", t.name),
				zap.String("panic", fmt.Sprint(rec)),
			)
			value, err = nil, fmt.Errorf("%s failed: %v", t.name, rec)
		}
	}()

	if err := t.ctx.Err(); err != nil {
		return nil, err
	}
	return t.run(t.ctx, t.args)
}

// deliver runs on the task's loop
func (r *Runtime) deliver(t *task, value interface{}, err error) {
	if t.gen != r.generation.Load() || t.engine != r.engine.Load() {
		r.logger.Debug("dropping late host completion",
			zap.String("task", t.id.String()),
			zap.String("function", t.name),
		)
		return
	}
	t.settler.settle(value, err)
}

// newError builds the guest-side Error for a failed host operation
func (e *engine) newError(err error) goja.Value {
	code := "host_error"
	var coder Coder
	if errors.As(err, &coder) {
		code = coder.Code()
	}

	obj, ctorErr := e.vm.New(e.vm.Get("Error"), e.vm.ToValue(err.Error()))
	if ctorErr != nil {
		obj = e.vm.NewObject()
		_ = obj.Set("message", err.Error())
	}
	_ = obj.Set("code", code)
	return obj
}
