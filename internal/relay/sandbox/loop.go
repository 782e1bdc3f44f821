package sandbox

import (
	"context"
	"fmt"
	"sync"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
	"go.uber.org/zap"
)

// engine is one goja VM and the event loop that owns it. The VM is only
// touched from the loop goroutine.
type engine struct {
	loop     *eventloop.EventLoop
	vm       *goja.Runtime
	stopOnce sync.Once

	// Loop-owned
	entry     *goja.Object
	stringify goja.Callable
}

// newEngine starts a loop and captures its VM
func newEngine(config Config) *engine {
	loop := eventloop.NewEventLoop()
	loop.Start()

	ready := make(chan *goja.Runtime, 1)
	loop.RunOnLoop(func(vm *goja.Runtime) {
		if config.MaxCallStack > 0 {
			vm.SetMaxCallStackSize(config.MaxCallStack)
		}
		ready <- vm
	})

	return &engine{loop: loop, vm: <-ready}
}

// stop interrupts whatever the VM is running and waits for the loop to exit
func (e *engine) stop() {
	e.stopOnce.Do(func() {
		e.vm.Interrupt(ErrClosed.Error())
		e.loop.Stop()
	})
}

// post queues job on e's loop. It reports false once the runtime is
// closing. Jobs posted to a retired engine never run.
func (r *Runtime) post(e *engine, job func(e *engine)) bool {
	if r.isClosing() {
		return false
	}
	e.loop.RunOnLoop(func(*goja.Runtime) {
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("sandbox job panicked", zap.String("panic", fmt.Sprint(rec)))
			}
		}()
		job(e)
	})
	return true
}

// Do runs fn on the loop and waits for it. If ctx ends first the VM is
// interrupted and Do waits for fn to unwind before returning ctx's error.
func (r *Runtime) Do(ctx context.Context, fn func(vm *goja.Runtime) error) error {
	return r.do(ctx, r.engine.Load(), func(e *engine) error {
		return fn(e.vm)
	})
}

func (r *Runtime) do(ctx context.Context, e *engine, fn func(e *engine) error) error {
	result := make(chan error, 1)

	posted := r.post(e, func(e *engine) {
		defer func() {
			if rec := recover(); rec != nil {
				result <- fmt.Errorf("engine panic: %v", rec)
			}
		}()

		// Clear before checking so an interrupt issued after the checks is
		// never lost
		e.vm.ClearInterrupt()
		if r.isClosing() {
			result <- ErrClosed
			return
		}
		if err := ctx.Err(); err != nil {
			result <- err
			return
		}
		result <- fn(e)
	})
	if !posted {
		return ErrClosed
	}

	select {
	case err := <-result:
		return err
	case <-r.closing:
		return ErrClosed
	case <-ctx.Done():
		e.vm.Interrupt(ctx.Err().Error())
		select {
		case <-result:
		case <-r.closing:
			return ErrClosed
		}
		return ctx.Err()
	}
}
