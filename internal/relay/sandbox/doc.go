/*
Package sandbox runs untrusted module JavaScript inside an isolated goja
runtime driven by a single owner goroutine.

# Overview

Each Runtime owns one engine: a goja VM driven by a goja_nodejs event loop.
The VM is only ever touched from the loop goroutine; every other goroutine
talks to it by posting jobs. On top of the loop sits the async bridge:

  - Host functions registered with DefineAsync hand the guest a promise
    before any host work starts.
  - Host operations run off the loop in FIFO order, one at a time. There is
    no limit on how many may queue.
  - Completions are posted back to the loop and settle the promise there.
  - A completion that arrives after its invocation was abandoned is dropped.

An invocation that outlives its deadline leaves the VM in an unknown state.
The runtime retires that engine and replays the recorded setup (globals,
host functions, module source, entry binding) on a fresh one before the next
call runs. Module state held in guest variables starts over.

# Security Model

Sandboxed code cannot:
  - Reach require, process, module or exports
  - Schedule timers (setTimeout and setInterval are no-ops)
  - Run past the invocation deadline (the VM is interrupted)
  - Recurse past the configured call stack depth

All host interactions go through the functions registered by the owner.

# Usage Example

	rt, err := sandbox.New(sandbox.DefaultConfig(), logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	rt.DefineAsync(ctx, "fetchTitle", func(ctx context.Context, args []interface{}) (interface{}, error) {
		return "hello", nil
	})
	if err := rt.Evaluate(ctx, "module.js", source); err != nil {
		return err
	}
	if _, err := rt.BindEntry(ctx, "instance", "search"); err != nil {
		return err
	}
	value, err := rt.Call(ctx, "search", "naruto", 1)
*/
package sandbox
