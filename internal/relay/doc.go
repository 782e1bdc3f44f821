/*
Package relay loads untrusted JavaScript content-provider modules and turns
their dynamically typed results into strict Go records.

# Overview

A Runtime owns every loaded module. Each module gets its own sandboxed
engine with the host API installed, and is addressed through a Handle:

	rt := relay.NewRuntime(relay.DefaultConfig(), api, relay.WithLogger(logger))
	defer rt.Close()

	h, err := rt.Load(ctx, "example", source)
	if err != nil {
		return err // *relay.LoadError
	}

	results, err := h.Search(ctx, "naruto", 1)
	if errors.Is(err, relay.ErrSchemaMismatch) {
		// the module returned a malformed record
	}

# Guarantees

  - Invocations on one handle never overlap, even while suspended on
    network requests. Distinct handles run in parallel.
  - A caller receives either a complete record or a typed error.
  - A caller that gives up does not stop the guest; its result is dropped.
  - An invocation past its deadline is interrupted and anything it left
    in flight is discarded.
*/
package relay
