/*
Package tracing provides lightweight request and invocation tracing.

# Overview

Spans are created for every API request and every module invocation. A
span inherits the trace of its parent through the context, so an HTTP
request and the provider operation it triggers share one trace ID.

# Features

- Request spans carry method, route and HTTP status
- Invocation spans carry module, operation and outcome
- Gin middleware adopts and echoes trace headers
- Spans are collected off the request path and logged through zap;
  failed spans log at warn level

A nil *Tracer is valid and records nothing.

# Usage

	tracer := tracing.New("relayd", logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	span, ctx := tracer.StartInvocation(ctx, name, moduleID, "search")
	defer func() {
		span.End(outcome, err)
		tracer.Submit(span)
	}()

# Trace Format

Traces use standard HTTP headers for propagation:
- X-Trace-ID: Unique identifier for entire request flow
- X-Span-ID: Identifier for current operation
*/
package tracing
