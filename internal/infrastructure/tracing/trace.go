package tracing

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/relay/internal/infrastructure/logging"
	"github.com/GriffinCanCode/relay/internal/shared/id"
)

// Propagation headers
const (
	HeaderTraceID = "X-Trace-ID"
	HeaderSpanID  = "X-Span-ID"
)

// TraceID identifies one API request and everything it triggers
type TraceID string

// SpanID identifies one span within a trace
type SpanID string

// Kind tells API request spans from module invocation spans
type Kind string

const (
	KindRequest    Kind = "request"
	KindInvocation Kind = "invocation"
)

// Span records one API request or one module invocation
type Span struct {
	TraceID  TraceID
	SpanID   SpanID
	ParentID SpanID
	Kind     Kind

	// Requests: HTTP method and route. Invocations: module and operation.
	Method    string
	Route     string
	Module    string
	ModuleID  string
	Operation string

	Start    time.Time
	Duration time.Duration
	Status   int    // HTTP status, requests only
	Outcome  string // status class or invocation error kind
	Err      error
}

// End records how the span finished. A nil span is ignored.
func (s *Span) End(outcome string, err error) {
	if s == nil {
		return
	}
	s.Duration = time.Since(s.Start)
	s.Outcome = outcome
	s.Err = err
}

// Tracer collects finished spans and logs them off the request path
type Tracer struct {
	service string
	logger  *zap.Logger
	spans   chan *Span

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// New creates a tracer and starts its collector
func New(service string, logger *zap.Logger) *Tracer {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tracer{
		service: service,
		logger:  logger,
		spans:   make(chan *Span, 1024),
		done:    make(chan struct{}),
	}
	go t.collect()
	return t
}

// StartRequest opens a span for an API request
func (t *Tracer) StartRequest(ctx context.Context, method, route string) (*Span, context.Context) {
	span, ctx := t.start(ctx, KindRequest)
	if span != nil {
		span.Method = method
		span.Route = route
	}
	return span, ctx
}

// StartInvocation opens a span for a provider operation on a module. It is
// a child of whatever request span ctx carries.
func (t *Tracer) StartInvocation(ctx context.Context, module, moduleID, operation string) (*Span, context.Context) {
	span, ctx := t.start(ctx, KindInvocation)
	if span != nil {
		span.Module = module
		span.ModuleID = moduleID
		span.Operation = operation
	}
	return span, ctx
}

func (t *Tracer) start(ctx context.Context, kind Kind) (*Span, context.Context) {
	if t == nil {
		return nil, ctx
	}

	traceID := TraceIDFrom(ctx)
	if traceID == "" {
		traceID = TraceID(id.Default().GenerateString())
	}

	span := &Span{
		TraceID:  traceID,
		SpanID:   SpanID(id.Default().GenerateString()),
		ParentID: SpanIDFrom(ctx),
		Kind:     kind,
		Start:    time.Now(),
	}
	return span, withSpan(ctx, span.TraceID, span.SpanID)
}

// Submit hands a finished span to the collector. Nil tracers, nil spans and
// closed tracers discard it.
func (t *Tracer) Submit(span *Span) {
	if t == nil || span == nil {
		return
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return
	}

	select {
	case t.spans <- span:
	default:
		t.logger.Warn("span buffer full, dropping span",
			zap.String("trace_id", string(span.TraceID)),
			zap.String("kind", string(span.Kind)),
		)
	}
}

// Close stops the collector after draining queued spans
func (t *Tracer) Close() {
	if t == nil {
		return
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	close(t.spans)
	t.mu.Unlock()

	<-t.done
}

func (t *Tracer) collect() {
	defer close(t.done)
	for span := range t.spans {
		t.log(span)
	}
}

func (t *Tracer) log(span *Span) {
	fields := []zap.Field{
		zap.String("service", t.service),
		zap.String("trace_id", string(span.TraceID)),
		zap.String("span_id", string(span.SpanID)),
		zap.String("kind", string(span.Kind)),
		zap.String("outcome", span.Outcome),
		zap.Duration("duration", span.Duration),
	}
	if span.ParentID != "" {
		fields = append(fields, zap.String("parent_id", string(span.ParentID)))
	}

	switch span.Kind {
	case KindRequest:
		fields = append(fields,
			zap.String("method", span.Method),
			zap.String("route", span.Route),
			zap.Int("status", span.Status),
		)
	case KindInvocation:
		fields = append(fields,
			zap.String("operation", span.Operation),
		)
		fields = append(fields, logging.ModuleFields(span.Module, span.ModuleID)...)
	}

	if span.Err != nil {
		t.logger.Warn("span failed", append(fields, zap.Error(span.Err))...)
		return
	}
	t.logger.Debug("span completed", fields...)
}

type contextKey int

const (
	traceIDKey contextKey = iota
	spanIDKey
)

func withSpan(ctx context.Context, traceID TraceID, spanID SpanID) context.Context {
	if traceID != "" {
		ctx = context.WithValue(ctx, traceIDKey, traceID)
	}
	if spanID != "" {
		ctx = context.WithValue(ctx, spanIDKey, spanID)
	}
	return ctx
}

// TraceIDFrom returns the trace carried by ctx, if any
func TraceIDFrom(ctx context.Context) TraceID {
	traceID, _ := ctx.Value(traceIDKey).(TraceID)
	return traceID
}

// SpanIDFrom returns the innermost span carried by ctx, if any
func SpanIDFrom(ctx context.Context) SpanID {
	spanID, _ := ctx.Value(spanIDKey).(SpanID)
	return spanID
}
