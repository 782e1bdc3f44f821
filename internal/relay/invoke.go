package relay

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/relay/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/relay/internal/relay/bridge"
	"github.com/GriffinCanCode/relay/internal/relay/sandbox"
	"github.com/GriffinCanCode/relay/internal/shared/types"
)

// Invoke calls op on the module with args and converts the guest result
// into T. Arguments must be strings or numbers.
func Invoke[T any](ctx context.Context, h *Handle, op types.Operation, args ...interface{}) (result T, err error) {
	timer := monitoring.NewTimer(h.runtime.metrics, op.String())
	span, ctx := h.runtime.tracer.StartInvocation(ctx, h.name, h.id.String(), op.String())

	defer func() {
		outcome := monitoring.OutcomeSuccess
		var invokeErr *InvokeError
		if errors.As(err, &invokeErr) {
			outcome = invokeErr.Kind.String()
		}
		timer.Stop(outcome)
		span.End(outcome, err)
		h.runtime.tracer.Submit(span)
		h.record(err)

		if err != nil {
			h.logger.Debug("invocation failed",
				zap.String("operation", op.String()),
				zap.String("outcome", outcome),
				zap.Error(err),
			)
		}
	}()

	raw, err := h.call(ctx, op, args)
	if err != nil {
		return result, err
	}

	converted, err := bridge.Convert[T](raw)
	if err != nil {
		invokeErr := &InvokeError{
			Kind:      InvokeSchemaMismatch,
			Module:    h.name,
			Operation: op.String(),
			Message:   err.Error(),
			Err:       err,
		}
		var failure *bridge.ConversionFailure
		if errors.As(err, &failure) {
			invokeErr.Path = failure.Path
		}
		return result, invokeErr
	}
	return converted, nil
}

// call runs the guest member for op and returns its exported result
func (h *Handle) call(ctx context.Context, op types.Operation, args []interface{}) (interface{}, error) {
	if !op.Valid() || !h.Supports(op) {
		return nil, &InvokeError{
			Kind:      InvokeUnsupported,
			Module:    h.name,
			Operation: op.String(),
			Message:   op.String() + " is not implemented",
		}
	}

	for i, arg := range args {
		switch arg.(type) {
		case string, int, int32, int64, float64:
		default:
			return nil, fmt.Errorf("%s argument %d: unsupported type %T", op, i, arg)
		}
	}

	raw, err := h.sandbox.Call(ctx, op.String(), args...)
	if err != nil {
		return nil, h.invokeError(op, err)
	}

	if op == types.OpSearch {
		raw = normalizeSearch(raw)
	}
	return raw, nil
}

// invokeError maps sandbox failures onto InvokeError kinds
func (h *Handle) invokeError(op types.Operation, err error) *InvokeError {
	invokeErr := &InvokeError{
		Module:    h.name,
		Operation: op.String(),
		Message:   err.Error(),
		Err:       err,
	}

	var guestErr *sandbox.GuestError
	switch {
	case errors.As(err, &guestErr):
		invokeErr.Kind = InvokeGuestThrew
		invokeErr.Message = guestErr.Message
		invokeErr.Code = guestErr.Code
	case errors.Is(err, sandbox.ErrTimeout):
		invokeErr.Kind = InvokeTimeout
	case errors.Is(err, sandbox.ErrCanceled):
		invokeErr.Kind = InvokeCanceled
	case errors.Is(err, sandbox.ErrClosed):
		invokeErr.Kind = InvokeClosed
	case errors.Is(err, sandbox.ErrNotCallable):
		invokeErr.Kind = InvokeUnsupported
		invokeErr.Message = op.String() + " is not implemented"
	default:
		invokeErr.Kind = InvokeGuestThrew
	}
	return invokeErr
}

// normalizeSearch accepts a bare array of items as the results list
func normalizeSearch(raw interface{}) interface{} {
	if items, ok := raw.([]interface{}); ok {
		return map[string]interface{}{"results": items}
	}
	return raw
}
