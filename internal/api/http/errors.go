package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/relay/internal/relay"
)

// statusClientClosed is the de facto status for requests the client abandoned
const statusClientClosed = 499

// writeError renders a runtime error with the status its kind implies
func writeError(c *gin.Context, err error) {
	body := gin.H{"error": err.Error()}

	var loadErr *relay.LoadError
	if errors.As(err, &loadErr) {
		body["kind"] = loadErr.Kind.String()
		if len(loadErr.Missing) > 0 {
			body["missing"] = loadErr.Missing
		}
		status := http.StatusUnprocessableEntity
		if !isClientError(err) {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, body)
		return
	}

	var invokeErr *relay.InvokeError
	if errors.As(err, &invokeErr) {
		body["kind"] = invokeErr.Kind.String()
		if invokeErr.Code != "" {
			body["code"] = invokeErr.Code
		}
		if invokeErr.Path != "" {
			body["path"] = invokeErr.Path
		}
		c.JSON(invokeStatus(invokeErr.Kind), body)
		return
	}

	switch {
	case errors.Is(err, relay.ErrNotFound):
		c.JSON(http.StatusNotFound, body)
	case errors.Is(err, relay.ErrUnsupported):
		c.JSON(http.StatusNotImplemented, body)
	default:
		c.JSON(http.StatusInternalServerError, body)
	}
}

func invokeStatus(kind relay.InvokeErrorKind) int {
	switch kind {
	case relay.InvokeUnsupported:
		return http.StatusNotImplemented
	case relay.InvokeTimeout:
		return http.StatusGatewayTimeout
	case relay.InvokeCanceled:
		return statusClientClosed
	case relay.InvokeClosed:
		return http.StatusGone
	default:
		// The module or the site behind it misbehaved
		return http.StatusBadGateway
	}
}
