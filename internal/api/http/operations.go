package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/relay/internal/relay"
	"github.com/GriffinCanCode/relay/internal/shared/types"
)

// Invoke runs one provider operation on a module
func (h *Handlers) Invoke(c *gin.Context) {
	handle, ok := h.lookup(c)
	if !ok {
		return
	}

	op, err := types.ParseOperation(c.Param("operation"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	req := relay.Request{Operation: op}
	switch op {
	case types.OpSearch:
		req.Reference = c.Query("q")
		req.Page = 1
		if raw := c.Query("page"); raw != "" {
			page, err := strconv.Atoi(raw)
			if err != nil || page < 1 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "page must be a positive integer"})
				return
			}
			req.Page = page
		}
	case types.OpDiscover:
	default:
		req.Reference = c.Query("ref")
		if req.Reference == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "ref parameter required"})
			return
		}
	}

	result, err := handle.Run(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"module_id": handle.ID(),
		"operation": op,
		"result":    result,
	})
}
