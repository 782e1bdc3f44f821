package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/relay/internal/relay/cookies"
	"github.com/GriffinCanCode/relay/internal/shared/types"
)

// ListCookies lists origins with stored cookies. Values are not exposed.
func (h *Handlers) ListCookies(c *gin.Context) {
	origins := h.jar.Origins()
	c.JSON(http.StatusOK, gin.H{
		"origins": origins,
		"count":   len(origins),
	})
}

// SetCookie stores a Cookie header for an origin. The origin may be any URL
// on that origin.
func (h *Handlers) SetCookie(c *gin.Context) {
	var req types.CookieRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	origin, err := cookies.Origin(req.Origin)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.jar.Set(origin, req.Value); err != nil {
		h.logger.Error("failed to store cookie", zap.String("origin", origin), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store cookie"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"origin":  origin,
	})
}

// DeleteCookie forgets an origin
func (h *Handlers) DeleteCookie(c *gin.Context) {
	origin, err := cookies.Origin(c.Query("origin"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.jar.Delete(origin); err != nil {
		h.logger.Error("failed to delete cookie", zap.String("origin", origin), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete cookie"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"origin":  origin,
	})
}
