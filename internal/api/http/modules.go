package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/relay/internal/relay"
	"github.com/GriffinCanCode/relay/internal/shared/id"
	"github.com/GriffinCanCode/relay/internal/shared/types"
	"github.com/GriffinCanCode/relay/internal/shared/utils"
)

// ListModules lists every loaded module
func (h *Handlers) ListModules(c *gin.Context) {
	handles := h.runtime.List()
	modules := make([]relay.Info, 0, len(handles))
	for _, handle := range handles {
		modules = append(modules, handle.Describe())
	}

	c.JSON(http.StatusOK, gin.H{
		"modules": modules,
		"count":   len(modules),
	})
}

// LoadModule evaluates module source and registers it
func (h *Handlers) LoadModule(c *gin.Context) {
	var req types.LoadModuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	if err := utils.ValidateModuleName(req.Name); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := utils.ValidateSource(req.Source); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	handle, err := h.runtime.Load(c.Request.Context(), req.Name, req.Source)
	if err != nil {
		h.logger.Info("module rejected", zap.String("module", req.Name), zap.Error(err))
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handle.Describe())
}

// GetModule describes one module
func (h *Handlers) GetModule(c *gin.Context) {
	handle, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, handle.Describe())
}

// UnloadModule destroys a module
func (h *Handlers) UnloadModule(c *gin.Context) {
	moduleID, ok := parseModuleID(c)
	if !ok {
		return
	}

	if err := h.runtime.Unload(moduleID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"module_id": moduleID,
	})
}

func (h *Handlers) lookup(c *gin.Context) (*relay.Handle, bool) {
	moduleID, ok := parseModuleID(c)
	if !ok {
		return nil, false
	}

	handle, found := h.runtime.Get(moduleID)
	if !found {
		writeError(c, relay.ErrNotFound)
		return nil, false
	}
	return handle, true
}

func parseModuleID(c *gin.Context) (id.ModuleID, bool) {
	moduleID, err := id.ParseModuleID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return moduleID, true
}

// isClientError reports errors caused by the submitted module itself
func isClientError(err error) bool {
	var loadErr *relay.LoadError
	return errors.As(err, &loadErr) && loadErr.Kind != relay.LoadEngineInit
}
