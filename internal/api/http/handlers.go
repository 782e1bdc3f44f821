package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/relay/internal/relay"
	"github.com/GriffinCanCode/relay/internal/relay/cookies"
)

// Version is reported by the root endpoint
const Version = "0.3.0"

// SolverCounter reports connected challenge solvers
type SolverCounter interface {
	Solvers() int
}

// Handlers contains all HTTP handlers
type Handlers struct {
	runtime  *relay.Runtime
	jar      *cookies.Jar
	solvers  SolverCounter
	gatherer prometheus.Gatherer
	logger   *zap.Logger
	started  time.Time
}

// NewHandlers creates a new handler set. solvers and gatherer may be nil.
func NewHandlers(runtime *relay.Runtime, jar *cookies.Jar, solvers SolverCounter, gatherer prometheus.Gatherer, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		runtime:  runtime,
		jar:      jar,
		solvers:  solvers,
		gatherer: gatherer,
		logger:   logger,
		started:  time.Now(),
	}
}

// Register mounts every route on router
func (h *Handlers) Register(router gin.IRouter) {
	router.GET("/", h.Root)
	router.GET("/health", h.Health)

	router.GET("/modules", h.ListModules)
	router.POST("/modules", h.LoadModule)
	router.GET("/modules/:id", h.GetModule)
	router.DELETE("/modules/:id", h.UnloadModule)
	router.GET("/modules/:id/:operation", h.Invoke)

	router.GET("/cookies", h.ListCookies)
	router.PUT("/cookies", h.SetCookie)
	router.DELETE("/cookies", h.DeleteCookie)

	if h.gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))
	}
}

// Root identifies the service
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "relayd",
		"version": Version,
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	solvers := 0
	if h.solvers != nil {
		solvers = h.solvers.Solvers()
	}

	c.JSON(http.StatusOK, gin.H{
		"status":            "healthy",
		"uptime":            time.Since(h.started).Round(time.Second).String(),
		"modules":           h.runtime.Len(),
		"cookies":           len(h.jar.Origins()),
		"challenge_solvers": solvers,
	})
}
