package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/relay/internal/api/middleware"
	"github.com/GriffinCanCode/relay/internal/api/ws"
	"github.com/GriffinCanCode/relay/internal/catalog"
	"github.com/GriffinCanCode/relay/internal/infrastructure/config"
	"github.com/GriffinCanCode/relay/internal/infrastructure/logging"
	"github.com/GriffinCanCode/relay/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/relay/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/relay/internal/relay"
	"github.com/GriffinCanCode/relay/internal/relay/cookies"
	"github.com/GriffinCanCode/relay/internal/relay/host"
	"github.com/GriffinCanCode/relay/internal/relay/network"

	apihttp "github.com/GriffinCanCode/relay/internal/api/http"
)

const shutdownTimeout = 10 * time.Second

// Server wraps the HTTP server and dependencies
type Server struct {
	router  *gin.Engine
	http    *http.Server
	runtime *relay.Runtime
	hub     *ws.Hub
	sink    *logging.Sink
	tracer  *tracing.Tracer
	jar     *cookies.Jar
	logger  *logging.Logger
	config  *config.Config
	metrics *monitoring.Metrics
}

// NewServer creates a new server instance. Catalog modules are loaded
// before it returns.
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	logger := logging.FromConfig(cfg.Logging.Level, cfg.Logging.Development)

	logger.Info("Initializing relayd",
		zap.String("addr", net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)),
		zap.String("modules", cfg.Modules.Dir),
	)

	// Metrics first, every component records into them
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.NewMetrics(registry)

	tracer := tracing.New("relayd", logger.Named("trace").Logger)

	jar, err := newJar(cfg.Cookies)
	if err != nil {
		tracer.Close()
		return nil, err
	}
	logger.Info("Cookie jar ready",
		zap.String("file", cfg.Cookies.File),
		zap.Int("origins", len(jar.Origins())),
	)

	executor := network.NewExecutor(network.Config{
		UserAgent:           cfg.Network.UserAgent,
		Timeout:             cfg.Network.Timeout.Duration,
		RequestsPerSecond:   cfg.Network.RequestsPerSec,
		Burst:               cfg.Network.Burst,
		MaxBodyBytes:        cfg.Network.MaxBodyBytes,
		BreakerFailures:     cfg.Network.BreakerFailures,
		BreakerCooldown:     cfg.Network.BreakerCooldown.Duration,
		MaxIdleConnsPerHost: cfg.Network.MaxIdleConnsHost,
	}, jar,
		network.WithLogger(logger.Named("network").Logger),
		network.WithMetrics(metrics),
	)

	hub := ws.NewHub(logger.Named("challenge").Logger, metrics)

	sink := logging.NewSink(logger.Logger, cfg.Logging.SinkBuffer, logging.WithHook(func(e logging.Entry) {
		metrics.RecordGuestLog(string(e.Level))
	}))

	api := host.New(executor, hub, jar, sink,
		host.WithLogger(logger.Named("host").Logger),
		host.WithMetrics(metrics),
		host.WithChallengeTimeout(cfg.Challenge.Timeout.Duration),
	)

	runtime := relay.NewRuntime(relay.Config{
		EntryPoint:    cfg.Runtime.EntryPoint,
		InvokeTimeout: cfg.Runtime.InvokeTimeout.Duration,
		MaxCallStack:  cfg.Runtime.MaxCallStack,
	}, api,
		relay.WithLogger(logger.Named("runtime").Logger),
		relay.WithMetrics(metrics),
		relay.WithTracer(tracer),
	)

	loadCatalog(ctx, runtime, cfg.Modules, logger)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.Server.AllowOrigins
	router.Use(middleware.CORS(corsConfig))
	if cfg.Server.RateLimit > 0 {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.Server.RateLimit),
			zap.Int("burst", cfg.Server.RateBurst),
		)
		rateConfig := middleware.DefaultRateLimitConfig()
		rateConfig.RequestsPerSecond = cfg.Server.RateLimit
		rateConfig.Burst = cfg.Server.RateBurst
		router.Use(middleware.RateLimit(rateConfig))
	}

	handlers := apihttp.NewHandlers(runtime, jar, hub, registry, logger.Named("api").Logger)
	handlers.Register(router)
	router.GET("/challenges", hub.HandleConnection)

	logger.Info("Server initialized successfully", zap.Int("modules", runtime.Len()))

	return &Server{
		router: router,
		http: &http.Server{
			Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		runtime: runtime,
		hub:     hub,
		sink:    sink,
		tracer:  tracer,
		jar:     jar,
		logger:  logger,
		config:  cfg,
		metrics: metrics,
	}, nil
}

func newJar(cfg config.CookieConfig) (*cookies.Jar, error) {
	if cfg.File == "" {
		return cookies.NewJar(nil)
	}
	store, err := cookies.NewFileStore(cfg.File)
	if err != nil {
		return nil, fmt.Errorf("failed to open cookie file: %w", err)
	}
	return cookies.NewJar(store)
}

func loadCatalog(ctx context.Context, runtime *relay.Runtime, cfg config.ModuleConfig, logger *logging.Logger) {
	if cfg.Dir == "" {
		return
	}
	if _, err := os.Stat(cfg.Dir); errors.Is(err, os.ErrNotExist) {
		logger.Warn("Module directory missing, starting empty", zap.String("dir", cfg.Dir))
		return
	}

	entries, err := catalog.Scan(ctx, cfg.Dir, cfg.Pattern)
	if err != nil {
		logger.Warn("Failed to scan module directory", zap.String("dir", cfg.Dir), zap.Error(err))
		return
	}

	catalog.Load(ctx, runtime, entries,
		catalog.WithParallelism(cfg.Parallelism),
		catalog.WithLogger(logger.Named("catalog").Logger),
	)
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves HTTP until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return nil
}

// Close releases modules, solvers and background workers
func (s *Server) Close() error {
	s.logger.Info("Shutting down server...")

	s.hub.Close()
	if err := s.runtime.Close(); err != nil {
		s.logger.Error("Failed to close runtime", zap.Error(err))
	}
	s.sink.Close()
	s.tracer.Close()

	if dropped := s.sink.Dropped(); dropped > 0 {
		s.logger.Warn("Guest log lines dropped", zap.Uint64("count", dropped))
	}

	// Sync logger before exit
	_ = s.logger.Sync()
	return nil
}
