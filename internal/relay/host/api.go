package host

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/GriffinCanCode/relay/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/relay/internal/relay/sandbox"
	"github.com/GriffinCanCode/relay/internal/shared/types"
)

// Executor performs guest network requests
type Executor interface {
	Execute(ctx context.Context, req types.HostRequest) (*types.HostResponse, error)
}

// CookieWriter stores cookie material per origin
type CookieWriter interface {
	Set(origin, value string) error
}

// Sink receives guest log lines. Log must not block.
type Sink interface {
	Log(message, level, source string)
}

// DefaultChallengeTimeout bounds one challenge resolution
const DefaultChallengeTimeout = 2 * time.Minute

// Option configures an API
type Option func(*API)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(a *API) {
		a.logger = logger
	}
}

// WithMetrics enables challenge metrics
func WithMetrics(metrics *monitoring.Metrics) Option {
	return func(a *API) {
		a.metrics = metrics
	}
}

// WithChallengeTimeout bounds each challenge resolution
func WithChallengeTimeout(timeout time.Duration) Option {
	return func(a *API) {
		if timeout > 0 {
			a.challengeTimeout = timeout
		}
	}
}

// API is the process-wide host surface shared by every loaded module
type API struct {
	executor         Executor
	challenger       Challenger
	jar              CookieWriter
	sink             Sink
	logger           *zap.Logger
	metrics          *monitoring.Metrics
	challengeTimeout time.Duration

	// One solver session per page at a time
	flights singleflight.Group
}

// New creates the host API. A nil challenger rejects every challenge with
// ErrChallengeUnavailable; a nil sink discards guest logs.
func New(executor Executor, challenger Challenger, jar CookieWriter, sink Sink, opts ...Option) *API {
	if challenger == nil {
		challenger = Unavailable{}
	}
	if sink == nil {
		sink = discard{}
	}

	a := &API{
		executor:         executor,
		challenger:       challenger,
		jar:              jar,
		sink:             sink,
		logger:           zap.NewNop(),
		challengeTimeout: DefaultChallengeTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Install registers the host surface on rt. source names the module in
// log output.
func (a *API) Install(ctx context.Context, rt *sandbox.Runtime, source string) error {
	if err := rt.DefineAsync(ctx, "request", a.request); err != nil {
		return err
	}
	if err := rt.DefineAsync(ctx, "resolveChallenge", a.resolveChallenge); err != nil {
		return err
	}
	if err := rt.DefineAsync(ctx, "callWebview", a.resolveChallenge); err != nil {
		return err
	}
	if err := rt.DefineSync(ctx, "log", a.log(source)); err != nil {
		return err
	}

	console := map[string]sandbox.SyncFunc{
		"log":   a.console(source, "info"),
		"info":  a.console(source, "info"),
		"debug": a.console(source, "debug"),
		"warn":  a.console(source, "warn"),
		"error": a.console(source, "error"),
	}
	return rt.DefineObject(ctx, "console", console)
}

func (a *API) log(source string) sandbox.SyncFunc {
	return func(args []string) {
		message, level := "", "info"
		if len(args) > 0 {
			message = args[0]
		}
		if len(args) > 1 && args[1] != "undefined" {
			level = args[1]
		}
		a.sink.Log(message, level, source)
	}
}

func (a *API) console(source, level string) sandbox.SyncFunc {
	return func(args []string) {
		a.sink.Log(strings.Join(args, " "), level, source)
	}
}

type discard struct{}

func (discard) Log(string, string, string) {}
