package network

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/relay/internal/infrastructure/config"
	"github.com/GriffinCanCode/relay/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/relay/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/relay/internal/relay/cookies"
	"github.com/GriffinCanCode/relay/internal/shared/types"
)

// CookieSource supplies the stored Cookie header for a request URL
type CookieSource interface {
	ForURL(rawURL string) (string, bool)
}

// Config configures an Executor
type Config struct {
	UserAgent           string
	Timeout             time.Duration
	RequestsPerSecond   float64 // 0 disables rate limiting
	Burst               int
	MaxBodyBytes        int64
	BreakerFailures     uint32 // consecutive transport failures that open an origin's breaker; 0 disables
	BreakerCooldown     time.Duration
	MaxIdleConnsPerHost int
}

// DefaultConfig returns executor defaults
func DefaultConfig() Config {
	return Config{
		UserAgent:           config.DefaultUserAgent,
		Timeout:             30 * time.Second,
		RequestsPerSecond:   0,
		MaxBodyBytes:        16 << 20,
		BreakerFailures:     5,
		BreakerCooldown:     30 * time.Second,
		MaxIdleConnsPerHost: 10,
	}
}

// Option configures an Executor
type Option func(*Executor)

// WithLogger sets the executor logger
func WithLogger(logger *zap.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithMetrics enables request metrics
func WithMetrics(metrics *monitoring.Metrics) Option {
	return func(e *Executor) {
		e.metrics = metrics
	}
}

// Executor performs guest network requests
type Executor struct {
	cfg      Config
	client   *resty.Client
	limiter  *rate.Limiter
	breakers *resilience.Breakers
	cookies  CookieSource
	logger   *zap.Logger
	metrics  *monitoring.Metrics
}

// NewExecutor creates an executor. cookies may be nil.
func NewExecutor(cfg Config, jar CookieSource, opts ...Option) *Executor {
	defaults := DefaultConfig()
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaults.UserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaults.MaxBodyBytes
	}
	if cfg.MaxIdleConnsPerHost <= 0 {
		cfg.MaxIdleConnsPerHost = defaults.MaxIdleConnsPerHost
	}

	// Pooled transport from retryablehttp; its retry loop is never used
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 0
	retryClient.Logger = nil
	transport := retryClient.HTTPClient.Transport
	if t, ok := transport.(*http.Transport); ok {
		t.MaxIdleConnsPerHost = cfg.MaxIdleConnsPerHost
	}

	restyClient := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetTransport(transport)

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = int(cfg.RequestsPerSecond) + 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	e := &Executor{
		cfg:     cfg,
		client:  restyClient,
		limiter: limiter,
		cookies: jar,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.breakers = resilience.NewBreakers(resilience.Policy{
		Failures: cfg.BreakerFailures,
		Cooldown: cfg.BreakerCooldown,
		// A caller giving up says nothing about the origin
		Counts: func(err error) bool {
			return errors.Is(err, ErrTransportFailure) &&
				!errors.Is(err, context.Canceled) &&
				!errors.Is(err, context.DeadlineExceeded)
		},
		OnChange: func(origin string, from, to resilience.State) {
			e.logger.Info("origin breaker state changed",
				zap.String("origin", origin),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return e
}

// UserAgent returns the injected user agent
func (e *Executor) UserAgent() string {
	return e.cfg.UserAgent
}

// Execute performs one network attempt for req
func (e *Executor) Execute(ctx context.Context, req types.HostRequest) (*types.HostResponse, error) {
	start := time.Now()
	resp, err := e.execute(ctx, req)

	status := ""
	if err != nil {
		var netErr *Error
		if errors.As(err, &netErr) {
			status = netErr.Code()
		} else {
			status = "error"
		}
		e.logger.Debug("guest request failed",
			zap.String("method", req.Method().String()),
			zap.String("url", req.URL()),
			zap.Error(err),
		)
	} else {
		status = monitoring.StatusClass(resp.StatusCode)
		e.logger.Debug("guest request completed",
			zap.String("method", req.Method().String()),
			zap.String("url", req.URL()),
			zap.Int("status", resp.StatusCode),
			zap.Duration("duration", time.Since(start)),
		)
	}
	e.metrics.RecordHostRequest(req.Method().String(), status, time.Since(start))

	return resp, err
}

func (e *Executor) execute(ctx context.Context, req types.HostRequest) (*types.HostResponse, error) {
	rawURL := req.URL()

	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, invalidURL(rawURL, err)
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, invalidURL(rawURL, fmt.Errorf("unsupported scheme %q", target.Scheme))
	}
	if target.Host == "" {
		return nil, invalidURL(rawURL, errors.New("missing host"))
	}

	origin, err := cookies.Origin(rawURL)
	if err != nil {
		return nil, invalidURL(rawURL, err)
	}

	headers := e.prepareHeaders(req)

	if err := e.limiter.Wait(ctx); err != nil {
		return nil, transportFailure(rawURL, fmt.Errorf("rate limit: %w", err))
	}

	var raw *rawResponse
	err = e.breakers.Guard(origin, func() error {
		var doErr error
		raw, doErr = e.roundTrip(ctx, req, headers)
		return doErr
	})
	if errors.Is(err, resilience.ErrOriginOpen) {
		return nil, transportFailure(rawURL, err)
	}
	if err != nil {
		return nil, err
	}

	return e.normalize(rawURL, raw)
}

// prepareHeaders adds the user agent and stored cookies unless the guest
// set them
func (e *Executor) prepareHeaders(req types.HostRequest) map[string]string {
	headers := req.Headers()

	if !req.HasHeader("User-Agent") {
		headers["User-Agent"] = e.cfg.UserAgent
	}
	if !req.HasHeader("Cookie") && e.cookies != nil {
		if cookie, ok := e.cookies.ForURL(req.URL()); ok && cookie != "" {
			headers["Cookie"] = cookie
		}
	}
	return headers
}

type rawResponse struct {
	status int
	header http.Header
	body   []byte
}

func (e *Executor) roundTrip(ctx context.Context, req types.HostRequest, headers map[string]string) (*rawResponse, error) {
	r := e.client.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetDoNotParseResponse(true)

	if body, ok := req.Body(); ok {
		r.SetBody(body)
	}

	resp, err := r.Execute(req.Method().String(), req.URL())
	if err != nil {
		return nil, transportFailure(req.URL(), err)
	}

	rawBody := resp.RawBody()
	defer rawBody.Close()

	body, err := io.ReadAll(io.LimitReader(rawBody, e.cfg.MaxBodyBytes+1))
	if err != nil {
		return nil, transportFailure(req.URL(), fmt.Errorf("read body: %w", err))
	}
	if int64(len(body)) > e.cfg.MaxBodyBytes {
		return nil, transportFailure(req.URL(), fmt.Errorf("response body exceeds %d bytes", e.cfg.MaxBodyBytes))
	}

	return &rawResponse{
		status: resp.StatusCode(),
		header: resp.Header(),
		body:   body,
	}, nil
}

// normalize turns a completed transaction into a HostResponse
func (e *Executor) normalize(rawURL string, raw *rawResponse) (*types.HostResponse, error) {
	body, err := decompress(raw.body, raw.header.Get("Content-Encoding"), e.cfg.MaxBodyBytes)
	if err != nil {
		return nil, transportFailure(rawURL, err)
	}

	contentType, declaredCharset := mediaType(raw.header.Get("Content-Type"), body)

	text, ok := toUTF8(body, declaredCharset)
	if !ok {
		return nil, &Error{
			Kind:    KindNonUTF8Body,
			URL:     rawURL,
			Charset: detectCharset(body),
			Err:     ErrNonUTF8Body,
		}
	}

	return &types.HostResponse{
		StatusCode:  raw.status,
		ContentType: contentType,
		Headers:     flattenHeaders(raw.header),
		Body:        text,
	}, nil
}

// flattenHeaders joins repeated header values with ", "
func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, values := range h {
		out[k] = strings.Join(values, ", ")
	}
	return out
}
