package host

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/relay/internal/relay/cookies"
)

// Challenger resolves an interactive challenge (for example a browser
// check) for url and returns the resulting headers or cookie pairs
type Challenger interface {
	Resolve(ctx context.Context, url string) (map[string]string, error)
}

// ChallengerFunc adapts a function to Challenger
type ChallengerFunc func(ctx context.Context, url string) (map[string]string, error)

// Resolve calls f
func (f ChallengerFunc) Resolve(ctx context.Context, url string) (map[string]string, error) {
	return f(ctx, url)
}

// Unavailable is the Challenger used when no solver is configured
type Unavailable struct{}

// Resolve always fails
func (Unavailable) Resolve(context.Context, string) (map[string]string, error) {
	return nil, ErrChallengeUnavailable
}

// resolveChallenge implements resolveChallenge(url). Concurrent calls for
// the same page share a single solver session; different pages of one
// origin get their own.
func (a *API) resolveChallenge(ctx context.Context, args []interface{}) (interface{}, error) {
	var rawURL string
	if len(args) > 0 {
		rawURL, _ = args[0].(string)
	}
	if rawURL == "" {
		return nil, &ArgumentError{Function: "resolveChallenge", Message: "url must be a non-empty string"}
	}

	origin, err := cookies.Origin(rawURL)
	if err != nil {
		return nil, &ArgumentError{Function: "resolveChallenge", Message: err.Error()}
	}

	result := a.flights.DoChan(flightKey(origin, rawURL), func() (interface{}, error) {
		return a.solve(ctx, origin, rawURL)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-result:
		if res.Err != nil {
			return nil, res.Err
		}
		// Shared results are copied so guests never alias each other
		headers := res.Val.(map[string]string)
		out := make(map[string]string, len(headers))
		for k, v := range headers {
			out[k] = v
		}
		return out, nil
	}
}

// flightKey identifies a solver session by normalized origin and request URI
func flightKey(origin, rawURL string) string {
	target, err := url.Parse(rawURL)
	if err != nil {
		return origin
	}
	return origin + target.RequestURI()
}

// solve runs one solver session and stores its cookie material under
// origin before returning
func (a *API) solve(ctx context.Context, origin, rawURL string) (map[string]string, error) {
	// The session outlives any single waiting guest
	solveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.challengeTimeout)
	defer cancel()

	start := time.Now()
	material, err := a.challenger.Resolve(solveCtx, rawURL)
	if err != nil {
		a.metrics.RecordChallenge("failed")
		a.logger.Warn("challenge failed",
			zap.String("origin", origin),
			zap.Error(err),
		)
		return nil, &ChallengeError{URL: rawURL, Err: err}
	}

	headers := cookieHeaders(material)
	cookie := headers["Cookie"]
	if cookie == "" {
		a.metrics.RecordChallenge("empty")
		return nil, &ChallengeError{URL: rawURL, Err: ErrNoCookieMaterial}
	}

	if err := a.jar.Set(origin, cookie); err != nil {
		a.metrics.RecordChallenge("failed")
		return nil, &ChallengeError{URL: rawURL, Err: fmt.Errorf("store cookies: %w", err)}
	}

	a.metrics.RecordChallenge("solved")
	a.logger.Info("challenge solved",
		zap.String("origin", origin),
		zap.Duration("duration", time.Since(start)),
	)
	return headers, nil
}

// cookieHeaders normalizes solver output. A Cookie header is used as is;
// otherwise every pair is treated as a cookie name and value.
func cookieHeaders(material map[string]string) map[string]string {
	for k, v := range material {
		if http.CanonicalHeaderKey(k) == "Cookie" {
			headers := make(map[string]string, len(material))
			for hk, hv := range material {
				headers[http.CanonicalHeaderKey(hk)] = hv
			}
			headers["Cookie"] = v
			return headers
		}
	}
	return map[string]string{"Cookie": cookies.Encode(material)}
}
