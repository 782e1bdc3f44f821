package host

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/relay/internal/relay/cookies"
	"github.com/GriffinCanCode/relay/internal/relay/network"
	"github.com/GriffinCanCode/relay/internal/relay/sandbox"
	"github.com/GriffinCanCode/relay/internal/shared/types"
)

type mockExecutor struct {
	mock.Mock
}

func (m *mockExecutor) Execute(ctx context.Context, req types.HostRequest) (*types.HostResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*types.HostResponse)
	return resp, args.Error(1)
}

type logLine struct {
	message, level, source string
}

type memorySink struct {
	mu    sync.Mutex
	lines []logLine
}

func (s *memorySink) Log(message, level, source string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, logLine{message, level, source})
}

func (s *memorySink) all() []logLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]logLine(nil), s.lines...)
}

func install(t *testing.T, api *API, source string) *sandbox.Runtime {
	t.Helper()
	ctx := context.Background()

	rt, err := sandbox.New(sandbox.DefaultConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { rt.Close() })

	require.NoError(t, api.Install(ctx, rt, "test-module"))
	require.NoError(t, rt.Evaluate(ctx, "test.js", source))
	_, err = rt.BindEntry(ctx, "instance")
	require.NoError(t, err)
	return rt
}

func newJar(t *testing.T) *cookies.Jar {
	t.Helper()
	jar, err := cookies.NewJar(nil)
	require.NoError(t, err)
	return jar
}

func TestRequestRoundTrip(t *testing.T) {
	exec := new(mockExecutor)
	exec.On("Execute", mock.Anything, mock.MatchedBy(func(req types.HostRequest) bool {
		body, ok := req.Body()
		test, _ := req.Header("x-test")
		count, _ := req.Header("X-Count")
		return req.URL() == "https://a.example/search" &&
			req.Method() == types.MethodPost &&
			test == "1" && count == "2" &&
			ok && body == `{"q":"naruto"}`
	})).Return(&types.HostResponse{
		StatusCode:  201,
		ContentType: "text/html",
		Headers:     map[string]string{"X-Reply": "yes"},
		Body:        "<p>ok</p>",
	}, nil)

	api := New(exec, nil, newJar(t), nil)
	rt := install(t, api, `
		const instance = {
			async run() {
				const r = await request("https://a.example/search", "post", { "x-test": "1", "X-Count": 2 }, { q: "naruto" })
				return [r.statusCode, r.contentType, r.headers["X-Reply"], r.body].join("|")
			},
		}
	`)

	got, err := rt.Call(context.Background(), "run")
	require.NoError(t, err)
	assert.Equal(t, "201|text/html|yes|<p>ok</p>", got)
	exec.AssertExpectations(t)
}

func TestRequestFailuresRejectWithCode(t *testing.T) {
	exec := new(mockExecutor)
	exec.On("Execute", mock.Anything, mock.Anything).Return(nil, &network.Error{
		Kind: network.KindTransportFailure,
		URL:  "https://down.example",
		Err:  network.ErrTransportFailure,
	})

	api := New(exec, nil, newJar(t), nil)
	rt := install(t, api, `
		async function code(fn) {
			try {
				await fn()
				return "resolved"
			} catch (e) {
				return e.code
			}
		}
		const instance = {
			transport() { return code(() => request("https://down.example", "GET", {}, null)) },
			noURL() { return code(() => request(5)) },
			badMethod() { return code(() => request("https://a.example", "FETCH")) },
			badHeaders() { return code(() => request("https://a.example", "GET", "nope")) },
			badHeaderValue() { return code(() => request("https://a.example", "GET", { A: { nested: true } })) },
		}
	`)

	tests := []struct {
		member string
		code   string
	}{
		{"transport", "transport_failure"},
		{"noURL", "invalid_argument"},
		{"badMethod", "invalid_argument"},
		{"badHeaders", "invalid_argument"},
		{"badHeaderValue", "invalid_argument"},
	}
	for _, tt := range tests {
		t.Run(tt.member, func(t *testing.T) {
			got, err := rt.Call(context.Background(), tt.member)
			require.NoError(t, err)
			assert.Equal(t, tt.code, got)
		})
	}
	exec.AssertNumberOfCalls(t, "Execute", 1)
}

func TestRequestFromArgsDefaults(t *testing.T) {
	req, err := requestFromArgs([]interface{}{"https://a.example"})
	require.NoError(t, err)
	assert.Equal(t, types.MethodGet, req.Method())
	assert.Empty(t, req.Headers())
	_, hasBody := req.Body()
	assert.False(t, hasBody)
}

func TestLogAndConsole(t *testing.T) {
	sink := &memorySink{}
	api := New(new(mockExecutor), nil, newJar(t), sink)
	rt := install(t, api, `
		const instance = {
			run() {
				log("hello", "warn")
				log("default level")
				log()
				console.log("a", 1)
				console.error({ b: 2 })
				console.debug("d")
			},
		}
	`)

	_, err := rt.Call(context.Background(), "run")
	require.NoError(t, err)

	assert.Equal(t, []logLine{
		{"hello", "warn", "test-module"},
		{"default level", "info", "test-module"},
		{"", "info", "test-module"},
		{"a 1", "info", "test-module"},
		{`{"b":2}`, "error", "test-module"},
		{"d", "debug", "test-module"},
	}, sink.all())
}

func TestResolveChallengeStoresCookiesBeforeResolving(t *testing.T) {
	jar := newJar(t)
	var seen atomic.Value
	var mu sync.Mutex
	var urls []string

	challenger := ChallengerFunc(func(ctx context.Context, url string) (map[string]string, error) {
		mu.Lock()
		urls = append(urls, url)
		mu.Unlock()
		return map[string]string{"cf_clearance": "abc", "session": "s1"}, nil
	})

	api := New(new(mockExecutor), challenger, jar, nil)
	rt := install(t, api, `
		const instance = {
			async run() {
				const headers = await resolveChallenge("https://b.example/page")
				peek()
				return headers.Cookie
			},
			async alias() {
				const headers = await callWebview("https://b.example/other")
				return headers.Cookie
			},
		}
	`)
	require.NoError(t, rt.DefineSync(context.Background(), "peek", func([]string) {
		value, _ := jar.Get("https://b.example")
		seen.Store(value)
	}))

	got, err := rt.Call(context.Background(), "run")
	require.NoError(t, err)
	assert.Equal(t, "cf_clearance=abc; session=s1", got)
	assert.Equal(t, "cf_clearance=abc; session=s1", seen.Load())

	got, err = rt.Call(context.Background(), "alias")
	require.NoError(t, err)
	assert.Equal(t, "cf_clearance=abc; session=s1", got)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"https://b.example/page", "https://b.example/other"}, urls)
}

func TestCookieHeaders(t *testing.T) {
	tests := []struct {
		name     string
		material map[string]string
		want     map[string]string
	}{
		{
			name:     "cookie pairs",
			material: map[string]string{"b": "2", "a": "1"},
			want:     map[string]string{"Cookie": "a=1; b=2"},
		},
		{
			name:     "cookie header",
			material: map[string]string{"cookie": "x=y", "user-agent": "UA"},
			want:     map[string]string{"Cookie": "x=y", "User-Agent": "UA"},
		},
		{
			name:     "empty",
			material: map[string]string{},
			want:     map[string]string{"Cookie": ""},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cookieHeaders(tt.material))
		})
	}
}

func TestResolveChallengeFailures(t *testing.T) {
	tests := []struct {
		name       string
		challenger Challenger
		code       string
	}{
		{"no solver", nil, "challenge_unavailable"},
		{"solver error", ChallengerFunc(func(context.Context, string) (map[string]string, error) {
			return nil, errors.New("user closed the window")
		}), "challenge_failed"},
		{"no cookies", ChallengerFunc(func(context.Context, string) (map[string]string, error) {
			return map[string]string{}, nil
		}), "challenge_failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jar := newJar(t)
			api := New(new(mockExecutor), tt.challenger, jar, nil)
			rt := install(t, api, `
				const instance = {
					async run() {
						try {
							await resolveChallenge("https://c.example")
						} catch (e) {
							return e.code
						}
					},
					async invalid() {
						try {
							await resolveChallenge("not a url")
						} catch (e) {
							return e.code
						}
					},
				}
			`)

			got, err := rt.Call(context.Background(), "run")
			require.NoError(t, err)
			assert.Equal(t, tt.code, got)
			assert.Empty(t, jar.Origins())

			got, err = rt.Call(context.Background(), "invalid")
			require.NoError(t, err)
			assert.Equal(t, "invalid_argument", got)
		})
	}
}

func TestResolveChallengeSharesSessionPerPage(t *testing.T) {
	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})

	challenger := ChallengerFunc(func(ctx context.Context, url string) (map[string]string, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return map[string]string{"token": "t"}, nil
	})

	api := New(new(mockExecutor), challenger, newJar(t), nil)
	source := `
		const instance = {
			async run(url) {
				const h = await resolveChallenge(url)
				return h.Cookie
			},
		}
	`
	first := install(t, api, source)
	second := install(t, api, source)

	results := make(chan interface{}, 2)
	go func() {
		got, _ := first.Call(context.Background(), "run", "https://shared.example/a?x=1")
		results <- got
	}()
	<-started
	go func() {
		got, _ := second.Call(context.Background(), "run", "https://SHARED.example:443/a?x=1")
		results <- got
	}()

	// Let the second guest join the in-flight session
	time.Sleep(50 * time.Millisecond)
	close(release)

	assert.Equal(t, "token=t", <-results)
	assert.Equal(t, "token=t", <-results)
	assert.Equal(t, int32(1), calls.Load())
}

func TestResolveChallengeSeparatesPagesOfOneOrigin(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]int{}
	arrived := make(chan struct{}, 2)
	release := make(chan struct{})

	challenger := ChallengerFunc(func(ctx context.Context, url string) (map[string]string, error) {
		mu.Lock()
		seen[url]++
		mu.Unlock()
		arrived <- struct{}{}
		<-release
		return map[string]string{"token": "t"}, nil
	})

	api := New(new(mockExecutor), challenger, newJar(t), nil)
	source := `
		const instance = {
			async run(url) {
				const h = await resolveChallenge(url)
				return h.Cookie
			},
		}
	`
	first := install(t, api, source)
	second := install(t, api, source)

	results := make(chan interface{}, 2)
	for rt, url := range map[*sandbox.Runtime]string{
		first:  "https://shared.example/a",
		second: "https://shared.example/b",
	} {
		go func(rt *sandbox.Runtime, url string) {
			got, _ := rt.Call(context.Background(), "run", url)
			results <- got
		}(rt, url)
	}

	// Both sessions reach the solver while the other is still open
	<-arrived
	<-arrived
	close(release)

	assert.Equal(t, "token=t", <-results)
	assert.Equal(t, "token=t", <-results)
	assert.Equal(t, map[string]int{
		"https://shared.example/a": 1,
		"https://shared.example/b": 1,
	}, seen)
}
