package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/relay/internal/infrastructure/logging"
	"github.com/GriffinCanCode/relay/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/relay/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/relay/internal/relay/cookies"
	"github.com/GriffinCanCode/relay/internal/relay/host"
	"github.com/GriffinCanCode/relay/internal/relay/network"
	"github.com/GriffinCanCode/relay/internal/shared/types"
	"github.com/GriffinCanCode/relay/internal/shared/utils"
)

// module builds a provider whose members override valid stubs
func module(members string) string {
	return `
		const instance = {
			async search(query, page) { return { results: [] } },
			async info(ref) {
				return { titles: { primary: "t" }, description: "d", poster: "p", mediaType: "anime" }
			},
			async media(ref) { return [] },
			async sources(ref) { return [] },
			async streams(ref) { return { streams: [] } },
			async pages(ref) { return [] },
			` + members + `
		}
	`
}

type fixture struct {
	runtime *Runtime
	jar     *cookies.Jar
	metrics *monitoring.Metrics

	logMu sync.Mutex
	logs  []logging.Entry
	sink  *logging.Sink
}

func newFixture(t *testing.T, cfg Config, challenger host.Challenger) *fixture {
	t.Helper()

	f := &fixture{metrics: monitoring.NewMetrics(prometheus.NewRegistry())}

	jar, err := cookies.NewJar(nil)
	require.NoError(t, err)
	f.jar = jar

	f.sink = logging.NewSink(zap.NewNop(), 4096, logging.WithHook(func(e logging.Entry) {
		f.logMu.Lock()
		defer f.logMu.Unlock()
		f.logs = append(f.logs, e)
	}))

	executor := network.NewExecutor(network.DefaultConfig(), jar)
	api := host.New(executor, challenger, jar, f.sink)
	tracer := tracing.New("test", zap.NewNop())

	f.runtime = NewRuntime(cfg, api, WithMetrics(f.metrics), WithTracer(tracer))
	t.Cleanup(func() {
		f.runtime.Close()
		f.sink.Close()
		tracer.Close()
	})
	return f
}

// messages closes the sink and returns every delivered guest log line
func (f *fixture) messages() []string {
	f.sink.Close()
	f.logMu.Lock()
	defer f.logMu.Unlock()

	out := make([]string, len(f.logs))
	for i, e := range f.logs {
		out[i] = e.Message
	}
	return out
}

func (f *fixture) load(t *testing.T, name, source string) *Handle {
	t.Helper()
	h, err := f.runtime.Load(context.Background(), name, source)
	require.NoError(t, err)
	return h
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		sentinel error
		kind     LoadErrorKind
		missing  []string
	}{
		{"syntax error", "const instance = {", ErrCompileFailed, LoadCompileFailed, nil},
		{"top-level throw", `throw new Error("bad module")`, ErrCompileFailed, LoadCompileFailed, nil},
		{"no entry object", "const other = {}", ErrMissingEntryPoint, LoadMissingEntryPoint, nil},
		{"entry not an object", "const instance = 42", ErrMissingEntryPoint, LoadMissingEntryPoint, nil},
		{
			name:     "missing members",
			source:   "const instance = { search() {}, info() {}, media() {}, sources: 1 }",
			sentinel: ErrMissingEntryPoint,
			kind:     LoadMissingEntryPoint,
			missing:  []string{"sources", "streams", "pages"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, DefaultConfig(), nil)

			h, err := f.runtime.Load(context.Background(), "broken", tt.source)
			assert.Nil(t, h)
			require.ErrorIs(t, err, tt.sentinel)

			var loadErr *LoadError
			require.True(t, errors.As(err, &loadErr))
			assert.Equal(t, tt.kind, loadErr.Kind)
			assert.Equal(t, "broken", loadErr.Module)
			assert.Equal(t, tt.missing, loadErr.Missing)
			assert.Zero(t, f.runtime.Len())
		})
	}
}

func TestLoadTopLevelLoopTimesOut(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InvokeTimeout = 100 * time.Millisecond
	f := newFixture(t, cfg, nil)

	_, err := f.runtime.Load(context.Background(), "spin", "for (;;) {}")
	assert.ErrorIs(t, err, ErrCompileFailed)
}

func TestLoadLexicalAndClassEntry(t *testing.T) {
	f := newFixture(t, DefaultConfig(), nil)
	h := f.load(t, "class", `
		class Provider {
			async search(q, page) { return { results: [{ url: "/" + q, title: q, poster: "p" }] } }
			async info() {}
			async media() { return [] }
			async sources() { return [] }
			async streams() { return { streams: [] } }
			async pages() { return ["1.jpg", "2.jpg"] }
		}
		let instance = new Provider()
	`)

	res, err := h.Search(context.Background(), "x", 1)
	require.NoError(t, err)
	assert.Equal(t, "/x", res.Results[0].URL)

	pages, err := h.Pages(context.Background(), "chapter-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"1.jpg", "2.jpg"}, pages)
}

func TestSearchSchemaMismatchNamesFirstField(t *testing.T) {
	f := newFixture(t, DefaultConfig(), nil)
	h := f.load(t, "search", module(`
		async search(query, page) {
			return { results: [
				{ url: "/a", poster: "a.jpg" },
				{ url: "/b", poster: "b.jpg" },
			] }
		},
	`))

	res, err := h.Search(context.Background(), "naruto", 1)
	assert.Nil(t, res)
	require.ErrorIs(t, err, ErrSchemaMismatch)

	var invokeErr *InvokeError
	require.True(t, errors.As(err, &invokeErr))
	assert.Equal(t, InvokeSchemaMismatch, invokeErr.Kind)
	assert.Equal(t, "results[0].title", invokeErr.Path)
	assert.Equal(t, "search", invokeErr.Operation)
}

func TestSearchArgumentsAndBareArray(t *testing.T) {
	f := newFixture(t, DefaultConfig(), nil)
	h := f.load(t, "search", module(`
		async search(query, page) {
			return [{ url: "/" + query + "/" + page, title: typeof page, poster: "p" }]
		},
	`))

	res, err := h.Search(context.Background(), "naruto", 2)
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "/naruto/2", res.Results[0].URL)
	assert.Equal(t, "number", res.Results[0].Title)
	assert.Nil(t, res.Info)
}

func TestInfoRethrownRequestFailureIsGuestThrew(t *testing.T) {
	f := newFixture(t, DefaultConfig(), nil)
	h := f.load(t, "failing", module(`
		async info(ref) {
			try {
				await request("::not a url::", "GET", {}, null)
			} catch (e) {
				log("request failed: " + e.code, "error")
				throw e
			}
		},
	`))

	info, err := h.Info(context.Background(), "ref-123")
	assert.Nil(t, info)
	require.ErrorIs(t, err, ErrGuestThrew)

	var invokeErr *InvokeError
	require.True(t, errors.As(err, &invokeErr))
	assert.Equal(t, "invalid_url", invokeErr.Code)
	assert.Contains(t, f.messages(), "request failed: invalid_url")
}

func TestHostResponseRoundTrip(t *testing.T) {
	var mu sync.Mutex
	var seen http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = r.Header.Clone()
		mu.Unlock()
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusTeapot)
		fmt.Fprint(w, "short and stout")
	}))
	defer srv.Close()

	f := newFixture(t, DefaultConfig(), nil)
	origin, err := cookies.Origin(srv.URL)
	require.NoError(t, err)
	require.NoError(t, f.jar.Set(origin, "session=abc"))

	h := f.load(t, "echo", module(`
		async info(ref) {
			const r = await request(ref, "GET", { Accept: "text/plain" }, null)
			return {
				titles: { primary: String(r.statusCode) },
				description: r.body,
				poster: r.contentType,
				mediaType: "book",
			}
		},
	`))

	info, err := h.Info(context.Background(), srv.URL+"/teapot")
	require.NoError(t, err)
	assert.Equal(t, "418", info.Titles.Primary)
	assert.Equal(t, "short and stout", info.Description)
	assert.Equal(t, "text/plain", info.Poster)
	assert.Empty(t, info.Tags)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "session=abc", seen.Get("Cookie"))
	assert.NotEmpty(t, seen.Get("User-Agent"))
	assert.Equal(t, "text/plain", seen.Get("Accept"))
}

func TestConcurrentInvokesAreSerialized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Millisecond)
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	f := newFixture(t, DefaultConfig(), nil)
	h := f.load(t, "serial", module(`
		async info(ref) {
			log("start " + ref)
			await request("`+srv.URL+`", "GET", {}, null)
			await request("`+srv.URL+`", "GET", {}, null)
			log("end " + ref)
			return { titles: { primary: ref }, description: "", poster: "", mediaType: "anime" }
		},
	`))

	const calls = 10
	var wg sync.WaitGroup
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ref := fmt.Sprintf("ref-%d", i)
			info, err := h.Info(context.Background(), ref)
			if assert.NoError(t, err) {
				assert.Equal(t, ref, info.Titles.Primary)
			}
		}(i)
	}
	wg.Wait()

	lines := f.messages()
	require.Len(t, lines, 2*calls)
	for i := 0; i < len(lines); i += 2 {
		start, end := lines[i], lines[i+1]
		require.True(t, strings.HasPrefix(start, "start "), "line %d: %s", i, start)
		assert.Equal(t, strings.TrimPrefix(start, "start "), strings.TrimPrefix(end, "end "))
	}
	assert.Equal(t, uint64(calls), h.Stats().Invocations)
}

func TestHandlesWithDistinctOriginsAreIndependent(t *testing.T) {
	echoCookie := func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, r.Header.Get("Cookie"))
	}
	a := httptest.NewServer(http.HandlerFunc(echoCookie))
	defer a.Close()
	b := httptest.NewServer(http.HandlerFunc(echoCookie))
	defer b.Close()

	f := newFixture(t, DefaultConfig(), nil)
	originA, _ := cookies.Origin(a.URL)
	originB, _ := cookies.Origin(b.URL)
	require.NoError(t, f.jar.Set(originA, "site=a"))
	require.NoError(t, f.jar.Set(originB, "site=b"))

	source := module(`
		async info(ref) {
			const r = await request(ref, "GET", {}, null)
			return { titles: { primary: ref }, description: r.body, poster: "", mediaType: "anime" }
		},
	`)
	ha := f.load(t, "a", source)
	hb := f.load(t, "b", source)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		for _, tc := range []struct {
			h    *Handle
			url  string
			want string
		}{{ha, a.URL, "site=a"}, {hb, b.URL, "site=b"}} {
			wg.Add(1)
			go func(h *Handle, url, want string) {
				defer wg.Done()
				info, err := h.Info(context.Background(), url)
				if assert.NoError(t, err) {
					assert.Equal(t, want, info.Description)
				}
			}(tc.h, tc.url, tc.want)
		}
	}
	wg.Wait()
}

func TestConcurrentChallengesOnDistinctOrigins(t *testing.T) {
	var mu sync.Mutex
	counter := map[string]int{}
	challenger := host.ChallengerFunc(func(ctx context.Context, url string) (map[string]string, error) {
		origin, _ := cookies.Origin(url)
		mu.Lock()
		counter[origin]++
		n := counter[origin]
		mu.Unlock()
		hostname := strings.TrimPrefix(origin, "https://")
		return map[string]string{"clearance": fmt.Sprintf("%s-%d", hostname, n)}, nil
	})

	f := newFixture(t, DefaultConfig(), challenger)
	source := module(`
		async info(ref) {
			const headers = await resolveChallenge(ref)
			return { titles: { primary: ref }, description: headers.Cookie, poster: "", mediaType: "anime" }
		},
	`)

	origins := []string{"https://one.example", "https://two.example", "https://three.example"}
	handles := make([]*Handle, len(origins))
	for i := range origins {
		handles[i] = f.load(t, fmt.Sprintf("m%d", i), source)
	}

	var wg sync.WaitGroup
	for round := 0; round < 5; round++ {
		for i, origin := range origins {
			wg.Add(1)
			go func(h *Handle, origin string) {
				defer wg.Done()
				info, err := h.Info(context.Background(), origin+"/page")
				if assert.NoError(t, err) {
					hostname := strings.TrimPrefix(origin, "https://")
					assert.True(t, strings.HasPrefix(info.Description, "clearance="+hostname+"-"), info.Description)
				}
			}(handles[i], origin)
		}
	}
	wg.Wait()

	assert.ElementsMatch(t, origins, f.jar.Origins())
	for _, origin := range origins {
		value, ok := f.jar.Get(origin)
		require.True(t, ok)
		hostname := strings.TrimPrefix(origin, "https://")
		assert.True(t, strings.HasPrefix(value, "clearance="+hostname+"-"), value)
	}
}

func TestDiscoverIsOptional(t *testing.T) {
	f := newFixture(t, DefaultConfig(), nil)

	without := f.load(t, "plain", module(""))
	assert.False(t, without.Supports(types.OpDiscover))
	_, err := without.Discover(context.Background())
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.ErrorIs(t, err, ErrGuestThrew)

	with := f.load(t, "discover", module(`
		async discover() {
			return [{ title: "Trending", type: 0, data: [{ url: "/x", titles: { primary: "X" }, poster: "x.jpg", description: "", indicator: "", total: 12 }] }]
		},
	`))
	assert.True(t, with.Supports(types.OpDiscover))
	assert.Contains(t, with.Operations(), "discover")

	sections, err := with.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, sections, 1)
	assert.Equal(t, "Trending", sections[0].Title)
}

func TestInvokeTimeoutAbandonsInvocation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InvokeTimeout = 150 * time.Millisecond
	f := newFixture(t, cfg, nil)

	h := f.load(t, "slow", module(`
		async info(ref) {
			if (ref === "spin") { for (;;) {} }
			return { titles: { primary: ref }, description: "", poster: "", mediaType: "anime" }
		},
	`))

	_, err := h.Info(context.Background(), "spin")
	assert.ErrorIs(t, err, ErrTimeout)

	for _, ref := range []string{"fast", "again"} {
		info, err := h.Info(context.Background(), ref)
		require.NoError(t, err)
		assert.Equal(t, ref, info.Titles.Primary)
	}

	// A second timeout on the rebuilt engine is handled the same way
	_, err = h.Info(context.Background(), "spin")
	assert.ErrorIs(t, err, ErrTimeout)
	info, err := h.Info(context.Background(), "last")
	require.NoError(t, err)
	assert.Equal(t, "last", info.Titles.Primary)

	stats := h.Stats()
	assert.Equal(t, uint64(5), stats.Invocations)
	assert.Equal(t, uint64(2), stats.Failures)
	assert.NotEmpty(t, stats.LastError)
}

func TestDescribeReportsModuleAlongsideInfoOperation(t *testing.T) {
	f := newFixture(t, DefaultConfig(), nil)
	source := module("")
	h := f.load(t, "described", source)

	info, err := h.Info(context.Background(), "https://a.example/show")
	require.NoError(t, err)
	require.NotNil(t, info)

	desc := h.Describe()
	assert.Equal(t, h.ID(), desc.ID)
	assert.Equal(t, "described", desc.Name)
	assert.Equal(t, utils.Checksum(source), desc.Checksum)
	assert.Equal(t, []string{"info", "media", "pages", "search", "sources", "streams"}, desc.Operations)
	assert.Equal(t, uint64(1), desc.Stats.Invocations)
	assert.Zero(t, desc.Stats.Failures)
}


func TestCanceledCallerGetsCanceled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		fmt.Fprint(w, "late")
	}))
	defer srv.Close()
	defer close(release)

	f := newFixture(t, DefaultConfig(), nil)
	h := f.load(t, "orphan", module(`
		async info(ref) {
			await request("`+srv.URL+`", "GET", {}, null)
			return { titles: { primary: ref }, description: "", poster: "", mediaType: "anime" }
		},
	`))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := h.Info(ctx, "x")
	assert.ErrorIs(t, err, ErrCanceled)
}

func TestUnloadAndClose(t *testing.T) {
	f := newFixture(t, DefaultConfig(), nil)
	first := f.load(t, "first", module(""))
	second := f.load(t, "second", module(""))

	list := f.runtime.List()
	require.Len(t, list, 2)
	assert.Equal(t, first.ID(), list[0].ID())
	assert.Equal(t, second.ID(), list[1].ID())

	got, ok := f.runtime.Get(first.ID())
	require.True(t, ok)
	assert.Same(t, first, got)

	require.NoError(t, first.Close())
	_, ok = f.runtime.Get(first.ID())
	assert.False(t, ok)
	assert.ErrorIs(t, f.runtime.Unload(first.ID()), ErrNotFound)

	_, err := first.Info(context.Background(), "x")
	assert.ErrorIs(t, err, ErrClosed)

	require.NoError(t, f.runtime.Close())
	assert.Zero(t, f.runtime.Len())

	_, err = second.Info(context.Background(), "x")
	assert.ErrorIs(t, err, ErrClosed)

	_, err = f.runtime.Load(context.Background(), "late", module(""))
	assert.ErrorIs(t, err, ErrEngineInit)
}

func TestRunDispatchesOperations(t *testing.T) {
	f := newFixture(t, DefaultConfig(), nil)
	h := f.load(t, "all", module(`
		async media(ref) {
			return [{ title: "Episodes", pagination: [{ id: "1-25", items: [{ url: ref + "/1", number: 1 }] }] }]
		},
		async sources(ref) { return [{ title: "Sub", list: [{ name: "Server", url: ref }] }] },
		async streams(ref) {
			return { streams: [{ file: ref + ".m3u8", type: "hls", quality: "auto" }], headers: { Referer: ref } }
		},
	`))

	tests := []struct {
		op    types.Operation
		check func(t *testing.T, v interface{})
	}{
		{types.OpSearch, func(t *testing.T, v interface{}) {
			assert.Empty(t, v.(*types.SearchResult).Results)
		}},
		{types.OpInfo, func(t *testing.T, v interface{}) {
			assert.Equal(t, "t", v.(*types.InfoData).Titles.Primary)
		}},
		{types.OpMedia, func(t *testing.T, v interface{}) {
			assert.Equal(t, "https://e/1", v.([]types.MediaList)[0].Pagination[0].Items[0].URL)
		}},
		{types.OpSources, func(t *testing.T, v interface{}) {
			assert.Equal(t, "Server", v.([]types.SourceList)[0].List[0].Name)
		}},
		{types.OpStreams, func(t *testing.T, v interface{}) {
			stream := v.(*types.MediaStream)
			assert.Equal(t, "https://e.m3u8", stream.Streams[0].File)
			assert.Equal(t, map[string]string{"Referer": "https://e"}, stream.Headers)
			assert.NotNil(t, stream.Subtitles)
		}},
		{types.OpPages, func(t *testing.T, v interface{}) {
			assert.Empty(t, v.([]string))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.op.String(), func(t *testing.T) {
			v, err := h.Run(context.Background(), Request{Operation: tt.op, Reference: "https://e", Page: 1})
			require.NoError(t, err)
			tt.check(t, v)
		})
	}

	_, err := h.Run(context.Background(), Request{Operation: "bogus"})
	assert.ErrorIs(t, err, ErrUnsupported)

	snap := f.metrics.Snapshot()
	assert.Equal(t, int64(len(tests)), snap.TotalInvocations)
	assert.Zero(t, snap.FailedInvocations)
}
