// Package main implements relay, a command line runner for a single module.
//
// relay loads one module file, runs one provider operation and prints the
// typed result.
//
// Usage:
//
//	relay [flags] <module.js> <operation> [query|ref]
//
// Examples:
//
//	relay modules/site.js search "one piece" --page 2
//	relay modules/site.js info https://site.example/title/1 -o yaml
//	relay modules/site.js discover --cookie https://site.example=cf_clearance=abc
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/relay/internal/infrastructure/config"
	"github.com/GriffinCanCode/relay/internal/infrastructure/logging"
	"github.com/GriffinCanCode/relay/internal/relay"
	"github.com/GriffinCanCode/relay/internal/relay/cookies"
	"github.com/GriffinCanCode/relay/internal/relay/host"
	"github.com/GriffinCanCode/relay/internal/relay/network"
	"github.com/GriffinCanCode/relay/internal/shared/types"
)

const version = "0.3.0"

// Options holds CLI configuration.
type Options struct {
	Page        int
	Format      string
	Cookies     []string
	CookieFile  string
	Timeout     time.Duration
	EntryPoint  string
	UserAgent   string
	Verbose     bool
	ShowVersion bool
}

func main() {
	opts, args := parseFlags()

	if opts.ShowVersion {
		fmt.Printf("relay v%s\n", version)
		os.Exit(0)
	}
	if len(args) < 2 {
		pflag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, args); err != nil {
		fmt.Fprintf(os.Stderr, "relay: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func parseFlags() (Options, []string) {
	var opts Options

	pflag.IntVar(&opts.Page, "page", 1, "Search page")
	pflag.StringVarP(&opts.Format, "output", "o", "json", "Output format: json or yaml")
	pflag.StringArrayVar(&opts.Cookies, "cookie", nil, "Seed the jar with origin=value (repeatable)")
	pflag.StringVar(&opts.CookieFile, "cookie-file", "", "Persist cookies in this JSON file")
	pflag.DurationVar(&opts.Timeout, "timeout", 60*time.Second, "Invocation deadline (0 disables)")
	pflag.StringVar(&opts.EntryPoint, "entry", "instance", "Global object exposing the operations")
	pflag.StringVar(&opts.UserAgent, "user-agent", config.DefaultUserAgent, "User-Agent for module requests")
	pflag.BoolVarP(&opts.Verbose, "verbose", "v", false, "Log runtime activity to stderr")
	pflag.BoolVar(&opts.ShowVersion, "version", false, "Show version and exit")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "relay v%s\n\n", version)
		fmt.Fprintf(os.Stderr, "USAGE:\n")
		fmt.Fprintf(os.Stderr, "  relay [flags] <module.js> <operation> [query|ref]\n\n")
		fmt.Fprintf(os.Stderr, "OPERATIONS:\n")
		fmt.Fprintf(os.Stderr, "  search, info, media, sources, streams, pages, discover\n\n")
		fmt.Fprintf(os.Stderr, "FLAGS:\n")
		pflag.PrintDefaults()
	}

	pflag.Parse()
	return opts, pflag.Args()
}

func run(ctx context.Context, opts Options, args []string) error {
	path, opName := args[0], args[1]
	ref := ""
	if len(args) > 2 {
		ref = args[2]
	}

	op, err := types.ParseOperation(opName)
	if err != nil {
		return err
	}
	format, err := parseFormat(opts.Format)
	if err != nil {
		return err
	}
	seeds, err := parseCookies(opts.Cookies)
	if err != nil {
		return err
	}

	source, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	logger := zap.NewNop()
	if opts.Verbose {
		l, err := logging.New(logging.CLIConfig())
		if err != nil {
			return err
		}
		logger = l.Logger
	}
	defer logger.Sync()

	jar, err := openJar(opts.CookieFile)
	if err != nil {
		return err
	}
	for origin, value := range seeds {
		if err := jar.Set(origin, value); err != nil {
			return err
		}
	}

	netCfg := network.DefaultConfig()
	netCfg.UserAgent = opts.UserAgent
	executor := network.NewExecutor(netCfg, jar, network.WithLogger(logger))

	sink := logging.NewSink(logger, 256)
	defer sink.Close()

	api := host.New(executor, nil, jar, sink, host.WithLogger(logger))
	runtime := relay.NewRuntime(relay.Config{
		EntryPoint:    opts.EntryPoint,
		InvokeTimeout: opts.Timeout,
	}, api, relay.WithLogger(logger))
	defer runtime.Close()

	handle, err := runtime.Load(ctx, moduleName(path), string(source))
	if err != nil {
		return err
	}

	if ref == "" && op != types.OpDiscover {
		return fmt.Errorf("%s needs a %s argument", op, argName(op))
	}

	result, err := handle.Run(ctx, relay.Request{Operation: op, Reference: ref, Page: opts.Page})
	if err != nil {
		return err
	}

	return render(os.Stdout, result, format)
}

func openJar(path string) (*cookies.Jar, error) {
	if path == "" {
		return cookies.NewJar(nil)
	}
	store, err := cookies.NewFileStore(path)
	if err != nil {
		return nil, err
	}
	return cookies.NewJar(store)
}

func argName(op types.Operation) string {
	if op == types.OpSearch {
		return "query"
	}
	return "ref"
}

// exitCode maps failures to distinct statuses for scripts
func exitCode(err error) int {
	switch {
	case errors.Is(err, relay.ErrCompileFailed), errors.Is(err, relay.ErrMissingEntryPoint):
		return 3
	case errors.Is(err, relay.ErrSchemaMismatch):
		return 4
	case errors.Is(err, relay.ErrTimeout):
		return 5
	case errors.Is(err, relay.ErrGuestThrew):
		return 6
	default:
		return 1
	}
}
