package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GriffinCanCode/relay/internal/relay"
)

// DefaultPattern matches every JavaScript file below the root
const DefaultPattern = "**/*.js"

// ErrNotDirectory is returned when the catalog root is not a directory
var ErrNotDirectory = errors.New("catalog root is not a directory")

// Entry is one module source file
type Entry struct {
	Name string // slash-separated path relative to the root, without extension
	Path string
}

// Loader loads module source into a runtime
type Loader interface {
	Load(ctx context.Context, name, source string) (*relay.Handle, error)
}

// Failure records a module that could not be read or loaded
type Failure struct {
	Entry Entry
	Err   error
}

// Report summarizes a catalog load
type Report struct {
	Loaded []*relay.Handle
	Failed []Failure
}

// Scan walks dir and returns the entries matching pattern, sorted by name
func Scan(ctx context.Context, dir, pattern string) ([]Entry, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, doublestar.ErrBadPattern)
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, dir)
	}

	var mu sync.Mutex
	var entries []Entry
	conf := fastwalk.Config{Follow: false}

	err = fastwalk.Walk(&conf, dir, func(p string, d os.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil || d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if ok, _ := doublestar.Match(pattern, rel); !ok {
			return nil
		}

		mu.Lock()
		entries = append(entries, Entry{
			Name: strings.TrimSuffix(rel, filepath.Ext(rel)),
			Path: p,
		})
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})
	return entries, nil
}

// Option configures Load
type Option func(*options)

type options struct {
	parallelism int
	logger      *zap.Logger
}

// WithParallelism bounds concurrent module loads
func WithParallelism(n int) Option {
	return func(o *options) {
		o.parallelism = n
	}
}

// WithLogger sets the logger for load failures
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Load reads and loads entries in parallel. Loaded handles keep entry order.
func Load(ctx context.Context, loader Loader, entries []Entry, opts ...Option) Report {
	o := options{parallelism: 4, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.parallelism <= 0 {
		o.parallelism = 1
	}

	handles := make([]*relay.Handle, len(entries))
	failures := make([]error, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.parallelism)

	for i, entry := range entries {
		i, entry := i, entry
		g.Go(func() error {
			source, err := os.ReadFile(entry.Path)
			if err != nil {
				failures[i] = fmt.Errorf("read %s: %w", entry.Path, err)
				return nil
			}
			h, err := loader.Load(gctx, entry.Name, string(source))
			if err != nil {
				failures[i] = err
				return nil
			}
			handles[i] = h
			return nil
		})
	}
	// Workers never return errors; failures are collected per entry
	_ = g.Wait()

	var report Report
	for i, entry := range entries {
		if failures[i] != nil {
			o.logger.Warn("skipping module",
				zap.String("module", entry.Name),
				zap.String("path", entry.Path),
				zap.Error(failures[i]),
			)
			report.Failed = append(report.Failed, Failure{Entry: entry, Err: failures[i]})
			continue
		}
		report.Loaded = append(report.Loaded, handles[i])
	}

	o.logger.Info("catalog loaded",
		zap.Int("loaded", len(report.Loaded)),
		zap.Int("failed", len(report.Failed)),
	)
	return report
}
