package logging

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is a guest log level
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// ParseLevel maps a guest supplied level to a Level. Unknown values are info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "trace", "verbose":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error", "fatal":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Entry is a single guest log line
type Entry struct {
	Time    time.Time
	Level   Level
	Source  string
	Message string
}

// SinkOption configures a Sink
type SinkOption func(*Sink)

// WithHook registers a callback run on the drain goroutine for every
// delivered entry, e.g. to count lines per level
func WithHook(hook func(Entry)) SinkOption {
	return func(s *Sink) {
		s.hook = hook
	}
}

// Sink is a fire-and-forget log destination for guest code
type Sink struct {
	logger  *zap.Logger
	entries chan Entry
	hook    func(Entry)
	dropped atomic.Uint64

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// DefaultSinkBuffer is the buffer size used when none is given
const DefaultSinkBuffer = 1024

// NewSink creates a sink draining into a "guest" child of logger
func NewSink(logger *zap.Logger, buffer int, opts ...SinkOption) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	if buffer <= 0 {
		buffer = DefaultSinkBuffer
	}

	s := &Sink{
		logger:  logger.Named("guest"),
		entries: make(chan Entry, buffer),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.drain()

	return s
}

// Log submits a guest log line. It never blocks and never fails.
func (s *Sink) Log(message, level, source string) {
	s.Submit(Entry{
		Time:    time.Now(),
		Level:   ParseLevel(level),
		Source:  source,
		Message: message,
	})
}

// Submit sends an entry to the drain goroutine, dropping it if the buffer is full
func (s *Sink) Submit(entry Entry) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		s.dropped.Add(1)
		return
	}

	select {
	case s.entries <- entry:
	default:
		s.dropped.Add(1)
	}
}

// Dropped returns how many entries were discarded
func (s *Sink) Dropped() uint64 {
	return s.dropped.Load()
}

// Close stops accepting entries and waits for buffered ones to be written
func (s *Sink) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.done
		return
	}
	s.closed = true
	close(s.entries)
	s.mu.Unlock()

	<-s.done
}

func (s *Sink) drain() {
	defer close(s.done)

	for entry := range s.entries {
		if ce := s.logger.Check(entry.Level.zapLevel(), entry.Message); ce != nil {
			ce.Time = entry.Time
			ce.Write(zap.String("source", entry.Source))
		}
		if s.hook != nil {
			s.hook(entry)
		}
	}

	if n := s.dropped.Load(); n > 0 {
		s.logger.Warn("guest log entries dropped", zap.Uint64("count", n))
	}
}
