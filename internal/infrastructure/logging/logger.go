package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field keys shared by every component that logs about a loaded module
const (
	FieldModule   = "module"
	FieldModuleID = "module_id"
)

// Logger wraps zap.Logger with relay specific scoping helpers.
type Logger struct {
	*zap.Logger
}

// Config defines logger configuration.
type Config struct {
	Level       string // "debug", "info", "warn", "error"
	Development bool
	OutputPaths []string

	// SampleFirst and SampleThereafter bound repeated messages per second.
	// A module logging in a tight loop would otherwise flood the output.
	// Zero disables sampling.
	SampleFirst      int
	SampleThereafter int
}

// DefaultConfig is the relayd profile: JSON on stdout, sampled.
func DefaultConfig() Config {
	return Config{
		Level:            "info",
		OutputPaths:      []string{"stdout"},
		SampleFirst:      100,
		SampleThereafter: 100,
	}
}

// CLIConfig is the verbose profile of the relay command. Stdout carries
// operation results, so diagnostics go to stderr.
func CLIConfig() Config {
	return Config{
		Level:       "debug",
		Development: true,
		OutputPaths: []string{"stderr"},
	}
}

// New creates a new logger with the provided configuration.
func New(cfg Config) (*Logger, error) {
	var level zapcore.Level
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, err
		}
	}

	zapCfg := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       cfg.Development,
		Encoding:          "json",
		EncoderConfig:     encoderConfig(cfg.Development),
		OutputPaths:       cfg.OutputPaths,
		ErrorOutputPaths:  []string{"stderr"},
		DisableStacktrace: !cfg.Development,
	}
	if cfg.Development {
		zapCfg.Encoding = "console"
	}
	if len(zapCfg.OutputPaths) == 0 {
		zapCfg.OutputPaths = []string{"stdout"}
	}
	if cfg.SampleFirst > 0 {
		zapCfg.Sampling = &zap.SamplingConfig{
			Initial:    cfg.SampleFirst,
			Thereafter: cfg.SampleThereafter,
		}
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{Logger: logger}, nil
}

func encoderConfig(development bool) zapcore.EncoderConfig {
	if development {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return cfg
	}

	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "timestamp"
	cfg.MessageKey = "message"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeDuration = zapcore.MillisDurationEncoder
	return cfg
}

// FromConfig builds the daemon logger from a level string and development
// flag, falling back to a no-op logger if the level is invalid.
func FromConfig(level string, development bool) *Logger {
	cfg := DefaultConfig()
	if development {
		cfg.Development = true
		cfg.SampleFirst = 0
	}
	if level != "" {
		cfg.Level = level
	}
	logger, err := New(cfg)
	if err != nil {
		return NewNop()
	}
	return logger
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// Named returns a child logger for a component.
func (l *Logger) Named(name string) *Logger {
	return &Logger{Logger: l.Logger.Named(name)}
}

// Module returns a child logger tagged with a loaded module's name and id.
func (l *Logger) Module(name, moduleID string) *Logger {
	return &Logger{Logger: l.Logger.With(ModuleFields(name, moduleID)...)}
}

// ModuleFields are the fields identifying a loaded module in a log line.
// An empty id is left out, e.g. for a module that failed to load.
func ModuleFields(name, moduleID string) []zap.Field {
	if moduleID == "" {
		return []zap.Field{zap.String(FieldModule, name)}
	}
	return []zap.Field{zap.String(FieldModule, name), zap.String(FieldModuleID, moduleID)}
}
