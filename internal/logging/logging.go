package logging

import (
	"fmt"
	"os"
	"sort"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// FrameworkLogger is the logger the HTTP layer writes to.
const FrameworkLogger = "django"

// Handler classes.
const (
	ClassStream = "stream"
)

// Config mirrors a dictConfig-style logging mapping.
type Config struct {
	Version                int                      `yaml:"version"`
	DisableExistingLoggers bool                     `yaml:"disable_existing_loggers"`
	Handlers               map[string]HandlerConfig `yaml:"handlers"`
	Root                   LoggerConfig             `yaml:"root"`
	Loggers                map[string]LoggerConfig  `yaml:"loggers"`
}

// HandlerConfig describes one output sink.
type HandlerConfig struct {
	Class    string `yaml:"class"`
	Stream   string `yaml:"stream,omitempty"`
	Encoding string `yaml:"encoding,omitempty"`
	Level    string `yaml:"level,omitempty"`
}

// LoggerConfig attaches handlers to a logger.
type LoggerConfig struct {
	Handlers  []string `yaml:"handlers"`
	Level     string   `yaml:"level,omitempty"`
	Propagate bool     `yaml:"propagate"`
}

// Option customises New.
type Option func(*options)

type options struct {
	output zapcore.WriteSyncer
}

// WithOutput sends every stream handler to w instead of stdout/stderr.
func WithOutput(w zapcore.WriteSyncer) Option {
	return func(o *options) {
		o.output = w
	}
}

// Loggers holds the root logger and every configured named logger.
type Loggers struct {
	root  *zap.Logger
	named map[string]*zap.Logger
}

// New builds zap loggers from cfg. Each handler becomes a JSON core; a
// named logger writes to its own handlers and, when Propagate is set, to
// the root handlers as well.
func New(cfg Config, opts ...Option) (*Loggers, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	rootLevel := zapcore.WarnLevel
	if cfg.Root.Level != "" {
		lvl, err := ParseLevel(cfg.Root.Level)
		if err != nil {
			return nil, fmt.Errorf("root logger: %w", err)
		}
		rootLevel = lvl
	}

	rootCores, err := buildCores(cfg, cfg.Root.Handlers, o)
	if err != nil {
		return nil, fmt.Errorf("root logger: %w", err)
	}

	l := &Loggers{
		root:  newLogger(rootLevel, rootCores),
		named: make(map[string]*zap.Logger, len(cfg.Loggers)),
	}

	for name, lc := range cfg.Loggers {
		level := rootLevel
		if lc.Level != "" && lc.Level != "NOTSET" {
			lvl, err := ParseLevel(lc.Level)
			if err != nil {
				return nil, fmt.Errorf("logger %q: %w", name, err)
			}
			level = lvl
		}

		cores, err := buildCores(cfg, lc.Handlers, o)
		if err != nil {
			return nil, fmt.Errorf("logger %q: %w", name, err)
		}
		if lc.Propagate {
			cores = append(cores, rootCores...)
		}
		l.named[name] = newLogger(level, cores).Named(name)
	}

	return l, nil
}

// Root returns the root logger.
func (l *Loggers) Root() *zap.Logger {
	return l.root
}

// Named returns the configured logger for name, or a child of the root
// logger when name is not configured.
func (l *Loggers) Named(name string) *zap.Logger {
	if logger, ok := l.named[name]; ok {
		return logger
	}
	return l.root.Named(name)
}

// Sync flushes every logger.
func (l *Loggers) Sync() error {
	names := make([]string, 0, len(l.named))
	for name := range l.named {
		names = append(names, name)
	}
	sort.Strings(names)

	err := l.root.Sync()
	for _, name := range names {
		if syncErr := l.named[name].Sync(); syncErr != nil && err == nil {
			err = syncErr
		}
	}
	return err
}

// ParseLevel maps logging level names (DEBUG, INFO, WARNING, ERROR,
// CRITICAL and the WARN/FATAL/NOTSET aliases) onto zap levels. Names are
// upper case; "debug" is rejected.
func ParseLevel(name string) (zapcore.Level, error) {
	switch name {
	case "DEBUG", "NOTSET":
		return zapcore.DebugLevel, nil
	case "INFO":
		return zapcore.InfoLevel, nil
	case "WARNING", "WARN":
		return zapcore.WarnLevel, nil
	case "ERROR":
		return zapcore.ErrorLevel, nil
	case "CRITICAL", "FATAL":
		return zapcore.DPanicLevel, nil
	default:
		return zapcore.InvalidLevel, fmt.Errorf("unknown level %q", name)
	}
}

func newLogger(level zapcore.Level, cores []zapcore.Core) *zap.Logger {
	leveled := make([]zapcore.Core, 0, len(cores))
	for _, core := range cores {
		leveled = append(leveled, &levelCore{Core: core, level: level})
	}
	return zap.New(zapcore.NewTee(leveled...), zap.AddCaller())
}

func buildCores(cfg Config, names []string, o options) ([]zapcore.Core, error) {
	cores := make([]zapcore.Core, 0, len(names))
	for _, name := range names {
		hc, ok := cfg.Handlers[name]
		if !ok {
			return nil, fmt.Errorf("unknown handler %q", name)
		}
		core, err := buildCore(hc, o)
		if err != nil {
			return nil, fmt.Errorf("handler %q: %w", name, err)
		}
		cores = append(cores, core)
	}
	return cores, nil
}

func buildCore(hc HandlerConfig, o options) (zapcore.Core, error) {
	if hc.Class != ClassStream {
		return nil, fmt.Errorf("unsupported class %q", hc.Class)
	}

	var sink zapcore.WriteSyncer
	switch {
	case o.output != nil:
		sink = o.output
	case hc.Stream == "" || hc.Stream == "stderr":
		sink = zapcore.Lock(os.Stderr)
	case hc.Stream == "stdout":
		sink = zapcore.Lock(os.Stdout)
	default:
		return nil, fmt.Errorf("unsupported stream %q", hc.Stream)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.StacktraceKey = "stacktrace"

	var enc zapcore.Encoder
	switch hc.Encoding {
	case "", "json":
		enc = zapcore.NewJSONEncoder(encCfg)
	case "console":
		enc = zapcore.NewConsoleEncoder(encCfg)
	default:
		return nil, fmt.Errorf("unsupported encoding %q", hc.Encoding)
	}

	level := zapcore.DebugLevel
	if hc.Level != "" {
		lvl, err := ParseLevel(hc.Level)
		if err != nil {
			return nil, err
		}
		level = lvl
	}

	return zapcore.NewCore(enc, sink, level), nil
}

// levelCore applies a logger-level threshold on top of a handler core, so a
// shared handler keeps its own level while each logger filters separately.
type levelCore struct {
	zapcore.Core
	level zapcore.Level
}

func (c *levelCore) Enabled(lvl zapcore.Level) bool {
	return lvl >= c.level && c.Core.Enabled(lvl)
}

func (c *levelCore) With(fields []zapcore.Field) zapcore.Core {
	return &levelCore{Core: c.Core.With(fields), level: c.level}
}

func (c *levelCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(ent.Level) {
		return ce
	}
	return c.Core.Check(ent, ce)
}
