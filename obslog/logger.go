// Package obslog provides the engine's structured logging: a zap-backed
// Logger with domain-specific convenience methods, plus a bounded in-memory
// ring of recent structural log lines a host can expose without a log
// aggregator attached.
package obslog

import (
	"fmt"
	"os"
	"slices"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.Logger with order/trade/risk convenience methods.
type Logger struct {
	*zap.Logger
	config Config
	ring   *RingSink
}

// Config controls log level, sinks and output files.
type Config struct {
	Level      string   `yaml:"level"`
	Outputs    []string `yaml:"outputs"`
	OutputFile string   `yaml:"output_file"`
	ErrorFile  string   `yaml:"error_file"`
	Format     string   `yaml:"format"`
	MaxSize    int      `yaml:"max_size"`
	MaxBackups int      `yaml:"max_backups"`
	MaxAge     int      `yaml:"max_age"`
	// RingSize bounds the in-memory structural log ring; 0 disables it.
	RingSize int `yaml:"ring_size"`
}

// DefaultConfig returns the engine's default logging configuration.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Outputs:    []string{"stdout"},
		Format:     "json",
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     7,
		RingSize:   1000,
	}
}

func (c Config) encoderConfig() zapcore.EncoderConfig {
	var ec zapcore.EncoderConfig
	if c.Format == "console" {
		ec = zap.NewDevelopmentEncoderConfig()
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		ec = zap.NewProductionEncoderConfig()
	}
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	return ec
}

func (c Config) newEncoder() zapcore.Encoder {
	if c.Format == "console" {
		return zapcore.NewConsoleEncoder(c.encoderConfig())
	}
	return zapcore.NewJSONEncoder(c.encoderConfig())
}

// New builds a Logger per cfg: stdout/file/error-file cores teed together,
// plus a RingSink core when cfg.RingSize > 0.
func New(cfg Config) (*Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %s: %w", cfg.Level, err)
	}

	var cores []zapcore.Core

	if slices.Contains(cfg.Outputs, "stdout") {
		cores = append(cores, zapcore.NewCore(cfg.newEncoder(), zapcore.AddSync(os.Stdout), level))
	}

	appendFileCore := func(path string, lvl zapcore.LevelEnabler) error {
		w, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("open log file %s: %w", path, err)
		}
		enc := zapcore.NewJSONEncoder(cfg.encoderConfig())
		cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(w), lvl))
		return nil
	}
	if slices.Contains(cfg.Outputs, "file") && cfg.OutputFile != "" {
		if err := appendFileCore(cfg.OutputFile, level); err != nil {
			return nil, err
		}
	}
	if cfg.ErrorFile != "" {
		if err := appendFileCore(cfg.ErrorFile, zapcore.ErrorLevel); err != nil {
			return nil, err
		}
	}

	var ring *RingSink
	if cfg.RingSize > 0 {
		ring = NewRingSink(cfg.RingSize, level, zapcore.NewJSONEncoder(cfg.encoderConfig()))
		cores = append(cores, ring)
	}

	zl := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return &Logger{Logger: zl, config: cfg, ring: ring}, nil
}

// Ring returns the bounded structural-log ring, or nil if disabled.
func (l *Logger) Ring() *RingSink {
	return l.ring
}

// WithFields returns a derived Logger carrying the given fields.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return &Logger{Logger: l.Logger.With(toZapFields(fields)...), config: l.config, ring: l.ring}
}

// toZapFields converts the map without mutating it; the caller may reuse
// the same map across log calls.
func toZapFields(fields map[string]interface{}) []zap.Field {
	out := make([]zap.Field, 0, len(fields)+2)
	for k, v := range fields {
		out = append(out, zap.Any(k, v))
	}
	return out
}

// LogOrder logs an order-lifecycle event (submit, admit, cancel, fill).
func (l *Logger) LogOrder(event string, orderID string, fields map[string]interface{}) {
	zf := append(toZapFields(fields), zap.String("event", event), zap.String("order_id", orderID))
	l.Info("order_event", zf...)
}

// LogTrade logs a fill/trade event.
func (l *Logger) LogTrade(event string, fields map[string]interface{}) {
	zf := append(toZapFields(fields), zap.String("event", event))
	l.Info("trade_event", zf...)
}

// LogError logs err with surrounding context.
func (l *Logger) LogError(err error, context map[string]interface{}) {
	zf := append(toZapFields(context), zap.Error(err))
	l.Error("error_event", zf...)
}

// LogRisk logs a risk-engine event: a gate rejection or circuit breaker trip.
func (l *Logger) LogRisk(event string, fields map[string]interface{}) {
	zf := append(toZapFields(fields), zap.String("event", event))
	l.Warn("risk_event", zf...)
}

// Close flushes buffered log entries.
func (l *Logger) Close() error {
	return l.Sync()
}
