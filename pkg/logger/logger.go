// Package logger provides component-tagged logging for relayclaw.
//
// All packages log through the package-level helpers (InfoC, WarnCF, ...)
// so every line carries a component tag that can be grepped in aggregate
// logs. The backend is zap; file output rotates via lumberjack.
package logger

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Level int8

const (
	DEBUG Level = iota - 1
	INFO
	WARN
	ERROR
)

// Options configures the logging backend. The zero value logs to stderr
// at info level in console format.
type Options struct {
	Level      string
	Format     string // "json" or "console"
	File       string // optional log file, rotated
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

var (
	mu    sync.RWMutex
	level = zap.NewAtomicLevelAt(zap.InfoLevel)
	log   = newLogger(Options{})
)

// Setup replaces the backend with one built from opts. Safe to call once
// at startup before any goroutines log.
func Setup(opts Options) {
	mu.Lock()
	defer mu.Unlock()
	switch strings.ToLower(opts.Level) {
	case "debug":
		level.SetLevel(zap.DebugLevel)
	case "warn", "warning":
		level.SetLevel(zap.WarnLevel)
	case "error":
		level.SetLevel(zap.ErrorLevel)
	default:
		level.SetLevel(zap.InfoLevel)
	}
	log = newLogger(opts)
}

// SetLevel adjusts the minimum level at runtime (e.g. --debug flag).
func SetLevel(l Level) {
	level.SetLevel(zapcore.Level(l))
}

func newLogger(opts Options) *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if strings.ToLower(opts.Format) == "json" {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.AddSync(os.Stderr), level),
	}
	if opts.File != "" {
		rotated := zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    defaultInt(opts.MaxSizeMB, 10),
			MaxBackups: defaultInt(opts.MaxBackups, 3),
			MaxAge:     defaultInt(opts.MaxAgeDays, 14),
			Compress:   opts.Compress,
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), rotated, level))
	}

	return zap.New(zapcore.NewTee(cores...))
}

func defaultInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func current() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// Sync flushes buffered log entries. Call on shutdown.
func Sync() {
	_ = current().Sync()
}

func DebugC(component, msg string) { current().Debug(msg, zap.String("component", component)) }
func InfoC(component, msg string)  { current().Info(msg, zap.String("component", component)) }
func WarnC(component, msg string)  { current().Warn(msg, zap.String("component", component)) }
func ErrorC(component, msg string) { current().Error(msg, zap.String("component", component)) }

func DebugCF(component, msg string, fields map[string]any) {
	current().Debug(msg, zapFields(component, fields)...)
}

func InfoCF(component, msg string, fields map[string]any) {
	current().Info(msg, zapFields(component, fields)...)
}

func WarnCF(component, msg string, fields map[string]any) {
	current().Warn(msg, zapFields(component, fields)...)
}

func ErrorCF(component, msg string, fields map[string]any) {
	current().Error(msg, zapFields(component, fields)...)
}

func zapFields(component string, fields map[string]any) []zap.Field {
	out := make([]zap.Field, 0, len(fields)+1)
	out = append(out, zap.String("component", component))
	for k, v := range fields {
		out = append(out, zap.Any(k, v))
	}
	return out
}
