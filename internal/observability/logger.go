// Package observability holds the process-wide loggers.
package observability

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CLILogger is the logger used by commands. It is a no-op until
// InitCLILogger runs, so packages can log unconditionally.
var CLILogger = zap.NewNop()

// Logging profiles.
const (
	ProfileStructured = "structured"
	ProfileConsole    = "console"
)

// Options tunes logger construction.
type Options struct {
	Level   string
	Profile string
	Verbose bool
}

// InitCLILogger installs a console logger on stderr. Verbose lowers the
// level to debug.
func InitCLILogger(name string, verbose bool) {
	CLILogger = NewLogger(name, Options{Profile: ProfileConsole, Verbose: verbose})
}

// InitServerLogger installs a logger for long-running processes.
func InitServerLogger(name string, opts Options) {
	CLILogger = NewLogger(name, opts)
}

// NewLogger builds a named logger writing to stderr.
func NewLogger(name string, opts Options) *zap.Logger {
	level := ParseLevel(opts.Level)
	if opts.Verbose {
		level = zapcore.DebugLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if strings.EqualFold(opts.Profile, ProfileConsole) {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	} else {
		enc = zapcore.NewJSONEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.Lock(os.Stderr), level)
	return zap.New(core, zap.AddCaller()).Named(name)
}

// ParseLevel maps a level name to a zap level. Unknown names mean info.
func ParseLevel(s string) zapcore.Level {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(s)))); err != nil || s == "" {
		return zapcore.InfoLevel
	}
	return l
}

// Sync flushes CLILogger. Errors from syncing a terminal are ignored.
func Sync() {
	_ = CLILogger.Sync()
}
