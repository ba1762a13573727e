package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"", zapcore.InfoLevel},
		{"debug", zapcore.DebugLevel},
		{"WARN", zapcore.WarnLevel},
		{" error ", zapcore.ErrorLevel},
		{"nonsense", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
}

func TestNewLogger(t *testing.T) {
	l := NewLogger("test", Options{Level: "warn"})
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))

	l = NewLogger("test", Options{Level: "warn", Verbose: true, Profile: ProfileConsole})
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
}

func TestInitCLILogger(t *testing.T) {
	orig := CLILogger
	defer func() { CLILogger = orig }()

	InitCLILogger("bucketnav", true)
	assert.True(t, CLILogger.Core().Enabled(zapcore.DebugLevel))

	InitCLILogger("bucketnav", false)
	assert.False(t, CLILogger.Core().Enabled(zapcore.DebugLevel))
}
