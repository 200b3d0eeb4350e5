package logger

import (
	"bytes"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestStringToLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"debug", zapcore.DebugLevel, false},
		{"INFO", zapcore.InfoLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"1", zapcore.Level(-1), false},
		{"4", zapcore.Level(-4), false},
		{"0", zapcore.InfoLevel, true},
		{"-2", zapcore.InfoLevel, true},
		{"loud", zapcore.InfoLevel, true},
	}

	for _, tt := range tests {
		got, err := StringToLevel(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestLogger_VerbosityGatesDebugLines(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := New("cdpconn", &buf)

	log.V(1).Info("hidden")
	log.Info("shown", "port", 9222)
	log.Flush()

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, `"port": 9222`)
	assert.Contains(t, out, "cdpconn")

	buf.Reset()
	log.SetVerbosity(1)
	log.V(1).Info("now visible")
	log.V(2).Info("still hidden")
	log.Flush()

	assert.Contains(t, buf.String(), "now visible")
	assert.NotContains(t, buf.String(), "still hidden")
}

func TestLogger_AddLevelFlag(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := New("cdpconn", &buf)

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	log.AddLevelFlag(fs)
	require.NoError(t, fs.Parse([]string{"-v", "2"}))

	log.V(2).Info("debug detail")
	log.Flush()
	assert.Contains(t, buf.String(), "debug detail")

	assert.Error(t, fs.Parse([]string{"--verbosity", "nope"}))
}
