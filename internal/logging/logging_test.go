package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":    zapcore.DebugLevel,
		"INFO":     zapcore.InfoLevel,
		"":         zapcore.InfoLevel,
		"WARNING":  zapcore.WarnLevel,
		"error":    zapcore.ErrorLevel,
		"CRITICAL": zapcore.DPanicLevel,
	}
	for in, want := range cases {
		got, err := Level(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
	_, err := Level("TRACE")
	require.Error(t, err)
}

func TestNew(t *testing.T) {
	log, err := New("WARNING", "production")
	require.NoError(t, err)
	require.False(t, log.Core().Enabled(zapcore.InfoLevel))
	require.True(t, log.Core().Enabled(zapcore.WarnLevel))

	dev, err := New("DEBUG", "development")
	require.NoError(t, err)
	require.True(t, dev.Core().Enabled(zapcore.DebugLevel))

	_, err = New("LOUD", "development")
	require.Error(t, err)
}
