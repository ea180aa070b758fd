package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigure(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	require.NoError(t, Configure("warn", &buf))

	slog.Info("engine: hidden")
	slog.Warn("engine: shown", "tx", "abc")
	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "engine: shown")
	require.Contains(t, buf.String(), "tx=abc")

	require.NoError(t, SetLevel("debug"))
	slog.Debug("engine: now visible")
	require.Contains(t, buf.String(), "now visible")
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("WARNING")
	require.NoError(t, err)
	require.Equal(t, slog.LevelWarn, l)

	_, err = ParseLevel("loud")
	require.Error(t, err)
}
