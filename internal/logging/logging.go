package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

var logLevel = new(slog.LevelVar)

// Configure installs a text handler on w (stderr when nil) as the default
// logger. The level can be changed later with SetLevel.
func Configure(level string, w io.Writer) error {
	if err := SetLevel(level); err != nil {
		return err
	}
	if w == nil {
		w = os.Stderr
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel})))
	return nil
}

func SetLevel(level string) error {
	l, err := ParseLevel(level)
	if err != nil {
		return err
	}
	logLevel.Set(l)
	return nil
}

func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("logging: unknown level %q", s)
}
