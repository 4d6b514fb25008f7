package daemon

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/welinkai/llmgateway/internal/config"
)

func TestNewLogger_WritesRotatingFile(t *testing.T) {
	dir := t.TempDir()
	logger, closer := NewLogger(config.LogConfig{File: "gw.log", MaxSizeMB: 1}, dir, false)

	logger.Info().Str("k", "v").Msg("hello")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "gw.log"))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	line := string(data)
	for _, want := range []string{`"message":"hello"`, `"service":"llmgateway"`, `"k":"v"`} {
		if !strings.Contains(line, want) {
			t.Errorf("log line %q missing %s", line, want)
		}
	}
}

func TestNewLogger_DefaultFilename(t *testing.T) {
	dir := t.TempDir()
	logger, closer := NewLogger(config.LogConfig{}, dir, false)
	logger.Info().Msg("x")
	closer.Close()

	if _, err := os.Stat(filepath.Join(dir, config.DefaultLogFilename)); err != nil {
		t.Fatalf("expected default log file: %v", err)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"trace":   zerolog.TraceLevel,
		"DEBUG":   zerolog.DebugLevel,
		" info ":  zerolog.InfoLevel,
		"warning": zerolog.WarnLevel,
		"warn":    zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"fatal":   zerolog.FatalLevel,
		"bogus":   zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %v; want %v", in, got, want)
		}
	}
}
