package daemon

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/welinkai/llmgateway/internal/config"
)

// NewLogger builds the daemon logger. JSON lines always go to a rotating
// file under dataDir; foreground runs also get console output. The returned
// closer releases the log file.
func NewLogger(lc config.LogConfig, dataDir string, foreground bool) (zerolog.Logger, io.Closer) {
	name := lc.File
	if name == "" {
		name = config.DefaultLogFilename
	}
	if !filepath.IsAbs(name) {
		name = filepath.Join(dataDir, name)
	}

	file := &lumberjack.Logger{
		Filename:   name,
		MaxSize:    lc.MaxSizeMB,
		MaxBackups: lc.MaxBackups,
		MaxAge:     lc.MaxAgeDays,
		Compress:   lc.Compress,
	}

	writers := []io.Writer{file}
	if foreground {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"})
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		With().
		Timestamp().
		Str("service", "llmgateway").
		Logger()
	return logger, file
}

// ParseLogLevel converts a config log level to a zerolog.Level. Unknown
// values map to info.
func ParseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}
