// Package logger holds the process-wide zerolog logger.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// Log is the global logger instance. It discards everything until Init is called.
	Log = zerolog.Nop()

	// fileWriter is the file output for logging (with rotation)
	fileWriter *lumberjack.Logger
)

// LoggingConfig holds the rotation settings of the log file.
type LoggingConfig struct {
	MaxSizeMB  int
	MaxAgeDays int
	MaxBackups int
}

// GetMaxSizeMB returns the max size in MB, defaulting to 20 if not set.
func (c *LoggingConfig) GetMaxSizeMB() int {
	if c == nil || c.MaxSizeMB <= 0 {
		return 20
	}
	return c.MaxSizeMB
}

// GetMaxAgeDays returns the max age in days, defaulting to 7 if not set.
func (c *LoggingConfig) GetMaxAgeDays() int {
	if c == nil || c.MaxAgeDays <= 0 {
		return 7
	}
	return c.MaxAgeDays
}

// GetMaxBackups returns the max backups, defaulting to 3 if not set.
func (c *LoggingConfig) GetMaxBackups() int {
	if c == nil || c.MaxBackups <= 0 {
		return 3
	}
	return c.MaxBackups
}

func level(debug bool) zerolog.Level {
	if debug {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}

func consoleWriter() zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}
}

// Init initializes console-only logging on stderr.
func Init(debug bool) {
	Log = zerolog.New(consoleWriter()).
		Level(level(debug)).
		With().
		Timestamp().
		Logger()
}

// InitWithFile initializes console logging plus a rotating JSON log file in
// logsDir. An empty logsDir behaves like Init.
func InitWithFile(debug bool, logsDir string, cfg *LoggingConfig) error {
	if logsDir == "" {
		Init(debug)
		return nil
	}

	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return fmt.Errorf("create logs directory %q: %w", logsDir, err)
	}

	fileWriter = &lumberjack.Logger{
		Filename:   filepath.Join(logsDir, "useintest.log"),
		MaxSize:    cfg.GetMaxSizeMB(), // MB
		MaxAge:     cfg.GetMaxAgeDays(),
		MaxBackups: cfg.GetMaxBackups(),
		LocalTime:  true,
	}

	// Console uses human-readable format, file uses JSON
	multi := io.MultiWriter(consoleWriter(), fileWriter)

	Log = zerolog.New(multi).
		Level(level(debug)).
		With().
		Timestamp().
		Logger()
	return nil
}

// CloseFileWriter closes the log file, if any.
func CloseFileWriter() error {
	if fileWriter != nil {
		err := fileWriter.Close()
		fileWriter = nil
		return err
	}
	return nil
}

// LogFilePath returns the current log file, or "" when file logging is off.
func LogFilePath() string {
	if fileWriter != nil {
		return fileWriter.Filename
	}
	return ""
}

// Component returns a child of Log tagged with the component name.
func Component(name string) zerolog.Logger {
	return Log.With().Str("component", name).Logger()
}
