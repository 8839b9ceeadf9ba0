package infrastructure

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ParseLevel maps a config string onto a zerolog level, defaulting to info
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// SetupLogging configures logging to both console and a timestamped JSON file.
// Returns the log file handle (caller should close it with defer).
func SetupLogging(logDir, level string, consoleOutput bool) (zerolog.Logger, *os.File, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	timestamp := time.Now().Format("20060102_150405")
	logFilename := filepath.Join(logDir, fmt.Sprintf("ransomtrap_%s.log", timestamp))

	logFile, err := os.OpenFile(logFilename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("failed to open log file: %w", err)
	}

	writers := []io.Writer{logFile}
	if consoleOutput {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05.000"})
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(ParseLevel(level)).
		With().
		Timestamp().
		Str("service", "ransomtrap").
		Logger()

	logger.Info().Str("file", logFilename).Msg("logging initialized")

	return logger, logFile, nil
}

// NewConsoleLogger returns a console-only logger for short-lived commands
func NewConsoleLogger(level string) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		Level(ParseLevel(level)).
		With().
		Timestamp().
		Logger()
}

// CleanupOldLogs removes log files older than specified duration
func CleanupOldLogs(logDir string, maxAge time.Duration, logger zerolog.Logger) (int, error) {
	entries, err := os.ReadDir(logDir)
	if err != nil {
		return 0, fmt.Errorf("failed to read log directory: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".log" {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoff) {
			fullPath := filepath.Join(logDir, entry.Name())
			if err := os.Remove(fullPath); err != nil {
				logger.Warn().Err(err).Str("file", fullPath).Msg("failed to remove old log file")
				continue
			}
			removed++
		}
	}

	if removed > 0 {
		logger.Info().Int("removed", removed).Dur("max_age", maxAge).Msg("removed old log files")
	}

	return removed, nil
}
