package config

import (
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rshade/statdash/internal/logging"
)

// Logger is used by this package before the command logger exists, for
// example while reading the config file itself.
//
//nolint:gochecknoglobals // Logger is intentionally global for application-wide structured logging
var Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
	Level(zerolog.WarnLevel).
	With().
	Timestamp().
	Logger()

// logMu guards Logger.
//
//nolint:gochecknoglobals // Guards the global logger state
var logMu sync.RWMutex

// SetLogger replaces the package logger once the command logger is built.
func SetLogger(l zerolog.Logger) {
	logMu.Lock()
	defer logMu.Unlock()
	Logger = l
}

// GetLogger returns the package logger.
func GetLogger() zerolog.Logger {
	logMu.RLock()
	defer logMu.RUnlock()
	return Logger
}

// ToLoggingConfig converts config.LoggingConfig to logging.Config.
//
// The conversion applies these rules:
//   - Level, Format are copied directly ("text" is read as console)
//   - If File is set, Output becomes "file" and File is passed through
//   - If File is empty, Output defaults to "stderr"
func (lc *LoggingConfig) ToLoggingConfig() logging.Config {
	output := logging.OutputStderr
	if lc.File != "" {
		output = outputTypeFile
	}
	format := lc.Format
	if format == "text" {
		format = logging.FormatConsole
	}

	return logging.Config{
		Level:  lc.Level,
		Format: format,
		Output: output,
		File:   lc.File,
	}
}

// GetLoggingConfig returns a copy of the Logging section of the global
// configuration. Flag overrides such as --debug are applied by the caller.
func GetLoggingConfig() LoggingConfig {
	return GetGlobalConfig().Logging
}
