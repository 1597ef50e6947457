// Package logging wraps logrus with the process-wide logger used across the
// codebase. Commands call SetupBaseLogger once at startup; ConfigureLogOutput
// optionally mirrors output into a rotated log file.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var logger = logrus.New()

const (
	logFileMaxSizeMB = 20
	logFileBackups   = 3
	logFileMaxAgeDay = 28
)

// SetupBaseLogger configures the default text formatter and log level.
func SetupBaseLogger() {
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	logger.SetLevel(logrus.InfoLevel)
}

// SetDebug toggles debug-level logging.
func SetDebug(enabled bool) {
	if enabled {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}
}

// ConfigureLogOutput mirrors log output into the rotated file at path while
// keeping stdout. An empty path leaves stdout-only logging in place.
func ConfigureLogOutput(path string) error {
	if path == "" {
		return nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	rotated := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    logFileMaxSizeMB,
		MaxBackups: logFileBackups,
		MaxAge:     logFileMaxAgeDay,
		Compress:   false,
	}
	logger.SetOutput(io.MultiWriter(os.Stdout, rotated))
	return nil
}

// Logger exposes the underlying logrus logger for integrations that need it.
func Logger() *logrus.Logger {
	return logger
}

func Debugf(format string, args ...any) {
	logger.Debugf(format, args...)
}

func Infof(format string, args ...any) {
	logger.Infof(format, args...)
}

func Warnf(format string, args ...any) {
	logger.Warnf(format, args...)
}

func Errorf(format string, args ...any) {
	logger.Errorf(format, args...)
}

// Fatalf logs and exits with status 1.
func Fatalf(format string, args ...any) {
	logger.Fatalf(format, args...)
}

// WithError returns an entry carrying err under the standard "error" key.
func WithError(err error) *logrus.Entry {
	return logger.WithError(err)
}

// WithField returns an entry carrying a single structured field.
func WithField(key string, value any) *logrus.Entry {
	return logger.WithField(key, value)
}

// WithFields returns an entry carrying the given structured fields.
func WithFields(fields logrus.Fields) *logrus.Entry {
	return logger.WithFields(fields)
}
