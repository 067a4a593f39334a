// Package logging builds the logrus logger shared by every harsh component.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/MajorBarnulf/harsh/config"
)

// New creates a logger from the log section of the configuration. The
// returned closer releases the output file, if any.
func New(cfg config.LogConfig) (*logrus.Logger, io.Closer, error) {
	logger := logrus.New()

	if err := SetLevel(logger, cfg.Level); err != nil {
		return nil, nil, err
	}

	switch cfg.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			ForceColors:   cfg.Color,
			DisableColors: !cfg.Color,
		})
	default:
		return nil, nil, fmt.Errorf("%w: %s", config.ErrInvalidLogFormat, cfg.Format)
	}

	var closer io.Closer = nopCloser{}
	switch strings.ToLower(cfg.Output) {
	case "", "stdout":
		logger.SetOutput(os.Stdout)
	case "stderr":
		logger.SetOutput(os.Stderr)
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		logger.SetOutput(file)
		closer = file
	}

	if len(cfg.Fields) > 0 {
		logger.AddHook(&fieldsHook{fields: logrus.Fields(cfg.Fields)})
	}

	return logger, closer, nil
}

// SetLevel changes the level of an existing logger.
func SetLevel(logger *logrus.Logger, level config.LogLevel) error {
	if level == "" {
		level = config.LogLevelInfo
	}
	parsed, err := logrus.ParseLevel(string(level))
	if err != nil {
		return fmt.Errorf("%w: %s", config.ErrInvalidLogLevel, level)
	}
	logger.SetLevel(parsed)
	return nil
}

// Discard returns a logger that drops everything, for tests.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// fieldsHook attaches static fields to every entry.
type fieldsHook struct {
	fields logrus.Fields
}

func (h *fieldsHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *fieldsHook) Fire(entry *logrus.Entry) error {
	for k, v := range h.fields {
		if _, exists := entry.Data[k]; !exists {
			entry.Data[k] = v
		}
	}
	return nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
