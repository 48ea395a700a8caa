// Package logging builds the logrus loggers shared by pyexec components.
package logging

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

// Component names attached to log entries under the "component" field.
const (
	CompProcess = "process" // OS and WASM process backends
	CompPython  = "python"  // interpreter service
	CompCache   = "cache"   // interpreter metadata cache
	CompCLI     = "cli"     // pyexec command
)

// New returns a text logger writing to w at the given level.
// An empty level means "info".
func New(level string, w io.Writer) (*logrus.Logger, error) {
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetLevel(lvl)
	logger.SetFormatter(&logrus.TextFormatter{
		DisableColors:    true,
		DisableTimestamp: true,
	})
	return logger, nil
}

// Discard returns an entry that drops everything. Libraries use it when the
// caller did not supply a logger.
func Discard(component string) *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return For(logger, component)
}

// For returns an entry tagged with component.
func For(logger *logrus.Logger, component string) *logrus.Entry {
	return logger.WithField("component", component)
}
