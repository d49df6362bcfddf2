package logging

import (
	"context"

	"github.com/alexisbeaulieu97/actionflow/internal/ports"
)

// NoOpLogger drops every entry. Tests and optional collaborators use it.
type NoOpLogger struct{}

func (*NoOpLogger) Debug(context.Context, string, ...interface{}) {}
func (*NoOpLogger) Info(context.Context, string, ...interface{})  {}
func (*NoOpLogger) Warn(context.Context, string, ...interface{})  {}
func (*NoOpLogger) Error(context.Context, string, ...interface{}) {}

func (n *NoOpLogger) With(...interface{}) ports.Logger { return n }

// NewNoOpLogger returns a logger that discards everything.
func NewNoOpLogger() ports.Logger {
	return &NoOpLogger{}
}

// OrNoOp returns logger, or a NoOpLogger when logger is nil.
func OrNoOp(logger ports.Logger) ports.Logger {
	if logger == nil {
		return &NoOpLogger{}
	}
	return logger
}
