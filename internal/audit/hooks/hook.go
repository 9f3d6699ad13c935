// Package hooks fans audit events out to external sinks: a shell script, a
// webhook, or structured stdio output. The audit logger triggers registered
// hooks for its surfaced severities; hooks never gate or delay the write to
// the audit file itself.
package hooks

import (
	"context"
)

// Hook receives an Event and reacts to it. Execute errors are logged by the
// manager and never propagate back to the audit write path.
type Hook interface {
	Execute(ctx context.Context, event Event) error
	Type() string
	ID() string
}

// Config controls the manager's execution pool and optional stdio sink.
type Config struct {
	Timeout     string `mapstructure:"timeout"`
	Concurrency int    `mapstructure:"concurrency"`
	StdioFormat string `mapstructure:"stdio_format"` // "json", "env", or ""
}

// DefaultConfig returns sensible defaults for a server started without overrides.
func DefaultConfig() Config {
	return Config{
		Timeout:     "30s",
		Concurrency: 10,
		StdioFormat: "",
	}
}
