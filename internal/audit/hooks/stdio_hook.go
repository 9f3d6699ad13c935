package hooks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// StdioHook writes event data to stderr, as "json" or "env" formatted lines.
type StdioHook struct {
	id     string
	format string
	output *os.File
}

// NewStdioHook creates a stdio hook writing to stderr.
func NewStdioHook(id, format string) *StdioHook {
	return &StdioHook{id: id, format: format, output: os.Stderr}
}

func (h *StdioHook) Execute(ctx context.Context, event Event) error {
	switch h.format {
	case "json":
		return h.outputJSON(event)
	case "env":
		return h.outputEnv(event)
	default:
		return fmt.Errorf("stdio hook %s: unsupported format: %s", h.id, h.format)
	}
}

func (h *StdioHook) Type() string { return "stdio" }
func (h *StdioHook) ID() string   { return h.id }

func (h *StdioHook) outputJSON(event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("stdio hook %s: marshal: %w", h.id, err)
	}
	_, err = fmt.Fprintf(h.output, "ARCS_AUDIT_EVENT: %s\n", data)
	return err
}

func (h *StdioHook) outputEnv(event Event) error {
	lines := []string{
		"ARCS_EVENT_TYPE=" + string(event.Type),
		fmt.Sprintf("ARCS_TIMESTAMP=%d", event.Timestamp),
		"ARCS_SEVERITY=" + event.Severity,
	}
	if event.SubjectID != "" {
		lines = append(lines, "ARCS_SUBJECT_ID="+event.SubjectID)
	}
	for k, v := range event.Details {
		lines = append(lines, "ARCS_"+strings.ToUpper(k)+"="+fmt.Sprintf("%v", v))
	}
	lines = append(lines, "")
	for _, l := range lines {
		if _, err := fmt.Fprintln(h.output, l); err != nil {
			return fmt.Errorf("stdio hook %s: write: %w", h.id, err)
		}
	}
	return nil
}
