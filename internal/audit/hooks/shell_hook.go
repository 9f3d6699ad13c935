package hooks

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ShellHook runs a script with the event passed in as ARCS_-prefixed
// environment variables.
type ShellHook struct {
	id      string
	command string
	args    []string
	timeout time.Duration
}

// NewShellHook creates a shell hook that runs scriptPath via /bin/bash.
func NewShellHook(id, scriptPath string, timeout time.Duration) *ShellHook {
	return &ShellHook{id: id, command: "/bin/bash", args: []string{scriptPath}, timeout: timeout}
}

func (h *ShellHook) Execute(ctx context.Context, event Event) error {
	execCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, h.command, h.args...)
	cmd.Env = append(cmd.Env, h.buildEnv(event)...)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("shell hook %s: %w", h.id, err)
	}
	return nil
}

func (h *ShellHook) Type() string { return "shell" }
func (h *ShellHook) ID() string   { return h.id }

func (h *ShellHook) buildEnv(event Event) []string {
	env := []string{
		"ARCS_EVENT_TYPE=" + string(event.Type),
		fmt.Sprintf("ARCS_TIMESTAMP=%d", event.Timestamp),
		"ARCS_SEVERITY=" + event.Severity,
	}
	if event.SubjectID != "" {
		env = append(env, "ARCS_SUBJECT_ID="+event.SubjectID)
	}
	for k, v := range event.Details {
		env = append(env, "ARCS_"+strings.ToUpper(k)+"="+fmt.Sprintf("%v", v))
	}
	return env
}
