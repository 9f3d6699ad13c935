// Package audit implements the relay's append-only, structured security audit
// trail: one JSON object per line, serialized writes, and a redaction pass that
// guarantees tokens, secrets, and payload bytes never reach disk.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/arcs-rmm/relay/internal/audit/hooks"
	"github.com/arcs-rmm/relay/internal/logger"
)

// Event kinds, exactly the taxonomy the relay is required to record.
const (
	EventAuthSuccess        = "AUTH_SUCCESS"
	EventAuthFailure        = "AUTH_FAILURE"
	EventSessionStart       = "SESSION_START"
	EventSessionEnd         = "SESSION_END"
	EventCommandReceived    = "COMMAND_RECEIVED"
	EventPermissionDenied   = "PERMISSION_DENIED"
	EventRateLimitExceeded  = "RATE_LIMIT_EXCEEDED"
	EventEncryptionError    = "ENCRYPTION_ERROR"
	EventSuspiciousActivity = "SUSPICIOUS_ACTIVITY"
)

// Severity levels attached to each record.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

// surfacedSeverities are forced onto the operator (process) log in addition to the file,
// per "critical/error severities additionally surface on the operator stream".
var surfacedSeverities = map[Severity]bool{
	SeverityError:    true,
	SeverityCritical: true,
}

// Entry is one audit record. Details MUST already be redacted by the caller; Log redacts
// again defensively so a forgotten call site cannot leak a token to disk.
type Entry struct {
	Timestamp string         `json:"timestamp"`
	Event     string         `json:"event"`
	Severity  Severity       `json:"severity"`
	SubjectID string         `json:"subject_id,omitempty"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
}

// Logger appends audit entries to a single append-only file, one JSON object per line.
type Logger struct {
	mu      sync.Mutex
	file    *os.File
	dropped int64
	hooks   *hooks.Manager
}

// SetHooks attaches a hook manager that fans ERROR/CRITICAL entries out to
// external sinks (shell script, webhook, stdio) in addition to the file and
// operator log. Replaces any previously attached manager; nil disables hook
// fan-out.
func (l *Logger) SetHooks(m *hooks.Manager) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hooks = m
}

// Open creates or appends to the audit log at path. The directory must already exist;
// an unwritable path is a fatal configuration error (§6.5/§7.6), surfaced by the caller
// at startup rather than swallowed here.
func Open(path string) (*Logger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open audit log %s: %w", path, err)
	}
	return &Logger{file: f}, nil
}

// Log writes one audit record. Safe to call on a nil receiver (no-op), matching the
// pattern used throughout this codebase for optional diagnostic sinks.
func (l *Logger) Log(event string, severity Severity, subjectID, message string, details map[string]any) {
	if l == nil {
		return
	}
	entry := Entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Event:     event,
		Severity:  severity,
		SubjectID: subjectID,
		Message:   message,
		Details:   Redact(details),
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.Marshal(entry)
	if err != nil {
		logger.Error("audit marshal failed", "event", event, "err", err)
		l.dropped++
		return
	}
	data = append(data, '\n')
	if _, err := l.file.Write(data); err != nil {
		logger.Error("audit write failed", "event", event, "err", err)
		l.dropped++
		return
	}

	if surfacedSeverities[severity] {
		logger.Logger().Warn("audit: "+message, "event", event, "severity", string(severity), "subject_id", subjectID)
		l.hooks.Trigger(context.Background(), hooks.NewEvent(hooks.EventType(event), string(severity), subjectID, message, entry.Details))
	}
}

// DroppedCount returns the number of records that failed to write, for metrics/diagnostics.
func (l *Logger) DroppedCount() int64 {
	if l == nil {
		return -1
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped
}

// Close flushes and closes the underlying file. Safe to call on a nil receiver.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
