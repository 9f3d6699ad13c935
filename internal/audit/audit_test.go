package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func openTestLogger(t *testing.T) (*Logger, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.jsonl")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l, path
}

func readEntries(t *testing.T, path string) []Entry {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	var out []Entry
	s := bufio.NewScanner(f)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			t.Fatalf("bad json line: %v", err)
		}
		out = append(out, e)
	}
	return out
}

func TestLogAppendsEntry(t *testing.T) {
	l, path := openTestLogger(t)
	l.Log(EventSessionStart, SeverityInfo, "session-1", "session created", map[string]any{"device_id": "d1"})

	entries := readEntries(t, path)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Event != EventSessionStart || entries[0].SubjectID != "session-1" {
		t.Fatalf("unexpected entry: %+v", entries[0])
	}
}

func TestLogRedactsSensitiveDetails(t *testing.T) {
	l, path := openTestLogger(t)
	l.Log(EventAuthFailure, SeverityWarning, "d1", "auth failed", map[string]any{
		"jwt_token": "super-secret-token",
		"secret":    "device-secret",
		"password":  "hunter2",
		"device_id": "d1",
	})

	entries := readEntries(t, path)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry")
	}
	details := entries[0].Details
	for _, k := range []string{"jwt_token", "secret", "password"} {
		if details[k] != redactedPlaceholder {
			t.Fatalf("expected %s redacted, got %v", k, details[k])
		}
	}
	if details["device_id"] != "d1" {
		t.Fatalf("unexpected non-sensitive field mutated: %v", details["device_id"])
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if strings.Contains(string(raw), "super-secret-token") || strings.Contains(string(raw), "hunter2") {
		t.Fatalf("raw audit file leaked a secret value")
	}
}

func TestLogNilReceiverIsNoOp(t *testing.T) {
	var l *Logger
	l.Log(EventSessionStart, SeverityInfo, "x", "msg", nil)
	if l.DroppedCount() != -1 {
		t.Fatalf("expected -1 for nil logger")
	}
	if err := l.Close(); err != nil {
		t.Fatalf("expected nil-safe close, got %v", err)
	}
}

func TestRedactPreservesInputMap(t *testing.T) {
	in := map[string]any{"secret": "s", "ok": "fine"}
	out := Redact(in)
	if in["secret"] != "s" {
		t.Fatalf("Redact must not mutate its input")
	}
	if out["secret"] != redactedPlaceholder {
		t.Fatalf("expected redaction in output")
	}
}
