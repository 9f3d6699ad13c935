package commandrouter

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/arcs-rmm/relay/internal/audit"
	"github.com/arcs-rmm/relay/internal/protocol/message"
	"github.com/arcs-rmm/relay/internal/ratelimit"
)

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.log")
	log, err := audit.Open(path)
	if err != nil {
		t.Fatalf("audit.Open: %v", err)
	}
	t.Cleanup(func() { log.Close() })
	return New(ratelimit.New(ratelimit.DefaultConfigs), log)
}

func touchPayload(x, y int) []byte {
	b, _ := json.Marshal(map[string]any{
		"type":   "touch",
		"action": "tap",
		"x":      x,
		"y":      y,
	})
	return b
}

func TestRouteToDeviceAllowsUpToCapacityThenDenies(t *testing.T) {
	r := newTestRouter(t)

	allowed := 0
	var lastDeny *message.ErrorMessage
	for i := 0; i < 101; i++ {
		forward, deny := r.RouteToDevice("S1", message.KindTouch, touchPayload(i, i))
		if forward {
			allowed++
		} else {
			lastDeny = deny
		}
	}
	if allowed != 100 {
		t.Fatalf("expected exactly 100 of 101 touch commands forwarded, got %d", allowed)
	}
	if lastDeny == nil || lastDeny.Code != message.ErrRateLimit {
		t.Fatalf("expected the 101st command denied with %s, got %+v", message.ErrRateLimit, lastDeny)
	}
}

func TestRouteToDeviceUnlimitedKindAlwaysForwards(t *testing.T) {
	r := newTestRouter(t)
	payload, _ := json.Marshal(map[string]any{"type": "system", "action": "home"})
	for i := 0; i < 50; i++ {
		forward, _ := r.RouteToDevice("S1", message.KindSystem, payload)
		if !forward {
			t.Fatalf("system commands carry no rate-limit bucket and must always forward")
		}
	}
}

func TestRouteToDeviceDoesNotMutateForwardedBytes(t *testing.T) {
	r := newTestRouter(t)
	payload, _ := json.Marshal(map[string]any{
		"type":      "auth_request",
		"device_id": "dev1",
		"secret":    "hunter2",
	})
	original := append([]byte(nil), payload...)

	forward, _ := r.RouteToDevice("S1", message.Kind("auth_request"), payload)
	if !forward {
		t.Fatalf("expected forward")
	}
	if string(payload) != string(original) {
		t.Fatalf("RouteToDevice must not mutate the bytes handed to the connection handler")
	}
}

func TestSanitizedDetailsRedactsSensitiveFields(t *testing.T) {
	payload, _ := json.Marshal(map[string]any{
		"type":      "auth_request",
		"device_id": "dev1",
		"secret":    "hunter2",
		"jwt_token": "abc.def.ghi",
	})
	details := sanitizedDetails(message.Kind("auth_request"), payload)
	if details["secret"] != "***" || details["jwt_token"] != "***" {
		t.Fatalf("expected sensitive fields redacted, got %+v", details)
	}
	if details["device_id"] != "dev1" {
		t.Fatalf("expected non-sensitive fields preserved, got %+v", details)
	}
}

func TestSanitizedDetailsHandlesNonJSON(t *testing.T) {
	details := sanitizedDetails(message.KindTouch, []byte("not json"))
	if details["kind"] != string(message.KindTouch) {
		t.Fatalf("expected kind fallback, got %+v", details)
	}
}

func TestRouteToControllerNeverDenies(t *testing.T) {
	r := newTestRouter(t)
	payload, _ := json.Marshal(map[string]any{"type": "command_result", "success": true})
	for i := 0; i < 1000; i++ {
		r.RouteToController("S1", message.Kind("command_result"), payload)
	}
	// No assertion beyond "does not panic or block": route_to_controller applies no
	// rate limiting, only logging.
}
