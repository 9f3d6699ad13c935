package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/arcs-rmm/relay/internal/device"
	"github.com/arcs-rmm/relay/internal/session"
)

func newTestDeps(t *testing.T) Deps {
	t.Helper()
	reg, err := device.Open(filepath.Join(t.TempDir(), "devices.db"))
	if err != nil {
		t.Fatalf("device.Open: %v", err)
	}
	t.Cleanup(func() { reg.Close() })
	return Deps{Devices: reg, Sessions: session.NewManager(time.Minute)}
}

func TestHealthReportsSessionCount(t *testing.T) {
	deps := newTestDeps(t)
	deps.Sessions.Create("d1", session.DeviceInfo{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	NewRouter(deps).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Status != "ok" || resp.Sessions != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestRegisterDeviceSucceedsOnce(t *testing.T) {
	deps := newTestDeps(t)
	body, _ := json.Marshal(registerRequest{DeviceID: "d1", DeviceSecret: "s1", DeviceModel: "Pixel 7"})

	req := httptest.NewRequest(http.MethodPost, "/api/devices/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	NewRouter(deps).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	req2 := httptest.NewRequest(http.MethodPost, "/api/devices/register", bytes.NewReader(body))
	rec2 := httptest.NewRecorder()
	NewRouter(deps).ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusConflict {
		t.Fatalf("expected 409 on re-registration, got %d", rec2.Code)
	}
}

func TestRegisterDeviceRejectsMissingFields(t *testing.T) {
	deps := newTestDeps(t)
	body, _ := json.Marshal(registerRequest{DeviceID: "d1"})

	req := httptest.NewRequest(http.MethodPost, "/api/devices/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	NewRouter(deps).ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
