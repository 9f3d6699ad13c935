package session

import (
	"testing"
	"time"
)

func TestCreateMintsUniqueSession(t *testing.T) {
	m := NewManager(time.Minute)
	id1, adopted, err := m.Create("d1", DeviceInfo{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if adopted {
		t.Fatalf("first create should not be an adoption")
	}
	if len(id1) != idLength {
		t.Fatalf("expected %d-char session id, got %q", idLength, id1)
	}
}

func TestCreateStoresAndRefreshesDeviceInfo(t *testing.T) {
	m := NewManager(time.Minute)
	id, _, err := m.Create("d1", DeviceInfo{Model: "P7", ScreenWidth: 1080, ScreenHeight: 2400})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	sess, _ := m.Get(id)
	if sess.DeviceInfo.Model != "P7" || sess.DeviceInfo.ScreenWidth != 1080 {
		t.Fatalf("expected device info stored, got %+v", sess.DeviceInfo)
	}

	if _, _, err := m.Create("d1", DeviceInfo{Model: "P9", ScreenWidth: 1440, ScreenHeight: 3200}); err != nil {
		t.Fatalf("Create (repeat): %v", err)
	}
	sess, _ = m.Get(id)
	if sess.DeviceInfo.Model != "P9" {
		t.Fatalf("expected device info refreshed on adoption, got %+v", sess.DeviceInfo)
	}
}

func TestCreateAdoptsExistingActiveSession(t *testing.T) {
	m := NewManager(time.Minute)
	id1, _, err := m.Create("d1", DeviceInfo{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	id2, adopted, err := m.Create("d1", DeviceInfo{})
	if err != nil {
		t.Fatalf("Create (repeat): %v", err)
	}
	if !adopted {
		t.Fatalf("expected second create for same device to adopt")
	}
	if id1 != id2 {
		t.Fatalf("adoption must return the same session id: %s != %s", id1, id2)
	}
	if m.Count() != 1 {
		t.Fatalf("expected exactly one active session for device, got %d", m.Count())
	}
}

func TestJoinAttachesController(t *testing.T) {
	m := NewManager(time.Minute)
	id, _, err := m.Create("d1", DeviceInfo{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !m.Join(id, "c1") {
		t.Fatalf("expected join to succeed")
	}
	sess, ok := m.Get(id)
	if !ok {
		t.Fatalf("expected session to exist")
	}
	if !sess.Controllers["c1"] {
		t.Fatalf("expected c1 attached")
	}
}

func TestJoinFailsForMissingSession(t *testing.T) {
	m := NewManager(time.Minute)
	if m.Join("NOSUCH01", "c1") {
		t.Fatalf("expected join against unknown session to fail")
	}
}

func TestLeaveControllerKeepsSessionAlive(t *testing.T) {
	m := NewManager(time.Minute)
	id, _, err := m.Create("d1", DeviceInfo{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	m.Join(id, "c1")
	m.LeaveController(id, "c1")
	sess, ok := m.Get(id)
	if !ok {
		t.Fatalf("expected session to remain after controller leaves")
	}
	if len(sess.Controllers) != 0 {
		t.Fatalf("expected no controllers left")
	}
}

func TestCloseRemovesSessionAndDeviceIndex(t *testing.T) {
	m := NewManager(time.Minute)
	id, _, err := m.Create("d1", DeviceInfo{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !m.Close(id) {
		t.Fatalf("expected close to succeed")
	}
	if _, ok := m.Get(id); ok {
		t.Fatalf("expected session to be gone")
	}
	// A new Create for the same device must mint a fresh session now.
	id2, adopted, err := m.Create("d1", DeviceInfo{})
	if err != nil {
		t.Fatalf("Create after close: %v", err)
	}
	if adopted {
		t.Fatalf("expected fresh session after close, not adoption")
	}
	if id2 == id {
		t.Fatalf("expected a different session id after close+recreate")
	}
}

func TestSweepExpiresIdleSessions(t *testing.T) {
	m := NewManager(100 * time.Millisecond)
	id, _, err := m.Create("d1", DeviceInfo{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	expired := m.Sweep(time.Now())
	if len(expired) != 0 {
		t.Fatalf("expected nothing expired immediately")
	}
	expired = m.Sweep(time.Now().Add(200 * time.Millisecond))
	if len(expired) != 1 || expired[0] != id {
		t.Fatalf("expected session %s to be swept, got %v", id, expired)
	}
	if _, ok := m.Get(id); ok {
		t.Fatalf("expected session removed after sweep")
	}
}
