package device

import (
	"path/filepath"
	"testing"
)

func openTestRegistry(t *testing.T) *Registry {
	t.Helper()
	path := filepath.Join(t.TempDir(), "devices.db")
	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestRegisterAndAuthenticate(t *testing.T) {
	r := openTestRegistry(t)
	created, err := r.Register("d1", "s1", "Pixel 7")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !created {
		t.Fatalf("expected device to be created")
	}

	ok, err := r.Authenticate("d1", "s1")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if !ok {
		t.Fatalf("expected authentication to succeed")
	}

	ok, err = r.Authenticate("d1", "wrong")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if ok {
		t.Fatalf("expected authentication to fail with wrong secret")
	}
}

func TestRegisterDuplicateFails(t *testing.T) {
	r := openTestRegistry(t)
	if _, err := r.Register("d1", "s1", "Pixel 7"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	created, err := r.Register("d1", "s2", "Pixel 8")
	if err != nil {
		t.Fatalf("Register (dup): %v", err)
	}
	if created {
		t.Fatalf("expected duplicate registration to fail")
	}
	rec, ok, err := r.Get("d1")
	if err != nil || !ok {
		t.Fatalf("expected original record to survive, err=%v ok=%v", err, ok)
	}
	if rec.Secret != "s1" {
		t.Fatalf("secret must be immutable, got %q", rec.Secret)
	}
}

func TestAuthenticateCaseSensitive(t *testing.T) {
	r := openTestRegistry(t)
	if _, err := r.Register("d1", "s1", "Pixel 7"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	ok, err := r.Authenticate("D1", "s1")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if ok {
		t.Fatalf("expected case-sensitive device-id lookup to fail")
	}
}

func TestDeactivateDeniesFurtherAuth(t *testing.T) {
	r := openTestRegistry(t)
	if _, err := r.Register("d1", "s1", "Pixel 7"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	ok, err := r.Deactivate("d1")
	if err != nil || !ok {
		t.Fatalf("Deactivate: ok=%v err=%v", ok, err)
	}
	auth, err := r.Authenticate("d1", "s1")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if auth {
		t.Fatalf("expected deactivated device to fail authentication")
	}
}

func TestAuthenticateUnknownDevice(t *testing.T) {
	r := openTestRegistry(t)
	ok, err := r.Authenticate("ghost", "anything")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if ok {
		t.Fatalf("expected unknown device to fail authentication")
	}
}

func TestRegistrySurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "devices.db")
	r1, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := r1.Register("d1", "s1", "Pixel 7"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer r2.Close()
	ok, err := r2.Authenticate("d1", "s1")
	if err != nil {
		t.Fatalf("Authenticate after reopen: %v", err)
	}
	if !ok {
		t.Fatalf("expected record to survive restart")
	}
}
