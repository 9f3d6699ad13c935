package message

import (
	"encoding/json"
	"testing"
)

func TestDecodeAuthRequest(t *testing.T) {
	raw := []byte(`{"type":"auth_request","device_id":"d1","secret":"s1","device_info":{"model":"P7","android_version":"14","screen_width":1080,"screen_height":2400,"dpi":420},"timestamp":1}`)
	kind, v, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if kind != KindAuthRequest {
		t.Fatalf("unexpected kind: %s", kind)
	}
	m, ok := v.(*AuthRequest)
	if !ok {
		t.Fatalf("unexpected type: %T", v)
	}
	if m.DeviceID != "d1" || m.Secret != "s1" || m.DeviceInfo.Model != "P7" {
		t.Fatalf("unexpected decoded value: %+v", m)
	}
}

func TestDecodeAuthRequestMissingFields(t *testing.T) {
	raw := []byte(`{"type":"auth_request","device_id":"d1"}`)
	if _, _, err := Decode(raw); err == nil {
		t.Fatalf("expected error for missing secret")
	}
}

func TestDecodeMissingType(t *testing.T) {
	if _, _, err := Decode([]byte(`{"device_id":"d1"}`)); err == nil {
		t.Fatalf("expected error for missing type")
	}
}

func TestDecodeUnknownType(t *testing.T) {
	if _, _, err := Decode([]byte(`{"type":"frobnicate"}`)); err == nil {
		t.Fatalf("expected error for unknown type")
	}
}

func TestDecodeTouchRequiresCoordinates(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		ok   bool
	}{
		{"tap-with-xy", `{"type":"touch","action":"tap","x":1,"y":2}`, true},
		{"swipe-with-range", `{"type":"touch","action":"swipe","start_x":1,"start_y":2,"end_x":3,"end_y":4}`, true},
		{"missing-coords", `{"type":"touch","action":"tap"}`, false},
		{"bad-action", `{"type":"touch","action":"nonsense","x":1,"y":2}`, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, _, err := Decode([]byte(c.raw))
			if c.ok && err != nil {
				t.Fatalf("expected success, got %v", err)
			}
			if !c.ok && err == nil {
				t.Fatalf("expected error, got none")
			}
		})
	}
}

func TestDecodeKeyActionEnum(t *testing.T) {
	if _, _, err := Decode([]byte(`{"type":"key","action":"text","text":"hi"}`)); err != nil {
		t.Fatalf("expected valid key command: %v", err)
	}
	if _, _, err := Decode([]byte(`{"type":"key","action":"bogus"}`)); err == nil {
		t.Fatalf("expected error for bad key action")
	}
}

func TestDecodeSystemActionEnum(t *testing.T) {
	if _, _, err := Decode([]byte(`{"type":"system","action":"home"}`)); err != nil {
		t.Fatalf("expected valid system command: %v", err)
	}
	if _, _, err := Decode([]byte(`{"type":"system","action":"reboot"}`)); err == nil {
		t.Fatalf("expected error for unsupported system action")
	}
}

func TestDecodeJoinSession(t *testing.T) {
	raw := []byte(`{"type":"join_session","session_id":"ABCD1234","jwt_token":"x.y.z"}`)
	kind, v, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if kind != KindJoinSession {
		t.Fatalf("unexpected kind %s", kind)
	}
	m := v.(*JoinSession)
	if m.SessionID != "ABCD1234" || m.JWTToken != "x.y.z" {
		t.Fatalf("unexpected decode: %+v", m)
	}
}

func TestEncodeAuthResponseRoundTrip(t *testing.T) {
	resp := &AuthResponse{
		Type:       string(KindAuthResponse),
		Success:    true,
		SessionID:  "ABCD1234",
		JWTToken:   "tok",
		ExpiresAt:  123,
		ServerTime: 456,
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	kind, err := KindOf(raw)
	if err != nil {
		t.Fatalf("KindOf: %v", err)
	}
	if kind != KindAuthResponse {
		t.Fatalf("unexpected kind: %s", kind)
	}
}

func TestIsCommandKind(t *testing.T) {
	for _, k := range []Kind{KindTouch, KindKey, KindSystem, KindAppControl, KindMacro, KindAI} {
		if !IsCommandKind(k) {
			t.Fatalf("expected %s to be a command kind", k)
		}
	}
	for _, k := range []Kind{KindPing, KindAuthRequest, KindStatus} {
		if IsCommandKind(k) {
			t.Fatalf("expected %s NOT to be a command kind", k)
		}
	}
}

func TestNewErrorMessage(t *testing.T) {
	e := NewError(ErrRateLimit, "too many requests")
	if e.Type != string(KindError) || e.Code != ErrRateLimit {
		t.Fatalf("unexpected error message: %+v", e)
	}
}
