package message

import (
	"encoding/json"
	"fmt"

	protoerr "github.com/arcs-rmm/relay/internal/errors"
)

type envelope struct {
	Type string `json:"type"`
}

// KindOf extracts just the "type" discriminator from a raw control message, without
// decoding the rest of the payload.
func KindOf(raw []byte) (Kind, error) {
	var e envelope
	if err := json.Unmarshal(raw, &e); err != nil {
		return "", protoerr.NewMessageError("decode.kind", err)
	}
	if e.Type == "" {
		return "", protoerr.NewMessageError("decode.kind", fmt.Errorf("missing required field \"type\""))
	}
	return Kind(e.Type), nil
}

// Decode inspects raw's "type" field and unmarshals into the matching concrete struct,
// returning it as the kind plus an interface{} the caller type-switches or type-asserts on.
// Structural validation (required-field presence, known action enums) happens here, at the
// single decode boundary; everything downstream operates on an already-valid value.
func Decode(raw []byte) (Kind, any, error) {
	kind, err := KindOf(raw)
	if err != nil {
		return "", nil, err
	}

	switch kind {
	case KindAuthRequest:
		var m AuthRequest
		if err := json.Unmarshal(raw, &m); err != nil {
			return kind, nil, protoerr.NewMessageError("decode.auth_request", err)
		}
		if m.DeviceID == "" || m.Secret == "" {
			return kind, nil, protoerr.NewMessageError("decode.auth_request", fmt.Errorf("missing device_id or secret"))
		}
		return kind, &m, nil

	case KindDeviceHello:
		var m DeviceHello
		if err := json.Unmarshal(raw, &m); err != nil {
			return kind, nil, protoerr.NewMessageError("decode.device_hello", err)
		}
		if m.DeviceID == "" {
			return kind, nil, protoerr.NewMessageError("decode.device_hello", fmt.Errorf("missing device_id"))
		}
		return kind, &m, nil

	case KindJoinSession:
		var m JoinSession
		if err := json.Unmarshal(raw, &m); err != nil {
			return kind, nil, protoerr.NewMessageError("decode.join_session", err)
		}
		if m.SessionID == "" || m.JWTToken == "" {
			return kind, nil, protoerr.NewMessageError("decode.join_session", fmt.Errorf("missing session_id or jwt_token"))
		}
		return kind, &m, nil

	case KindTouch:
		var m TouchCommand
		if err := json.Unmarshal(raw, &m); err != nil {
			return kind, nil, protoerr.NewMessageError("decode.touch", err)
		}
		if !touchActions[m.Action] {
			return kind, nil, protoerr.NewMessageError("decode.touch", fmt.Errorf("unsupported action %q", m.Action))
		}
		hasPoint := m.X != nil && m.Y != nil
		hasSwipe := m.StartX != nil && m.StartY != nil && m.EndX != nil && m.EndY != nil
		if !hasPoint && !hasSwipe {
			return kind, nil, protoerr.NewMessageError("decode.touch", fmt.Errorf("missing coordinates"))
		}
		return kind, &m, nil

	case KindKey:
		var m KeyCommand
		if err := json.Unmarshal(raw, &m); err != nil {
			return kind, nil, protoerr.NewMessageError("decode.key", err)
		}
		if !keyActions[m.Action] {
			return kind, nil, protoerr.NewMessageError("decode.key", fmt.Errorf("unsupported action %q", m.Action))
		}
		return kind, &m, nil

	case KindSystem:
		var m SystemCommand
		if err := json.Unmarshal(raw, &m); err != nil {
			return kind, nil, protoerr.NewMessageError("decode.system", err)
		}
		if !systemActions[m.Action] {
			return kind, nil, protoerr.NewMessageError("decode.system", fmt.Errorf("unsupported action %q", m.Action))
		}
		return kind, &m, nil

	case KindAppControl:
		var m AppControlCommand
		if err := json.Unmarshal(raw, &m); err != nil {
			return kind, nil, protoerr.NewMessageError("decode.app_control", err)
		}
		if m.Action == "" {
			return kind, nil, protoerr.NewMessageError("decode.app_control", fmt.Errorf("missing action"))
		}
		return kind, &m, nil

	case KindMacro:
		var m MacroCommand
		if err := json.Unmarshal(raw, &m); err != nil {
			return kind, nil, protoerr.NewMessageError("decode.macro", err)
		}
		if m.Name == "" {
			return kind, nil, protoerr.NewMessageError("decode.macro", fmt.Errorf("missing name"))
		}
		return kind, &m, nil

	case KindAI:
		var m AICommand
		if err := json.Unmarshal(raw, &m); err != nil {
			return kind, nil, protoerr.NewMessageError("decode.ai", err)
		}
		if m.Op == "" {
			return kind, nil, protoerr.NewMessageError("decode.ai", fmt.Errorf("missing op"))
		}
		return kind, &m, nil

	case KindCommandResult:
		var m CommandResult
		if err := json.Unmarshal(raw, &m); err != nil {
			return kind, nil, protoerr.NewMessageError("decode.command_result", err)
		}
		if m.OriginalType == "" {
			return kind, nil, protoerr.NewMessageError("decode.command_result", fmt.Errorf("missing original_type"))
		}
		return kind, &m, nil

	case KindPing:
		var m Ping
		_ = json.Unmarshal(raw, &m)
		return kind, &m, nil

	case KindPong:
		var m Pong
		_ = json.Unmarshal(raw, &m)
		return kind, &m, nil

	case KindStatus:
		var m Status
		_ = json.Unmarshal(raw, &m)
		return kind, &m, nil

	case KindError:
		var m ErrorMessage
		if err := json.Unmarshal(raw, &m); err != nil {
			return kind, nil, protoerr.NewMessageError("decode.error", err)
		}
		return kind, &m, nil

	default:
		return kind, nil, protoerr.NewMessageError("decode", fmt.Errorf("unrecognized type %q", kind))
	}
}
