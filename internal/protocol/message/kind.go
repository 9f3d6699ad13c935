// Package message implements the JSON control-plane codec: a discriminated
// union of message kinds carried as UTF-8 JSON objects, every one tagged with
// a "type" field. Decoding happens at this one boundary; everything downstream
// operates on the already-decoded, already-validated Go value.
package message

// Kind identifies a control-plane message variant by its wire "type" field.
type Kind string

const (
	KindAuthRequest  Kind = "auth_request"
	KindAuthResponse Kind = "auth_response"
	KindDeviceHello  Kind = "device_hello"

	KindSessionCreated Kind = "session_created"
	KindSessionJoined  Kind = "session_joined"

	KindJoinSession Kind = "join_session"
	KindJoinResponse Kind = "join_response"

	KindControllerConnected    Kind = "controller_connected"
	KindControllerDisconnected Kind = "controller_disconnected"
	KindDeviceDisconnected     Kind = "device_disconnected"

	KindTouch       Kind = "touch"
	KindKey         Kind = "key"
	KindSystem      Kind = "system"
	KindAppControl  Kind = "app_control"
	KindMacro       Kind = "macro"
	KindAI          Kind = "ai"

	KindCommandResult Kind = "command_result"

	KindPing   Kind = "ping"
	KindPong   Kind = "pong"
	KindStatus Kind = "status"
	KindError  Kind = "error"
)

// commandKinds are the controller→device control commands relayed verbatim after validation.
var commandKinds = map[Kind]bool{
	KindTouch:      true,
	KindKey:        true,
	KindSystem:     true,
	KindAppControl: true,
	KindMacro:      true,
	KindAI:         true,
}

// IsCommandKind reports whether k is one of the control commands routed through the
// command router (as opposed to session/auth/heartbeat plumbing).
func IsCommandKind(k Kind) bool { return commandKinds[k] }

// Allowed action enums, per kind, used by structural validation.
var touchActions = map[string]bool{"tap": true, "swipe": true, "long_press": true, "pinch": true}
var keyActions = map[string]bool{"text": true, "press": true, "combination": true}
var systemActions = map[string]bool{
	"home": true, "back": true, "recents": true, "notifications": true,
	"quick_settings": true, "lock": true, "screenshot": true,
}
