package message

// DeviceInfo describes the capturing device, reported at auth time.
type DeviceInfo struct {
	Model          string `json:"model"`
	AndroidVersion string `json:"android_version"`
	ScreenWidth    int    `json:"screen_width"`
	ScreenHeight   int    `json:"screen_height"`
	DPI            int    `json:"dpi"`
}

// VideoConfig describes the encoded stream a controller should expect after joining.
type VideoConfig struct {
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	FPS     int    `json:"fps"`
	Bitrate int    `json:"bitrate"`
	Codec   string `json:"codec"`
}

// AuthRequest is sent device→server to authenticate with a registered secret.
type AuthRequest struct {
	Type       string     `json:"type"`
	DeviceID   string     `json:"device_id"`
	Secret     string     `json:"secret"`
	DeviceInfo DeviceInfo `json:"device_info"`
	Timestamp  int64      `json:"timestamp"`
}

// DeviceHello is the permissive alternative to AuthRequest used by simple peers; the
// secret field is absent and, per the documented open-question decision, bypasses the
// device registry entirely.
type DeviceHello struct {
	Type       string     `json:"type"`
	DeviceID   string     `json:"device_id"`
	DeviceInfo DeviceInfo `json:"device_info"`
	Timestamp  int64      `json:"timestamp"`
}

// AuthResponse is sent server→device in answer to AuthRequest or DeviceHello.
type AuthResponse struct {
	Type       string `json:"type"`
	Success    bool   `json:"success"`
	SessionID  string `json:"session_id,omitempty"`
	JWTToken   string `json:"jwt_token,omitempty"`
	ExpiresAt  int64  `json:"expires_at,omitempty"`
	ServerTime int64  `json:"server_time"`
}

// SessionCreated is sent server→client when a new session is minted.
type SessionCreated struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

// SessionJoined is sent server→client when a controller attaches to a session.
type SessionJoined struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

// JoinSession is sent controller→server to attach to an existing session.
type JoinSession struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	JWTToken  string `json:"jwt_token"`
}

// JoinResponse is sent server→controller answering JoinSession.
type JoinResponse struct {
	Type       string      `json:"type"`
	Success    bool        `json:"success"`
	DeviceInfo *DeviceInfo `json:"device_info,omitempty"`
	VideoConfig *VideoConfig `json:"video_config,omitempty"`
}

// ControllerConnected notifies the device-leg that a controller joined.
type ControllerConnected struct {
	Type         string `json:"type"`
	ControllerID string `json:"controller_id"`
}

// ControllerDisconnected notifies the device-leg that a controller left.
type ControllerDisconnected struct {
	Type         string `json:"type"`
	ControllerID string `json:"controller_id"`
}

// DeviceDisconnected notifies controller-legs that the device-leg closed.
type DeviceDisconnected struct {
	Type     string `json:"type"`
	DeviceID string `json:"device_id"`
}

// TouchCommand is a controller→device pointer gesture.
type TouchCommand struct {
	Type   string `json:"type"`
	Action string `json:"action"`

	X *int `json:"x,omitempty"`
	Y *int `json:"y,omitempty"`

	StartX *int `json:"start_x,omitempty"`
	StartY *int `json:"start_y,omitempty"`
	EndX   *int `json:"end_x,omitempty"`
	EndY   *int `json:"end_y,omitempty"`

	DurationMS int `json:"duration_ms,omitempty"`
}

// KeyCommand is a controller→device text or keycode input.
type KeyCommand struct {
	Type        string   `json:"type"`
	Action      string   `json:"action"`
	Text        string   `json:"text,omitempty"`
	KeyCode     int      `json:"key_code,omitempty"`
	Modifiers   []string `json:"modifiers,omitempty"`
}

// SystemCommand is a controller→device system-level action (home, back, lock, ...).
type SystemCommand struct {
	Type   string `json:"type"`
	Action string `json:"action"`
}

// AppControlCommand launches, stops, or queries an app on the device.
type AppControlCommand struct {
	Type    string `json:"type"`
	Action  string `json:"action"`
	Package string `json:"package,omitempty"`
}

// MacroCommand invokes a named, pre-recorded sequence of gestures.
type MacroCommand struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// AICommand invokes an on-device AI-assisted operation (e.g. OCR).
type AICommand struct {
	Type string `json:"type"`
	Op   string `json:"op"`
}

// CommandResult is a device→controller acknowledgement for a previously forwarded command.
type CommandResult struct {
	Type         string `json:"type"`
	OriginalType string `json:"original_type"`
	Success      bool   `json:"success"`
	Message      string `json:"message,omitempty"`
}

// Ping/Pong are the heartbeat pair; pings are answered locally by the connection handler
// and are never forwarded to the peer leg.
type Ping struct {
	Type string `json:"type"`
}

type Pong struct {
	Type string `json:"type"`
}

// Status is an opaque device→controller status update, forwarded without validation;
// only the discriminator is decoded, the original bytes are relayed unmodified.
type Status struct {
	Type string `json:"type"`
}

// ErrorMessage is the envelope used for every protocol-level error reply.
type ErrorMessage struct {
	Type    string         `json:"type"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Error wire codes, per the external-interface error taxonomy.
const (
	ErrAuthFailed           = "ERR_AUTH_FAILED"
	ErrPermissionDenied     = "ERR_PERMISSION_DENIED"
	ErrDeviceBusy           = "ERR_DEVICE_BUSY"
	ErrUnsupportedOperation = "ERR_UNSUPPORTED_OPERATION"
	ErrInvalidCommand       = "ERR_INVALID_COMMAND"
	ErrRateLimit            = "ERR_RATE_LIMIT"
	ErrInternal             = "ERR_INTERNAL"
	ErrSessionNotFound      = "SESSION_NOT_FOUND"
	ErrInvalidToken         = "INVALID_TOKEN"
	ErrUnauthorized         = "UNAUTHORIZED"
)

// NewError builds an ErrorMessage with the given wire code and human-readable message.
func NewError(code, msg string) *ErrorMessage {
	return &ErrorMessage{Type: string(KindError), Code: code, Message: msg}
}
