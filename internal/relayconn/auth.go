package relayconn

import (
	"encoding/json"
	"time"

	"github.com/arcs-rmm/relay/internal/audit"
	"github.com/arcs-rmm/relay/internal/metrics"
	"github.com/arcs-rmm/relay/internal/protocol/message"
	"github.com/arcs-rmm/relay/internal/ratelimit"
	"github.com/arcs-rmm/relay/internal/session"
)

// handleAuthRequest runs the UNAUTHENTICATED auth_request path: rate-limit, registry
// check, session create/adopt, token issue, auth_response reply.
func (c *Connection) handleAuthRequest(m *message.AuthRequest) {
	if !c.deps.Limiter.Allow(m.DeviceID, ratelimit.OpAuth) {
		metrics.IncAuthAttempt("rate_limited")
		c.deps.Audit.Log(audit.EventRateLimitExceeded, audit.SeverityInfo, m.DeviceID, "auth rate limit exceeded", nil)
		c.replyError(message.ErrRateLimit, "too many authentication attempts")
		return
	}

	ok, err := c.deps.Devices.Authenticate(m.DeviceID, m.Secret)
	if err != nil || !ok {
		metrics.IncAuthAttempt("failure")
		c.deps.Audit.Log(audit.EventAuthFailure, audit.SeverityWarning, m.DeviceID, "device authentication failed", nil)
		c.replyError(message.ErrAuthFailed, "invalid device credentials")
		// This runs on the read loop, which Close waits for, so Close gets its own goroutine.
		go c.Close(4001, "auth failed")
		return
	}

	c.completeDeviceAuth(m.DeviceID, deviceInfoFromWire(m.DeviceInfo), false)
}

// handleDeviceHello runs the permissive device_hello path: same as auth_request but the
// device registry check is bypassed entirely (the documented open-question decision), and
// the reply is session_created rather than auth_response.
func (c *Connection) handleDeviceHello(m *message.DeviceHello) {
	if !c.deps.Limiter.Allow(m.DeviceID, ratelimit.OpAuth) {
		metrics.IncAuthAttempt("rate_limited")
		c.deps.Audit.Log(audit.EventRateLimitExceeded, audit.SeverityInfo, m.DeviceID, "auth rate limit exceeded", nil)
		c.replyError(message.ErrRateLimit, "too many authentication attempts")
		return
	}
	c.completeDeviceAuth(m.DeviceID, deviceInfoFromWire(m.DeviceInfo), true)
}

func deviceInfoFromWire(d message.DeviceInfo) session.DeviceInfo {
	return session.DeviceInfo{
		Model:          d.Model,
		AndroidVersion: d.AndroidVersion,
		ScreenWidth:    d.ScreenWidth,
		ScreenHeight:   d.ScreenHeight,
		DPI:            d.DPI,
	}
}

// completeDeviceAuth creates (or adopts) the session, mints a token, registers the
// device-leg everywhere it needs to be known, and replies. hello selects the reply shape:
// session_created for device_hello, auth_response for auth_request.
func (c *Connection) completeDeviceAuth(deviceID string, info session.DeviceInfo, hello bool) {
	sessionID, adopted, err := c.deps.Sessions.Create(deviceID, info)
	if err != nil {
		c.deps.Audit.Log(audit.EventAuthFailure, audit.SeverityError, deviceID, "session creation failed", map[string]any{"error": err.Error()})
		c.replyError(message.ErrInternal, "could not create session")
		go c.Close(websocketInternalError, "session creation failed")
		return
	}

	tok, expiresAt, err := c.deps.Tokens.Issue(deviceID, sessionID, c.deps.TokenPermissions)
	if err != nil {
		c.deps.Audit.Log(audit.EventAuthFailure, audit.SeverityError, deviceID, "token issue failed", map[string]any{"error": err.Error()})
		c.replyError(message.ErrInternal, "could not issue token")
		go c.Close(websocketInternalError, "token issue failed")
		return
	}

	c.mu.Lock()
	c.state = StateAuthenticatedDevice
	c.deviceID = deviceID
	c.sessionID = sessionID
	c.setRole("device")
	c.mu.Unlock()

	c.deps.Conns.PutDevice(sessionID, c)
	c.deps.Streams.RegisterDevice(sessionID, deviceID)

	metrics.IncAuthAttempt("success")
	if adopted {
		metrics.IncSessionAdopted()
	} else {
		metrics.IncSessionCreated()
	}

	method := "auth_request"
	if hello {
		method = "device_hello"
	}
	c.deps.Audit.Log(audit.EventAuthSuccess, audit.SeverityInfo, deviceID, "device authenticated", map[string]any{"session_id": sessionID, "adopted": adopted, "method": method})
	c.deps.Audit.Log(audit.EventSessionStart, audit.SeverityInfo, sessionID, "session started", map[string]any{"device_id": deviceID, "adopted": adopted})

	if hello {
		c.replyJSON(&message.SessionCreated{Type: string(message.KindSessionCreated), SessionID: sessionID})
		return
	}
	c.replyJSON(&message.AuthResponse{
		Type:       string(message.KindAuthResponse),
		Success:    true,
		SessionID:  sessionID,
		JWTToken:   tok,
		ExpiresAt:  expiresAt.Unix(),
		ServerTime: time.Now().UTC().Unix(),
	})
}

// handleJoinSession runs the UNAUTHENTICATED join_session path: validate the token, look
// up the session, attach the controller-leg, reply, and notify the device-leg.
func (c *Connection) handleJoinSession(m *message.JoinSession) {
	claims, err := c.deps.Tokens.Validate(m.JWTToken)
	if err != nil {
		c.deps.Audit.Log(audit.EventAuthFailure, audit.SeverityWarning, m.SessionID, "controller join rejected: invalid token", nil)
		c.replyJSON(&message.JoinResponse{Type: string(message.KindJoinResponse), Success: false})
		c.replyError(message.ErrInvalidToken, "invalid or expired token")
		return
	}
	if claims.SessionID != m.SessionID {
		c.deps.Audit.Log(audit.EventAuthFailure, audit.SeverityWarning, m.SessionID, "controller join rejected: token/session mismatch", nil)
		c.replyJSON(&message.JoinResponse{Type: string(message.KindJoinResponse), Success: false})
		c.replyError(message.ErrUnauthorized, "token does not match session")
		return
	}

	sess, ok := c.deps.Sessions.Get(m.SessionID)
	if !ok || !sess.Active {
		c.replyJSON(&message.JoinResponse{Type: string(message.KindJoinResponse), Success: false})
		c.replyError(message.ErrSessionNotFound, "session not found")
		return
	}

	controllerID := c.id
	if !c.deps.Sessions.Join(m.SessionID, controllerID) {
		c.replyJSON(&message.JoinResponse{Type: string(message.KindJoinResponse), Success: false})
		c.replyError(message.ErrSessionNotFound, "session not found")
		return
	}

	c.mu.Lock()
	c.state = StateAuthenticatedController
	c.sessionID = m.SessionID
	c.controllerID = controllerID
	c.setRole("controller")
	c.mu.Unlock()

	c.deps.Streams.RegisterController(m.SessionID, controllerID)
	c.deps.Conns.PutController(m.SessionID, controllerID, c)
	c.startDrain(m.SessionID, controllerID)

	metrics.IncControllerConnected()
	c.deps.Audit.Log(audit.EventAuthSuccess, audit.SeverityInfo, m.SessionID, "controller joined", map[string]any{"controller_id": controllerID})

	videoCfg := c.deps.VideoConfig
	videoCfg.Width = sess.DeviceInfo.ScreenWidth
	videoCfg.Height = sess.DeviceInfo.ScreenHeight
	deviceInfo := message.DeviceInfo{
		Model:          sess.DeviceInfo.Model,
		AndroidVersion: sess.DeviceInfo.AndroidVersion,
		ScreenWidth:    sess.DeviceInfo.ScreenWidth,
		ScreenHeight:   sess.DeviceInfo.ScreenHeight,
		DPI:            sess.DeviceInfo.DPI,
	}
	c.replyJSON(&message.JoinResponse{
		Type:        string(message.KindJoinResponse),
		Success:     true,
		DeviceInfo:  &deviceInfo,
		VideoConfig: &videoCfg,
	})

	if dc, ok := c.deps.Conns.Device(m.SessionID); ok {
		dc.SendJSON(mustMarshal(&message.ControllerConnected{
			Type:         string(message.KindControllerConnected),
			ControllerID: controllerID,
		}))
	}
}

// replyJSON marshals v and enqueues it for delivery; marshal failure is a programming
// error (every reply type here is a fixed local struct), so it only logs.
func (c *Connection) replyJSON(v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		c.log.Error("failed to marshal outbound message", "error", err)
		return
	}
	c.SendJSON(raw)
}

func (c *Connection) replyError(code, msg string) {
	c.replyJSON(message.NewError(code, msg))
}

func mustMarshal(v any) []byte {
	raw, _ := json.Marshal(v)
	return raw
}

// websocketInternalError is the close code used for server-side faults during the auth
// handshake, distinct from the normal/going-away codes used elsewhere.
const websocketInternalError = 1011
