package relayconn

import (
	"github.com/arcs-rmm/relay/internal/audit"
	protoerr "github.com/arcs-rmm/relay/internal/errors"
	"github.com/arcs-rmm/relay/internal/metrics"
	"github.com/arcs-rmm/relay/internal/protocol/frame"
	"github.com/arcs-rmm/relay/internal/protocol/message"
)

// handleControlMessage decodes one JSON control message and dispatches it according to
// the connection's current state. Decode failures never forward and never close the
// connection, per the malformed-input error policy.
func (c *Connection) handleControlMessage(raw []byte) {
	kind, decoded, err := message.Decode(raw)
	if err != nil {
		c.log.Warn("rejecting malformed control message", "error", err)
		c.replyError(message.ErrInvalidCommand, "malformed or invalid message")
		return
	}

	switch c.State() {
	case StateUnauthenticated:
		c.dispatchUnauthenticated(kind, decoded)
	case StateAuthenticatedDevice:
		c.dispatchDevice(kind, raw)
	case StateAuthenticatedController:
		c.dispatchController(kind, raw)
	default:
	}
}

func (c *Connection) dispatchUnauthenticated(kind message.Kind, decoded any) {
	switch kind {
	case message.KindAuthRequest:
		c.handleAuthRequest(decoded.(*message.AuthRequest))
	case message.KindDeviceHello:
		c.handleDeviceHello(decoded.(*message.DeviceHello))
	case message.KindJoinSession:
		c.handleJoinSession(decoded.(*message.JoinSession))
	default:
		c.replyError(message.ErrUnauthorized, "connection is not authenticated")
	}
}

// dispatchDevice handles messages arriving on an already-authenticated device-leg: the
// app-level ping/pong heartbeat (answered locally) and command_result/status, which are
// forwarded to every attached controller-leg with no structural validation beyond logging.
func (c *Connection) dispatchDevice(kind message.Kind, raw []byte) {
	switch kind {
	case message.KindPing:
		c.replyJSON(&message.Pong{Type: string(message.KindPong)})
	case message.KindPong:
		// application-level pong carries no reply; WS-level pong already refreshed the
		// heartbeat deadline via the PongHandler.
	case message.KindCommandResult, message.KindStatus:
		c.deps.Commands.RouteToController(c.sessionIDSnapshot(), kind, raw)
		c.forwardToControllers(raw)
	default:
		c.replyError(message.ErrInvalidCommand, "unexpected message from device")
	}
}

// dispatchController handles messages arriving on an already-authenticated
// controller-leg: the app-level ping/pong and every control-command kind, which is gated
// through the command router before reaching the device-leg.
func (c *Connection) dispatchController(kind message.Kind, raw []byte) {
	switch {
	case kind == message.KindPing:
		c.replyJSON(&message.Pong{Type: string(message.KindPong)})
	case kind == message.KindPong:
	case message.IsCommandKind(kind):
		sessionID := c.sessionIDSnapshot()
		forward, deny := c.deps.Commands.RouteToDevice(sessionID, kind, raw)
		if !forward {
			metrics.IncCommand(string(kind), "rate_limited")
			c.deps.Audit.Log(audit.EventPermissionDenied, audit.SeverityInfo, sessionID, "command denied by rate limiter", map[string]any{"kind": string(kind)})
			c.replyJSON(deny)
			return
		}
		metrics.IncCommand(string(kind), "forwarded")
		if dc, ok := c.deps.Conns.Device(sessionID); ok {
			dc.SendJSON(raw)
		}
	default:
		c.replyError(message.ErrInvalidCommand, "unexpected message from controller")
	}
}

// handleBinaryFrame processes one wire video packet. Only a device-leg may send binary
// frames; the relay validates the packet header (never the encoded payload) and fans out
// the raw bytes to every controller-leg via the stream router.
func (c *Connection) handleBinaryFrame(raw []byte) {
	if c.State() != StateAuthenticatedDevice {
		c.log.Warn("dropping binary frame from non-device connection")
		return
	}

	p, err := frame.Decode(raw)
	if err != nil {
		if protoerr.IsProtocolError(err) {
			c.log.Debug("dropping malformed video packet", "error", err)
			return
		}
		c.log.Warn("unexpected frame decode error", "error", err)
		return
	}

	newFrame := !p.Fragment || p.FragmentIndex == 0
	c.deps.Streams.RouteFrame(c.sessionIDSnapshot(), raw, newFrame)
	// raw (not p.Payload) is what gets fanned out to controllers; the decoded payload
	// copy was only needed to validate the header and is safe to return to the pool.
	p.Release()
}

// forwardToControllers sends raw to every controller-leg currently attached to this
// connection's session.
func (c *Connection) forwardToControllers(raw []byte) {
	for _, cc := range c.deps.Conns.Controllers(c.sessionIDSnapshot()) {
		cc.SendJSON(raw)
	}
}

func (c *Connection) sessionIDSnapshot() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// startDrain launches the per-controller drain goroutine that pulls frames off the
// stream router's bounded FIFO and writes them out, independent of every other
// controller-leg's pace.
func (c *Connection) startDrain(sessionID, controllerID string) {
	notify, ok := c.deps.Streams.NotifyChan(sessionID, controllerID)
	if !ok {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-c.ctx.Done():
				return
			case <-notify:
				for {
					packet, ok := c.deps.Streams.GetFrame(sessionID, controllerID)
					if !ok {
						break
					}
					c.SendFrame(packet)
				}
			}
		}
	}()
}

// onDisconnect runs once, from the reader goroutine's defer, when the WebSocket closes
// for any reason: it tears down session/registry/router state and notifies the other
// leg(s), per the device-leg-close / controller-leg-close lifecycle rules.
func (c *Connection) onDisconnect() {
	c.mu.Lock()
	state := c.state
	sessionID := c.sessionID
	controllerID := c.controllerID
	deviceID := c.deviceID
	c.mu.Unlock()

	switch state {
	case StateAuthenticatedDevice:
		metrics.DecSessionClosed("device_disconnect")
		c.deps.Audit.Log(audit.EventSessionEnd, audit.SeverityInfo, sessionID, "device disconnected", nil)
		for _, cc := range c.deps.Conns.Controllers(sessionID) {
			cc.SendJSON(mustMarshal(&message.DeviceDisconnected{Type: string(message.KindDeviceDisconnected), DeviceID: deviceID}))
		}
		c.deps.Conns.RemoveDevice(sessionID)
		c.deps.Streams.UnregisterDevice(sessionID)
		c.deps.Sessions.Close(sessionID)
		c.deps.Limiter.Reset(sessionID)

	case StateAuthenticatedController:
		metrics.DecControllerConnected()
		c.deps.Conns.RemoveController(sessionID, controllerID)
		c.deps.Streams.UnregisterController(sessionID, controllerID)
		c.deps.Sessions.LeaveController(sessionID, controllerID)
		if dc, ok := c.deps.Conns.Device(sessionID); ok {
			dc.SendJSON(mustMarshal(&message.ControllerDisconnected{
				Type:         string(message.KindControllerDisconnected),
				ControllerID: controllerID,
			}))
		}
	}
}
