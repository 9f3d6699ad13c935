// Package relayconn implements the per-connection WebSocket state machine that
// sits above the protocol codecs and routers: it owns the reader/writer
// goroutines, the auth/join handshake, the heartbeat, and graceful shutdown for
// one device-leg or controller-leg connection.
package relayconn

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/arcs-rmm/relay/internal/logger"
	"github.com/arcs-rmm/relay/internal/metrics"
)

// outbound is one queued write: either a JSON control message (TextMessage) or a raw
// video packet forwarded from the stream router (BinaryMessage).
type outbound struct {
	kind int
	data []byte
}

// Connection is one WebSocket peer's lifecycle: reader goroutine, writer goroutine, a
// drain goroutine if it is a controller-leg, and the auth/role state machine.
type Connection struct {
	id   string
	ws   *websocket.Conn
	deps *Deps
	log  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	send      chan outbound
	writeDone chan struct{}

	mu           sync.Mutex
	state        State
	role         string
	deviceID     string
	sessionID    string
	controllerID string

	lastPong time.Time
	pongMu   sync.Mutex
}

// Accept wraps an already-upgraded WebSocket connection. The caller must call Start to
// begin the reader/writer/heartbeat goroutines.
func Accept(ws *websocket.Conn, deps *Deps) *Connection {
	deps.applyDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()
	c := &Connection{
		id:     id,
		ws:     ws,
		deps:   deps,
		log:    logger.WithConn(logger.Logger(), id, ws.RemoteAddr().String()),
		ctx:       ctx,
		cancel:    cancel,
		send:      make(chan outbound, deps.SendQueueDepth),
		writeDone: make(chan struct{}),
		state:     StateUnauthenticated,
		role:   "unauthenticated",
	}
	c.touchPong()
	metrics.SetConnectionRole("unauthenticated", 1)
	return c
}

// setRole moves this connection's contribution to the connections-active gauge from its
// prior role to newRole. Callers must hold c.mu.
func (c *Connection) setRole(newRole string) {
	metrics.SetConnectionRole(c.role, -1)
	metrics.SetConnectionRole(newRole, 1)
	c.role = newRole
}

// ID returns the connection's identifier (a random UUID, distinct from any session or
// device-id).
func (c *Connection) ID() string { return c.id }

// State returns the connection's current state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start begins the writer, reader, and heartbeat goroutines, and arms the connect
// timeout: a connection that never authenticates within ConnectTimeout is closed.
func (c *Connection) Start() {
	c.wg.Add(3)
	go c.writeLoop()
	go c.readLoop()
	go c.heartbeatLoop()

	go func() {
		t := time.NewTimer(c.deps.ConnectTimeout)
		defer t.Stop()
		select {
		case <-c.ctx.Done():
		case <-t.C:
			if c.State() == StateUnauthenticated {
				c.log.Warn("connect timeout before authentication")
				c.Close(websocket.CloseNormalClosure, "connect timeout")
			}
		}
	}()
}

// Close tears down the connection: it cancels the context (unblocking the reader and
// heartbeat loops), gives the writer a chance to flush anything already queued in send
// (an error reply enqueued right before Close must still reach the client), best-effort
// sends a close frame, closes the socket, and waits for every goroutine to exit. Safe to
// call more than once.
func (c *Connection) Close(code int, reason string) {
	c.mu.Lock()
	alreadyClosed := c.state == StateClosed
	c.state = StateClosed
	if !alreadyClosed {
		metrics.SetConnectionRole(c.role, -1)
		c.role = ""
	}
	c.mu.Unlock()
	if alreadyClosed {
		return
	}

	c.cancel()
	select {
	case <-c.writeDone:
	case <-time.After(2 * time.Second):
		c.log.Warn("writer did not flush before close timeout")
	}

	deadline := time.Now().Add(time.Second)
	_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	_ = c.ws.Close()
	c.wg.Wait()
}

// enqueue pushes an outbound frame without blocking; if the send queue is full the frame
// is dropped (the per-connection bounded send queue backpressure policy).
func (c *Connection) enqueue(kind int, data []byte) {
	select {
	case c.send <- outbound{kind: kind, data: data}:
	case <-c.ctx.Done():
	default:
		c.log.Warn("send queue full, dropping outbound message", "kind", kind)
	}
}

// SendJSON enqueues a JSON control message for delivery.
func (c *Connection) SendJSON(raw []byte) { c.enqueue(websocket.TextMessage, raw) }

// SendFrame enqueues a raw binary video packet for delivery.
func (c *Connection) SendFrame(raw []byte) { c.enqueue(websocket.BinaryMessage, raw) }

func (c *Connection) touchPong() {
	c.pongMu.Lock()
	c.lastPong = time.Now()
	c.pongMu.Unlock()
}

func (c *Connection) sincePong() time.Duration {
	c.pongMu.Lock()
	defer c.pongMu.Unlock()
	return time.Since(c.lastPong)
}

func (c *Connection) writeLoop() {
	defer c.wg.Done()
	defer close(c.writeDone)
	for {
		select {
		case <-c.ctx.Done():
			c.drainSend()
			return
		case m, ok := <-c.send:
			if !ok {
				return
			}
			if !c.writeOut(m) {
				return
			}
		}
	}
}

// drainSend flushes whatever is already queued in send before the writer goroutine exits,
// so a reply enqueued immediately before Close (e.g. an auth-failure error) is not dropped
// by the race between ctx cancellation and a pending send.
func (c *Connection) drainSend() {
	for {
		select {
		case m, ok := <-c.send:
			if !ok {
				return
			}
			if !c.writeOut(m) {
				return
			}
		default:
			return
		}
	}
}

// writeOut performs one outbound write, closing the context on failure. Returns false if
// the caller should stop writing.
func (c *Connection) writeOut(m outbound) bool {
	_ = c.ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := c.ws.WriteMessage(m.kind, m.data); err != nil {
		c.log.Debug("write failed, closing", "error", err)
		c.cancel()
		return false
	}
	return true
}

func (c *Connection) readLoop() {
	defer c.wg.Done()
	defer c.onDisconnect()

	c.ws.SetPongHandler(func(string) error {
		c.touchPong()
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			c.log.Debug("read closed", "error", err)
			return
		}
		if sid := c.sessionIDSnapshot(); sid != "" {
			c.deps.Sessions.Touch(sid)
		}

		switch msgType {
		case websocket.TextMessage:
			c.handleControlMessage(data)
		case websocket.BinaryMessage:
			c.handleBinaryFrame(data)
		}
	}
}

func (c *Connection) heartbeatLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.deps.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if c.sincePong() > c.deps.HeartbeatTimeout {
				c.log.Warn("heartbeat timeout, closing connection")
				// Close waits on this loop's own WaitGroup entry, so it must run
				// from a goroutine outside the group being waited on.
				go c.Close(websocket.CloseGoingAway, "heartbeat timeout")
				return
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.log.Debug("ping failed, closing", "error", err)
				c.cancel()
				return
			}
		}
	}
}
