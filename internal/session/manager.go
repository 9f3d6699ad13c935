package session

import (
	"sync"
	"time"

	protoerr "github.com/arcs-rmm/relay/internal/errors"
)

// DefaultIdleTimeout closes a session after this long with no activity either way.
const DefaultIdleTimeout = 300 * time.Second

// Manager serializes every session operation under a single mutex, per
// "all operations are serialized".
type Manager struct {
	mu          sync.Mutex
	sessions    map[string]*Session
	byDevice    map[string]*Session
	idleTimeout time.Duration
}

// NewManager creates a Manager with the given idle timeout (zero uses DefaultIdleTimeout).
func NewManager(idleTimeout time.Duration) *Manager {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	return &Manager{
		sessions:    make(map[string]*Session),
		byDevice:    make(map[string]*Session),
		idleTimeout: idleTimeout,
	}
}

// Create mints a session for deviceID, or adopts the existing active session for that
// device-id if one already exists, per the documented adopt-on-repeat decision. The second
// return value reports whether an existing session was adopted rather than created fresh.
// info is recorded (or refreshed, on adoption) for later use in the controller join
// handshake.
func (m *Manager) Create(deviceID string, info DeviceInfo) (sessionID string, adopted bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.byDevice[deviceID]; ok && existing.Active {
		existing.LastActivity = time.Now()
		existing.DeviceInfo = info
		return existing.ID, true, nil
	}

	for attempt := 0; attempt < 5; attempt++ {
		id, genErr := generateID()
		if genErr != nil {
			return "", false, protoerr.NewProtocolError("session.create", genErr)
		}
		if _, collides := m.sessions[id]; collides {
			continue
		}
		now := time.Now()
		sess := &Session{
			ID:           id,
			DeviceID:     deviceID,
			DeviceInfo:   info,
			Controllers:  make(map[string]bool),
			CreatedAt:    now,
			LastActivity: now,
			Active:       true,
		}
		m.sessions[id] = sess
		m.byDevice[deviceID] = sess
		return id, false, nil
	}
	return "", false, protoerr.NewProtocolError("session.create", errIDExhaustion)
}

// Join attaches a controller-leg to an active session. Fails if the session is missing or
// inactive.
func (m *Manager) Join(sessionID, controllerID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[sessionID]
	if !ok || !sess.Active {
		return false
	}
	sess.Controllers[controllerID] = true
	sess.LastActivity = time.Now()
	return true
}

// LeaveController detaches a controller-leg; the session stays alive with zero controllers.
func (m *Manager) LeaveController(sessionID, controllerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[sessionID]
	if !ok {
		return
	}
	delete(sess.Controllers, controllerID)
}

// Touch updates last-activity for a session, keeping it alive against the idle sweeper.
func (m *Manager) Touch(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.sessions[sessionID]; ok {
		sess.LastActivity = time.Now()
	}
}

// Close removes a session entirely (device disconnect or explicit close).
func (m *Manager) Close(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[sessionID]
	if !ok {
		return false
	}
	delete(m.sessions, sessionID)
	if m.byDevice[sess.DeviceID] == sess {
		delete(m.byDevice, sess.DeviceID)
	}
	return true
}

// Get returns a snapshot copy of the session record, if present.
func (m *Manager) Get(sessionID string) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[sessionID]
	if !ok {
		return Session{}, false
	}
	return cloneSession(sess), true
}

// GetByDevice returns the session record currently owned by deviceID, if any.
func (m *Manager) GetByDevice(deviceID string) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.byDevice[deviceID]
	if !ok {
		return Session{}, false
	}
	return cloneSession(sess), true
}

// Count returns the number of live sessions, for the /health endpoint.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep removes every session whose last-activity is older than the configured idle
// timeout and returns their ids, so the caller can notify and close the underlying
// connections.
func (m *Manager) Sweep(now time.Time) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expired []string
	for id, sess := range m.sessions {
		if now.Sub(sess.LastActivity) > m.idleTimeout {
			expired = append(expired, id)
			delete(m.sessions, id)
			if m.byDevice[sess.DeviceID] == sess {
				delete(m.byDevice, sess.DeviceID)
			}
		}
	}
	return expired
}

func cloneSession(s *Session) Session {
	controllers := make(map[string]bool, len(s.Controllers))
	for k, v := range s.Controllers {
		controllers[k] = v
	}
	return Session{
		ID:           s.ID,
		DeviceID:     s.DeviceID,
		DeviceInfo:   s.DeviceInfo,
		Controllers:  controllers,
		CreatedAt:    s.CreatedAt,
		LastActivity: s.LastActivity,
		Active:       s.Active,
	}
}
