package relayconn

import "sync"

// Registry tracks the live connection objects attached to each session so the
// dispatch layer can notify one leg about events on another (controller_connected,
// controller_disconnected, device_disconnected) without routing that traffic
// through the stream router, which carries only video frames.
type Registry struct {
	mu          sync.Mutex
	devices     map[string]*Connection            // sessionID -> device-leg
	controllers map[string]map[string]*Connection // sessionID -> controllerID -> controller-leg
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{
		devices:     make(map[string]*Connection),
		controllers: make(map[string]map[string]*Connection),
	}
}

// PutDevice attaches c as the device-leg for sessionID.
func (r *Registry) PutDevice(sessionID string, c *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices[sessionID] = c
}

// Device returns the device-leg connection for sessionID, if any.
func (r *Registry) Device(sessionID string) (*Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.devices[sessionID]
	return c, ok
}

// RemoveDevice detaches sessionID's device-leg and every controller-leg beneath it.
func (r *Registry) RemoveDevice(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.devices, sessionID)
	delete(r.controllers, sessionID)
}

// PutController attaches c as controllerID's connection within sessionID.
func (r *Registry) PutController(sessionID, controllerID string, c *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.controllers[sessionID]
	if !ok {
		set = make(map[string]*Connection)
		r.controllers[sessionID] = set
	}
	set[controllerID] = c
}

// RemoveController detaches one controller-leg from sessionID.
func (r *Registry) RemoveController(sessionID, controllerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if set, ok := r.controllers[sessionID]; ok {
		delete(set, controllerID)
		if len(set) == 0 {
			delete(r.controllers, sessionID)
		}
	}
}

// Controllers returns a snapshot of every controller-leg connection attached to sessionID.
func (r *Registry) Controllers(sessionID string) []*Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.controllers[sessionID]
	out := make([]*Connection, 0, len(set))
	for _, c := range set {
		out = append(out, c)
	}
	return out
}
