// Package streamrouter implements the per-session stream endpoint and the
// device-to-controllers frame fan-out: one bounded FIFO per controller-leg,
// drop-oldest on overflow, independent drain per controller so a slow
// controller never blocks the device-leg or its siblings.
package streamrouter

import (
	"sync"

	"github.com/arcs-rmm/relay/internal/metrics"
)

// DefaultMaxQueue bounds each controller's FIFO, representing roughly 1s at 30fps.
const DefaultMaxQueue = 30

// Stats is a snapshot of one session's stream endpoint counters.
type Stats struct {
	FramesIn      uint64
	BytesIn       uint64
	FramesDropped uint64
	AvgFrameSize  float64
}

// endpoint is the per-session stream state: the device-leg's identity and one
// bounded queue per registered controller-leg. A nested mutex protects this struct so
// routing a frame in one session never blocks another (per the concurrency model).
type endpoint struct {
	mu            sync.Mutex
	deviceID      string
	controllers   map[string]*controllerQueue
	framesIn      uint64
	bytesIn       uint64
	framesDropped uint64
}

// Router owns every session's stream endpoint, serialized for table mutation under a
// single mutex; per-session routing work happens under the endpoint's own nested mutex.
type Router struct {
	mu        sync.Mutex
	endpoints map[string]*endpoint
	maxQueue  int
}

// New creates a Router with the given per-controller queue bound (zero uses DefaultMaxQueue).
func New(maxQueue int) *Router {
	if maxQueue <= 0 {
		maxQueue = DefaultMaxQueue
	}
	return &Router{
		endpoints: make(map[string]*endpoint),
		maxQueue:  maxQueue,
	}
}

func (r *Router) getOrCreate(sessionID string) *endpoint {
	r.mu.Lock()
	defer r.mu.Unlock()
	ep, ok := r.endpoints[sessionID]
	if !ok {
		ep = &endpoint{controllers: make(map[string]*controllerQueue)}
		r.endpoints[sessionID] = ep
	}
	return ep
}

// RegisterDevice attaches (or re-attaches) the device-leg identity to a session's endpoint,
// creating the endpoint if this is the first registration for the session.
func (r *Router) RegisterDevice(sessionID, deviceID string) {
	ep := r.getOrCreate(sessionID)
	ep.mu.Lock()
	ep.deviceID = deviceID
	ep.mu.Unlock()
}

// RegisterController attaches a new bounded queue for controllerID within sessionID and
// returns it. The connection handler's drain goroutine does not use the returned queue; it
// reads through NotifyChan and GetFrame.
func (r *Router) RegisterController(sessionID, controllerID string) *controllerQueue {
	ep := r.getOrCreate(sessionID)
	ep.mu.Lock()
	defer ep.mu.Unlock()
	cq := newControllerQueue()
	ep.controllers[controllerID] = cq
	return cq
}

// UnregisterDevice tears down the entire stream endpoint for a session, called when the
// session itself is torn down.
func (r *Router) UnregisterDevice(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.endpoints, sessionID)
}

// UnregisterController removes one controller's queue from a session's endpoint, leaving
// the device-leg and any other controllers untouched.
func (r *Router) UnregisterController(sessionID, controllerID string) {
	r.mu.Lock()
	ep, ok := r.endpoints[sessionID]
	r.mu.Unlock()
	if !ok {
		return
	}
	ep.mu.Lock()
	delete(ep.controllers, controllerID)
	ep.mu.Unlock()
}

// RouteFrame copies bytes once and enqueues it into every registered controller's queue
// for sessionID. A full queue drops its oldest entry before the push, incrementing the
// dropped counter for that session. Every wire packet is routed (fragments are forwarded
// individually, preserving index order per FIFO), but newFrame should be true only for
// the packet that opens a logical frame (a non-fragment packet, or fragment_index 0) so
// frames_in counts frames rather than wire packets. Returns false if the session has no
// endpoint.
func (r *Router) RouteFrame(sessionID string, payload []byte, newFrame bool) bool {
	r.mu.Lock()
	ep, ok := r.endpoints[sessionID]
	r.mu.Unlock()
	if !ok {
		return false
	}

	ep.mu.Lock()
	targets := make([]*controllerQueue, 0, len(ep.controllers))
	for _, cq := range ep.controllers {
		targets = append(targets, cq)
	}
	if newFrame {
		ep.framesIn++
		metrics.AddFrameRouted(len(payload))
	}
	ep.bytesIn += uint64(len(payload))
	ep.mu.Unlock()

	for _, cq := range targets {
		frame := make([]byte, len(payload))
		copy(frame, payload)
		if dropped := cq.push(frame, r.maxQueue); dropped {
			ep.mu.Lock()
			ep.framesDropped++
			ep.mu.Unlock()
			metrics.IncFrameDropped()
		}
	}
	return true
}

// GetFrame pops the oldest buffered frame for controllerID within sessionID, if any.
func (r *Router) GetFrame(sessionID, controllerID string) ([]byte, bool) {
	r.mu.Lock()
	ep, ok := r.endpoints[sessionID]
	r.mu.Unlock()
	if !ok {
		return nil, false
	}
	ep.mu.Lock()
	cq, ok := ep.controllers[controllerID]
	ep.mu.Unlock()
	if !ok {
		return nil, false
	}
	return cq.pop()
}

// NotifyChan returns the channel a drain goroutine should select on to learn a new frame
// is available for controllerID, or ok=false if no such controller is registered.
func (r *Router) NotifyChan(sessionID, controllerID string) (<-chan struct{}, bool) {
	r.mu.Lock()
	ep, ok := r.endpoints[sessionID]
	r.mu.Unlock()
	if !ok {
		return nil, false
	}
	ep.mu.Lock()
	cq, ok := ep.controllers[controllerID]
	ep.mu.Unlock()
	if !ok {
		return nil, false
	}
	return cq.notify, true
}

// Stats returns a snapshot of the session's stream endpoint counters.
func (r *Router) Stats(sessionID string) (Stats, bool) {
	r.mu.Lock()
	ep, ok := r.endpoints[sessionID]
	r.mu.Unlock()
	if !ok {
		return Stats{}, false
	}
	ep.mu.Lock()
	defer ep.mu.Unlock()
	var avg float64
	if ep.framesIn > 0 {
		avg = float64(ep.bytesIn) / float64(ep.framesIn)
	}
	return Stats{
		FramesIn:      ep.framesIn,
		BytesIn:       ep.bytesIn,
		FramesDropped: ep.framesDropped,
		AvgFrameSize:  avg,
	}, true
}
