package frame

import (
	"sync"
	"time"
)

// DefaultFragmentTimeout bounds how long an incomplete fragment group is retained before
// it is discarded, per the "recommended 1 second" guidance for bounding reassembly memory.
const DefaultFragmentTimeout = time.Second

type fragmentGroup struct {
	total     uint16
	have      uint16
	parts     [][]byte
	totalSize int
	firstSeen time.Time
}

// Reassembler buffers fragment groups by frame_no and reconstructs complete frames.
// Not safe to share across goroutines without the built-in locking it already performs;
// callers may call Feed concurrently and Sweep on a timer from a different goroutine.
type Reassembler struct {
	mu      sync.Mutex
	groups  map[uint32]*fragmentGroup
	newest  uint32
	hasNewest bool
	timeout time.Duration
}

// NewReassembler creates a reassembler with the given incomplete-group timeout. A zero
// timeout uses DefaultFragmentTimeout.
func NewReassembler(timeout time.Duration) *Reassembler {
	if timeout <= 0 {
		timeout = DefaultFragmentTimeout
	}
	return &Reassembler{
		groups:  make(map[uint32]*fragmentGroup),
		timeout: timeout,
	}
}

// Feed accepts one decoded packet. For a non-fragment packet it returns the payload
// immediately with complete=true. For a fragment it buffers by frame_no and returns
// complete=true with the concatenated payload once every fragment_total index has arrived.
func (r *Reassembler) Feed(p *Packet, now time.Time) (payload []byte, complete bool) {
	if !p.Fragment {
		return p.Payload, true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	g := r.groups[p.FrameNo]
	if g == nil {
		g = &fragmentGroup{
			total:     p.FragmentTotal,
			parts:     make([][]byte, p.FragmentTotal),
			firstSeen: now,
		}
		r.groups[p.FrameNo] = g
	}
	if int(p.FragmentIndex) >= len(g.parts) {
		return nil, false
	}
	if g.parts[p.FragmentIndex] == nil {
		g.parts[p.FragmentIndex] = p.Payload
		g.have++
		g.totalSize += len(p.Payload)
	}

	if g.have < g.total {
		return nil, false
	}

	out := make([]byte, 0, g.totalSize)
	for _, part := range g.parts {
		out = append(out, part...)
	}
	delete(r.groups, p.FrameNo)

	if !r.hasNewest || p.FrameNo > r.newest {
		r.newest = p.FrameNo
		r.hasNewest = true
		r.evictOlderThanNewestLocked()
	}
	return out, true
}

// evictOlderThanNewestLocked discards any incomplete group whose frame_no is older than the
// most recently completed frame, per "a group MAY be discarded... when a newer frame_no's
// group completes first". Caller must hold r.mu.
func (r *Reassembler) evictOlderThanNewestLocked() {
	for frameNo := range r.groups {
		if frameNo < r.newest {
			delete(r.groups, frameNo)
		}
	}
}

// Sweep discards incomplete groups older than the configured timeout, bounding memory use
// when a fragment group never completes.
func (r *Reassembler) Sweep(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for frameNo, g := range r.groups {
		if now.Sub(g.firstSeen) > r.timeout {
			delete(r.groups, frameNo)
		}
	}
}

// Pending returns the number of fragment groups currently buffered, for diagnostics/metrics.
func (r *Reassembler) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.groups)
}
