// Package session implements the relay's session manager: tracks live
// sessions and their members, enforcing the one-device-per-session and
// idle-timeout invariants.
package session

import "time"

// DeviceInfo mirrors the capture-device attributes reported at auth time, kept
// independent of the wire codec so the session package does not import it.
type DeviceInfo struct {
	Model          string
	AndroidVersion string
	ScreenWidth    int
	ScreenHeight   int
	DPI            int
}

// Session is the in-memory record of one device-leg and its attached
// controller-legs. Mutation happens only through the owning Manager, which
// serializes all access under its own mutex; Session itself carries no lock.
type Session struct {
	ID           string
	DeviceID     string
	DeviceInfo   DeviceInfo
	Controllers  map[string]bool
	CreatedAt    time.Time
	LastActivity time.Time
	Active       bool
}

// ControllerIDs returns a snapshot slice of attached controller-leg ids.
func (s *Session) ControllerIDs() []string {
	ids := make([]string, 0, len(s.Controllers))
	for id := range s.Controllers {
		ids = append(ids, id)
	}
	return ids
}
