package relayconn

// State is a connection's position in the auth/role state machine. Every connection
// starts Unauthenticated and moves to exactly one authenticated role; there is no path
// back to Unauthenticated short of closing the connection.
type State int32

const (
	StateUnauthenticated State = iota
	StateAuthenticatedDevice
	StateAuthenticatedController
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticatedDevice:
		return "authenticated_device"
	case StateAuthenticatedController:
		return "authenticated_controller"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
