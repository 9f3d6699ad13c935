package relayconn

import (
	"time"

	"github.com/arcs-rmm/relay/internal/audit"
	"github.com/arcs-rmm/relay/internal/commandrouter"
	"github.com/arcs-rmm/relay/internal/device"
	"github.com/arcs-rmm/relay/internal/protocol/message"
	"github.com/arcs-rmm/relay/internal/ratelimit"
	"github.com/arcs-rmm/relay/internal/session"
	"github.com/arcs-rmm/relay/internal/streamrouter"
	"github.com/arcs-rmm/relay/internal/token"
)

// Default tunables, per the configuration surface.
const (
	DefaultConnectTimeout    = 10 * time.Second
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultHeartbeatTimeout  = 90 * time.Second
	DefaultSendQueueDepth    = 64
)

// DefaultVideoConfig is reported to controllers when nothing more specific is
// configured; auth_request/device_hello report screen geometry but not codec
// parameters, so width/height come from the device and the rest from here.
var DefaultVideoConfig = message.VideoConfig{
	FPS:     30,
	Bitrate: 4_000_000,
	Codec:   "h264",
}

// Deps bundles every shared component a Connection's dispatch logic calls into. One Deps
// is constructed at startup and shared by every connection.
type Deps struct {
	Devices  *device.Registry
	Tokens   *token.Service
	Limiter  *ratelimit.Limiter
	Audit    *audit.Logger
	Sessions *session.Manager
	Streams  *streamrouter.Router
	Commands *commandrouter.Router
	Conns    *Registry

	TokenPermissions  []string
	VideoConfig       message.VideoConfig
	ConnectTimeout    time.Duration
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	SendQueueDepth    int
}

// applyDefaults fills zero-valued tunables, mirroring the teacher's Config.applyDefaults.
func (d *Deps) applyDefaults() {
	if d.ConnectTimeout <= 0 {
		d.ConnectTimeout = DefaultConnectTimeout
	}
	if d.HeartbeatInterval <= 0 {
		d.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if d.HeartbeatTimeout <= 0 {
		d.HeartbeatTimeout = DefaultHeartbeatTimeout
	}
	if d.SendQueueDepth <= 0 {
		d.SendQueueDepth = DefaultSendQueueDepth
	}
	if d.VideoConfig == (message.VideoConfig{}) {
		d.VideoConfig = DefaultVideoConfig
	}
	if d.Conns == nil {
		d.Conns = NewRegistry()
	}
}
