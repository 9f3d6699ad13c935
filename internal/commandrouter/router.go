// Package commandrouter implements the controller→device and device→controller
// control-message path: rate-limit gating, redacted audit logging, and the
// forward/deny decision. Structural validation of the message itself happens
// one layer down, in the message codec's Decode boundary.
package commandrouter

import (
	"encoding/json"
	"fmt"

	"github.com/arcs-rmm/relay/internal/audit"
	"github.com/arcs-rmm/relay/internal/logger"
	"github.com/arcs-rmm/relay/internal/protocol/message"
	"github.com/arcs-rmm/relay/internal/ratelimit"
)

// kindToOp maps a command kind to its rate-limit bucket operation. Kinds absent from
// this map (system, app_control) carry no dedicated bucket and are always allowed.
var kindToOp = map[message.Kind]string{
	message.KindTouch: ratelimit.OpTouch,
	message.KindKey:   ratelimit.OpKey,
	message.KindMacro: ratelimit.OpMacro,
	message.KindAI:    ratelimit.OpAI,
}

// Router gates controller→device commands through the rate limiter and audit log.
type Router struct {
	limiter *ratelimit.Limiter
	audit   *audit.Logger
}

// New creates a command Router over the given rate limiter and audit log.
func New(limiter *ratelimit.Limiter, auditLog *audit.Logger) *Router {
	return &Router{limiter: limiter, audit: auditLog}
}

// RouteToDevice runs the controller→device pipeline: rate-limit lookup by command kind,
// then a redacted audit record, then the forward decision. raw is assumed already
// structurally valid (decoded via message.Decode upstream); RouteToDevice does not
// re-validate structure.
func (r *Router) RouteToDevice(sessionID string, kind message.Kind, raw []byte) (forward bool, deny *message.ErrorMessage) {
	if op, limited := kindToOp[kind]; limited {
		if !r.limiter.Allow(sessionID, op) {
			r.audit.Log(audit.EventRateLimitExceeded, audit.SeverityInfo, sessionID,
				fmt.Sprintf("rate limit exceeded for %s", kind), map[string]any{"kind": string(kind)})
			return false, message.NewError(message.ErrRateLimit, "rate limit exceeded")
		}
	}

	r.audit.Log(audit.EventCommandReceived, audit.SeverityInfo, sessionID, "command received", sanitizedDetails(kind, raw))
	return true, nil
}

// RouteToController forwards a device→controller message with no validation beyond
// logging, per "forwards device→controllers with no validation beyond logging".
func (r *Router) RouteToController(sessionID string, kind message.Kind, raw []byte) {
	r.audit.Log(audit.EventCommandReceived, audit.SeverityInfo, sessionID, "device message forwarded", sanitizedDetails(kind, raw))
}

// sanitizedDetails decodes raw generically and redacts sensitive fields before it
// reaches the audit log; unparsable payloads are logged with just the kind.
func sanitizedDetails(kind message.Kind, raw []byte) map[string]any {
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		logger.Debug("commandrouter: non-JSON payload during audit sanitization", "kind", string(kind), "err", err)
		return map[string]any{"kind": string(kind)}
	}
	return audit.Redact(generic)
}
