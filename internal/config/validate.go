package config

import "fmt"

// ValidationResult separates fatal misconfigurations, which must abort
// startup, from warnings, which are logged but allow the relay to run.
type ValidationResult struct {
	Fatals   []error
	Warnings []error
}

func (r *ValidationResult) HasFatals() bool { return len(r.Fatals) > 0 }

func (r *ValidationResult) fatal(format string, args ...any) {
	r.Fatals = append(r.Fatals, fmt.Errorf(format, args...))
}

func (r *ValidationResult) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Errorf(format, args...))
}

// ValidateTiered checks the config and clamps recoverable values to a safe
// default, per the fatal/warning split in the error handling design: a
// missing or default token secret, an empty listen address, device-store or
// audit-log path, and a half-configured TLS pair are fatal; everything else
// degrades gracefully. It does not check that the audit-log path is writable.
func (c *Config) ValidateTiered() ValidationResult {
	var r ValidationResult

	if c.TokenSecret == "" || c.TokenSecret == "changeme" {
		r.fatal("token_secret must be set to a non-default value")
	}
	if c.ListenAddr == "" {
		r.fatal("listen_addr must not be empty")
	}
	if c.DeviceStorePath == "" {
		r.fatal("device_store_path must not be empty")
	}
	if c.AuditLogPath == "" {
		r.fatal("audit_log_path must not be empty")
	}
	if (c.TLSCertPath == "") != (c.TLSKeyPath == "") {
		r.fatal("tls_cert_path and tls_key_path must both be set or both be empty")
	}

	if c.TokenExpiryHours <= 0 {
		r.warn("token_expiry_hours %d is invalid, clamping to 24", c.TokenExpiryHours)
		c.TokenExpiryHours = 24
	}
	if c.MaxSessions <= 0 {
		r.warn("max_sessions %d is invalid, clamping to 1000", c.MaxSessions)
		c.MaxSessions = 1000
	}
	if c.IdleSessionTimeoutSeconds <= 0 {
		r.warn("idle_session_timeout_seconds %d is invalid, clamping to 300", c.IdleSessionTimeoutSeconds)
		c.IdleSessionTimeoutSeconds = 300
	}
	if c.HeartbeatIntervalSeconds <= 0 {
		r.warn("heartbeat_interval_seconds %d is invalid, clamping to 30", c.HeartbeatIntervalSeconds)
		c.HeartbeatIntervalSeconds = 30
	}
	if c.HeartbeatTimeoutSeconds <= c.HeartbeatIntervalSeconds {
		r.warn("heartbeat_timeout_seconds %d must exceed heartbeat_interval_seconds, clamping to 90", c.HeartbeatTimeoutSeconds)
		c.HeartbeatTimeoutSeconds = 90
	}
	if c.MaxQueueDepth <= 0 {
		r.warn("max_queue_depth %d is invalid, clamping to 30", c.MaxQueueDepth)
		c.MaxQueueDepth = 30
	}
	if c.HookTimeoutSecs <= 0 {
		r.warn("hook_timeout_seconds %d is invalid, clamping to 30", c.HookTimeoutSecs)
		c.HookTimeoutSecs = 30
	}
	if c.HookConcurrency <= 0 {
		r.warn("hook_concurrency %d is invalid, clamping to 10", c.HookConcurrency)
		c.HookConcurrency = 10
	}

	return r
}
