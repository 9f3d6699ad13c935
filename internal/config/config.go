// Package config loads the relay's process configuration from a file, the
// environment, and built-in defaults, via Viper, and validates it before the
// server starts accepting connections.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "ARCS"

// Config is the relay's full configuration surface, covering the network
// listeners, token signing, persisted-state paths, and the per-connection
// tunables documented in the network endpoints and configuration sections.
type Config struct {
	ListenAddr     string `mapstructure:"listen_addr"`
	HTTPListenAddr string `mapstructure:"http_listen_addr"`

	TokenSecret      string `mapstructure:"token_secret"`
	TokenExpiryHours int    `mapstructure:"token_expiry_hours"`

	MaxSessions int `mapstructure:"max_sessions"`

	DeviceStorePath string `mapstructure:"device_store_path"`
	AuditLogPath    string `mapstructure:"audit_log_path"`

	TLSCertPath string `mapstructure:"tls_cert_path"`
	TLSKeyPath  string `mapstructure:"tls_key_path"`

	IdleSessionTimeoutSeconds int `mapstructure:"idle_session_timeout_seconds"`
	HeartbeatIntervalSeconds  int `mapstructure:"heartbeat_interval_seconds"`
	HeartbeatTimeoutSeconds   int `mapstructure:"heartbeat_timeout_seconds"`
	MaxQueueDepth             int `mapstructure:"max_queue_depth"`

	// Audit hook fan-out, all optional. Empty HookShellScript/HookWebhookURL
	// leave that sink disabled; HookStdioFormat ("json"|"env") enables the
	// stderr sink independently of the other two.
	HookShellScript  string `mapstructure:"hook_shell_script"`
	HookWebhookURL   string `mapstructure:"hook_webhook_url"`
	HookStdioFormat  string `mapstructure:"hook_stdio_format"`
	HookTimeoutSecs  int    `mapstructure:"hook_timeout_seconds"`
	HookConcurrency  int    `mapstructure:"hook_concurrency"`
}

// Default returns the relay's built-in defaults. TokenSecret is intentionally
// left at a placeholder so Validate rejects a startup that never overrode it.
func Default() *Config {
	return &Config{
		ListenAddr:     ":8443",
		HTTPListenAddr: ":8080",

		TokenSecret:      "changeme",
		TokenExpiryHours: 24,

		MaxSessions: 1000,

		DeviceStorePath: "./data/devices.db",
		AuditLogPath:    "./data/audit.log",

		IdleSessionTimeoutSeconds: 300,
		HeartbeatIntervalSeconds:  30,
		HeartbeatTimeoutSeconds:   90,
		MaxQueueDepth:             30,

		HookTimeoutSecs: 30,
		HookConcurrency: 10,
	}
}

// Load reads cfgFile (if non-empty) or arcs.{yaml,json,...} from the working
// directory, overlays ARCS_-prefixed environment variables, and validates the
// result. A fatal validation error aborts startup; warnings are returned
// alongside the config for the caller to log.
func Load(cfgFile string) (*Config, []error, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	cfg := Default()
	setDefaults(v, cfg)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, nil, fmt.Errorf("reading config file %s: %w", cfgFile, err)
		}
	} else {
		v.SetConfigName("arcs")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	result := cfg.ValidateTiered()
	if result.HasFatals() {
		return nil, result.Warnings, fmt.Errorf("config has fatal validation errors: %v", result.Fatals[0])
	}
	return cfg, result.Warnings, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("listen_addr", cfg.ListenAddr)
	v.SetDefault("http_listen_addr", cfg.HTTPListenAddr)
	v.SetDefault("token_secret", cfg.TokenSecret)
	v.SetDefault("token_expiry_hours", cfg.TokenExpiryHours)
	v.SetDefault("max_sessions", cfg.MaxSessions)
	v.SetDefault("device_store_path", cfg.DeviceStorePath)
	v.SetDefault("audit_log_path", cfg.AuditLogPath)
	v.SetDefault("tls_cert_path", cfg.TLSCertPath)
	v.SetDefault("tls_key_path", cfg.TLSKeyPath)
	v.SetDefault("idle_session_timeout_seconds", cfg.IdleSessionTimeoutSeconds)
	v.SetDefault("heartbeat_interval_seconds", cfg.HeartbeatIntervalSeconds)
	v.SetDefault("heartbeat_timeout_seconds", cfg.HeartbeatTimeoutSeconds)
	v.SetDefault("max_queue_depth", cfg.MaxQueueDepth)
	v.SetDefault("hook_shell_script", cfg.HookShellScript)
	v.SetDefault("hook_webhook_url", cfg.HookWebhookURL)
	v.SetDefault("hook_stdio_format", cfg.HookStdioFormat)
	v.SetDefault("hook_timeout_seconds", cfg.HookTimeoutSecs)
	v.SetDefault("hook_concurrency", cfg.HookConcurrency)
}

// TokenExpiry returns TokenExpiryHours as a time.Duration.
func (c *Config) TokenExpiry() time.Duration {
	return time.Duration(c.TokenExpiryHours) * time.Hour
}

func (c *Config) IdleSessionTimeout() time.Duration {
	return time.Duration(c.IdleSessionTimeoutSeconds) * time.Second
}

func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalSeconds) * time.Second
}

func (c *Config) HeartbeatTimeout() time.Duration {
	return time.Duration(c.HeartbeatTimeoutSeconds) * time.Second
}

// HookTimeout returns HookTimeoutSecs as a time.Duration.
func (c *Config) HookTimeout() time.Duration {
	return time.Duration(c.HookTimeoutSecs) * time.Second
}

// TLSEnabled reports whether both certificate and key paths were configured.
func (c *Config) TLSEnabled() bool {
	return c.TLSCertPath != "" && c.TLSKeyPath != ""
}
