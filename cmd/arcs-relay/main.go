package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/arcs-rmm/relay/internal/audit"
	"github.com/arcs-rmm/relay/internal/audit/hooks"
	"github.com/arcs-rmm/relay/internal/commandrouter"
	"github.com/arcs-rmm/relay/internal/config"
	"github.com/arcs-rmm/relay/internal/device"
	"github.com/arcs-rmm/relay/internal/httpapi"
	"github.com/arcs-rmm/relay/internal/logger"
	"github.com/arcs-rmm/relay/internal/metrics"
	"github.com/arcs-rmm/relay/internal/ratelimit"
	"github.com/arcs-rmm/relay/internal/relayconn"
	"github.com/arcs-rmm/relay/internal/session"
	"github.com/arcs-rmm/relay/internal/streamrouter"
	"github.com/arcs-rmm/relay/internal/token"
)

var version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "arcs-relay",
	Short: "ARCS relay server",
	Long:  "arcs-relay brokers WebSocket sessions between capture devices and their controllers.",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the relay server",
	Run: func(cmd *cobra.Command, args []string) {
		serve()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

func main() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file (default: ./arcs.{yaml,json,...})")
	rootCmd.AddCommand(serveCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serve() {
	cfg, warnings, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal: "+err.Error())
		os.Exit(1)
	}

	logger.Init()
	log := logger.Logger().With("component", "cli")
	for _, w := range warnings {
		log.Warn("config validation", "error", w)
	}

	devices, err := device.Open(cfg.DeviceStorePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal: opening device registry: "+err.Error())
		os.Exit(1)
	}
	defer devices.Close()

	auditLog, err := audit.Open(cfg.AuditLogPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal: opening audit log: "+err.Error())
		os.Exit(1)
	}
	defer auditLog.Close()

	hookMgr := hooks.NewManager(hooks.Config{
		Timeout:     cfg.HookTimeout().String(),
		Concurrency: cfg.HookConcurrency,
		StdioFormat: cfg.HookStdioFormat,
	}, log)
	defer hookMgr.Close()
	if cfg.HookShellScript != "" {
		_ = hookMgr.RegisterGlobal(hooks.NewShellHook("configured-shell", cfg.HookShellScript, cfg.HookTimeout()))
	}
	if cfg.HookWebhookURL != "" {
		_ = hookMgr.RegisterGlobal(hooks.NewWebhookHook("configured-webhook", cfg.HookWebhookURL, cfg.HookTimeout()))
	}
	auditLog.SetHooks(hookMgr)

	tokens := token.New([]byte(cfg.TokenSecret), cfg.TokenExpiry(), token.DefaultRevocationCapacity)
	limiter := ratelimit.New(ratelimit.DefaultConfigs)
	sessions := session.NewManager(cfg.IdleSessionTimeout())
	streams := streamrouter.New(cfg.MaxQueueDepth)
	commands := commandrouter.New(limiter, auditLog)
	conns := relayconn.NewRegistry()

	deps := &relayconn.Deps{
		Devices:           devices,
		Tokens:            tokens,
		Limiter:           limiter,
		Audit:             auditLog,
		Sessions:          sessions,
		Streams:           streams,
		Commands:          commands,
		Conns:             conns,
		HeartbeatInterval: cfg.HeartbeatInterval(),
		HeartbeatTimeout:  cfg.HeartbeatTimeout(),
		SendQueueDepth:    cfg.MaxQueueDepth,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go runSweeper(ctx, sessions, conns, auditLog, log)

	upgrader := websocket.Upgrader{
		Subprotocols:    []string{"arcs-v1"},
		CheckOrigin:     func(*http.Request) bool { return true },
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
	}

	wsMux := http.NewServeMux()
	wsMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("websocket upgrade failed", "error", err)
			return
		}
		relayconn.Accept(ws, deps).Start()
	})

	wsServer := &http.Server{Addr: cfg.ListenAddr, Handler: wsMux}
	httpServer := &http.Server{Addr: cfg.HTTPListenAddr, Handler: httpapi.NewRouter(httpapi.Deps{Devices: devices, Sessions: sessions})}

	errCh := make(chan error, 2)
	go func() {
		log.Info("websocket listener starting", "addr", cfg.ListenAddr)
		if cfg.TLSEnabled() {
			errCh <- wsServer.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
			return
		}
		errCh <- wsServer.ListenAndServe()
	}()
	go func() {
		log.Info("http listener starting", "addr", cfg.HTTPListenAddr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			log.Error("listener failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = wsServer.Shutdown(shutdownCtx)
	_ = httpServer.Shutdown(shutdownCtx)
	log.Info("server stopped")
}

// runSweeper expires idle sessions every 30s until ctx is canceled, per the sweeper task
// in the scheduling model. For each expired session it closes the device-leg and every
// controller-leg still attached in conns, and records one SESSION_END audit entry, per
// "sweeper closes the session; device-leg and any controller-legs receive a close; audit
// contains SESSION_END with the session-id". A panic inside the sweep is caught and logged
// so it never takes the process down.
func runSweeper(ctx context.Context, sessions *session.Manager, conns *relayconn.Registry, auditLog *audit.Logger, log interface {
	Info(string, ...any)
	Error(string, ...any)
}) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			func() {
				defer func() {
					if r := recover(); r != nil {
						log.Error("session sweep panicked", "panic", r)
					}
				}()
				expired := sessions.Sweep(time.Now())
				for _, id := range expired {
					closeExpiredSession(conns, auditLog, id)
				}
				if len(expired) > 0 {
					log.Info("swept idle sessions", "count", len(expired))
				}
			}()
		}
	}
}

// closeExpiredSession closes every connection (device-leg and controller-legs) still
// attached to an idle-expired session and records its SESSION_END audit entry.
func closeExpiredSession(conns *relayconn.Registry, auditLog *audit.Logger, sessionID string) {
	if dc, ok := conns.Device(sessionID); ok {
		dc.Close(websocket.CloseNormalClosure, "session idle timeout")
	}
	for _, cc := range conns.Controllers(sessionID) {
		cc.Close(websocket.CloseNormalClosure, "session idle timeout")
	}
	metrics.DecSessionClosed("idle_timeout")
	auditLog.Log(audit.EventSessionEnd, audit.SeverityInfo, sessionID, "session idle timeout", nil)
}
