package hooks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Manager fans a triggered event out to every hook registered for its type,
// plus the shared stdio sink if one is enabled.
type Manager struct {
	hooks       map[EventType][]Hook
	globalHooks []Hook
	stdioHook   *StdioHook
	mu          sync.RWMutex
	pool        *executionPool
	logger      *slog.Logger
	config      Config
}

// NewManager creates a hook manager. logger defaults to slog.Default() if nil.
func NewManager(config Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	if _, err := time.ParseDuration(config.Timeout); err != nil {
		logger.Warn("invalid hook timeout, using default", "timeout", config.Timeout, "error", err)
	}

	m := &Manager{
		hooks:  make(map[EventType][]Hook),
		logger: logger,
		config: config,
		pool:   newExecutionPool(config.Concurrency, logger),
	}

	if config.StdioFormat != "" {
		_ = m.EnableStdioOutput(config.StdioFormat)
	}

	return m
}

// Register attaches hook to eventType.
func (m *Manager) Register(eventType EventType, hook Hook) error {
	if hook == nil {
		return fmt.Errorf("cannot register nil hook")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks[eventType] = append(m.hooks[eventType], hook)
	m.logger.Info("hook registered", "event_type", eventType, "hook_type", hook.Type(), "hook_id", hook.ID())
	return nil
}

// RegisterGlobal attaches hook to every event, regardless of type.
func (m *Manager) RegisterGlobal(hook Hook) error {
	if hook == nil {
		return fmt.Errorf("cannot register nil hook")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.globalHooks = append(m.globalHooks, hook)
	m.logger.Info("global hook registered", "hook_type", hook.Type(), "hook_id", hook.ID())
	return nil
}

// Trigger executes every hook registered for event.Type, every global hook,
// and the stdio sink if enabled, each in its own goroutine bounded by the
// execution pool. Safe to call on a nil manager (no-op).
func (m *Manager) Trigger(ctx context.Context, event Event) {
	if m == nil {
		return
	}

	m.mu.RLock()
	registered := m.hooks[event.Type]
	hookList := make([]Hook, 0, len(registered)+len(m.globalHooks)+1)
	hookList = append(hookList, registered...)
	hookList = append(hookList, m.globalHooks...)
	if m.stdioHook != nil {
		hookList = append(hookList, m.stdioHook)
	}
	m.mu.RUnlock()

	if len(hookList) == 0 {
		return
	}

	m.logger.Debug("triggering hooks", "event_type", event.Type, "hook_count", len(hookList), "event", event.String())
	for _, h := range hookList {
		m.pool.execute(ctx, h, event)
	}
}

// EnableStdioOutput turns on the shared stdio sink ("json" or "env").
func (m *Manager) EnableStdioOutput(format string) error {
	if format != "json" && format != "env" {
		return fmt.Errorf("unsupported stdio format: %s", format)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stdioHook = NewStdioHook("stdio", format)
	return nil
}

// Close waits for pending hook executions to finish.
func (m *Manager) Close() error {
	if m == nil || m.pool == nil {
		return nil
	}
	m.pool.close()
	return nil
}

type executionPool struct {
	workers chan struct{}
	size    int
	active  int
	mu      sync.Mutex
	logger  *slog.Logger
}

func newExecutionPool(size int, logger *slog.Logger) *executionPool {
	if size <= 0 {
		size = 10
	}
	return &executionPool{workers: make(chan struct{}, size), size: size, logger: logger}
}

func (ep *executionPool) execute(ctx context.Context, hook Hook, event Event) {
	go func() {
		ep.workers <- struct{}{}
		defer func() { <-ep.workers }()

		ep.mu.Lock()
		ep.active++
		ep.mu.Unlock()
		defer func() {
			ep.mu.Lock()
			ep.active--
			ep.mu.Unlock()
		}()

		start := time.Now()
		err := hook.Execute(ctx, event)
		dur := time.Since(start)
		if err != nil {
			ep.logger.Error("hook execution failed", "hook_type", hook.Type(), "hook_id", hook.ID(),
				"event_type", event.Type, "duration_ms", dur.Milliseconds(), "error", err)
			return
		}
		ep.logger.Debug("hook executed", "hook_type", hook.Type(), "hook_id", hook.ID(),
			"event_type", event.Type, "duration_ms", dur.Milliseconds())
	}()
}

func (ep *executionPool) close() {
	for i := 0; i < cap(ep.workers); i++ {
		ep.workers <- struct{}{}
	}
}
