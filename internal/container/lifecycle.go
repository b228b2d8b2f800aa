// Package container assembles the core engine's subsystems per the host's
// configuration and manages their start/stop order.
package container

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"oms-core-engine/obslog"
)

// Lifecycle is any subsystem the container starts and stops in a fixed
// order: risk engine, order manager, arbitrage detector, market maker
// engines, the metrics HTTP server, then the config hot-reloader.
type Lifecycle interface {
	Start(ctx context.Context) error
	Stop() error
	Health() error
}

// LifecycleManager starts components in registration order and stops them
// in reverse, so every subsystem shuts down before anything it depends on.
type LifecycleManager struct {
	components []Lifecycle
	mu         sync.RWMutex
}

func NewLifecycleManager() *LifecycleManager {
	return &LifecycleManager{}
}

func (m *LifecycleManager) Register(component Lifecycle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components = append(m.components, component)
}

// StartAll starts every component in order; a failure rolls back every
// component already started.
func (m *LifecycleManager) StartAll(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i, component := range m.components {
		if err := component.Start(ctx); err != nil {
			for j := i - 1; j >= 0; j-- {
				m.components[j].Stop()
			}
			return fmt.Errorf("start component %d: %w", i, err)
		}
	}
	return nil
}

// StopAll stops every component in reverse registration order without
// short-circuiting on errors, and returns the last error encountered.
func (m *LifecycleManager) StopAll() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var lastErr error
	for i := len(m.components) - 1; i >= 0; i-- {
		if err := m.components[i].Stop(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func (m *LifecycleManager) CheckHealth() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i, component := range m.components {
		if err := component.Health(); err != nil {
			return fmt.Errorf("component %d unhealthy: %w", i, err)
		}
	}
	return nil
}

// subsystemComponent adapts the core subsystems' bare Start()/Stop()
// methods (no context, no error) to the Lifecycle interface.
type subsystemComponent struct {
	name    string
	start   func()
	stop    func()
	running func() bool
}

func (c *subsystemComponent) Start(ctx context.Context) error {
	c.start()
	return nil
}

func (c *subsystemComponent) Stop() error {
	c.stop()
	return nil
}

func (c *subsystemComponent) Health() error {
	if c.running != nil && !c.running() {
		return fmt.Errorf("%s is not running", c.name)
	}
	return nil
}

// hotReloaderComponent adapts *config.HotReloader's (ctx) error / () error
// Start/Stop signature to Lifecycle; the watcher has no independent health
// condition of its own, so Health always succeeds.
type hotReloaderComponent struct {
	reloader interface {
		Start(ctx context.Context) error
		Stop() error
	}
}

func (h *hotReloaderComponent) Start(ctx context.Context) error { return h.reloader.Start(ctx) }
func (h *hotReloaderComponent) Stop() error                     { return h.reloader.Stop() }
func (h *hotReloaderComponent) Health() error                   { return nil }

// httpServerComponent runs an http.Server in the background and shuts it
// down gracefully on Stop.
type httpServerComponent struct {
	name    string
	handler http.Handler
	addr    string
	log     *obslog.Logger

	mu      sync.Mutex
	server  *http.Server
	started bool
}

func (h *httpServerComponent) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.started || h.addr == "" {
		return nil
	}

	h.server = &http.Server{Addr: h.addr, Handler: h.handler}
	go func() {
		if h.log != nil {
			h.log.Info(fmt.Sprintf("%s listening on %s", h.name, h.addr))
		}
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if h.log != nil {
				h.log.LogError(err, map[string]interface{}{"component": h.name})
			}
		}
	}()
	h.started = true
	return nil
}

func (h *httpServerComponent) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.started || h.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("%s shutdown: %w", h.name, err)
	}
	h.started = false
	return nil
}

func (h *httpServerComponent) Health() error {
	if h.addr != "" && !h.started {
		return fmt.Errorf("%s not started", h.name)
	}
	return nil
}
