package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// HotReloadConfig controls the hot-reload watcher's behavior.
type HotReloadConfig struct {
	Enabled      bool
	CooldownTime time.Duration
}

// DefaultHotReloadConfig returns sensible hot-reload defaults.
func DefaultHotReloadConfig() HotReloadConfig {
	return HotReloadConfig{
		Enabled:      true,
		CooldownTime: 5 * time.Second,
	}
}

// ParameterValidator validates a category's parameter set before it is applied.
type ParameterValidator interface {
	Validate(params map[string]interface{}) error
}

// ParameterApplier pushes a validated parameter set into a running subsystem.
type ParameterApplier interface {
	ApplyParameters(params map[string]interface{}) error
}

// HotReloader watches the engine's YAML config file and, on a write or
// create event outside the cooldown window, reloads and validates the whole
// file and passes the result to the handler set by SetReloadHandler. It does
// not push parameters into running subsystems itself; that happens only
// through that handler or through ApplyParameters for a category with a
// registered validator and applier.
type HotReloader struct {
	config     HotReloadConfig
	configPath string
	watcher    *fsnotify.Watcher
	validators map[string]ParameterValidator
	appliers   map[string]ParameterApplier
	lastReload time.Time
	mu         sync.RWMutex
	stopChan   chan struct{}
	doneChan   chan struct{}

	reloadHandler func(cfg EngineConfig) error
}

// NewHotReloader creates a reloader watching configPath.
func NewHotReloader(configPath string, cfg HotReloadConfig) (*HotReloader, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	return &HotReloader{
		config:     cfg,
		configPath: configPath,
		watcher:    watcher,
		validators: make(map[string]ParameterValidator),
		appliers:   make(map[string]ParameterApplier),
		stopChan:   make(chan struct{}),
		doneChan:   make(chan struct{}),
	}, nil
}

// RegisterValidator registers a validator for a parameter category ("risk",
// "marketMaker", "arbitrage").
func (h *HotReloader) RegisterValidator(category string, v ParameterValidator) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.validators[category] = v
}

// RegisterApplier registers an applier for a parameter category.
func (h *HotReloader) RegisterApplier(category string, a ParameterApplier) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.appliers[category] = a
}

// SetReloadHandler sets the callback invoked with the freshly loaded config
// whenever the watched file changes.
func (h *HotReloader) SetReloadHandler(handler func(cfg EngineConfig) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reloadHandler = handler
}

// Start begins watching the config file. A no-op if hot reload is disabled.
func (h *HotReloader) Start(ctx context.Context) error {
	if !h.config.Enabled {
		return nil
	}
	if err := h.watcher.Add(h.configPath); err != nil {
		return fmt.Errorf("watch config file: %w", err)
	}
	go h.watch(ctx)
	return nil
}

// Stop stops the watcher and releases its file descriptor.
func (h *HotReloader) Stop() error {
	if !h.config.Enabled {
		if h.watcher != nil {
			return h.watcher.Close()
		}
		return nil
	}

	select {
	case <-h.stopChan:
	default:
		close(h.stopChan)
	}

	select {
	case <-h.doneChan:
	case <-time.After(time.Second):
	}

	if h.watcher != nil {
		return h.watcher.Close()
	}
	return nil
}

func (h *HotReloader) watch(ctx context.Context) {
	defer close(h.doneChan)

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.stopChan:
			return
		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Write == fsnotify.Write ||
				event.Op&fsnotify.Create == fsnotify.Create {
				h.handleConfigChange()
			}
		case _, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (h *HotReloader) handleConfigChange() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if time.Since(h.lastReload) < h.config.CooldownTime {
		return
	}

	cfg, err := LoadWithEnvOverrides(h.configPath)
	if err != nil {
		return
	}
	if h.reloadHandler != nil {
		if err := h.reloadHandler(cfg); err != nil {
			return
		}
	}

	h.lastReload = time.Now()
}

// ValidateParameters runs the registered validator for category.
func (h *HotReloader) ValidateParameters(category string, params map[string]interface{}) error {
	h.mu.RLock()
	v, ok := h.validators[category]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no validator registered for category: %s", category)
	}
	return v.Validate(params)
}

// ApplyParameters validates then applies params for category.
func (h *HotReloader) ApplyParameters(category string, params map[string]interface{}) error {
	if err := h.ValidateParameters(category, params); err != nil {
		return fmt.Errorf("validate %s: %w", category, err)
	}

	h.mu.RLock()
	a, ok := h.appliers[category]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no applier registered for category: %s", category)
	}
	return a.ApplyParameters(params)
}

// GetLastReloadTime returns the timestamp of the most recent successful reload.
func (h *HotReloader) GetLastReloadTime() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastReload
}

// RiskParameterValidator validates hot-reloadable risk engine parameters.
type RiskParameterValidator struct{}

func (RiskParameterValidator) Validate(params map[string]interface{}) error {
	r := RiskConfig{
		MaxOrderValue:    1,
		MaxPositionValue: 1,
		DailyLossLimit:   1,
		MaxOpenOrders:    1,
	}
	if v, ok := params["max_order_value"].(float64); ok {
		r.MaxOrderValue = v
	}
	if v, ok := params["max_position_value"].(float64); ok {
		r.MaxPositionValue = v
	}
	if v, ok := params["daily_loss_limit"].(float64); ok {
		r.DailyLossLimit = v
	}
	if v, ok := params["max_open_orders"].(int); ok {
		r.MaxOpenOrders = uint64(v)
	}
	return ValidateRiskParams(r)
}

// MarketMakerParameterValidator validates hot-reloadable market maker parameters.
type MarketMakerParameterValidator struct{}

func (MarketMakerParameterValidator) Validate(params map[string]interface{}) error {
	mm := MarketMakerConfig{
		BaseSpreadBps: 1,
		MinSpreadBps:  1,
		MaxSpreadBps:  1,
		QuoteSize:     1,
		QuoteLevels:   1,
	}
	if v, ok := params["base_spread_bps"].(float64); ok {
		mm.BaseSpreadBps = v
	}
	if v, ok := params["min_spread_bps"].(float64); ok {
		mm.MinSpreadBps = v
	}
	if v, ok := params["max_spread_bps"].(float64); ok {
		mm.MaxSpreadBps = v
	}
	if v, ok := params["quote_size"].(float64); ok {
		mm.QuoteSize = v
	}
	if v, ok := params["quote_levels"].(int); ok {
		mm.QuoteLevels = v
	}
	return ValidateMarketMakerParams(mm)
}

// ArbitrageParameterValidator validates hot-reloadable arbitrage parameters.
type ArbitrageParameterValidator struct{}

func (ArbitrageParameterValidator) Validate(params map[string]interface{}) error {
	a := ArbitrageConfig{
		MinProfitRate:   1,
		MinProfitAmount: 1,
		MaxPositionSize: 1,
	}
	if v, ok := params["min_profit_rate"].(float64); ok {
		a.MinProfitRate = v
	}
	if v, ok := params["min_profit_amount"].(float64); ok {
		a.MinProfitAmount = v
	}
	if v, ok := params["max_position_size"].(float64); ok {
		a.MaxPositionSize = v
	}
	return ValidateArbitrageParams(a)
}
