package alert

import (
	"fmt"
	"sync"
	"time"
)

// Alert is a single notification raised by a core subsystem.
type Alert struct {
	Level     string // "INFO", "WARNING", "ERROR", "CRITICAL"
	Message   string
	Timestamp time.Time
	Fields    map[string]interface{}
}

// Channel delivers an Alert somewhere (log, console, a paging system).
type Channel interface {
	Send(alert Alert) error
	Name() string
}

// Manager fans an Alert out to every registered channel, throttled per
// (level, message) key so a tripped circuit breaker or a repeated risk
// rejection doesn't flood the channels.
type Manager struct {
	channels []Channel
	throttle *Throttler
	mu       sync.RWMutex
}

// Throttler suppresses repeat sends of the same key within an interval.
type Throttler struct {
	mu       sync.Mutex
	seen     map[string]time.Time
	interval time.Duration
}

// NewThrottler creates a throttler with the given suppression window.
func NewThrottler(interval time.Duration) *Throttler {
	return &Throttler{seen: make(map[string]time.Time), interval: interval}
}

// Allow reports whether key may fire again, recording the attempt if so.
func (t *Throttler) Allow(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	if last, ok := t.seen[key]; ok && now.Sub(last) < t.interval {
		return false
	}
	t.seen[key] = now
	return true
}

// Reset clears the throttle record for a single key.
func (t *Throttler) Reset(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.seen, key)
}

// Clear wipes every throttle record.
func (t *Throttler) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seen = make(map[string]time.Time)
}

// NewManager builds a Manager over the given channels.
func NewManager(channels []Channel, throttleInterval time.Duration) *Manager {
	return &Manager{
		channels: channels,
		throttle: NewThrottler(throttleInterval),
	}
}

// SendAlert delivers alert to every channel; silently dropped if throttled.
func (m *Manager) SendAlert(alert Alert) error {
	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now()
	}

	if !m.throttle.Allow(alert.Level + "|" + alert.Message) {
		return nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	// Delivery to any one channel counts as delivered; only a total failure
	// surfaces an error.
	var lastErr error
	delivered := 0
	for _, ch := range m.channels {
		if err := ch.Send(alert); err != nil {
			lastErr = fmt.Errorf("channel %s failed: %w", ch.Name(), err)
			continue
		}
		delivered++
	}
	if delivered == 0 && lastErr != nil {
		return lastErr
	}
	return nil
}

func (m *Manager) SendInfo(message string, fields map[string]interface{}) error {
	return m.SendAlert(Alert{Level: "INFO", Message: message, Fields: fields})
}

func (m *Manager) SendWarning(message string, fields map[string]interface{}) error {
	return m.SendAlert(Alert{Level: "WARNING", Message: message, Fields: fields})
}

func (m *Manager) SendError(message string, fields map[string]interface{}) error {
	return m.SendAlert(Alert{Level: "ERROR", Message: message, Fields: fields})
}

func (m *Manager) SendCritical(message string, fields map[string]interface{}) error {
	return m.SendAlert(Alert{Level: "CRITICAL", Message: message, Fields: fields})
}

// SendRiskBreach raises a CRITICAL alert for a risk-engine gate rejection
// the host considers worth paging on, e.g. the daily loss limit.
func (m *Manager) SendRiskBreach(symbol, gate string, value, limit float64) error {
	return m.SendCritical("risk gate breached", map[string]interface{}{
		"symbol": symbol,
		"gate":   gate,
		"value":  value,
		"limit":  limit,
	})
}

// SendCircuitBreakerTrip raises a WARNING alert when a symbol's price-move
// circuit breaker trips.
func (m *Manager) SendCircuitBreakerTrip(symbol, window string, moveBps float64) error {
	return m.SendWarning("circuit breaker tripped", map[string]interface{}{
		"symbol":  symbol,
		"window":  window,
		"moveBps": moveBps,
	})
}

func (m *Manager) AddChannel(ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels = append(m.channels, ch)
}

func (m *Manager) RemoveChannel(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	filtered := make([]Channel, 0, len(m.channels))
	for _, ch := range m.channels {
		if ch.Name() != name {
			filtered = append(filtered, ch)
		}
	}
	m.channels = filtered
}

func (m *Manager) GetChannels() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.channels))
	for _, ch := range m.channels {
		names = append(names, ch.Name())
	}
	return names
}

func (m *Manager) ResetThrottle() {
	m.throttle.Clear()
}
