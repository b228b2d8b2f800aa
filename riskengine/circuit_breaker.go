package riskengine

import (
	"fmt"
	"sync"
	"time"

	"oms-core-engine/alert"
)

// Tick is the minimal market observation the circuit breaker needs.
type Tick struct {
	Price float64
	Ts    time.Time
}

type symbolWindow struct {
	window1m  []Tick
	window5m  []Tick
	tripped   bool
	trippedAt time.Time
}

// CircuitBreaker halts trading on a symbol when its price moves beyond a
// configured percentage within a 1-minute or 5-minute trailing window.
// Once tripped, PreOrder rejects every order for that symbol until Reset,
// or until OnTick sees a tick for it at least Cooldown after the trip.
type CircuitBreaker struct {
	OneMinuteThresh  float64
	FiveMinuteThresh float64
	Cooldown         time.Duration

	mu      sync.Mutex
	symbols map[string]*symbolWindow
	alerts  *alert.Manager
}

// NewCircuitBreaker builds a breaker with the given 1m/5m move thresholds
// (fractional, e.g. 0.05 for 5%). alerts may be nil to run without paging.
func NewCircuitBreaker(oneMinuteThresh, fiveMinuteThresh float64, cooldown time.Duration, alerts *alert.Manager) *CircuitBreaker {
	return &CircuitBreaker{
		OneMinuteThresh:  oneMinuteThresh,
		FiveMinuteThresh: fiveMinuteThresh,
		Cooldown:         cooldown,
		symbols:          make(map[string]*symbolWindow),
		alerts:           alerts,
	}
}

func (c *CircuitBreaker) windowFor(symbol string) *symbolWindow {
	w, ok := c.symbols[symbol]
	if !ok {
		w = &symbolWindow{
			window1m: make([]Tick, 0, 128),
			window5m: make([]Tick, 0, 512),
		}
		c.symbols[symbol] = w
	}
	return w
}

// OnTick feeds a new price observation for symbol and returns (tripped,
// window) where window is "1m" or "5m" if this tick caused a fresh trip.
// Already-tripped symbols still accumulate ticks (so Reset has fresh data)
// but return false once the initial trip has been reported.
func (c *CircuitBreaker) OnTick(symbol string, t Tick) (bool, string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	w := c.windowFor(symbol)
	w.window1m = append(w.window1m, t)
	w.window5m = append(w.window5m, t)
	trim(&w.window1m, t.Ts.Add(-1*time.Minute))
	trim(&w.window5m, t.Ts.Add(-5*time.Minute))

	if w.tripped {
		if c.Cooldown > 0 && t.Ts.Sub(w.trippedAt) >= c.Cooldown {
			w.tripped = false
		} else {
			return false, ""
		}
	}

	if moveBps, trip := check(w.window1m, c.OneMinuteThresh); trip {
		c.trip(symbol, w, t.Ts, "1m", moveBps)
		return true, "1m"
	}
	if moveBps, trip := check(w.window5m, c.FiveMinuteThresh); trip {
		c.trip(symbol, w, t.Ts, "5m", moveBps)
		return true, "5m"
	}
	return false, ""
}

func (c *CircuitBreaker) trip(symbol string, w *symbolWindow, at time.Time, window string, moveBps float64) {
	w.tripped = true
	w.trippedAt = at
	if c.alerts != nil {
		c.alerts.SendCircuitBreakerTrip(symbol, window, moveBps)
	}
}

// Tripped reports whether symbol is currently halted.
func (c *CircuitBreaker) Tripped(symbol string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, ok := c.symbols[symbol]
	return ok && w.tripped
}

// Reset clears the tripped state for symbol, e.g. on manual operator override.
func (c *CircuitBreaker) Reset(symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if w, ok := c.symbols[symbol]; ok {
		w.tripped = false
	}
}

// PreOrder implements Guard: it rejects any order on a tripped symbol.
func (c *CircuitBreaker) PreOrder(symbol string, _ float64) error {
	if c.Tripped(symbol) {
		return fmt.Errorf("circuit breaker: %s is halted", symbol)
	}
	return nil
}

func trim(buf *[]Tick, cutoff time.Time) {
	i := 0
	for ; i < len(*buf); i++ {
		if (*buf)[i].Ts.After(cutoff) {
			break
		}
	}
	if i > 0 {
		*buf = (*buf)[i:]
	}
}

// check reports the move in basis points from the window's first to last
// price, and whether it exceeds thresh (fractional, either direction).
func check(buf []Tick, thresh float64) (moveBps float64, trip bool) {
	if thresh <= 0 || len(buf) == 0 {
		return 0, false
	}
	first := buf[0].Price
	last := buf[len(buf)-1].Price
	if first == 0 {
		return 0, false
	}
	change := (last - first) / first
	moveBps = change * 10000
	if change > thresh || change < -thresh {
		return moveBps, true
	}
	return moveBps, false
}
