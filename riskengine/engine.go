// Package riskengine gates every order against a fixed set of pre-trade
// risk checks and tracks realized/unrealized exposure per symbol.
package riskengine

import (
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"oms-core-engine/domain"
	"oms-core-engine/obslog"
)

// Gate names returned by CheckOrder on rejection.
const (
	GateOrderValue    = "order_value"
	GatePositionValue = "position_value"
	GateDailyLoss     = "daily_loss"
	GateOpenOrders    = "open_orders"
	GateEngineStopped = "engine_stopped"
)

// Limits is the set of configured pre-trade thresholds. Zero-value fields
// are treated as "no limit" nowhere; callers must supply real values.
type Limits struct {
	MaxOrderValue    float64
	MaxPositionValue float64
	DailyLossLimit   float64
	MaxOpenOrders    uint64
	MaxLeverage      float64
}

// Stats is a snapshot of the engine's running counters, safe to read
// concurrently with live traffic.
type Stats struct {
	TotalChecks  uint64
	AvgLatencyUs float64
	MinLatencyUs float64
	MaxLatencyUs float64
}

// Engine is the pre-trade risk gate plus the running position book it
// checks against. One Engine instance is shared by every order path; all
// methods are safe for concurrent use.
type Engine struct {
	limits Limits
	log    *obslog.Logger

	positions  [MaxSymbols]PositionSlot
	openOrders atomic.Int64
	dailyPnL   atomic.Uint64 // float64 bits

	totalChecks  atomic.Uint64
	totalLatency atomic.Uint64 // float64 bits, nanoseconds accumulated
	minLatencyNs atomic.Uint64 // float64 bits
	maxLatencyNs atomic.Uint64 // float64 bits

	running atomic.Bool
}

// New constructs an Engine. limits are copied once; the engine does not
// watch for runtime changes; callers that hot-reload config build a new
// Engine and swap it in atomically at the call site.
func New(limits Limits, log *obslog.Logger) *Engine {
	e := &Engine{limits: limits, log: log}
	e.minLatencyNs.Store(math.Float64bits(math.Inf(1)))
	return e
}

func (e *Engine) Start() {
	e.running.Store(true)
	if e.log != nil {
		e.log.Info("risk engine started")
	}
}

func (e *Engine) Stop() {
	e.running.Store(false)
	if e.log != nil {
		e.log.Info("risk engine stopped")
	}
}

// CheckOrder runs the four pre-trade gates in sequence against an order
// that has not yet been admitted, given its notional (price*qty) and the
// symbol's existing position value. It returns ok=true if every gate
// passes, or ok=false and the name of the first gate that rejected.
//
// Gate order is fixed: order value, position value, daily loss, open
// orders. A caller that wants to batch multiple checks should still call
// CheckOrder once per order, since latency stats are per call.
func (e *Engine) CheckOrder(order domain.Order) (ok bool, gate string) {
	if !e.running.Load() {
		return false, GateEngineStopped
	}

	start := time.Now()
	defer func() {
		e.recordLatency(time.Since(start))
	}()

	notional := order.Price * order.Qty
	if notional > e.limits.MaxOrderValue {
		return false, GateOrderValue
	}

	slot := e.slotFor(order.Symbol)
	projected := slot.Value()
	if order.Side == domain.Buy {
		projected += notional
	} else {
		projected -= notional
	}
	if math.Abs(projected) > e.limits.MaxPositionValue {
		return false, GatePositionValue
	}

	if -math.Float64frombits(e.dailyPnL.Load()) > e.limits.DailyLossLimit {
		return false, GateDailyLoss
	}

	if uint64(e.openOrders.Load()) >= e.limits.MaxOpenOrders {
		return false, GateOpenOrders
	}

	return true, ""
}

func (e *Engine) slotFor(symbol string) *PositionSlot {
	return &e.positions[slotIndex(symbol)]
}

// UpdatePosition applies a fill to the symbol's running position. side is
// the fill's side; qty and price are the fill's quantity and price, both
// positive. Realized PnL is booked whenever the fill reduces or reverses
// the existing position, exactly as a closing trade would on a venue.
func (e *Engine) UpdatePosition(symbol string, side domain.Side, qty, price float64) (realizedPnL float64) {
	slot := e.slotFor(symbol)

	delta := qty
	if side == domain.Sell {
		delta = -qty
	}

	oldQty := slot.Qty()
	oldAvg := slot.AvgPrice()
	newQty := oldQty + delta

	signFlip := oldQty != 0 && newQty != 0 && (oldQty > 0) != (newQty > 0)
	closing := oldQty != 0 && (oldQty > 0) != (delta > 0)

	if closing {
		closedQty := math.Min(math.Abs(oldQty), math.Abs(delta))
		if oldQty > 0 {
			realizedPnL = closedQty * (price - oldAvg)
		} else {
			realizedPnL = closedQty * (oldAvg - price)
		}
		addFloat64(&e.dailyPnL, realizedPnL)
	}

	switch {
	case oldQty == 0:
		// Opening a flat position: average price is the fill price.
		slot.setAvgPrice(price)
	case signFlip:
		// Crossed through zero: the remainder opens fresh at the fill price.
		slot.setAvgPrice(price)
	case (oldQty > 0) == (delta > 0) && delta != 0:
		// Adding to an existing position: weighted average.
		totalQty := math.Abs(oldQty) + math.Abs(delta)
		weighted := (math.Abs(oldQty)*oldAvg + math.Abs(delta)*price) / totalQty
		slot.setAvgPrice(weighted)
	default:
		// Partial close without flip: average price is unchanged.
	}

	slot.setQty(newQty)
	slot.setValue(newQty * slot.AvgPrice())

	return realizedPnL
}

// UpdateOrderCount adjusts the open-order counter by delta (+1 on
// admission, -1 on terminal state).
func (e *Engine) UpdateOrderCount(delta int64) {
	e.openOrders.Add(delta)
}

// TotalExposure sums the absolute position value across every symbol slot.
func (e *Engine) TotalExposure() float64 {
	var total float64
	for i := range e.positions {
		total += math.Abs(e.positions[i].Value())
	}
	return total
}

// DailyPnL returns the running realized PnL for the current trading day.
func (e *Engine) DailyPnL() float64 {
	return math.Float64frombits(e.dailyPnL.Load())
}

// ResetDailyPnL zeroes the running daily PnL counter. Nothing in the
// engine or the container calls it on a schedule.
func (e *Engine) ResetDailyPnL() {
	e.dailyPnL.Store(0)
}

func (e *Engine) recordLatency(d time.Duration) {
	ns := float64(d.Nanoseconds())
	e.totalChecks.Add(1)
	addFloat64(&e.totalLatency, ns)
	casBetterFloat64(&e.minLatencyNs, ns, func(cur, next float64) bool { return next < cur })
	casBetterFloat64(&e.maxLatencyNs, ns, func(cur, next float64) bool { return next > cur })
}

// Stats returns the running check-count and latency snapshot, in
// microseconds.
func (e *Engine) Stats() Stats {
	total := e.totalChecks.Load()
	var avgUs float64
	if total > 0 {
		avgUs = math.Float64frombits(e.totalLatency.Load()) / float64(total) / 1000
	}
	minUs := math.Float64frombits(e.minLatencyNs.Load()) / 1000
	if math.IsInf(minUs, 1) {
		minUs = 0
	}
	maxUs := math.Float64frombits(e.maxLatencyNs.Load()) / 1000
	return Stats{
		TotalChecks:  total,
		AvgLatencyUs: avgUs,
		MinLatencyUs: minUs,
		MaxLatencyUs: maxUs,
	}
}

// PreOrder implements the Guard interface so an Engine can be registered
// directly in a MultiGuard chain alongside the circuit breaker.
func (e *Engine) PreOrder(symbol string, deltaQty float64) error {
	slot := e.slotFor(symbol)
	projected := math.Abs(slot.Qty() + deltaQty)
	if projected*slot.AvgPrice() > e.limits.MaxPositionValue {
		return fmt.Errorf("risk: %s position value would exceed limit", symbol)
	}
	return nil
}
