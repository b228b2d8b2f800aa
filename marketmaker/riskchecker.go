package marketmaker

import (
	"math"
	"sync/atomic"

	"oms-core-engine/domain"
)

// RiskChecker gates individual quotes against the position/value limits
// and tracks the consecutive-loss counter used by ShouldStop.
type RiskChecker struct {
	cfg Config

	dailyLoss         atomic.Uint64 // float64 bits
	consecutiveLosses atomic.Int64
}

func NewRiskChecker(cfg Config) *RiskChecker {
	return &RiskChecker{cfg: cfg}
}

// CheckQuote reports whether quote would keep the resulting position
// within the configured inventory, value and stop-loss bounds.
func (r *RiskChecker) CheckQuote(quote Quote, inventory InventorySnapshot) bool {
	newPosition := inventory.Position
	if quote.Side == domain.Buy {
		newPosition += quote.Qty
	} else {
		newPosition -= quote.Qty
	}

	if math.Abs(newPosition) > r.cfg.MaxInventory {
		return false
	}

	positionValue := math.Abs(newPosition * quote.Price)
	if positionValue > r.cfg.MaxPositionValue {
		return false
	}

	pnlPercent := inventory.UnrealizedPnL / (inventory.PositionValue + 1e-10)
	return pnlPercent >= -r.cfg.StopLossPercent
}

// ShouldStop reports whether trading should halt given the current
// inventory, realized daily PnL, and a run of consecutive losing fills.
func (r *RiskChecker) ShouldStop(inventory InventorySnapshot, dailyPnL float64) bool {
	if dailyPnL < -r.cfg.MaxDailyLoss {
		return true
	}

	pnlPercent := inventory.UnrealizedPnL / (inventory.PositionValue + 1e-10)
	if pnlPercent < -r.cfg.StopLossPercent {
		return true
	}

	return r.consecutiveLosses.Load() > 10
}

// UpdatePnL records a fill's realized PnL, resetting the consecutive-loss
// counter on a win and incrementing it on a loss.
func (r *RiskChecker) UpdatePnL(pnl float64) {
	for {
		old := r.dailyLoss.Load()
		newV := math.Float64bits(math.Float64frombits(old) + pnl)
		if r.dailyLoss.CompareAndSwap(old, newV) {
			break
		}
	}

	if pnl < 0 {
		r.consecutiveLosses.Add(1)
	} else {
		r.consecutiveLosses.Store(0)
	}
}

// DailyLoss returns the running realized PnL tracked by UpdatePnL.
func (r *RiskChecker) DailyLoss() float64 {
	return math.Float64frombits(r.dailyLoss.Load())
}
