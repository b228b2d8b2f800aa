package riskengine

import (
	"math"
	"sync/atomic"
)

// MaxSymbols bounds the open-addressed position table. Symbols hash (FNV-31
// style) modulo this size; distinct symbols that alias to the same slot
// overwrite each other's position rather than growing the table. The
// aliasing is accepted: it keeps every lookup O(1) with no allocation,
// and well under a thousand symbols trade at once in practice.
const MaxSymbols = 1000

// PositionSlot holds one symbol's position state as atomic float64 bit
// patterns, so reads and writes never allocate and never block.
//
// AvgPrice keeps the "retain unless adding" rule: a partial close leaves
// it unchanged, and when a position closes to exactly zero it is left at
// its prior value rather than reset, since there is no new quantity to
// average against. A fill that crosses through zero, or the next open
// from flat, sets it to the fill price.
type PositionSlot struct {
	qty      atomic.Uint64
	value    atomic.Uint64
	avgPrice atomic.Uint64
}

func (p *PositionSlot) Qty() float64      { return math.Float64frombits(p.qty.Load()) }
func (p *PositionSlot) Value() float64    { return math.Float64frombits(p.value.Load()) }
func (p *PositionSlot) AvgPrice() float64 { return math.Float64frombits(p.avgPrice.Load()) }

func (p *PositionSlot) setQty(v float64)      { p.qty.Store(math.Float64bits(v)) }
func (p *PositionSlot) setValue(v float64)    { p.value.Store(math.Float64bits(v)) }
func (p *PositionSlot) setAvgPrice(v float64) { p.avgPrice.Store(math.Float64bits(v)) }

// hashSymbol is the FNV-31-style multiplier hash used to place a symbol
// string into the position table: hash = hash*31 + byte, repeated.
func hashSymbol(symbol string) uint64 {
	var hash uint64
	for i := 0; i < len(symbol); i++ {
		hash = hash*31 + uint64(symbol[i])
	}
	return hash
}

func slotIndex(symbol string) uint64 {
	return hashSymbol(symbol) % MaxSymbols
}

// addFloat64 atomically adds delta to the float64 stored at a, via CAS loop.
func addFloat64(a *atomic.Uint64, delta float64) float64 {
	for {
		old := a.Load()
		oldF := math.Float64frombits(old)
		newF := oldF + delta
		if a.CompareAndSwap(old, math.Float64bits(newF)) {
			return newF
		}
	}
}

// casBetterFloat64 CASes a to newV only if better(current, newV) holds,
// retrying until it wins or another writer already made newV stale. Used
// for the lock-free min/max latency counters.
func casBetterFloat64(a *atomic.Uint64, newV float64, better func(cur, next float64) bool) {
	for {
		old := a.Load()
		oldF := math.Float64frombits(old)
		if !better(oldF, newV) {
			return
		}
		if a.CompareAndSwap(old, math.Float64bits(newV)) {
			return
		}
	}
}
