package ordermanager

import (
	"math"
	"sync/atomic"
)

func addFloat64(a *atomic.Uint64, delta float64) float64 {
	for {
		old := a.Load()
		newF := math.Float64frombits(old) + delta
		if a.CompareAndSwap(old, math.Float64bits(newF)) {
			return newF
		}
	}
}

func casBetterFloat64(a *atomic.Uint64, newV float64, better func(cur, next float64) bool) {
	for {
		old := a.Load()
		if !better(math.Float64frombits(old), newV) {
			return
		}
		if a.CompareAndSwap(old, math.Float64bits(newV)) {
			return
		}
	}
}
