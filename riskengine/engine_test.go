package riskengine

import (
	"testing"

	"oms-core-engine/domain"
)

func testLimits() Limits {
	return Limits{
		MaxOrderValue:    10000,
		MaxPositionValue: 50000,
		DailyLossLimit:   5000,
		MaxOpenOrders:    10,
	}
}

func TestCheckOrderBasicAdmission(t *testing.T) {
	e := New(testLimits(), nil)
	e.Start()

	order := domain.Order{Symbol: "BTCUSDT", Side: domain.Buy, Price: 40000, Qty: 0.1}
	if ok, gate := e.CheckOrder(order); !ok {
		t.Fatalf("expected admission, got rejected at gate %q", gate)
	}

	order.Qty = 0.5
	if ok, gate := e.CheckOrder(order); ok || gate != GateOrderValue {
		t.Fatalf("expected rejection at %s, got ok=%v gate=%q", GateOrderValue, ok, gate)
	}
}

func TestCheckOrderPositionValueGate(t *testing.T) {
	limits := testLimits()
	limits.MaxOrderValue = 1_000_000
	limits.MaxPositionValue = 1000
	e := New(limits, nil)
	e.Start()

	e.UpdatePosition("ETHUSDT", domain.Buy, 1, 900)

	order := domain.Order{Symbol: "ETHUSDT", Side: domain.Buy, Price: 200, Qty: 1}
	if ok, gate := e.CheckOrder(order); ok || gate != GatePositionValue {
		t.Fatalf("expected rejection at %s, got ok=%v gate=%q", GatePositionValue, ok, gate)
	}
}

func TestCheckOrderDailyLossGate(t *testing.T) {
	limits := testLimits()
	e := New(limits, nil)
	e.Start()

	e.UpdatePosition("BTCUSDT", domain.Buy, 1, 100)
	e.UpdatePosition("BTCUSDT", domain.Sell, 1, 100-limits.DailyLossLimit-1)

	order := domain.Order{Symbol: "BTCUSDT", Side: domain.Buy, Price: 10, Qty: 0.1}
	if ok, gate := e.CheckOrder(order); ok || gate != GateDailyLoss {
		t.Fatalf("expected rejection at %s, got ok=%v gate=%q", GateDailyLoss, ok, gate)
	}
}

func TestCheckOrderOpenOrdersGate(t *testing.T) {
	limits := testLimits()
	limits.MaxOpenOrders = 1
	e := New(limits, nil)
	e.Start()
	e.UpdateOrderCount(1)

	order := domain.Order{Symbol: "BTCUSDT", Side: domain.Buy, Price: 10, Qty: 0.1}
	if ok, gate := e.CheckOrder(order); ok || gate != GateOpenOrders {
		t.Fatalf("expected rejection at %s, got ok=%v gate=%q", GateOpenOrders, ok, gate)
	}
}

func TestUpdatePositionRealizesPnLOnClose(t *testing.T) {
	e := New(testLimits(), nil)

	e.UpdatePosition("X", domain.Buy, 1, 100)
	realized := e.UpdatePosition("X", domain.Sell, 1, 110)

	if realized != 10 {
		t.Fatalf("expected realized PnL 10, got %v", realized)
	}
	if e.DailyPnL() != 10 {
		t.Fatalf("expected daily PnL 10, got %v", e.DailyPnL())
	}
}

func TestUpdatePositionWeightedAveragePrice(t *testing.T) {
	e := New(testLimits(), nil)

	e.UpdatePosition("X", domain.Buy, 1, 100)
	e.UpdatePosition("X", domain.Buy, 1, 200)

	slot := e.slotFor("X")
	if got := slot.AvgPrice(); got != 150 {
		t.Fatalf("expected average price 150, got %v", got)
	}
	if got := slot.Qty(); got != 2 {
		t.Fatalf("expected qty 2, got %v", got)
	}
}

func TestUpdatePositionFlipResetsAveragePrice(t *testing.T) {
	e := New(testLimits(), nil)

	e.UpdatePosition("X", domain.Buy, 1, 100)
	e.UpdatePosition("X", domain.Sell, 3, 90)

	slot := e.slotFor("X")
	if got := slot.Qty(); got != -2 {
		t.Fatalf("expected qty -2, got %v", got)
	}
	if got := slot.AvgPrice(); got != 90 {
		t.Fatalf("expected flipped average price 90, got %v", got)
	}
}

func TestTotalExposureSumsAbsoluteValue(t *testing.T) {
	e := New(testLimits(), nil)
	e.UpdatePosition("X", domain.Buy, 1, 100)
	e.UpdatePosition("Y", domain.Sell, 2, 50)

	if got := e.TotalExposure(); got != 200 {
		t.Fatalf("expected total exposure 200, got %v", got)
	}
}

func TestResetDailyPnL(t *testing.T) {
	e := New(testLimits(), nil)
	e.UpdatePosition("X", domain.Buy, 1, 100)
	e.UpdatePosition("X", domain.Sell, 1, 110)
	if e.DailyPnL() == 0 {
		t.Fatalf("expected nonzero daily PnL before reset")
	}
	e.ResetDailyPnL()
	if e.DailyPnL() != 0 {
		t.Fatalf("expected daily PnL reset to 0, got %v", e.DailyPnL())
	}
}

// Benchmark-style check that CheckOrder stays comfortably under the 50us
// per-call budget across a run of calls.
func TestCheckOrderLatencyBudget(t *testing.T) {
	e := New(testLimits(), nil)
	e.Start()
	order := domain.Order{Symbol: "BTCUSDT", Side: domain.Buy, Price: 100, Qty: 0.01}

	const n = 10000
	for i := 0; i < n; i++ {
		e.CheckOrder(order)
	}

	stats := e.Stats()
	if stats.TotalChecks != n {
		t.Fatalf("expected %d checks recorded, got %d", n, stats.TotalChecks)
	}
	if stats.AvgLatencyUs >= 50 {
		t.Fatalf("average latency %.2fus exceeds the 50us budget", stats.AvgLatencyUs)
	}
}

func TestCheckOrderRejectsWhileStopped(t *testing.T) {
	e := New(testLimits(), nil)

	order := domain.Order{Symbol: "BTCUSDT", Side: domain.Buy, Price: 100, Qty: 0.1}
	if ok, gate := e.CheckOrder(order); ok || gate != GateEngineStopped {
		t.Fatalf("expected rejection at %s while stopped, got ok=%v gate=%q", GateEngineStopped, ok, gate)
	}

	e.Start()
	if ok, _ := e.CheckOrder(order); !ok {
		t.Fatalf("expected admission once started")
	}

	e.Stop()
	if ok, gate := e.CheckOrder(order); ok || gate != GateEngineStopped {
		t.Fatalf("expected rejection at %s after stop, got ok=%v gate=%q", GateEngineStopped, ok, gate)
	}
}

// A Sell order that reduces an existing long position must not be
// rejected by the absolute-value formula a naive |position|+notional
// check would apply.
func TestCheckOrderPositionValueGateSignedReduction(t *testing.T) {
	limits := testLimits()
	limits.MaxOrderValue = 1_000_000
	limits.MaxPositionValue = 1000
	e := New(limits, nil)
	e.Start()

	e.UpdatePosition("ETHUSDT", domain.Buy, 10, 100) // position value = 1000

	order := domain.Order{Symbol: "ETHUSDT", Side: domain.Sell, Price: 100, Qty: 5}
	if ok, gate := e.CheckOrder(order); !ok {
		t.Fatalf("expected admission for a reducing sell, got rejected at gate %q", gate)
	}
}

func TestPreOrderGuard(t *testing.T) {
	limits := testLimits()
	limits.MaxPositionValue = 100
	e := New(limits, nil)

	if err := e.PreOrder("X", 1); err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}
	e.slotFor("X").setAvgPrice(1000)
	if err := e.PreOrder("X", 1); err == nil {
		t.Fatalf("expected rejection for oversized position value")
	}
}
