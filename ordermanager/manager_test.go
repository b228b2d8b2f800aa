package ordermanager

import (
	"testing"
	"time"

	"oms-core-engine/domain"
)

func testConfig() Config {
	return Config{
		RingBufferSize:     64,
		MaxOrdersPerSecond: 3,
		MaxActiveOrders:    1000,
	}
}

func sampleOrder(venue domain.Venue) domain.Order {
	return domain.Order{
		ClientID: "c1",
		Venue:    venue,
		Symbol:   "BTCUSDT",
		Side:     domain.Buy,
		Type:     domain.Limit,
		Price:    100,
		Qty:      1,
	}
}

// With maxOrdersPerSecond=3, submitting 5 orders in under a second admits
// the first 3 and rejects the last 2.
func TestSubmitOrderRateLimit(t *testing.T) {
	m := New(testConfig(), nil)

	var rejected int
	for i := 0; i < 5; i++ {
		if err := m.SubmitOrder(sampleOrder(domain.BinanceSpot)); err != nil {
			rejected++
		}
	}

	if rejected != 2 {
		t.Fatalf("expected 2 rejections, got %d", rejected)
	}
	if got := m.Stats().OrdersRejected; got != 2 {
		t.Fatalf("expected OrdersRejected=2, got %d", got)
	}
}

func TestSubmitOrderQueueFull(t *testing.T) {
	cfg := testConfig()
	cfg.RingBufferSize = 2
	cfg.MaxOrdersPerSecond = 1000
	m := New(cfg, nil)

	// Ring of capacity 2 holds at most 1 live element.
	if err := m.SubmitOrder(sampleOrder(domain.BinanceSpot)); err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}
	if err := m.SubmitOrder(sampleOrder(domain.BinanceSpot)); err != ErrQueueFull {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

func TestDispatchAdmitsAndIndexesOrder(t *testing.T) {
	cfg := testConfig()
	cfg.MaxOrdersPerSecond = 1000
	m := New(cfg, nil)
	m.Start()
	defer m.Stop()

	if err := m.SubmitOrder(sampleOrder(domain.BybitSpot)); err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.Stats().OrdersProcessed == 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	orders := m.GetOrdersByVenue(domain.BybitSpot)
	if len(orders) != 1 {
		t.Fatalf("expected 1 admitted order, got %d", len(orders))
	}
	if orders[0].ID == 0 {
		t.Fatalf("expected a nonzero assigned order ID")
	}

	got, ok := m.GetOrder(orders[0].ID)
	if !ok || got.Symbol != "BTCUSDT" {
		t.Fatalf("GetOrder returned unexpected result: %+v ok=%v", got, ok)
	}
}

func TestCancelOrder(t *testing.T) {
	cfg := testConfig()
	cfg.MaxOrdersPerSecond = 1000
	m := New(cfg, nil)
	m.Start()
	defer m.Stop()

	m.SubmitOrder(sampleOrder(domain.OKXSpot))

	var id uint64
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		orders := m.GetOrdersByVenue(domain.OKXSpot)
		if len(orders) == 1 {
			id = orders[0].ID
			break
		}
		time.Sleep(time.Millisecond)
	}
	if id == 0 {
		t.Fatalf("order never admitted")
	}

	if err := m.CancelOrder(id, domain.OKXSpot); err != nil {
		t.Fatalf("unexpected cancel error: %v", err)
	}

	got, ok := m.GetOrder(id)
	if !ok || got.Status != domain.Canceled {
		t.Fatalf("expected canceled order, got %+v ok=%v", got, ok)
	}

	if err := m.CancelOrder(999999, domain.OKXSpot); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSubmitOrderActiveOrderCap(t *testing.T) {
	cfg := testConfig()
	cfg.MaxOrdersPerSecond = 1000
	cfg.MaxActiveOrders = 1
	m := New(cfg, nil)
	m.Start()
	defer m.Stop()

	if err := m.SubmitOrder(sampleOrder(domain.Upbit)); err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.Stats().OrdersProcessed == 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	if err := m.SubmitOrder(sampleOrder(domain.Upbit)); err != ErrTooManyActive {
		t.Fatalf("expected ErrTooManyActive once the index is at capacity, got %v", err)
	}
}

func TestUpdateOrderUnknownID(t *testing.T) {
	m := New(testConfig(), nil)
	if err := m.UpdateOrder(domain.Order{ID: 42}); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateOrderIsIdempotent(t *testing.T) {
	cfg := testConfig()
	cfg.MaxOrdersPerSecond = 1000
	m := New(cfg, nil)
	m.Start()
	defer m.Stop()

	m.SubmitOrder(sampleOrder(domain.BinanceFutures))

	var admitted domain.Order
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if orders := m.GetOrdersByVenue(domain.BinanceFutures); len(orders) == 1 {
			admitted = orders[0]
			break
		}
		time.Sleep(time.Millisecond)
	}
	if admitted.ID == 0 {
		t.Fatalf("order never admitted")
	}

	admitted.ExecutedQty = 0.5
	admitted.Status = domain.PartiallyFilled
	if err := m.UpdateOrder(admitted); err != nil {
		t.Fatalf("first update: %v", err)
	}
	if err := m.UpdateOrder(admitted); err != nil {
		t.Fatalf("second identical update: %v", err)
	}

	got, _ := m.GetOrder(admitted.ID)
	if got.ExecutedQty != 0.5 || got.Status != domain.PartiallyFilled {
		t.Fatalf("unexpected stored record: %+v", got)
	}
}

// Dispatch assigns strictly increasing IDs, regardless of which venue's
// ring each order arrived on.
func TestOrderIDsStrictlyIncrease(t *testing.T) {
	cfg := testConfig()
	cfg.MaxOrdersPerSecond = 1000
	m := New(cfg, nil)
	m.Start()
	defer m.Stop()

	venues := []domain.Venue{domain.BinanceSpot, domain.BybitSpot, domain.OKXSpot}
	for i := 0; i < 9; i++ {
		if err := m.SubmitOrder(sampleOrder(venues[i%len(venues)])); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.Stats().OrdersProcessed == 9 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	seen := map[uint64]bool{}
	for _, v := range venues {
		var prev uint64
		for _, o := range m.GetOrdersByVenue(v) {
			if o.ID <= prev {
				t.Fatalf("IDs not increasing within venue %s: %d after %d", v, o.ID, prev)
			}
			if seen[o.ID] {
				t.Fatalf("duplicate ID %d across venues", o.ID)
			}
			seen[o.ID] = true
			prev = o.ID
		}
	}
	if len(seen) != 9 {
		t.Fatalf("expected 9 admitted orders, got %d", len(seen))
	}
}

func TestStartStopIdempotent(t *testing.T) {
	m := New(testConfig(), nil)
	m.Start()
	m.Start()
	m.Stop()
	m.Stop()
}
