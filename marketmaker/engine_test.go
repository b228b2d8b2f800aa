package marketmaker

import (
	"math"
	"testing"

	"oms-core-engine/domain"
)

func testConfig() Config {
	return Config{
		BaseSpreadBps:    10,
		MinSpreadBps:     5,
		MaxSpreadBps:     50,
		QuoteSize:        1,
		QuoteLevels:      2,
		LevelSpacingBps:  0,
		MaxInventory:     100,
		InventorySkew:    0.5,
		VolatilityFactor: 1.0,
		MaxPositionValue: 1_000_000,
		StopLossPercent:  0.02,
		MaxDailyLoss:     1000,
	}
}

func approxEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

// Flat position: mid=100, volatility=0, baseSpreadBps=10, levels=2,
// levelSpacingBps=0. Expect Buy L0=99.9, Sell L0=100.1, and L1 identical
// to L0 since spacing is zero.
func TestGenerateQuotesFlatPositionSymmetry(t *testing.T) {
	e := New(testConfig(), "BTCUSDT", "binance")
	e.Start()

	e.UpdateMarketData(100, 1, 100, 1, 100)
	e.UpdatePosition(0, 0, 0)
	e.GenerateQuotes()

	quotes := drainQuotes(e)
	if len(quotes) != 4 {
		t.Fatalf("expected 4 quotes (2 levels x 2 sides), got %d", len(quotes))
	}

	byLevelSide := map[[2]int]Quote{}
	for _, q := range quotes {
		side := 0
		if q.Side == domain.Sell {
			side = 1
		}
		byLevelSide[[2]int{q.Level, side}] = q
	}

	buyL0 := byLevelSide[[2]int{0, 0}]
	sellL0 := byLevelSide[[2]int{0, 1}]
	buyL1 := byLevelSide[[2]int{1, 0}]
	sellL1 := byLevelSide[[2]int{1, 1}]

	if !approxEqual(buyL0.Price, 99.9) {
		t.Fatalf("expected buy L0 = 99.9, got %v", buyL0.Price)
	}
	if !approxEqual(sellL0.Price, 100.1) {
		t.Fatalf("expected sell L0 = 100.1, got %v", sellL0.Price)
	}
	if !approxEqual(buyL1.Price, buyL0.Price) {
		t.Fatalf("expected buy L1 == buy L0 with zero spacing, got %v vs %v", buyL1.Price, buyL0.Price)
	}
	if !approxEqual(sellL1.Price, sellL0.Price) {
		t.Fatalf("expected sell L1 == sell L0 with zero spacing, got %v vs %v", sellL1.Price, sellL0.Price)
	}
}

// With inventorySkew=0.5 and position at +MaxInventory, the per-level
// skew step multiplies sell prices by 0.75 and buy prices by 1.25
// relative to the unskewed level price.
func TestQuoteLevelAppliesInventorySkew(t *testing.T) {
	e := New(testConfig(), "BTCUSDT", "binance")
	longInventory := InventorySnapshot{Position: e.cfg.MaxInventory}

	const spread = 0.001
	buy := e.quoteLevel(domain.Buy, 100, spread, 0, longInventory)
	sell := e.quoteLevel(domain.Sell, 100, spread, 0, longInventory)

	unskewedBuy := 100 * (1 - spread)
	unskewedSell := 100 * (1 + spread)

	if !approxEqual(buy.Price, unskewedBuy*1.25) {
		t.Fatalf("expected buy price %v (unskewed*1.25), got %v", unskewedBuy*1.25, buy.Price)
	}
	if !approxEqual(sell.Price, unskewedSell*0.75) {
		t.Fatalf("expected sell price %v (unskewed*0.75), got %v", unskewedSell*0.75, sell.Price)
	}
}

func TestQuoteLevelShortInventorySkew(t *testing.T) {
	e := New(testConfig(), "BTCUSDT", "binance")
	shortInventory := InventorySnapshot{Position: -e.cfg.MaxInventory}

	const spread = 0.001
	buy := e.quoteLevel(domain.Buy, 100, spread, 0, shortInventory)
	sell := e.quoteLevel(domain.Sell, 100, spread, 0, shortInventory)

	unskewedBuy := 100 * (1 - spread)
	unskewedSell := 100 * (1 + spread)

	if !approxEqual(buy.Price, unskewedBuy*1.25) {
		t.Fatalf("expected short-side buy price %v, got %v", unskewedBuy*1.25, buy.Price)
	}
	if !approxEqual(sell.Price, unskewedSell*0.75) {
		t.Fatalf("expected short-side sell price %v, got %v", unskewedSell*0.75, sell.Price)
	}
}

// With nonzero level spacing, each deeper level's deviation from mid is
// strictly larger than the last, on both sides.
func TestQuoteDeviationGrowsWithLevel(t *testing.T) {
	cfg := testConfig()
	cfg.QuoteLevels = 3
	cfg.LevelSpacingBps = 5
	e := New(cfg, "BTCUSDT", "binance")
	e.Start()

	e.UpdateMarketData(100, 1, 100, 1, 100)
	e.GenerateQuotes()

	var lastBuy, lastSell float64 = 100, 100
	for _, q := range drainQuotes(e) {
		dev := math.Abs(q.Price - 100)
		if q.Side == domain.Buy {
			if q.Price >= lastBuy {
				t.Fatalf("buy L%d at %v not below previous level %v", q.Level, q.Price, lastBuy)
			}
			lastBuy = q.Price
		} else {
			if q.Price <= lastSell {
				t.Fatalf("sell L%d at %v not above previous level %v", q.Level, q.Price, lastSell)
			}
			lastSell = q.Price
		}
		if dev <= 0 {
			t.Fatalf("level %d %s quote sits on mid", q.Level, q.Side)
		}
	}
}

func TestGenerateQuotesNoopWithoutMarketData(t *testing.T) {
	e := New(testConfig(), "BTCUSDT", "binance")
	e.Start()
	e.GenerateQuotes()

	if _, ok := e.NextQuote(); ok {
		t.Fatalf("expected no quotes without market data")
	}
}

func TestGenerateQuotesNoopWhenStopped(t *testing.T) {
	e := New(testConfig(), "BTCUSDT", "binance")
	e.UpdateMarketData(100, 1, 100, 1, 100)
	e.GenerateQuotes()

	if _, ok := e.NextQuote(); ok {
		t.Fatalf("expected no quotes before Start")
	}
}

// A buy fill from any quote would push the position past MaxInventory, so
// only the sell side survives the risk filter.
func TestGenerateQuotesDropsInventoryBreachingQuotes(t *testing.T) {
	cfg := testConfig()
	cfg.MaxInventory = 1
	cfg.QuoteSize = 1
	e := New(cfg, "BTCUSDT", "binance")
	e.Start()

	e.UpdateMarketData(100, 1, 100, 1, 100)
	e.UpdatePosition(0.5, 100, 0)
	e.GenerateQuotes()

	quotes := drainQuotes(e)
	if len(quotes) != 2 {
		t.Fatalf("expected only the 2 sell quotes to survive, got %d", len(quotes))
	}
	for _, q := range quotes {
		if q.Side != domain.Sell {
			t.Fatalf("expected every surviving quote to be a sell, got %+v", q)
		}
	}
}

// Once realized losses breach MaxDailyLoss the book goes quiet entirely.
func TestGenerateQuotesHaltsOnDailyLoss(t *testing.T) {
	cfg := testConfig()
	cfg.MaxDailyLoss = 100
	e := New(cfg, "BTCUSDT", "binance")
	e.Start()

	e.UpdateMarketData(100, 1, 100, 1, 100)
	e.RecordFillPnL(-150)
	e.GenerateQuotes()

	if _, ok := e.NextQuote(); ok {
		t.Fatal("expected no quotes after the daily loss limit is breached")
	}
}

func TestUpdatePositionComputesUnrealizedPnL(t *testing.T) {
	e := New(testConfig(), "BTCUSDT", "binance")
	e.UpdateMarketData(101, 1, 101, 1, 101)
	e.UpdatePosition(2, 100, 0)

	inv := e.InventoryState()
	if !approxEqual(inv.UnrealizedPnL, 2) {
		t.Fatalf("expected unrealized PnL 2, got %v", inv.UnrealizedPnL)
	}
}

func drainQuotes(e *Engine) []Quote {
	var out []Quote
	for {
		q, ok := e.NextQuote()
		if !ok {
			break
		}
		out = append(out, q)
	}
	return out
}
