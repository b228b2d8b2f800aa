package book

import "testing"

func TestUpdateBookMergesAcrossVenues(t *testing.T) {
	b := New()
	b.UpdateBook("binance", "BTCUSDT", []Level{{Price: 100, Qty: 1, Venue: "binance"}}, []Level{{Price: 101, Qty: 1, Venue: "binance"}})
	b.UpdateBook("bybit", "BTCUSDT", []Level{{Price: 100.5, Qty: 2, Venue: "bybit"}}, []Level{{Price: 100.8, Qty: 2, Venue: "bybit"}})

	agg := b.GetAggregatedBook("BTCUSDT")
	if len(agg.Bids) != 2 || len(agg.Asks) != 2 {
		t.Fatalf("expected 2 bids and 2 asks, got %d/%d", len(agg.Bids), len(agg.Asks))
	}
	if agg.Bids[0].Venue != "bybit" || agg.Bids[0].Price != 100.5 {
		t.Fatalf("expected best bid from bybit at 100.5, got %+v", agg.Bids[0])
	}
	if agg.Asks[0].Venue != "bybit" || agg.Asks[0].Price != 100.8 {
		t.Fatalf("expected best ask from bybit at 100.8, got %+v", agg.Asks[0])
	}
}

func TestUpdateBookDoesNotCollapseEqualPrices(t *testing.T) {
	b := New()
	b.UpdateBook("binance", "BTCUSDT", nil, []Level{{Price: 100, Qty: 1, Venue: "binance"}})
	b.UpdateBook("bybit", "BTCUSDT", nil, []Level{{Price: 100, Qty: 1, Venue: "bybit"}})

	agg := b.GetAggregatedBook("BTCUSDT")
	if len(agg.Asks) != 2 {
		t.Fatalf("expected two distinct ask levels at the same price, got %d", len(agg.Asks))
	}
}

func TestBestBidAskEmptySymbol(t *testing.T) {
	b := New()
	bid, ask := b.BestBidAsk("UNKNOWN")
	if bid != (Level{}) || ask != (Level{}) {
		t.Fatalf("expected zero-value levels for unknown symbol, got bid=%+v ask=%+v", bid, ask)
	}
}

func TestBestVenueWalksDepthUntilFilled(t *testing.T) {
	b := New()
	b.UpdateBook("binance", "BTCUSDT", nil, []Level{{Price: 100, Qty: 1, Venue: "binance"}})
	b.UpdateBook("bybit", "BTCUSDT", nil, []Level{{Price: 100.1, Qty: 5, Venue: "bybit"}})

	venue := b.BestVenue("BTCUSDT", Buy, 3)
	if venue != "bybit" {
		t.Fatalf("expected bybit (cumulative depth only reaches 3 once its level is included), got %s", venue)
	}
}

func TestBestVenueFallsBackToBestLevel(t *testing.T) {
	b := New()
	b.UpdateBook("binance", "BTCUSDT", nil, []Level{{Price: 100, Qty: 1, Venue: "binance"}})

	venue := b.BestVenue("BTCUSDT", Buy, 1000)
	if venue != "binance" {
		t.Fatalf("expected fallback to the only venue, got %s", venue)
	}
}
