// Package ingest is the thin push API the core exposes to exchange
// connectors. It owns no network connection: a host-side WebSocket or REST
// client decodes exchange wire formats and calls Push (or HandleWSMessage
// for a raw frame), and Feed fans the resulting tick into every subsystem
// that needs top-of-book data: the arbitrage detector's price matrix, the
// aggregated cross-venue book, and any market maker engine quoting that
// symbol.
package ingest

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"

	"oms-core-engine/arbitrage"
	"oms-core-engine/book"
	"oms-core-engine/marketmaker"
)

// Tick is an exchange-agnostic top-of-book observation, decoupled from any
// single exchange's wire format.
type Tick struct {
	Venue     string
	Symbol    string
	BidPrice  float64
	BidQty    float64
	AskPrice  float64
	AskQty    float64
	LastPrice float64
}

// Feed fans ticks into the arbitrage detector, the aggregated book, and
// the market maker engines registered for a symbol.
type Feed struct {
	detector *arbitrage.Detector
	books    *book.AggregatedBook

	mu     sync.RWMutex
	makers map[string]*marketmaker.Engine // symbol -> quoting engine
}

// New builds a Feed that forwards every pushed tick into detector's price
// matrix and books' per-venue top of book. Either may be nil when that
// subsystem is not wired.
func New(detector *arbitrage.Detector, books *book.AggregatedBook) *Feed {
	return &Feed{
		detector: detector,
		books:    books,
		makers:   make(map[string]*marketmaker.Engine),
	}
}

// RegisterMaker routes ticks for symbol into engine's market data feed, in
// addition to the arbitrage detector.
func (f *Feed) RegisterMaker(symbol string, engine *marketmaker.Engine) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.makers[symbol] = engine
}

// Push fans a single decoded tick out to every subscriber. Safe to call
// from any goroutine; each subscriber enforces its own single-writer
// discipline for the (symbol, venue) pair it owns.
func (f *Feed) Push(t Tick) {
	if f.detector != nil {
		f.detector.UpdatePriceFeed(t.Venue, t.Symbol, t.BidPrice, t.BidQty, t.AskPrice, t.AskQty)
	}
	if f.books != nil {
		f.books.UpdateBook(t.Venue, t.Symbol,
			[]book.Level{{Price: t.BidPrice, Qty: t.BidQty, Venue: t.Venue, NumOrders: 1}},
			[]book.Level{{Price: t.AskPrice, Qty: t.AskQty, Venue: t.Venue, NumOrders: 1}})
	}

	f.mu.RLock()
	engine, ok := f.makers[t.Symbol]
	f.mu.RUnlock()
	if ok {
		engine.UpdateMarketData(t.BidPrice, t.BidQty, t.AskPrice, t.AskQty, t.LastPrice)
	}
}

// wireTick is the minimal JSON envelope a connector's deframed WebSocket
// payload is expected to carry. Real exchange formats (Binance depth
// updates, Bybit/OKX orderbook deltas) are the collaborator connector's job
// to normalize into this shape before calling HandleWSMessage or Push.
type wireTick struct {
	Venue  string  `json:"venue"`
	Symbol string  `json:"symbol"`
	Bid    float64 `json:"bid"`
	BidQty float64 `json:"bidQty"`
	Ask    float64 `json:"ask"`
	AskQty float64 `json:"askQty"`
	Last   float64 `json:"last"`
}

// HandleWSMessage decodes one WebSocket frame per gorilla/websocket's
// message-type constants and, for a text frame, unmarshals and pushes the
// tick it carries. Binary, ping/pong and close frames are ignored; a real
// connector's deframing step would translate those before the core ever
// sees a message.
func (f *Feed) HandleWSMessage(messageType int, data []byte) error {
	if messageType != websocket.TextMessage {
		return nil
	}

	var wire wireTick
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("ingest: decode tick: %w", err)
	}

	f.Push(Tick{
		Venue:     wire.Venue,
		Symbol:    wire.Symbol,
		BidPrice:  wire.Bid,
		BidQty:    wire.BidQty,
		AskPrice:  wire.Ask,
		AskQty:    wire.AskQty,
		LastPrice: wire.Last,
	})
	return nil
}
