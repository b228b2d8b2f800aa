// Package domain holds the order, position and market-data records shared
// by every core subsystem, plus the closed enumerations drawn across a
// fixed set of venues.
package domain

import "fmt"

// Venue is a closed enumeration of supported exchange/market-type pairs.
type Venue uint8

const (
	BinanceSpot Venue = iota
	BinanceFutures
	BybitSpot
	BybitFutures
	OKXSpot
	OKXFutures
	Upbit
	venueCount
)

var venueNames = [venueCount]string{
	BinanceSpot:    "binance_spot",
	BinanceFutures: "binance_futures",
	BybitSpot:      "bybit_spot",
	BybitFutures:   "bybit_futures",
	OKXSpot:        "okx_spot",
	OKXFutures:     "okx_futures",
	Upbit:          "upbit",
}

func (v Venue) String() string {
	if v >= venueCount {
		return fmt.Sprintf("venue(%d)", uint8(v))
	}
	return venueNames[v]
}

// Venues lists every venue in enumeration order, e.g. to size a per-venue
// ring buffer set.
func Venues() []Venue {
	out := make([]Venue, venueCount)
	for i := range out {
		out[i] = Venue(i)
	}
	return out
}

// Side is Buy or Sell.
type Side uint8

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "buy"
	}
	return "sell"
}

// OrderType is the closed set of supported order kinds.
type OrderType uint8

const (
	Market OrderType = iota
	Limit
	Stop
	StopLimit
	TakeProfit
	TakeProfitLimit
)

func (t OrderType) String() string {
	switch t {
	case Market:
		return "market"
	case Limit:
		return "limit"
	case Stop:
		return "stop"
	case StopLimit:
		return "stop_limit"
	case TakeProfit:
		return "take_profit"
	case TakeProfitLimit:
		return "take_profit_limit"
	default:
		return "unknown"
	}
}

// OrderStatus is the order lifecycle state.
type OrderStatus uint8

const (
	New OrderStatus = iota
	PartiallyFilled
	Filled
	Canceled
	Rejected
	Expired
)

func (s OrderStatus) String() string {
	switch s {
	case New:
		return "new"
	case PartiallyFilled:
		return "partially_filled"
	case Filled:
		return "filled"
	case Canceled:
		return "canceled"
	case Rejected:
		return "rejected"
	case Expired:
		return "expired"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether status will never transition further.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case Filled, Canceled, Rejected, Expired:
		return true
	default:
		return false
	}
}

// TimeInForce controls how an order interacts with the book on arrival.
type TimeInForce uint8

const (
	GTC TimeInForce = iota // Good Till Cancel
	IOC                    // Immediate or Cancel
	FOK                    // Fill or Kill
	GTX                    // Good Till Crossing (post-only)
)

func (t TimeInForce) String() string {
	switch t {
	case GTC:
		return "GTC"
	case IOC:
		return "IOC"
	case FOK:
		return "FOK"
	case GTX:
		return "GTX"
	default:
		return "unknown"
	}
}

// Order is the admitted or in-flight order record. IDs are assigned
// monotonically by the order manager at admission time; a submission before
// admission carries only ClientID.
type Order struct {
	ID          uint64
	ClientID    string
	Venue       Venue
	Symbol      string
	Side        Side
	Type        OrderType
	Price       float64
	Qty         float64
	ExecutedQty float64
	Status      OrderStatus
	TIF         TimeInForce
	CreatedAtUs int64
	UpdatedAtUs int64
}

// Position is a venue/symbol inventory record.
type Position struct {
	Venue         Venue
	Symbol        string
	Side          Side
	Qty           float64
	EntryPrice    float64
	MarkPrice     float64
	UnrealizedPnL float64
	RealizedPnL   float64
	Margin        float64
	Leverage      float64
	UpdatedAtUs   int64
}

// MarketData is a single top-of-book + last-trade snapshot for one
// (venue, symbol) pair.
type MarketData struct {
	Venue       Venue
	Symbol      string
	BidPrice    float64
	AskPrice    float64
	BidQty      float64
	AskQty      float64
	LastPrice   float64
	Volume24h   float64
	TimestampUs int64
}
