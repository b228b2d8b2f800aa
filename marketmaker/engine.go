// Package marketmaker generates multi-level bid/ask quotes from the
// current top-of-book and running inventory, skewing price and spread to
// work the position back toward flat.
package marketmaker

import (
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"oms-core-engine/domain"
	"oms-core-engine/ring"
)

const (
	maxQuotesPerRound = 20
	priceHistorySize  = 1000
)

// Config mirrors the engine's tunable parameters.
type Config struct {
	BaseSpreadBps    float64
	MinSpreadBps     float64
	MaxSpreadBps     float64
	QuoteSize        float64
	QuoteLevels      int
	LevelSpacingBps  float64
	MaxInventory     float64
	InventorySkew    float64
	VolatilityFactor float64

	MaxPositionValue float64
	StopLossPercent  float64
	MaxDailyLoss     float64
}

// MarketSnapshot is an immutable point-in-time view of a symbol's
// top-of-book, published via atomic pointer swap so readers never see a
// torn mix of old and new fields.
type MarketSnapshot struct {
	BidPrice    float64
	AskPrice    float64
	MidPrice    float64
	LastPrice   float64
	BidSize     float64
	AskSize     float64
	Volatility  float64
	TimestampNs int64
}

// InventorySnapshot is an immutable point-in-time view of the running
// position, published the same way as MarketSnapshot.
type InventorySnapshot struct {
	Position      float64
	AvgPrice      float64
	UnrealizedPnL float64
	RealizedPnL   float64
	PositionValue float64
	TimestampNs   int64
}

// Quote is one generated bid or ask at a given level.
type Quote struct {
	Symbol      string
	Venue       string
	Side        domain.Side
	Price       float64
	Qty         float64
	Level       int
	TimestampNs int64
}

// Engine computes and emits quotes for a single symbol.
type Engine struct {
	cfg    Config
	symbol string
	venue  string

	spread *SpreadCalculator
	risk   *RiskChecker

	marketState    atomic.Pointer[MarketSnapshot]
	inventoryState atomic.Pointer[InventorySnapshot]

	priceHistory [priceHistorySize]float64
	priceIndex   atomic.Uint64

	quotes *ring.Ring[Quote]

	quotesGenerated atomic.Uint64
	marketUpdates   atomic.Uint64
	running         atomic.Bool
}

// New builds an Engine quoting symbol on venue.
func New(cfg Config, symbol, venue string) *Engine {
	e := &Engine{
		cfg:    cfg,
		symbol: symbol,
		venue:  venue,
		spread: NewSpreadCalculator(cfg),
		risk:   NewRiskChecker(cfg),
		quotes: ring.New[Quote](1024),
	}
	e.marketState.Store(&MarketSnapshot{})
	e.inventoryState.Store(&InventorySnapshot{})
	return e
}

func (e *Engine) Start() { e.running.Store(true) }
func (e *Engine) Stop()  { e.running.Store(false) }

// UpdateMarketData publishes a new top-of-book snapshot and rolls the
// price history used for the realized-volatility estimate.
func (e *Engine) UpdateMarketData(bidPrice, bidSize, askPrice, askSize, lastPrice float64) {
	mid := (bidPrice + askPrice) / 2.0

	idx := e.priceIndex.Add(1) % priceHistorySize
	e.priceHistory[idx] = mid

	snap := &MarketSnapshot{
		BidPrice:    bidPrice,
		AskPrice:    askPrice,
		MidPrice:    mid,
		LastPrice:   lastPrice,
		BidSize:     bidSize,
		AskSize:     askSize,
		Volatility:  e.calculateVolatility(),
		TimestampNs: time.Now().UnixNano(),
	}
	e.marketState.Store(snap)
	e.marketUpdates.Add(1)
}

// UpdatePosition publishes a new inventory snapshot, deriving unrealized
// PnL against the current market mid price.
func (e *Engine) UpdatePosition(position, avgPrice, realizedPnL float64) {
	market := e.marketState.Load()

	var unrealized float64
	if market.MidPrice > 0 {
		unrealized = position * (market.MidPrice - avgPrice)
	}

	e.inventoryState.Store(&InventorySnapshot{
		Position:      position,
		AvgPrice:      avgPrice,
		UnrealizedPnL: unrealized,
		RealizedPnL:   realizedPnL,
		PositionValue: position * avgPrice,
		TimestampNs:   time.Now().UnixNano(),
	})
}

// MarketState returns the most recently published market snapshot.
func (e *Engine) MarketState() MarketSnapshot { return *e.marketState.Load() }

// InventoryState returns the most recently published inventory snapshot.
func (e *Engine) InventoryState() InventorySnapshot { return *e.inventoryState.Load() }

// GenerateQuotes computes the dynamic spread and emits QuoteLevels bid/ask
// pairs skewed by inventory, pushing each onto the quote buffer. Quotes
// that would breach the inventory, position-value or stop-loss bounds are
// dropped, and a halted book (daily loss limit, losing streak) emits
// nothing at all.
func (e *Engine) GenerateQuotes() {
	if !e.running.Load() {
		return
	}

	market := *e.marketState.Load()
	inventory := *e.inventoryState.Load()

	if market.MidPrice <= 0 || market.BidPrice <= 0 || market.AskPrice <= 0 {
		return
	}
	if e.risk.ShouldStop(inventory, e.risk.DailyLoss()) {
		return
	}

	spread := e.calculateSpread(market, inventory)

	var batch [2 * maxQuotesPerRound]Quote
	count := 0
	for level := 0; level < e.cfg.QuoteLevels && count < 2*maxQuotesPerRound; level++ {
		batch[count] = e.quoteLevel(domain.Buy, market.MidPrice, spread, level, inventory)
		count++
		batch[count] = e.quoteLevel(domain.Sell, market.MidPrice, spread, level, inventory)
		count++
	}

	for i := 0; i < count; i++ {
		if !e.risk.CheckQuote(batch[i], inventory) {
			continue
		}
		if e.quotes.Push(batch[i]) {
			e.quotesGenerated.Add(1)
		}
	}
}

// NextQuote pops the oldest undelivered quote, if any.
func (e *Engine) NextQuote() (Quote, bool) {
	return e.quotes.Pop()
}

func (e *Engine) QuotesGenerated() uint64 { return e.quotesGenerated.Load() }
func (e *Engine) MarketUpdates() uint64   { return e.marketUpdates.Load() }

func (e *Engine) calculateSpread(market MarketSnapshot, inventory InventorySnapshot) float64 {
	return e.spread.Dynamic(market.Volatility, inventory.Position/e.cfg.MaxInventory)
}

// RecordFillPnL feeds a fill's realized PnL into the quote risk checker,
// driving its daily-loss halt and consecutive-loss streak.
func (e *Engine) RecordFillPnL(pnl float64) {
	e.risk.UpdatePnL(pnl)
}

func (e *Engine) quoteLevel(side domain.Side, midPrice, spread float64, level int, inventory InventorySnapshot) Quote {
	levelSpread := spread * (1.0 + float64(level)*e.cfg.LevelSpacingBps/10000.0)

	var price float64
	if side == domain.Buy {
		price = midPrice * (1.0 - levelSpread)
	} else {
		price = midPrice * (1.0 + levelSpread)
	}

	inventoryRatio := inventory.Position / e.cfg.MaxInventory
	switch {
	case inventoryRatio > 0:
		// Long: lower asks and raise bids by the same skew factor.
		if side == domain.Sell {
			price *= 1.0 - math.Abs(inventoryRatio)*e.cfg.InventorySkew*0.5
		} else {
			price *= 1.0 + math.Abs(inventoryRatio)*e.cfg.InventorySkew*0.5
		}
	case inventoryRatio < 0:
		// Short: raise bids and lower asks by the same skew factor.
		if side == domain.Buy {
			price *= 1.0 + math.Abs(inventoryRatio)*e.cfg.InventorySkew*0.5
		} else {
			price *= 1.0 - math.Abs(inventoryRatio)*e.cfg.InventorySkew*0.5
		}
	}

	return Quote{
		Symbol:      e.symbol,
		Venue:       e.venue,
		Side:        side,
		Price:       price,
		Qty:         e.cfg.QuoteSize,
		Level:       level,
		TimestampNs: time.Now().UnixNano(),
	}
}

// calculateVolatility is the sample standard deviation of log returns
// over the full price history window.
func (e *Engine) calculateVolatility() float64 {
	var sum float64
	returns := make([]float64, 0, priceHistorySize)

	for i := 1; i < priceHistorySize; i++ {
		prev := e.priceHistory[i-1]
		cur := e.priceHistory[i]
		if prev > 0 && cur > 0 {
			ret := math.Log(cur / prev)
			returns = append(returns, ret)
			sum += ret
		}
	}

	if len(returns) < 2 {
		return 0
	}

	mean := sum / float64(len(returns))
	var sumSq float64
	for _, ret := range returns {
		sumSq += math.Pow(ret-mean, 2)
	}

	return math.Sqrt(sumSq / float64(len(returns)-1))
}

func (q Quote) String() string {
	return fmt.Sprintf("%s %s %s L%d %.6f@%.6f", q.Venue, q.Symbol, q.Side, q.Level, q.Qty, q.Price)
}
