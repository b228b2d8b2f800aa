// Package arbitrage watches every venue's top-of-book for a symbol and
// emits opportunities where buying on one venue and selling on another
// clears a configured profit floor after fees.
package arbitrage

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"oms-core-engine/ring"
)

// PriceFeed is one venue's current top-of-book for a symbol.
type PriceFeed struct {
	Venue       string
	Symbol      string
	BidPrice    float64
	BidQty      float64
	AskPrice    float64
	AskQty      float64
	TimestampNs int64
}

// Opportunity is a detected cross-venue profit window.
type Opportunity struct {
	ID           string
	Symbol       string
	BuyVenue     string
	SellVenue    string
	BuyPrice     float64
	SellPrice    float64
	MaxQuantity  float64
	ProfitRate   float64
	NetProfit    float64
	DetectedAtNs int64
	ValidUntilNs int64
}

// Config controls the admission thresholds and per-venue fee schedule.
type Config struct {
	MinProfitRate   float64
	MinProfitAmount float64
	MaxPositionSize float64
	OpportunityTTL  time.Duration
	TakerFees       map[string]float64
	MakerFees       map[string]float64
}

const staleAfter = time.Second

// Detector tracks the latest price feed per (symbol, venue) and scans
// every venue pair for a symbol each time DetectOpportunities runs.
type Detector struct {
	cfg Config

	mu     sync.RWMutex
	prices map[string]map[string]PriceFeed // symbol -> venue -> feed

	opportunities *ring.Ring[Opportunity]

	detectedCount   atomic.Uint64
	processedPrices atomic.Uint64
	running         atomic.Bool
}

// New builds a Detector with the given config and a 1024-slot opportunity
// buffer.
func New(cfg Config) *Detector {
	return &Detector{
		cfg:           cfg,
		prices:        make(map[string]map[string]PriceFeed),
		opportunities: ring.New[Opportunity](1024),
	}
}

func (d *Detector) Start() { d.running.Store(true) }
func (d *Detector) Stop()  { d.running.Store(false) }

// UpdatePriceFeed records venue's latest top-of-book for symbol.
func (d *Detector) UpdatePriceFeed(venue, symbol string, bidPrice, bidQty, askPrice, askQty float64) {
	d.mu.Lock()
	venues, ok := d.prices[symbol]
	if !ok {
		venues = make(map[string]PriceFeed)
		d.prices[symbol] = venues
	}
	venues[venue] = PriceFeed{
		Venue:       venue,
		Symbol:      symbol,
		BidPrice:    bidPrice,
		BidQty:      bidQty,
		AskPrice:    askPrice,
		AskQty:      askQty,
		TimestampNs: time.Now().UnixNano(),
	}
	d.mu.Unlock()

	d.processedPrices.Add(1)
}

// DetectOpportunities scans every venue pair for every tracked symbol and
// pushes any opportunity clearing the configured thresholds onto the
// opportunity buffer. It is a no-op while the detector is stopped.
func (d *Detector) DetectOpportunities() {
	if !d.running.Load() {
		return
	}

	now := time.Now().UnixNano()

	d.mu.RLock()
	snapshot := make(map[string][]PriceFeed, len(d.prices))
	for symbol, venues := range d.prices {
		feeds := make([]PriceFeed, 0, len(venues))
		for _, f := range venues {
			feeds = append(feeds, f)
		}
		snapshot[symbol] = feeds
	}
	d.mu.RUnlock()

	for symbol, feeds := range snapshot {
		if len(feeds) < 2 {
			continue
		}
		for i := range feeds {
			if now-feeds[i].TimestampNs > staleAfter.Nanoseconds() {
				continue
			}
			for j := i + 1; j < len(feeds); j++ {
				if now-feeds[j].TimestampNs > staleAfter.Nanoseconds() {
					continue
				}
				d.checkOpportunity(feeds[i], feeds[j], symbol, now)
				d.checkOpportunity(feeds[j], feeds[i], symbol, now)
			}
		}
	}
}

// checkOpportunity evaluates buying on buy and selling on sell.
func (d *Detector) checkOpportunity(buy, sell PriceFeed, symbol string, now int64) {
	priceDiff := sell.BidPrice - buy.AskPrice
	if priceDiff <= 0 {
		return
	}

	profitRate := priceDiff / buy.AskPrice
	if profitRate < d.cfg.MinProfitRate {
		return
	}

	buyFee := d.fee(buy.Venue, buy.AskPrice, true)
	sellFee := d.fee(sell.Venue, sell.BidPrice, true)
	totalFeeRate := (buyFee + sellFee) / buy.AskPrice

	netProfitRate := profitRate - totalFeeRate
	if netProfitRate < d.cfg.MinProfitRate {
		return
	}

	maxQuantity := min(buy.AskQty, sell.BidQty)
	maxValue := maxQuantity * buy.AskPrice
	if maxValue > d.cfg.MaxPositionSize {
		maxQuantity = d.cfg.MaxPositionSize / buy.AskPrice
	}

	netProfit := maxQuantity*priceDiff - maxQuantity*(buyFee+sellFee)
	if netProfit < d.cfg.MinProfitAmount {
		return
	}

	opp := Opportunity{
		ID:           fmt.Sprintf("%s_%s_%s_%d", symbol, buy.Venue, sell.Venue, now),
		Symbol:       symbol,
		BuyVenue:     buy.Venue,
		SellVenue:    sell.Venue,
		BuyPrice:     buy.AskPrice,
		SellPrice:    sell.BidPrice,
		MaxQuantity:  maxQuantity,
		ProfitRate:   netProfitRate,
		NetProfit:    netProfit,
		DetectedAtNs: now,
		ValidUntilNs: now + d.cfg.OpportunityTTL.Nanoseconds(),
	}

	if d.opportunities.Push(opp) {
		d.detectedCount.Add(1)
	}
}

func (d *Detector) fee(venue string, price float64, taker bool) float64 {
	fees := d.cfg.MakerFees
	if taker {
		fees = d.cfg.TakerFees
	}
	if rate, ok := fees[venue]; ok {
		return price * rate
	}
	return price * 0.001
}

// NextOpportunity pops the oldest undelivered opportunity, if any.
func (d *Detector) NextOpportunity() (Opportunity, bool) {
	return d.opportunities.Pop()
}

func (d *Detector) DetectedCount() uint64   { return d.detectedCount.Load() }
func (d *Detector) ProcessedPrices() uint64 { return d.processedPrices.Load() }
