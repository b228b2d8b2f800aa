// Package book maintains a per-venue order book per symbol and merges
// them into a single cross-venue view for execution routing.
package book

import (
	"sort"
	"sync"
	"time"
)

// Level is one price level on one venue's book.
type Level struct {
	Price     float64
	Qty       float64
	Venue     string
	NumOrders int
}

// Book is bids and asks sorted best-first, plus the time they were last
// updated. Levels are never collapsed across venues: two venues quoting
// the same price appear as two distinct levels, so BestVenue can
// still attribute fill depth to the venue that actually offers it.
type Book struct {
	Bids       []Level
	Asks       []Level
	LastUpdate time.Time
}

// Side selects which half of a book to inspect.
type Side int

const (
	Buy Side = iota
	Sell
)

// AggregatedBook tracks one Book per (symbol, venue) pair and merges them
// on read.
type AggregatedBook struct {
	mu    sync.RWMutex
	books map[string]map[string]Book // symbol -> venue -> book
}

// New builds an empty AggregatedBook.
func New() *AggregatedBook {
	return &AggregatedBook{books: make(map[string]map[string]Book)}
}

// UpdateBook replaces venue's book for symbol with bids/asks.
func (a *AggregatedBook) UpdateBook(venue, symbol string, bids, asks []Level) {
	a.mu.Lock()
	defer a.mu.Unlock()

	venues, ok := a.books[symbol]
	if !ok {
		venues = make(map[string]Book)
		a.books[symbol] = venues
	}
	venues[venue] = Book{Bids: bids, Asks: asks, LastUpdate: time.Now()}
}

// GetAggregatedBook merges every venue's book for symbol into one,
// sorting bids descending and asks ascending by price.
func (a *AggregatedBook) GetAggregatedBook(symbol string) Book {
	a.mu.RLock()
	venues, ok := a.books[symbol]
	if !ok {
		a.mu.RUnlock()
		return Book{}
	}
	books := make([]Book, 0, len(venues))
	for _, b := range venues {
		books = append(books, b)
	}
	a.mu.RUnlock()

	return mergeBooks(books)
}

func mergeBooks(books []Book) Book {
	var merged Book

	for _, b := range books {
		merged.Bids = append(merged.Bids, b.Bids...)
		merged.Asks = append(merged.Asks, b.Asks...)
		if b.LastUpdate.After(merged.LastUpdate) {
			merged.LastUpdate = b.LastUpdate
		}
	}

	sort.Slice(merged.Bids, func(i, j int) bool { return merged.Bids[i].Price > merged.Bids[j].Price })
	sort.Slice(merged.Asks, func(i, j int) bool { return merged.Asks[i].Price < merged.Asks[j].Price })

	return merged
}

// BestBidAsk returns the top bid and top ask across every venue for symbol.
func (a *AggregatedBook) BestBidAsk(symbol string) (bestBid, bestAsk Level) {
	b := a.GetAggregatedBook(symbol)
	if len(b.Bids) > 0 {
		bestBid = b.Bids[0]
	}
	if len(b.Asks) > 0 {
		bestAsk = b.Asks[0]
	}
	return bestBid, bestAsk
}

// BestVenue walks price levels best-first, accumulating quantity until it
// can fill qty, and returns the venue of the level that completes the
// fill, i.e. the deepest venue actually needed, not just the top of book.
// If no level has enough combined depth, it returns the best level's venue.
func (a *AggregatedBook) BestVenue(symbol string, side Side, qty float64) string {
	b := a.GetAggregatedBook(symbol)

	levels := b.Asks
	if side == Sell {
		levels = b.Bids
	}
	if len(levels) == 0 {
		return ""
	}

	var cumulative float64
	for _, level := range levels {
		cumulative += level.Qty
		if cumulative >= qty {
			return level.Venue
		}
	}
	return levels[0].Venue
}
