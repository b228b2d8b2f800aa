// Package ordermanager accepts, queues and tracks orders across every
// configured venue: one lock-free ring per venue feeds a single dispatch
// worker, while a read-write-locked index answers lookups by ID or venue.
package ordermanager

import (
	"errors"
	"math"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"oms-core-engine/domain"
	"oms-core-engine/obslog"
	"oms-core-engine/ring"
)

// ErrQueueFull is returned when a venue's ring buffer has no free slot.
var ErrQueueFull = errors.New("ordermanager: queue full")

// ErrRateLimited is returned when the per-second submission cap is hit.
var ErrRateLimited = errors.New("ordermanager: rate limited")

// ErrNotFound is returned by CancelOrder/UpdateOrder for an unknown ID.
var ErrNotFound = errors.New("ordermanager: order not found")

// ErrTooManyActive is returned when the order index already holds
// MaxActiveOrders admitted orders.
var ErrTooManyActive = errors.New("ordermanager: too many active orders")

// Config controls queue sizing, throughput and worker placement.
type Config struct {
	RingBufferSize     int
	MaxOrdersPerSecond uint64
	MaxActiveOrders    int
	CPUCores           []int
}

// Stats is a point-in-time snapshot of the manager's processing counters.
type Stats struct {
	OrdersProcessed uint64
	OrdersRejected  uint64
	OrdersCanceled  uint64
	AvgLatencyUs    float64
	MinLatencyUs    float64
	MaxLatencyUs    float64
	ActiveOrders    int
}

// Manager queues orders per venue and dispatches them on a single
// background worker, tracking every admitted order by ID.
type Manager struct {
	cfg Config
	log *obslog.Logger

	queues map[domain.Venue]*ring.Ring[domain.Order]

	mu            sync.RWMutex
	byID          map[uint64]*domain.Order
	byVenue       map[domain.Venue][]uint64
	nextOrderID   atomic.Uint64
	ordersThisSec atomic.Uint64
	lastRateCheck atomic.Int64 // unix nanos

	processed    atomic.Uint64
	rejected     atomic.Uint64
	canceled     atomic.Uint64
	totalLatency atomic.Uint64 // float64 bits, microseconds accumulated
	minLatencyUs atomic.Uint64 // float64 bits
	maxLatencyUs atomic.Uint64 // float64 bits

	running atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New builds a Manager with one ring per venue sized to cfg.RingBufferSize.
func New(cfg Config, log *obslog.Logger) *Manager {
	if cfg.RingBufferSize <= 0 {
		cfg.RingBufferSize = 1024
	}
	m := &Manager{
		cfg:     cfg,
		log:     log,
		queues:  make(map[domain.Venue]*ring.Ring[domain.Order], len(domain.Venues())),
		byID:    make(map[uint64]*domain.Order),
		byVenue: make(map[domain.Venue][]uint64),
		stopCh:  make(chan struct{}),
	}
	m.nextOrderID.Store(1)
	m.minLatencyUs.Store(math.Float64bits(math.Inf(1)))
	for _, v := range domain.Venues() {
		m.queues[v] = ring.New[domain.Order](cfg.RingBufferSize)
	}
	return m
}

// SubmitOrder enqueues order for dispatch on its venue's ring. It assigns
// no ID; that happens at dispatch time, mirroring an exchange assigning
// the ID only once the order is actually accepted downstream.
func (m *Manager) SubmitOrder(order domain.Order) error {
	if m.rateLimited() {
		m.rejected.Add(1)
		return ErrRateLimited
	}

	if m.cfg.MaxActiveOrders > 0 {
		m.mu.RLock()
		active := len(m.byID)
		m.mu.RUnlock()
		if active >= m.cfg.MaxActiveOrders {
			m.rejected.Add(1)
			return ErrTooManyActive
		}
	}

	q, ok := m.queues[order.Venue]
	if !ok {
		m.rejected.Add(1)
		return errors.New("ordermanager: unknown venue")
	}
	if !q.Push(order) {
		m.rejected.Add(1)
		return ErrQueueFull
	}
	return nil
}

// rateLimited implements the tumbling one-second window: the counter resets
// the first time SubmitOrder observes that a full second has elapsed since
// the last reset.
func (m *Manager) rateLimited() bool {
	now := time.Now().UnixNano()
	last := m.lastRateCheck.Load()
	if last == 0 || now-last >= int64(time.Second) {
		if m.lastRateCheck.CompareAndSwap(last, now) {
			m.ordersThisSec.Store(0)
		}
	}
	return m.ordersThisSec.Add(1) > m.cfg.MaxOrdersPerSecond
}

// CancelOrder marks an admitted order canceled in the index. It does not
// go through the ring: cancellation acts directly on the stored record.
func (m *Manager) CancelOrder(orderID uint64, venue domain.Venue) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.byID[orderID]
	if !ok || order.Venue != venue {
		return ErrNotFound
	}
	order.Status = domain.Canceled
	order.UpdatedAtUs = time.Now().UnixMicro()
	m.canceled.Add(1)
	return nil
}

// UpdateOrder overwrites the stored record for order.ID with order.
func (m *Manager) UpdateOrder(order domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.byID[order.ID]
	if !ok {
		return ErrNotFound
	}
	*existing = order
	return nil
}

// GetOrder returns a copy of the stored order for orderID, if admitted.
func (m *Manager) GetOrder(orderID uint64) (domain.Order, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	order, ok := m.byID[orderID]
	if !ok {
		return domain.Order{}, false
	}
	return *order, true
}

// GetOrdersByVenue returns copies of every admitted order on venue.
func (m *Manager) GetOrdersByVenue(venue domain.Venue) []domain.Order {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.byVenue[venue]
	out := make([]domain.Order, 0, len(ids))
	for _, id := range ids {
		if order, ok := m.byID[id]; ok {
			out = append(out, *order)
		}
	}
	return out
}

// Start launches the single dispatch worker. Calling Start twice is a no-op.
func (m *Manager) Start() {
	if m.running.Swap(true) {
		return
	}
	m.doneCh = make(chan struct{})
	go m.dispatchLoop()
}

// Stop signals the dispatch worker to exit and waits for it to finish.
func (m *Manager) Stop() {
	if !m.running.Swap(false) {
		return
	}
	close(m.stopCh)
	<-m.doneCh
	m.stopCh = make(chan struct{})
}

// dispatchLoop round-robins the venue queues, popping and admitting one
// order at a time, yielding the processor when nothing is ready.
func (m *Manager) dispatchLoop() {
	defer close(m.doneCh)

	runtime.LockOSThread()
	setCPUAffinity(m.cfg.CPUCores)

	venues := domain.Venues()
	for {
		select {
		case <-m.stopCh:
			return
		default:
		}

		processedAny := false
		for _, v := range venues {
			order, ok := m.queues[v].Pop()
			if !ok {
				continue
			}
			start := time.Now()
			m.admit(order)
			m.recordLatency(time.Since(start))
			processedAny = true
		}

		if !processedAny {
			runtime.Gosched()
		}
	}
}

func (m *Manager) admit(order domain.Order) {
	if order.Status == domain.Canceled {
		m.applyCancellation(order)
		return
	}

	order.ID = m.nextOrderID.Add(1) - 1
	order.CreatedAtUs = time.Now().UnixMicro()

	m.mu.Lock()
	m.byID[order.ID] = &order
	m.byVenue[order.Venue] = append(m.byVenue[order.Venue], order.ID)
	m.mu.Unlock()

	m.processed.Add(1)
	if m.log != nil {
		m.log.LogOrder("admitted", strconv.FormatUint(order.ID, 10), map[string]interface{}{
			"venue": order.Venue.String(), "symbol": order.Symbol,
		})
	}
}

func (m *Manager) applyCancellation(order domain.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.byID[order.ID]
	if ok && existing.Venue == order.Venue {
		existing.Status = domain.Canceled
		existing.UpdatedAtUs = time.Now().UnixMicro()
		m.canceled.Add(1)
	}
}

func (m *Manager) recordLatency(d time.Duration) {
	us := float64(d.Microseconds())
	addFloat64(&m.totalLatency, us)
	casBetterFloat64(&m.minLatencyUs, us, func(cur, next float64) bool { return next < cur })
	casBetterFloat64(&m.maxLatencyUs, us, func(cur, next float64) bool { return next > cur })
}

// Stats returns the running processing counters.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	active := len(m.byID)
	m.mu.RUnlock()

	processed := m.processed.Load()
	var avg float64
	if processed > 0 {
		avg = math.Float64frombits(m.totalLatency.Load()) / float64(processed)
	}
	minUs := math.Float64frombits(m.minLatencyUs.Load())
	if math.IsInf(minUs, 1) {
		minUs = 0
	}
	return Stats{
		OrdersProcessed: processed,
		OrdersRejected:  m.rejected.Load(),
		OrdersCanceled:  m.canceled.Load(),
		AvgLatencyUs:    avg,
		MinLatencyUs:    minUs,
		MaxLatencyUs:    math.Float64frombits(m.maxLatencyUs.Load()),
		ActiveOrders:    active,
	}
}
