package container

import (
	"context"
	"fmt"
	"sync"
	"time"

	"oms-core-engine/alert"
	"oms-core-engine/arbitrage"
	"oms-core-engine/book"
	"oms-core-engine/config"
	"oms-core-engine/domain"
	"oms-core-engine/ingest"
	"oms-core-engine/marketmaker"
	"oms-core-engine/metrics"
	"oms-core-engine/obslog"
	"oms-core-engine/ordermanager"
	"oms-core-engine/riskengine"
)

const (
	detectionTick = 50 * time.Millisecond
	quoteTick     = 100 * time.Millisecond
)

// Container builds and owns every core subsystem for a single process:
// Build wires the graph, registerLifecycleComponents hands the startable
// pieces to a LifecycleManager, and Start/Stop delegate to it plus the
// container's own background scan loops.
type Container struct {
	cfgPath string
	cfg     config.EngineConfig

	log     *obslog.Logger
	monitor *metrics.Monitor
	alerts  *alert.Manager

	Risk    *riskengine.Engine
	Breaker *riskengine.CircuitBreaker
	Guard   riskengine.MultiGuard

	Orders    *ordermanager.Manager
	Arbitrage *arbitrage.Detector
	Maker     *marketmaker.Engine
	Book      *book.AggregatedBook
	Feed      *ingest.Feed

	hotReloader *config.HotReloader

	lifecycle *LifecycleManager

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New loads cfgPath and constructs a Container ready for Build.
func New(cfgPath string) (*Container, error) {
	cfg, err := config.LoadWithEnvOverrides(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &Container{cfgPath: cfgPath, cfg: cfg, lifecycle: NewLifecycleManager()}, nil
}

// Build constructs every subsystem and registers the startable ones with
// the lifecycle manager. Call once, before Start.
func (c *Container) Build() error {
	if err := c.buildInfrastructure(); err != nil {
		return fmt.Errorf("build infrastructure: %w", err)
	}
	if err := c.buildCoreServices(); err != nil {
		return fmt.Errorf("build core services: %w", err)
	}
	c.registerLifecycleComponents()
	c.log.Info("engine container built")
	return nil
}

func (c *Container) buildInfrastructure() error {
	logCfg := obslog.DefaultConfig()
	log, err := obslog.New(logCfg)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	c.log = log

	c.monitor = metrics.New(metrics.DefaultConfig())
	c.alerts = alert.NewManager([]alert.Channel{alert.NewLogChannel("engine", nil)}, 30*time.Second)
	return nil
}

func (c *Container) buildCoreServices() error {
	c.Risk = riskengine.New(riskengine.Limits{
		MaxOrderValue:    c.cfg.Risk.MaxOrderValue,
		MaxPositionValue: c.cfg.Risk.MaxPositionValue,
		DailyLossLimit:   c.cfg.Risk.DailyLossLimit,
		MaxOpenOrders:    c.cfg.Risk.MaxOpenOrders,
		MaxLeverage:      c.cfg.Risk.MaxLeverage,
	}, c.log)

	c.Breaker = riskengine.NewCircuitBreaker(0.05, 0.10, time.Minute, c.alerts)
	c.Guard = riskengine.MultiGuard{Guards: []riskengine.Guard{c.Risk, c.Breaker}}

	c.Orders = ordermanager.New(ordermanager.Config{
		RingBufferSize:     int(c.cfg.OrderManager.RingBufferSize),
		MaxOrdersPerSecond: c.cfg.OrderManager.MaxOrdersPerSecond,
		MaxActiveOrders:    int(c.cfg.OrderManager.MaxActiveOrders),
		CPUCores:           c.cfg.OrderManager.CPUCores,
	}, c.log)

	c.Arbitrage = arbitrage.New(arbitrage.Config{
		MinProfitRate:   c.cfg.Arbitrage.MinProfitRate,
		MinProfitAmount: c.cfg.Arbitrage.MinProfitAmount,
		MaxPositionSize: c.cfg.Arbitrage.MaxPositionSize,
		OpportunityTTL:  time.Duration(c.cfg.Arbitrage.OpportunityTTLNs) * time.Nanosecond,
		TakerFees:       c.cfg.Arbitrage.TakerFees,
		MakerFees:       c.cfg.Arbitrage.MakerFees,
	})

	c.Maker = marketmaker.New(marketmaker.Config{
		BaseSpreadBps:    c.cfg.MarketMaker.BaseSpreadBps,
		MinSpreadBps:     c.cfg.MarketMaker.MinSpreadBps,
		MaxSpreadBps:     c.cfg.MarketMaker.MaxSpreadBps,
		QuoteSize:        c.cfg.MarketMaker.QuoteSize,
		QuoteLevels:      c.cfg.MarketMaker.QuoteLevels,
		LevelSpacingBps:  c.cfg.MarketMaker.LevelSpacingBps,
		MaxInventory:     c.cfg.MarketMaker.MaxInventory,
		InventorySkew:    c.cfg.MarketMaker.InventorySkew,
		VolatilityFactor: c.cfg.MarketMaker.VolatilityFactor,
		MaxPositionValue: c.cfg.MarketMaker.MaxPositionValue,
		StopLossPercent:  c.cfg.MarketMaker.StopLossPercent,
		MaxDailyLoss:     c.cfg.MarketMaker.MaxDailyLoss,
	}, c.cfg.MarketMaker.Symbol, c.cfg.MarketMaker.Venue)

	c.Book = book.New()

	c.Feed = ingest.New(c.Arbitrage, c.Book)
	c.Feed.RegisterMaker(c.cfg.MarketMaker.Symbol, c.Maker)

	reloader, err := config.NewHotReloader(c.cfgPath, config.DefaultHotReloadConfig())
	if err != nil {
		return fmt.Errorf("build hot reloader: %w", err)
	}
	reloader.RegisterValidator("risk", config.RiskParameterValidator{})
	reloader.RegisterValidator("marketMaker", config.MarketMakerParameterValidator{})
	reloader.RegisterValidator("arbitrage", config.ArbitrageParameterValidator{})
	reloader.SetReloadHandler(func(cfg config.EngineConfig) error {
		c.log.Info("config file changed; reloaded config stored, running subsystems keep their current parameters")
		c.cfg = cfg
		return nil
	})
	c.hotReloader = reloader

	return nil
}

func (c *Container) registerLifecycleComponents() {
	c.lifecycle.Register(&subsystemComponent{name: "risk_engine", start: c.Risk.Start, stop: c.Risk.Stop})
	c.lifecycle.Register(&subsystemComponent{name: "order_manager", start: c.Orders.Start, stop: c.Orders.Stop})
	c.lifecycle.Register(&subsystemComponent{name: "arbitrage_detector", start: c.Arbitrage.Start, stop: c.Arbitrage.Stop})
	c.lifecycle.Register(&subsystemComponent{name: "market_maker", start: c.Maker.Start, stop: c.Maker.Stop})
	c.lifecycle.Register(&httpServerComponent{
		name:    "metrics_server",
		handler: c.monitor.Handler(),
		addr:    ":9090",
		log:     c.log,
	})
	c.lifecycle.Register(&hotReloaderComponent{reloader: c.hotReloader})
}

// Start brings up every registered subsystem, then launches the
// background scan loops (arbitrage detection, quote generation) on their
// own goroutines.
func (c *Container) Start(ctx context.Context) error {
	if err := c.lifecycle.StartAll(ctx); err != nil {
		return err
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	c.wg.Add(2)
	go c.detectionLoop(loopCtx)
	go c.quoteLoop(loopCtx)

	c.log.Info("engine container started")
	return nil
}

// Stop halts the background scan loops, then stops every registered
// subsystem in reverse order, and finally flushes the logger.
func (c *Container) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()

	err := c.lifecycle.StopAll()
	c.log.Info("engine container stopped")
	c.log.Close()
	return err
}

func (c *Container) detectionLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(detectionTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Arbitrage.DetectOpportunities()
			for {
				opp, ok := c.Arbitrage.NextOpportunity()
				if !ok {
					break
				}
				c.monitor.RecordArbitrageDetected(opp.NetProfit)
				// The aggregated book attributes which venue actually has the
				// depth to absorb the buy leg at this size.
				depthVenue := c.Book.BestVenue(opp.Symbol, book.Buy, opp.MaxQuantity)
				c.log.LogTrade("arbitrage_opportunity", map[string]interface{}{
					"symbol": opp.Symbol, "buy_venue": opp.BuyVenue, "sell_venue": opp.SellVenue,
					"net_profit": opp.NetProfit, "profit_rate": opp.ProfitRate,
					"depth_venue": depthVenue,
				})
			}
		}
	}
}

func (c *Container) quoteLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(quoteTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			market := c.Maker.MarketState()
			if market.LastPrice > 0 {
				symbol := c.cfg.MarketMaker.Symbol
				if tripped, window := c.Breaker.OnTick(symbol, riskengine.Tick{Price: market.LastPrice, Ts: time.Now()}); tripped {
					c.log.LogRisk("circuit_breaker_trip", map[string]interface{}{"symbol": symbol, "window": window})
				}
			}

			c.Maker.GenerateQuotes()
			for {
				quote, ok := c.Maker.NextQuote()
				if !ok {
					break
				}
				if c.Breaker.Tripped(quote.Symbol) {
					continue
				}
				c.monitor.RecordQuoteGenerated()
				c.monitor.SetPosition(quote.Symbol, c.Maker.InventoryState().Position)
			}
		}
	}
}

// SubmitOrder is the host-facing admission path: the guard chain (position
// limits, circuit breaker) and the risk engine's gates run before the
// order manager's rate limiter ever sees the order. The open-order count
// is incremented on admission; CancelOrder decrements it.
func (c *Container) SubmitOrder(order domain.Order) error {
	deltaQty := order.Qty
	if order.Side == domain.Sell {
		deltaQty = -order.Qty
	}
	if err := c.Guard.PreOrder(order.Symbol, deltaQty); err != nil {
		c.monitor.RecordRiskReject("guard")
		return err
	}
	if ok, gate := c.Risk.CheckOrder(order); !ok {
		c.monitor.RecordRiskReject(gate)
		return fmt.Errorf("risk gate %s rejected order", gate)
	}
	if err := c.Orders.SubmitOrder(order); err != nil {
		return err
	}
	c.Risk.UpdateOrderCount(1)
	return nil
}

// CancelOrder cancels an admitted order and releases its open-order slot.
func (c *Container) CancelOrder(orderID uint64, venue domain.Venue) error {
	if err := c.Orders.CancelOrder(orderID, venue); err != nil {
		return err
	}
	c.Risk.UpdateOrderCount(-1)
	return nil
}

// StatsSnapshot is a point-in-time view of every subsystem's counters, for
// the host's periodic stats print.
type StatsSnapshot struct {
	Orders    ordermanager.Stats
	Risk      riskengine.Stats
	Detected  uint64
	PriceUpds uint64
	Quotes    uint64
	Markets   uint64
	Exposure  float64
	DailyPnL  float64
}

func (c *Container) Stats() StatsSnapshot {
	return StatsSnapshot{
		Orders:    c.Orders.Stats(),
		Risk:      c.Risk.Stats(),
		Detected:  c.Arbitrage.DetectedCount(),
		PriceUpds: c.Arbitrage.ProcessedPrices(),
		Quotes:    c.Maker.QuotesGenerated(),
		Markets:   c.Maker.MarketUpdates(),
		Exposure:  c.Risk.TotalExposure(),
		DailyPnL:  c.Risk.DailyPnL(),
	}
}

// Health reports whether every registered subsystem is healthy.
func (c *Container) Health() error {
	return c.lifecycle.CheckHealth()
}

// Logger exposes the container's structured logger for host-level events.
func (c *Container) Logger() *obslog.Logger { return c.log }

// Alerts exposes the container's alert manager for host-level paging.
func (c *Container) Alerts() *alert.Manager { return c.alerts }
