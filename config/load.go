package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// EngineConfig holds the host-visible configuration for every core subsystem,
// per the engine's external-interfaces surface.
type EngineConfig struct {
	Env          string             `yaml:"env"`
	OrderManager OrderManagerConfig `yaml:"orderManager"`
	Risk         RiskConfig         `yaml:"risk"`
	Arbitrage    ArbitrageConfig    `yaml:"arbitrage"`
	MarketMaker  MarketMakerConfig  `yaml:"marketMaker"`
}

// OrderManagerConfig controls ring sizing, admission rate and worker placement.
type OrderManagerConfig struct {
	RingBufferSize     uint64 `yaml:"ringBufferSize"`
	MaxOrdersPerSecond uint64 `yaml:"maxOrdersPerSecond"`
	MaxActiveOrders    uint64 `yaml:"maxActiveOrders"`
	CPUCores           []int  `yaml:"cpuCores"`
}

// RiskConfig mirrors the pre-trade gate limits evaluated by the risk engine.
type RiskConfig struct {
	MaxPositionValue float64 `yaml:"maxPositionValue"`
	MaxOrderValue    float64 `yaml:"maxOrderValue"`
	DailyLossLimit   float64 `yaml:"dailyLossLimit"`
	MaxOpenOrders    uint64  `yaml:"maxOpenOrders"`
	MaxLeverage      float64 `yaml:"maxLeverage"`
}

// ArbitrageConfig controls opportunity admission thresholds and per-venue fees.
type ArbitrageConfig struct {
	MinProfitRate    float64            `yaml:"minProfitRate"`
	MinProfitAmount  float64            `yaml:"minProfitAmount"`
	MaxPositionSize  float64            `yaml:"maxPositionSize"`
	OpportunityTTLNs uint64             `yaml:"opportunityTtlNs"`
	TakerFees        map[string]float64 `yaml:"takerFees"`
	MakerFees        map[string]float64 `yaml:"makerFees"`
}

// MarketMakerConfig controls quote spread/skew and the risk checker's guard rails.
// A market maker engine quotes exactly one (Symbol, Venue) pair, so both are
// part of its config.
type MarketMakerConfig struct {
	Symbol           string  `yaml:"symbol"`
	Venue            string  `yaml:"venue"`
	BaseSpreadBps    float64 `yaml:"baseSpreadBps"`
	MinSpreadBps     float64 `yaml:"minSpreadBps"`
	MaxSpreadBps     float64 `yaml:"maxSpreadBps"`
	QuoteSize        float64 `yaml:"quoteSize"`
	QuoteLevels      int     `yaml:"quoteLevels"`
	LevelSpacingBps  float64 `yaml:"levelSpacingBps"`
	MaxInventory     float64 `yaml:"maxInventory"`
	InventorySkew    float64 `yaml:"inventorySkew"`
	VolatilityFactor float64 `yaml:"volatilityFactor"`
	MaxPositionValue float64 `yaml:"maxPositionValue"`
	StopLossPercent  float64 `yaml:"stopLossPercent"`
	MaxDailyLoss     float64 `yaml:"maxDailyLoss"`
}

// Load reads YAML config from path and applies basic validation.
func Load(path string) (EngineConfig, error) {
	var cfg EngineConfig
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads config then overrides operationally critical risk
// limits from the environment, so an on-call operator can tighten limits
// without redeploying the YAML file.
func LoadWithEnvOverrides(path string) (EngineConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if v := os.Getenv("OMS_RISK_MAX_ORDER_VALUE"); v != "" {
		f, perr := strconv.ParseFloat(v, 64)
		if perr != nil {
			return cfg, fmt.Errorf("OMS_RISK_MAX_ORDER_VALUE: %w", perr)
		}
		cfg.Risk.MaxOrderValue = f
	}
	if v := os.Getenv("OMS_RISK_MAX_POSITION_VALUE"); v != "" {
		f, perr := strconv.ParseFloat(v, 64)
		if perr != nil {
			return cfg, fmt.Errorf("OMS_RISK_MAX_POSITION_VALUE: %w", perr)
		}
		cfg.Risk.MaxPositionValue = f
	}
	if v := os.Getenv("OMS_RISK_DAILY_LOSS_LIMIT"); v != "" {
		f, perr := strconv.ParseFloat(v, 64)
		if perr != nil {
			return cfg, fmt.Errorf("OMS_RISK_DAILY_LOSS_LIMIT: %w", perr)
		}
		cfg.Risk.DailyLossLimit = f
	}
	return cfg, Validate(cfg)
}

// Validate ensures required fields are present and well-formed.
func Validate(cfg EngineConfig) error {
	if cfg.Env == "" {
		return errors.New("env is required")
	}
	om := cfg.OrderManager
	if om.RingBufferSize < 2 {
		return errors.New("orderManager.ringBufferSize must be >= 2")
	}
	if om.MaxOrdersPerSecond == 0 {
		return errors.New("orderManager.maxOrdersPerSecond must be > 0")
	}
	if om.MaxActiveOrders == 0 {
		return errors.New("orderManager.maxActiveOrders must be > 0")
	}
	for _, core := range om.CPUCores {
		if core < 0 {
			return fmt.Errorf("orderManager.cpuCores entry %d must be >= 0", core)
		}
	}

	r := cfg.Risk
	if r.MaxOrderValue <= 0 {
		return errors.New("risk.maxOrderValue must be > 0")
	}
	if r.MaxPositionValue <= 0 {
		return errors.New("risk.maxPositionValue must be > 0")
	}
	if r.DailyLossLimit <= 0 {
		return errors.New("risk.dailyLossLimit must be > 0")
	}
	if r.MaxOpenOrders == 0 {
		return errors.New("risk.maxOpenOrders must be > 0")
	}
	if r.MaxLeverage <= 0 {
		return errors.New("risk.maxLeverage must be > 0")
	}

	a := cfg.Arbitrage
	if a.MinProfitRate <= 0 {
		return errors.New("arbitrage.minProfitRate must be > 0")
	}
	if a.MinProfitAmount <= 0 {
		return errors.New("arbitrage.minProfitAmount must be > 0")
	}
	if a.MaxPositionSize <= 0 {
		return errors.New("arbitrage.maxPositionSize must be > 0")
	}
	if a.OpportunityTTLNs == 0 {
		return errors.New("arbitrage.opportunityTtlNs must be > 0")
	}
	for venue, fee := range a.TakerFees {
		if fee < 0 {
			return fmt.Errorf("arbitrage.takerFees[%s] must be >= 0", venue)
		}
	}
	for venue, fee := range a.MakerFees {
		if fee < 0 {
			return fmt.Errorf("arbitrage.makerFees[%s] must be >= 0", venue)
		}
	}

	mm := cfg.MarketMaker
	if mm.Symbol == "" {
		return errors.New("marketMaker.symbol is required")
	}
	if mm.Venue == "" {
		return errors.New("marketMaker.venue is required")
	}
	if mm.BaseSpreadBps <= 0 {
		return errors.New("marketMaker.baseSpreadBps must be > 0")
	}
	if mm.MinSpreadBps <= 0 || mm.MaxSpreadBps <= 0 || mm.MinSpreadBps > mm.MaxSpreadBps {
		return errors.New("marketMaker.minSpreadBps must be > 0 and <= maxSpreadBps")
	}
	if mm.QuoteSize <= 0 {
		return errors.New("marketMaker.quoteSize must be > 0")
	}
	if mm.QuoteLevels <= 0 {
		return errors.New("marketMaker.quoteLevels must be > 0")
	}
	if mm.LevelSpacingBps < 0 {
		return errors.New("marketMaker.levelSpacingBps must be >= 0")
	}
	if mm.MaxInventory <= 0 {
		return errors.New("marketMaker.maxInventory must be > 0")
	}
	if mm.MaxPositionValue <= 0 {
		return errors.New("marketMaker.maxPositionValue must be > 0")
	}
	if mm.StopLossPercent <= 0 {
		return errors.New("marketMaker.stopLossPercent must be > 0")
	}
	if mm.MaxDailyLoss <= 0 {
		return errors.New("marketMaker.maxDailyLoss must be > 0")
	}
	return nil
}
