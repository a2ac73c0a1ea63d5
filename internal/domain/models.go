// Package domain contains the pure value types of the recommendation
// pipeline. It has no infrastructure dependencies: every other package
// depends on domain, domain depends on nothing but the standard library.
package domain

import (
	"fmt"
	"time"
)

// Timeframe represents a bar length (e.g. 1h, 4h, 1d)
type Timeframe string

const (
	Timeframe1m  Timeframe = "1m"
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe1h  Timeframe = "1h"
	Timeframe4h  Timeframe = "4h"
	Timeframe1d  Timeframe = "1d"
)

// Duration returns the length of one bar of the timeframe
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case Timeframe1m:
		return time.Minute
	case Timeframe5m:
		return 5 * time.Minute
	case Timeframe15m:
		return 15 * time.Minute
	case Timeframe1h:
		return time.Hour
	case Timeframe4h:
		return 4 * time.Hour
	case Timeframe1d:
		return 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// Valid reports whether the timeframe is one of the supported bar lengths
func (tf Timeframe) Valid() bool {
	switch tf {
	case Timeframe1m, Timeframe5m, Timeframe15m, Timeframe1h, Timeframe4h, Timeframe1d:
		return true
	}
	return false
}

// Truncate aligns a timestamp to the start of its bar, in UTC
func (tf Timeframe) Truncate(t time.Time) time.Time {
	return t.UTC().Truncate(tf.Duration())
}

// Instrument identifies a tradable instrument
type Instrument struct {
	Symbol        string `json:"symbol"`         // Stable identifier, e.g. "BTCUSDT"
	DisplaySymbol string `json:"display_symbol"` // e.g. "BTC/USDT"
	QuoteCurrency string `json:"quote_currency"` // e.g. "USDT"
}

// Candle is one OHLCV bar. Time is UTC, aligned to the bar start.
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Validate checks the OHLCV invariants:
// low <= min(open, close) <= max(open, close) <= high, volume >= 0
func (c Candle) Validate() error {
	lo, hi := c.Open, c.Close
	if lo > hi {
		lo, hi = hi, lo
	}
	if c.Low > lo {
		return fmt.Errorf("candle at %s: low %.8f above body low %.8f", c.Time.Format(time.RFC3339), c.Low, lo)
	}
	if c.High < hi {
		return fmt.Errorf("candle at %s: high %.8f below body high %.8f", c.Time.Format(time.RFC3339), c.High, hi)
	}
	if c.Volume < 0 {
		return fmt.Errorf("candle at %s: negative volume %.8f", c.Time.Format(time.RFC3339), c.Volume)
	}
	return nil
}

// Direction of a strategy or aggregated signal
type Direction string

const (
	DirectionLong    Direction = "LONG"
	DirectionShort   Direction = "SHORT"
	DirectionNeutral Direction = "NEUTRAL"
)

// MarketRegime classifies current market behavior
type MarketRegime string

const (
	RegimeTrendingBull MarketRegime = "TRENDING_BULL"
	RegimeTrendingBear MarketRegime = "TRENDING_BEAR"
	RegimeRanging      MarketRegime = "RANGING"
	RegimeVolatile     MarketRegime = "VOLATILE"
	RegimeUnknown      MarketRegime = "UNKNOWN"
)

// StrategySignal is the output of a single strategy evaluation.
// Strength carries the sign of the direction and is 0 iff NEUTRAL.
type StrategySignal struct {
	StrategyName string    `json:"strategy_name"`
	Direction    Direction `json:"direction"`
	Strength     float64   `json:"strength"`   // [-1, +1]
	Confidence   float64   `json:"confidence"` // [0, 1]
	Reasons      []string  `json:"reasons"`
	AsOf         time.Time `json:"as_of"`
}

// ReasonInsufficientData is the reason code a strategy reports when the
// series is shorter than its warm-up. It is a signal, not an error.
const ReasonInsufficientData = "insufficient_data"

// Insufficient reports whether the signal is an insufficient-data placeholder
func (s StrategySignal) Insufficient() bool {
	for _, r := range s.Reasons {
		if r == ReasonInsufficientData {
			return true
		}
	}
	return false
}

// AggregatedSignal is the condensed view of all contributing strategy signals
type AggregatedSignal struct {
	Direction    Direction        `json:"direction"`
	Strength     float64          `json:"strength"`  // [-1, +1]
	Consensus    float64          `json:"consensus"` // [0, 1], weighted agreement share
	Regime       MarketRegime     `json:"regime"`
	Contributing []StrategySignal `json:"contributing"`
}

// Action is the recommended trading action
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// ConditionKind enumerates invalidation condition types
type ConditionKind string

const (
	ConditionPriceBelow       ConditionKind = "PRICE_BELOW"
	ConditionPriceAbove       ConditionKind = "PRICE_ABOVE"
	ConditionIndicatorExceeds ConditionKind = "INDICATOR_EXCEEDS"
	ConditionTimeElapsed      ConditionKind = "TIME_ELAPSED"
)

// Condition is a human-renderable invalidation condition
type Condition struct {
	Kind     ConditionKind          `json:"kind"`
	Operands map[string]interface{} `json:"operands"`
}

// String renders the condition for explanations. Plain ASCII, fixed format.
func (c Condition) String() string {
	switch c.Kind {
	case ConditionPriceBelow:
		return fmt.Sprintf("price falls below %.2f", asFloat(c.Operands["price"]))
	case ConditionPriceAbove:
		return fmt.Sprintf("price rises above %.2f", asFloat(c.Operands["price"]))
	case ConditionIndicatorExceeds:
		return fmt.Sprintf("%v exceeds %.2f", c.Operands["indicator"], asFloat(c.Operands["value"]))
	case ConditionTimeElapsed:
		if at, ok := c.Operands["at"].(time.Time); ok {
			return fmt.Sprintf("not acted on by %s", at.UTC().Format(time.RFC3339))
		}
		return fmt.Sprintf("not acted on by %v", c.Operands["at"])
	default:
		return string(c.Kind)
	}
}

func asFloat(v interface{}) float64 {
	f, _ := v.(float64)
	return f
}

// Decision is the actionable outcome derived from an aggregated signal.
// Prices are populated iff Action is BUY or SELL.
type Decision struct {
	Action       Action      `json:"action"`
	Confidence   float64     `json:"confidence"` // [0, 1]
	EntryPrice   *float64    `json:"entry_price"`
	StopLoss     *float64    `json:"stop_loss"`
	TakeProfit   *float64    `json:"take_profit"`
	Invalidation []Condition `json:"invalidation"`
	ValidUntil   time.Time   `json:"valid_until"`
}

// Explanation is the human-readable rendering of a decision
type Explanation struct {
	Summary  string   `json:"summary"`
	Reasons  []string `json:"reasons"`
	Warnings []string `json:"warnings"`
}

// Recommendation is the cached artifact produced by one engine run
type Recommendation struct {
	Instrument    string           `json:"instrument"`
	AsOf          time.Time        `json:"as_of"`
	Decision      Decision         `json:"decision"`
	Aggregated    AggregatedSignal `json:"aggregated"`
	Explanation   Explanation      `json:"explanation"`
	EngineVersion string           `json:"engine_version"`
}
