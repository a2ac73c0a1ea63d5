// Package indicators is the pure numeric kernel of the pipeline.
// Every function takes plain float64 slices extracted from a candle
// series, mutates nothing, and is deterministic: equal input yields
// bit-identical output. Each indicator documents its warm-up, the
// number of leading samples for which it cannot produce a value.
package indicators

import (
	"math"

	"github.com/markcheno/go-talib"
)

// SMA returns the simple moving average series. Warm-up: period-1
// leading values are zero.
func SMA(values []float64, period int) []float64 {
	if len(values) < period || period <= 0 {
		return nil
	}
	return talib.Sma(values, period)
}

// EMA returns the exponential moving average series with
// alpha = 2/(period+1), seeded with the SMA of the first period values.
// Warm-up: period-1.
func EMA(values []float64, period int) []float64 {
	if len(values) < period || period <= 0 {
		return nil
	}
	return talib.Ema(values, period)
}

// RSI returns the Relative Strength Index series using Wilder's
// smoothing. Warm-up: period.
func RSI(values []float64, period int) []float64 {
	if len(values) < period+1 || period <= 0 {
		return nil
	}
	return talib.Rsi(values, period)
}

// LastRSI returns the current RSI value, or nil on insufficient data
func LastRSI(values []float64, period int) *float64 {
	return lastFinite(RSI(values, period))
}

// MACD returns the MACD line (EMA(fast) - EMA(slow)), its signal line
// (EMA(signalPeriod) of the MACD line) and the histogram (line - signal).
// Warm-up: slow + signalPeriod - 2.
func MACD(values []float64, fast, slow, signalPeriod int) (line, signal, hist []float64) {
	if len(values) < slow+signalPeriod || fast <= 0 || slow <= fast || signalPeriod <= 0 {
		return nil, nil, nil
	}
	return talib.Macd(values, fast, slow, signalPeriod)
}

// ATR returns the Average True Range series (Wilder's smoothing).
// Warm-up: period.
func ATR(high, low, close []float64, period int) []float64 {
	if len(close) < period+1 || period <= 0 {
		return nil
	}
	return talib.Atr(high, low, close, period)
}

// LastATR returns the current ATR value, or nil on insufficient data
func LastATR(high, low, close []float64, period int) *float64 {
	return lastFinite(ATR(high, low, close, period))
}

// ADX returns the Average Directional Index series.
// Warm-up: 2*period - 1.
func ADX(high, low, close []float64, period int) []float64 {
	if len(close) < 2*period || period <= 0 {
		return nil
	}
	return talib.Adx(high, low, close, period)
}

// LastADX returns the current ADX value, or nil on insufficient data
func LastADX(high, low, close []float64, period int) *float64 {
	return lastFinite(ADX(high, low, close, period))
}

// LastPlusDI returns the current +DI value, or nil on insufficient data.
// Warm-up: period.
func LastPlusDI(high, low, close []float64, period int) *float64 {
	if len(close) < period+1 || period <= 0 {
		return nil
	}
	return lastFinite(talib.PlusDI(high, low, close, period))
}

// LastMinusDI returns the current -DI value, or nil on insufficient data.
// Warm-up: period.
func LastMinusDI(high, low, close []float64, period int) *float64 {
	if len(close) < period+1 || period <= 0 {
		return nil
	}
	return lastFinite(talib.MinusDI(high, low, close, period))
}

// lastFinite returns a pointer to the last value of the series if it is
// a finite number. Numerical edge cases (NaN, Inf, empty) are absorbed
// here; consumers see nil and fall back to NEUTRAL.
func lastFinite(series []float64) *float64 {
	if len(series) == 0 {
		return nil
	}
	v := series[len(series)-1]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
