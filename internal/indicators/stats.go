package indicators

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// BollingerBands holds one Bollinger Bands evaluation at the last bar
type BollingerBands struct {
	Upper     float64
	Middle    float64
	Lower     float64
	Bandwidth float64 // (Upper - Lower) / Middle
}

// LastBollinger computes Bollinger Bands over the trailing period of
// values using the sample standard deviation (Bessel's correction).
// Warm-up: period-1. Returns nil on insufficient data or a zero middle
// band.
func LastBollinger(values []float64, period int, mult float64) *BollingerBands {
	if len(values) < period || period < 2 {
		return nil
	}
	window := values[len(values)-period:]
	mean := stat.Mean(window, nil)
	sd := stat.StdDev(window, nil)
	if math.IsNaN(mean) || math.IsNaN(sd) || mean == 0 {
		return nil
	}
	bb := &BollingerBands{
		Upper:  mean + mult*sd,
		Middle: mean,
		Lower:  mean - mult*sd,
	}
	bb.Bandwidth = (bb.Upper - bb.Lower) / bb.Middle
	return bb
}

// LastZScore returns the Z-score of the last value against the trailing
// period window (sample standard deviation). Warm-up: period-1. Returns
// nil on insufficient data or zero dispersion.
func LastZScore(values []float64, period int) *float64 {
	if len(values) < period || period < 2 {
		return nil
	}
	window := values[len(values)-period:]
	mean := stat.Mean(window, nil)
	sd := stat.StdDev(window, nil)
	if sd == 0 || math.IsNaN(sd) {
		return nil
	}
	z := (values[len(values)-1] - mean) / sd
	if math.IsNaN(z) || math.IsInf(z, 0) {
		return nil
	}
	return &z
}

// LastVWAP returns the volume-weighted average price over the trailing
// period, using the typical price (H+L+C)/3. Warm-up: period-1. Returns
// nil when the window has no volume.
func LastVWAP(high, low, close, volume []float64, period int) *float64 {
	n := len(close)
	if n < period || period <= 0 || len(high) != n || len(low) != n || len(volume) != n {
		return nil
	}
	var pv, v float64
	for i := n - period; i < n; i++ {
		typical := (high[i] + low[i] + close[i]) / 3
		pv += typical * volume[i]
		v += volume[i]
	}
	if v == 0 {
		return nil
	}
	vwap := pv / v
	if math.IsNaN(vwap) || math.IsInf(vwap, 0) {
		return nil
	}
	return &vwap
}

// MeanAbs returns the mean of absolute values over the trailing period,
// skipping leading warm-up zeros is the caller's concern. Returns 0 for
// an empty window.
func MeanAbs(values []float64, period int) float64 {
	if len(values) == 0 || period <= 0 {
		return 0
	}
	start := len(values) - period
	if start < 0 {
		start = 0
	}
	window := values[start:]
	var sum float64
	for _, v := range window {
		sum += math.Abs(v)
	}
	return sum / float64(len(window))
}
