// Package regime classifies market behavior at a point in time from
// trend strength (ADX, directional movement) and volatility (ATR as a
// share of price). The classification modulates strategy weights in the
// signal condenser.
package regime

import (
	"github.com/rs/zerolog"

	"github.com/aristath/advisor/internal/domain"
	"github.com/aristath/advisor/internal/indicators"
)

// Detector classifies the market regime at the last bar of a series
type Detector struct {
	adxPeriod         int
	atrPeriod         int
	adxTrendThreshold float64 // ADX at or above this means trending
	atrVolThreshold   float64 // ATR/close at or above this means volatile
	log               zerolog.Logger
}

// NewDetector creates a detector with the standard thresholds
// (ADX 25 for trend, ATR at 4% of price for volatility)
func NewDetector(log zerolog.Logger) *Detector {
	return &Detector{
		adxPeriod:         14,
		atrPeriod:         14,
		adxTrendThreshold: 25.0,
		atrVolThreshold:   0.04,
		log:               log.With().Str("component", "regime_detector").Logger(),
	}
}

// Detect returns the market regime at the last bar. Series too short
// for ADX/ATR warm-up yield RegimeUnknown rather than an error.
func (d *Detector) Detect(series *domain.CandleSeries) domain.MarketRegime {
	last, ok := series.Last()
	if !ok || last.Close == 0 {
		return domain.RegimeUnknown
	}

	highs := series.Highs()
	lows := series.Lows()
	closes := series.Closes()

	adx := indicators.LastADX(highs, lows, closes, d.adxPeriod)
	atr := indicators.LastATR(highs, lows, closes, d.atrPeriod)
	if adx == nil || atr == nil {
		return domain.RegimeUnknown
	}

	// High volatility dominates the trend classification: a strongly
	// trending but violently moving market is treated as VOLATILE so
	// trend-followers are not over-weighted into whipsaws.
	atrPct := *atr / last.Close
	if atrPct >= d.atrVolThreshold {
		d.logDetected(domain.RegimeVolatile, *adx, atrPct)
		return domain.RegimeVolatile
	}

	if *adx >= d.adxTrendThreshold {
		plusDI := indicators.LastPlusDI(highs, lows, closes, d.adxPeriod)
		minusDI := indicators.LastMinusDI(highs, lows, closes, d.adxPeriod)
		if plusDI == nil || minusDI == nil {
			return domain.RegimeUnknown
		}
		if *plusDI >= *minusDI {
			d.logDetected(domain.RegimeTrendingBull, *adx, atrPct)
			return domain.RegimeTrendingBull
		}
		d.logDetected(domain.RegimeTrendingBear, *adx, atrPct)
		return domain.RegimeTrendingBear
	}

	d.logDetected(domain.RegimeRanging, *adx, atrPct)
	return domain.RegimeRanging
}

// RequiredHistory returns the minimum bars the detector needs for a
// classification other than UNKNOWN
func (d *Detector) RequiredHistory() int {
	return 2 * d.adxPeriod
}

func (d *Detector) logDetected(r domain.MarketRegime, adx, atrPct float64) {
	d.log.Debug().
		Str("regime", string(r)).
		Float64("adx", adx).
		Float64("atr_pct", atrPct).
		Msg("Regime detected")
}
