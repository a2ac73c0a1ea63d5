package regime

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/aristath/advisor/internal/domain"
)

func seriesFrom(t *testing.T, closes []float64, rangePct float64) *domain.CandleSeries {
	t.Helper()
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]domain.Candle, len(closes))
	for i, c := range closes {
		open := c
		if i > 0 {
			open = closes[i-1]
		}
		hi := c * (1 + rangePct)
		lo := c * (1 - rangePct)
		if open > hi {
			hi = open
		}
		if open < lo {
			lo = open
		}
		candles[i] = domain.Candle{
			Time:   start.Add(time.Duration(i) * 24 * time.Hour),
			Open:   open,
			High:   hi,
			Low:    lo,
			Close:  c,
			Volume: 100,
		}
	}
	s, err := domain.NewCandleSeries("BTCUSDT", domain.Timeframe1d, candles)
	require.NoError(t, err)
	return s
}

func TestDetect_ShortSeriesIsUnknown(t *testing.T) {
	d := NewDetector(zerolog.Nop())

	closes := make([]float64, 10)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	require.Equal(t, domain.RegimeUnknown, d.Detect(seriesFrom(t, closes, 0.005)))
}

func TestDetect_EmptySeriesIsUnknown(t *testing.T) {
	d := NewDetector(zerolog.Nop())

	s, err := domain.NewCandleSeries("BTCUSDT", domain.Timeframe1d, nil)
	require.NoError(t, err)
	require.Equal(t, domain.RegimeUnknown, d.Detect(s))
}

func TestDetect_SteadyUptrendIsTrendingBull(t *testing.T) {
	d := NewDetector(zerolog.Nop())

	// 1% daily gains with narrow bars: strong directional movement, low
	// volatility share of price
	closes := make([]float64, 60)
	closes[0] = 100
	for i := 1; i < len(closes); i++ {
		closes[i] = closes[i-1] * 1.01
	}
	require.Equal(t, domain.RegimeTrendingBull, d.Detect(seriesFrom(t, closes, 0.002)))
}

func TestDetect_SteadyDowntrendIsTrendingBear(t *testing.T) {
	d := NewDetector(zerolog.Nop())

	closes := make([]float64, 60)
	closes[0] = 100
	for i := 1; i < len(closes); i++ {
		closes[i] = closes[i-1] * 0.99
	}
	require.Equal(t, domain.RegimeTrendingBear, d.Detect(seriesFrom(t, closes, 0.002)))
}

func TestDetect_WideBarsAreVolatile(t *testing.T) {
	d := NewDetector(zerolog.Nop())

	// Bars spanning 12% of price: ATR/close far above the 4% threshold,
	// so volatility dominates even though price also trends
	closes := make([]float64, 60)
	closes[0] = 100
	for i := 1; i < len(closes); i++ {
		closes[i] = closes[i-1] * 1.01
	}
	require.Equal(t, domain.RegimeVolatile, d.Detect(seriesFrom(t, closes, 0.06)))
}

func TestDetect_FlatOscillationIsRanging(t *testing.T) {
	d := NewDetector(zerolog.Nop())

	// Closes ping-pong in a tight band: directional movement cancels out
	closes := make([]float64, 60)
	for i := range closes {
		if i%2 == 0 {
			closes[i] = 100
		} else {
			closes[i] = 100.5
		}
	}
	require.Equal(t, domain.RegimeRanging, d.Detect(seriesFrom(t, closes, 0.008)))
}

func TestRequiredHistory(t *testing.T) {
	d := NewDetector(zerolog.Nop())
	require.Equal(t, 28, d.RequiredHistory())
}
