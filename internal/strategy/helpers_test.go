package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aristath/advisor/internal/domain"
)

// closesSeries builds a valid daily series around the given closes,
// with bars tight enough not to disturb close-based indicators
func closesSeries(t *testing.T, closes []float64) *domain.CandleSeries {
	t.Helper()
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]domain.Candle, len(closes))
	for i, c := range closes {
		open := c
		if i > 0 {
			open = closes[i-1]
		}
		hi := c * 1.001
		lo := c * 0.999
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

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
