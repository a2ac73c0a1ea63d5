package domain

import (
	"fmt"
	"sort"
	"time"
)

// CandleSeries is an ordered, read-only view over candles for one
// (instrument, timeframe). Timestamps are strictly increasing.
type CandleSeries struct {
	instrument string
	timeframe  Timeframe
	candles    []Candle
}

// NewCandleSeries validates ordering and OHLCV invariants and wraps the
// candles in a read-only series. The slice is not copied: the caller
// hands over ownership.
func NewCandleSeries(instrument string, timeframe Timeframe, candles []Candle) (*CandleSeries, error) {
	for i := range candles {
		if err := candles[i].Validate(); err != nil {
			return nil, err
		}
		if i > 0 && !candles[i].Time.After(candles[i-1].Time) {
			return nil, fmt.Errorf("candles out of order at index %d: %s not after %s",
				i, candles[i].Time.Format(time.RFC3339), candles[i-1].Time.Format(time.RFC3339))
		}
	}
	return &CandleSeries{instrument: instrument, timeframe: timeframe, candles: candles}, nil
}

// Instrument returns the instrument identifier the series belongs to
func (s *CandleSeries) Instrument() string { return s.instrument }

// Timeframe returns the bar length of the series
func (s *CandleSeries) Timeframe() Timeframe { return s.timeframe }

// Len returns the number of candles
func (s *CandleSeries) Len() int { return len(s.candles) }

// At returns the candle at index i (panics on out-of-range, like a slice)
func (s *CandleSeries) At(i int) Candle { return s.candles[i] }

// Last returns the most recent candle and false if the series is empty
func (s *CandleSeries) Last() (Candle, bool) {
	if len(s.candles) == 0 {
		return Candle{}, false
	}
	return s.candles[len(s.candles)-1], true
}

// ByTime returns the candle whose bar starts exactly at ts
func (s *CandleSeries) ByTime(ts time.Time) (Candle, bool) {
	i := sort.Search(len(s.candles), func(i int) bool {
		return !s.candles[i].Time.Before(ts)
	})
	if i < len(s.candles) && s.candles[i].Time.Equal(ts) {
		return s.candles[i], true
	}
	return Candle{}, false
}

// Closes extracts closing prices in order. Indicators operate on these
// numeric slices; the extraction is the only copying the series does.
func (s *CandleSeries) Closes() []float64 {
	out := make([]float64, len(s.candles))
	for i := range s.candles {
		out[i] = s.candles[i].Close
	}
	return out
}

// Highs extracts high prices in order
func (s *CandleSeries) Highs() []float64 {
	out := make([]float64, len(s.candles))
	for i := range s.candles {
		out[i] = s.candles[i].High
	}
	return out
}

// Lows extracts low prices in order
func (s *CandleSeries) Lows() []float64 {
	out := make([]float64, len(s.candles))
	for i := range s.candles {
		out[i] = s.candles[i].Low
	}
	return out
}

// Volumes extracts volumes in order
func (s *CandleSeries) Volumes() []float64 {
	out := make([]float64, len(s.candles))
	for i := range s.candles {
		out[i] = s.candles[i].Volume
	}
	return out
}
