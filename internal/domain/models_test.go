package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimeframe_Duration(t *testing.T) {
	assert.Equal(t, time.Minute, Timeframe1m.Duration())
	assert.Equal(t, 4*time.Hour, Timeframe4h.Duration())
	assert.Equal(t, 24*time.Hour, Timeframe1d.Duration())
}

func TestTimeframe_Valid(t *testing.T) {
	assert.True(t, Timeframe1h.Valid())
	assert.True(t, Timeframe1d.Valid())
	assert.False(t, Timeframe("2w").Valid())
	assert.False(t, Timeframe("").Valid())
}

func TestTimeframe_Truncate(t *testing.T) {
	ts := time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)

	assert.Equal(t, time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC), Timeframe1d.Truncate(ts))
	assert.Equal(t, time.Date(2025, 3, 14, 15, 0, 0, 0, time.UTC), Timeframe1h.Truncate(ts))
}

func TestCandle_Validate(t *testing.T) {
	now := time.Now().UTC()

	valid := Candle{Time: now, Open: 100, High: 105, Low: 98, Close: 103, Volume: 10}
	assert.NoError(t, valid.Validate())

	// High below the candle body
	badHigh := Candle{Time: now, Open: 100, High: 101, Low: 98, Close: 103, Volume: 10}
	assert.Error(t, badHigh.Validate())

	// Low above the candle body
	badLow := Candle{Time: now, Open: 100, High: 105, Low: 101, Close: 103, Volume: 10}
	assert.Error(t, badLow.Validate())

	negVolume := Candle{Time: now, Open: 100, High: 105, Low: 98, Close: 103, Volume: -1}
	assert.Error(t, negVolume.Validate())

	// Doji: open == close, zero-range bar
	doji := Candle{Time: now, Open: 100, High: 100, Low: 100, Close: 100, Volume: 0}
	assert.NoError(t, doji.Validate())
}

func TestStrategySignal_Insufficient(t *testing.T) {
	sig := StrategySignal{Reasons: []string{ReasonInsufficientData}}
	assert.True(t, sig.Insufficient())

	sig = StrategySignal{Reasons: []string{"oversold"}}
	assert.False(t, sig.Insufficient())

	sig = StrategySignal{}
	assert.False(t, sig.Insufficient())
}

func TestCondition_String(t *testing.T) {
	below := Condition{Kind: ConditionPriceBelow, Operands: map[string]interface{}{"price": 9800.0}}
	assert.Equal(t, "price falls below 9800.00", below.String())

	above := Condition{Kind: ConditionPriceAbove, Operands: map[string]interface{}{"price": 10200.0}}
	assert.Equal(t, "price rises above 10200.00", above.String())

	at := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	elapsed := Condition{Kind: ConditionTimeElapsed, Operands: map[string]interface{}{"at": at}}
	assert.Equal(t, "not acted on by 2025-06-02T00:00:00Z", elapsed.String())

	indicator := Condition{Kind: ConditionIndicatorExceeds, Operands: map[string]interface{}{"indicator": "RSI", "value": 70.0}}
	assert.Equal(t, "RSI exceeds 70.00", indicator.String())
}
