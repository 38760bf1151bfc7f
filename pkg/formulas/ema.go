package formulas

import (
	"github.com/markcheno/go-talib"
)

// CalculateEMA returns the latest exponential moving average of values.
//
//	EMA_today = (value_today × multiplier) + (EMA_yesterday × (1 - multiplier))
//	where multiplier = 2 / (period + 1)
//
// Falls back to the simple mean when there are fewer values than length.
// Returns nil for an empty series.
func CalculateEMA(values []float64, length int) *float64 {
	if len(values) == 0 {
		return nil
	}

	if length <= 1 {
		last := values[len(values)-1]
		return &last
	}

	if len(values) < length {
		sma := Mean(values)
		return &sma
	}

	ema := talib.Ema(values, length)
	if len(ema) > 0 && !isNaN(ema[len(ema)-1]) {
		result := ema[len(ema)-1]
		return &result
	}

	sma := Mean(values[len(values)-length:])
	return &sma
}
