// Package indicators provides technical analysis indicators (EMA, MACD, RSI, ATR).
package indicators

import (
	"fmt"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/momentum"
	"github.com/cinar/indicator/v2/trend"
	"github.com/cinar/indicator/v2/volatility"
	"github.com/shopspring/decimal"

	"github.com/mkeller/signalgram/internal/domain"
)

// PriceData represents OHLC (open, high, low, close) price data.
type PriceData struct {
	Open  decimal.Decimal
	High  decimal.Decimal
	Low   decimal.Decimal
	Close decimal.Decimal
}

// MinCandles is the smallest series CalculateAll accepts. MACD with its
// signal line needs 26+9 samples of warmup.
const MinCandles = 50

// CalculateEMA calculates the Exponential Moving Average for the given period.
func CalculateEMA(closes []decimal.Decimal, period int) ([]decimal.Decimal, error) {
	if len(closes) < period {
		return nil, fmt.Errorf("not enough data points: need %d, got %d", period, len(closes))
	}

	ema := trend.NewEmaWithPeriod[float64](period)
	outputChan := ema.Compute(helper.SliceToChan(decimalsToFloat64(closes)))

	return float64ToDecimals(helper.ChanToSlice(outputChan)), nil
}

// CalculateMACD calculates the MACD line and its signal line.
func CalculateMACD(closes []decimal.Decimal) (macdLine, signalLine []decimal.Decimal, err error) {
	if len(closes) < 35 {
		return nil, nil, fmt.Errorf("not enough data points for MACD: need at least 35, got %d", len(closes))
	}

	macd := trend.NewMacd[float64]()
	macdChan, signalChan := macd.Compute(helper.SliceToChan(decimalsToFloat64(closes)))

	// both channels must be drained concurrently to avoid blocking
	var signalFloat []float64
	done := make(chan struct{})
	go func() {
		signalFloat = helper.ChanToSlice(signalChan)
		close(done)
	}()
	macdFloat := helper.ChanToSlice(macdChan)
	<-done

	return float64ToDecimals(macdFloat), float64ToDecimals(signalFloat), nil
}

// CalculateRSI calculates the Relative Strength Index for the given
// period. Values are sanitized: a flat series has zero average gain and
// zero average loss, which leaves the raw ratio NaN, and such a market
// reads as neutral (50), not oversold.
func CalculateRSI(closes []decimal.Decimal, period int) ([]decimal.Decimal, error) {
	if len(closes) < period+1 {
		return nil, fmt.Errorf("not enough data points for RSI: need %d, got %d", period+1, len(closes))
	}

	rsi := momentum.NewRsiWithPeriod[float64](period)
	values := helper.ChanToSlice(rsi.Compute(helper.SliceToChan(decimalsToFloat64(closes))))

	for i, v := range values {
		values[i] = SanitizeRSI(v)
	}

	return float64ToDecimals(values), nil
}

// CalculateATR calculates the Average True Range for the given period.
func CalculateATR(priceData []PriceData, period int) ([]decimal.Decimal, error) {
	if len(priceData) < period+1 {
		return nil, fmt.Errorf("not enough data points for ATR: need %d, got %d", period+1, len(priceData))
	}

	highs := make([]float64, len(priceData))
	lows := make([]float64, len(priceData))
	closes := make([]float64, len(priceData))

	for i, pd := range priceData {
		highs[i], _ = pd.High.Float64()
		lows[i], _ = pd.Low.Float64()
		closes[i], _ = pd.Close.Float64()
	}

	atr := volatility.NewAtrWithPeriod[float64](period)
	outputChan := atr.Compute(
		helper.SliceToChan(highs),
		helper.SliceToChan(lows),
		helper.SliceToChan(closes),
	)

	return float64ToDecimals(helper.ChanToSlice(outputChan)), nil
}

// CalculateAll calculates every indicator the classifier consumes and
// returns slices aligned to the tail of the input series.
func CalculateAll(priceData []PriceData) ([]domain.IndicatorSet, error) {
	if len(priceData) < MinCandles {
		return nil, fmt.Errorf("not enough data points: need at least %d, got %d", MinCandles, len(priceData))
	}

	closes := make([]decimal.Decimal, len(priceData))
	for i, pd := range priceData {
		closes[i] = pd.Close
	}

	ema20, err := CalculateEMA(closes, 20)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate EMA20: %w", err)
	}

	ema50, err := CalculateEMA(closes, 50)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate EMA50: %w", err)
	}

	macd, macdSignal, err := CalculateMACD(closes)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate MACD: %w", err)
	}

	rsi14, err := CalculateRSI(closes, 14)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate RSI14: %w", err)
	}

	atr14, err := CalculateATR(priceData, 14)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate ATR14: %w", err)
	}

	// find minimum length among indicators (handles warmup differences)
	minLen := len(ema20)
	for _, s := range [][]decimal.Decimal{ema50, macd, macdSignal, rsi14, atr14} {
		if len(s) < minLen {
			minLen = len(s)
		}
	}

	// build aligned result applying individual offsets
	offsetEMA20 := len(ema20) - minLen
	offsetEMA50 := len(ema50) - minLen
	offsetMACD := len(macd) - minLen
	offsetSignal := len(macdSignal) - minLen
	offsetRSI14 := len(rsi14) - minLen
	offsetATR14 := len(atr14) - minLen

	result := make([]domain.IndicatorSet, minLen)
	for i := 0; i < minLen; i++ {
		result[i] = domain.IndicatorSet{
			EMA20:      ema20[offsetEMA20+i],
			EMA50:      ema50[offsetEMA50+i],
			MACD:       macd[offsetMACD+i],
			MACDSignal: macdSignal[offsetSignal+i],
			RSI14:      rsi14[offsetRSI14+i],
			ATR14:      atr14[offsetATR14+i],
		}
	}

	return result, nil
}

// SanitizeRSI maps degenerate raw RSI values (NaN or out of the 0..100
// range) to the midpoint. It must run on the raw float, before the
// decimal conversion collapses NaN to zero.
func SanitizeRSI(rsi float64) float64 {
	if rsi != rsi || rsi < 0 || rsi > 100 {
		return 50
	}
	return rsi
}

// decimalsToFloat64 converts a slice of decimal.Decimal to []float64.
func decimalsToFloat64(decimals []decimal.Decimal) []float64 {
	result := make([]float64, len(decimals))
	for i, d := range decimals {
		result[i], _ = d.Float64()
	}
	return result
}

// float64ToDecimals converts a slice of float64 to []decimal.Decimal.
func float64ToDecimals(floats []float64) []decimal.Decimal {
	result := make([]decimal.Decimal, len(floats))
	for i, f := range floats {
		if f != f { // NaN guard, decimal.NewFromFloat panics on NaN
			result[i] = decimal.Zero
			continue
		}
		result[i] = decimal.NewFromFloat(f)
	}
	return result
}
