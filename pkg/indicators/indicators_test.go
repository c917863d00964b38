package indicators

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func risingCloses(n int) []decimal.Decimal {
	closes := make([]decimal.Decimal, n)
	for i := 0; i < n; i++ {
		closes[i] = decimal.NewFromInt(int64(100 + i))
	}
	return closes
}

func flatCloses(n int) []decimal.Decimal {
	closes := make([]decimal.Decimal, n)
	for i := 0; i < n; i++ {
		closes[i] = decimal.NewFromInt(100)
	}
	return closes
}

func TestCalculateRSI_RisingSeriesApproaches100(t *testing.T) {
	rsi, err := CalculateRSI(risingCloses(60), 14)
	require.NoError(t, err)
	require.NotEmpty(t, rsi)

	last := rsi[len(rsi)-1]
	assert.True(t, last.GreaterThan(decimal.NewFromInt(99)),
		"monotonically rising series should push RSI towards 100, got %s", last)
}

func TestCalculateRSI_FallingSeriesApproachesZero(t *testing.T) {
	closes := make([]decimal.Decimal, 60)
	for i := range closes {
		closes[i] = decimal.NewFromInt(int64(200 - i))
	}

	rsi, err := CalculateRSI(closes, 14)
	require.NoError(t, err)
	require.NotEmpty(t, rsi)

	last := rsi[len(rsi)-1]
	assert.True(t, last.LessThan(decimal.NewFromInt(1)),
		"monotonically falling series should push RSI towards 0, got %s", last)
}

func TestCalculateRSI_FlatSeriesYieldsMidpoint(t *testing.T) {
	rsi, err := CalculateRSI(flatCloses(60), 14)
	require.NoError(t, err)
	require.NotEmpty(t, rsi)

	last := rsi[len(rsi)-1]
	assert.True(t, last.Equal(decimal.NewFromInt(50)),
		"flat series should yield the midpoint, got %s", last)
}

func TestSanitizeRSI(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{name: "NaN maps to the midpoint", in: math.NaN(), want: 50},
		{name: "negative maps to the midpoint", in: -5, want: 50},
		{name: "above range maps to the midpoint", in: 105, want: 50},
		{name: "valid value passes through", in: 28.4, want: 28.4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeRSI(tt.in))
		})
	}
}

func TestCalculateEMA_FlatSeriesEqualsPrice(t *testing.T) {
	ema, err := CalculateEMA(flatCloses(60), 20)
	require.NoError(t, err)
	require.NotEmpty(t, ema)

	last := ema[len(ema)-1]
	assert.True(t, last.Sub(decimal.NewFromInt(100)).Abs().LessThan(decimal.NewFromFloat(0.0001)),
		"EMA of a flat series should equal the price, got %s", last)
}

func TestCalculateMACD_ReturnsSignalLine(t *testing.T) {
	macd, signal, err := CalculateMACD(risingCloses(80))
	require.NoError(t, err)
	assert.NotEmpty(t, macd)
	assert.NotEmpty(t, signal)
	// signal line has extra warmup relative to the MACD line
	assert.Less(t, len(signal), len(macd))
}

func TestCalculateAll(t *testing.T) {
	t.Run("aligned output", func(t *testing.T) {
		closes := risingCloses(80)
		priceData := make([]PriceData, len(closes))
		for i, c := range closes {
			priceData[i] = PriceData{
				Open:  c,
				High:  c.Add(decimal.NewFromInt(1)),
				Low:   c.Sub(decimal.NewFromInt(1)),
				Close: c,
			}
		}

		sets, err := CalculateAll(priceData)
		require.NoError(t, err)
		require.NotEmpty(t, sets)

		last := sets[len(sets)-1]
		assert.True(t, last.RSI14.GreaterThan(decimal.NewFromInt(99)))
		assert.True(t, last.EMA20.GreaterThan(last.EMA50),
			"short EMA should lead in a rising market")
		assert.True(t, last.ATR14.GreaterThan(decimal.Zero))
	})

	t.Run("flat series reads neutral", func(t *testing.T) {
		priceData := make([]PriceData, 60)
		for i := range priceData {
			c := decimal.NewFromInt(100)
			priceData[i] = PriceData{Open: c, High: c, Low: c, Close: c}
		}

		sets, err := CalculateAll(priceData)
		require.NoError(t, err)
		require.NotEmpty(t, sets)
		assert.True(t, sets[len(sets)-1].RSI14.Equal(decimal.NewFromInt(50)),
			"flat market must not read as oversold")
	})

	t.Run("not enough data", func(t *testing.T) {
		_, err := CalculateAll(make([]PriceData, 10))
		assert.Error(t, err)
	})
}
