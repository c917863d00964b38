package signal

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkeller/signalgram/internal/domain"
)

func defaultThresholds() Thresholds {
	return Thresholds{
		RSIBuy:       decimal.NewFromInt(30),
		RSISell:      decimal.NewFromInt(70),
		DipPct:       decimal.NewFromInt(3),
		RunPct:       decimal.NewFromInt(5),
		AlertMovePct: decimal.NewFromInt(5),
	}
}

func boolPtr(b bool) *bool { return &b }

func TestClassify(t *testing.T) {
	th := defaultThresholds()

	tests := []struct {
		name string
		in   Inputs
		want domain.Signal
	}{
		{
			name: "big short move fires ALERT",
			in: Inputs{
				RSI14:          decimal.NewFromInt(50),
				ShortChangePct: decimal.NewFromInt(-6),
			},
			want: domain.SignalAlert,
		},
		{
			name: "oversold dip fires BUY",
			in: Inputs{
				RSI14:         decimal.NewFromInt(25),
				LongChangePct: decimal.NewFromInt(-4),
			},
			want: domain.SignalBuy,
		},
		{
			name: "oversold without a dip holds",
			in: Inputs{
				RSI14:         decimal.NewFromInt(25),
				LongChangePct: decimal.NewFromInt(1),
			},
			want: domain.SignalHold,
		},
		{
			name: "overbought run fires SELL",
			in: Inputs{
				RSI14:         decimal.NewFromInt(75),
				LongChangePct: decimal.NewFromInt(6),
			},
			want: domain.SignalSell,
		},
		{
			name: "overbought without a run holds",
			in: Inputs{
				RSI14:         decimal.NewFromInt(75),
				LongChangePct: decimal.NewFromInt(2),
			},
			want: domain.SignalHold,
		},
		{
			name: "MACD cross fires INFO",
			in: Inputs{
				RSI14:         decimal.NewFromInt(50),
				MACDAbove:     true,
				PrevMACDAbove: boolPtr(false),
			},
			want: domain.SignalInfo,
		},
		{
			name: "MACD steady holds",
			in: Inputs{
				RSI14:         decimal.NewFromInt(50),
				MACDAbove:     true,
				PrevMACDAbove: boolPtr(true),
			},
			want: domain.SignalHold,
		},
		{
			name: "first run has no MACD history to cross",
			in: Inputs{
				RSI14:     decimal.NewFromInt(50),
				MACDAbove: true,
			},
			want: domain.SignalHold,
		},
		{
			name: "quiet market holds",
			in: Inputs{
				RSI14: decimal.NewFromInt(50),
			},
			want: domain.SignalHold,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := Classify(th, tt.in)
			assert.Equal(t, tt.want, got)
		})
	}
}

// Priority order is part of the contract: ALERT beats BUY beats SELL
// beats INFO even when several conditions hold at once.
func TestClassify_PriorityOrder(t *testing.T) {
	th := defaultThresholds()

	t.Run("ALERT wins over BUY", func(t *testing.T) {
		got, _ := Classify(th, Inputs{
			RSI14:          decimal.NewFromInt(20),
			ShortChangePct: decimal.NewFromInt(-8),
			LongChangePct:  decimal.NewFromInt(-10),
		})
		assert.Equal(t, domain.SignalAlert, got)
	})

	t.Run("BUY wins over INFO", func(t *testing.T) {
		got, _ := Classify(th, Inputs{
			RSI14:         decimal.NewFromInt(20),
			LongChangePct: decimal.NewFromInt(-10),
			MACDAbove:     true,
			PrevMACDAbove: boolPtr(false),
		})
		assert.Equal(t, domain.SignalBuy, got)
	})

	t.Run("SELL wins over INFO", func(t *testing.T) {
		got, _ := Classify(th, Inputs{
			RSI14:         decimal.NewFromInt(80),
			LongChangePct: decimal.NewFromInt(10),
			MACDAbove:     false,
			PrevMACDAbove: boolPtr(true),
		})
		assert.Equal(t, domain.SignalSell, got)
	})
}

func TestChangeOverWindow(t *testing.T) {
	start := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	mkCandles := func(closes ...int64) []domain.Candle {
		candles := make([]domain.Candle, len(closes))
		for i, c := range closes {
			candles[i] = domain.Candle{
				Close:     decimal.NewFromInt(c),
				CloseTime: start.Add(time.Duration(i) * time.Hour),
			}
		}
		return candles
	}

	t.Run("picks the candle one window back", func(t *testing.T) {
		candles := mkCandles(100, 110, 121)
		change, err := ChangeOverWindow(candles, time.Hour)
		require.NoError(t, err)
		assert.True(t, change.Equal(decimal.NewFromInt(10)), "got %s", change)
	})

	t.Run("window longer than history falls back to the first candle", func(t *testing.T) {
		candles := mkCandles(100, 110, 121)
		change, err := ChangeOverWindow(candles, 48*time.Hour)
		require.NoError(t, err)
		assert.True(t, change.Equal(decimal.NewFromInt(21)), "got %s", change)
	})

	t.Run("too few candles", func(t *testing.T) {
		_, err := ChangeOverWindow(mkCandles(100), time.Hour)
		assert.Error(t, err)
	})

	t.Run("zero reference price", func(t *testing.T) {
		_, err := ChangeOverWindow(mkCandles(0, 10), time.Hour)
		assert.Error(t, err)
	})
}
