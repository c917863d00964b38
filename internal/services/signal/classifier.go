// Package signal classifies indicator snapshots into actionable labels.
package signal

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/mkeller/signalgram/internal/domain"
)

// Thresholds are the tunable boundaries of the classification.
type Thresholds struct {
	// RSIBuy is the oversold boundary, BUY requires RSI at or below it.
	RSIBuy decimal.Decimal
	// RSISell is the overbought boundary, SELL requires RSI at or above it.
	RSISell decimal.Decimal
	// DipPct is the long-window drop (in percent, positive number) that
	// must accompany an oversold RSI for a BUY.
	DipPct decimal.Decimal
	// RunPct is the long-window rise that must accompany an overbought
	// RSI for a SELL.
	RunPct decimal.Decimal
	// AlertMovePct is the absolute short-window move that fires an ALERT.
	AlertMovePct decimal.Decimal
}

// Inputs are the per-instrument facts the classifier looks at.
type Inputs struct {
	RSI14          decimal.Decimal
	ShortChangePct decimal.Decimal
	LongChangePct  decimal.Decimal
	MACDAbove      bool
	// PrevMACDAbove is the MACD/signal relation from the previous run,
	// nil on the first run for an instrument.
	PrevMACDAbove *bool
}

// Classify applies the threshold checks in fixed priority order:
// ALERT, BUY, SELL, INFO, HOLD. The first matching label wins.
func Classify(th Thresholds, in Inputs) (domain.Signal, string) {
	if in.ShortChangePct.Abs().GreaterThanOrEqual(th.AlertMovePct) {
		return domain.SignalAlert, fmt.Sprintf("price moved %s%% within the hour", in.ShortChangePct.StringFixed(2))
	}

	if in.RSI14.LessThanOrEqual(th.RSIBuy) && in.LongChangePct.LessThanOrEqual(th.DipPct.Neg()) {
		return domain.SignalBuy, fmt.Sprintf("oversold, RSI %s with %s%% over 24h", in.RSI14.StringFixed(1), in.LongChangePct.StringFixed(2))
	}

	if in.RSI14.GreaterThanOrEqual(th.RSISell) && in.LongChangePct.GreaterThanOrEqual(th.RunPct) {
		return domain.SignalSell, fmt.Sprintf("overbought, RSI %s with +%s%% over 24h", in.RSI14.StringFixed(1), in.LongChangePct.StringFixed(2))
	}

	if in.PrevMACDAbove != nil && in.MACDAbove != *in.PrevMACDAbove {
		direction := "bearish"
		if in.MACDAbove {
			direction = "bullish"
		}
		return domain.SignalInfo, fmt.Sprintf("MACD crossed its signal line (%s)", direction)
	}

	return domain.SignalHold, ""
}

// ChangeOverWindow computes the percent change between the latest close
// and the close nearest to window before it. The reference candle is
// found by timestamp, so sources with coarser granularity than the
// configured interval still produce a sensible value.
func ChangeOverWindow(candles []domain.Candle, window time.Duration) (decimal.Decimal, error) {
	if len(candles) < 2 {
		return decimal.Zero, errors.New("need at least two candles")
	}

	last := candles[len(candles)-1]
	cutoff := last.CloseTime.Add(-window)

	reference := candles[0]
	for i := len(candles) - 2; i >= 0; i-- {
		if !candles[i].CloseTime.After(cutoff) {
			reference = candles[i]
			break
		}
	}

	if reference.Close.IsZero() {
		return decimal.Zero, errors.New("reference close price is zero")
	}

	return last.Close.Sub(reference.Close).
		Div(reference.Close).
		Mul(decimal.NewFromInt(100)), nil
}
