package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle single OHLCV candlestick.
type Candle struct {
	OpenTime  time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
	CloseTime time.Time
}

// Quote current price of an instrument.
type Quote struct {
	Price decimal.Decimal
	// Change24h is the percent change over the last 24 hours, when the
	// source provides it. Zero otherwise.
	Change24h decimal.Decimal
	Time      time.Time
}

// IndicatorSet snapshot of derived technical values for one candle.
type IndicatorSet struct {
	EMA20      decimal.Decimal
	EMA50      decimal.Decimal
	MACD       decimal.Decimal
	MACDSignal decimal.Decimal
	RSI14      decimal.Decimal
	ATR14      decimal.Decimal
}

// MACDAboveSignal reports whether the MACD line sits above its signal line.
func (s IndicatorSet) MACDAboveSignal() bool {
	return s.MACD.GreaterThan(s.MACDSignal)
}
