package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Evaluation is the outcome of one classification cycle for one instrument.
type Evaluation struct {
	Instrument Instrument
	Quote      Quote
	Indicators IndicatorSet
	Signal     Signal
	// Reason is a short human-readable explanation of why the signal fired.
	Reason string
	// ShortChangePct percent price change over the short window.
	ShortChangePct decimal.Decimal
	// LongChangePct percent price change over the long window.
	LongChangePct decimal.Decimal
	// Failed marks instruments whose market data could not be fetched.
	// Such rows carry SignalHold and the error text in Reason.
	Failed bool
	Time   time.Time
}

// AlertEvent is the journal record written when a BUY, SELL or ALERT fires.
type AlertEvent struct {
	ID             string          `json:"id"`
	Symbol         string          `json:"symbol"`
	Signal         string          `json:"signal"`
	Price          decimal.Decimal `json:"price"`
	ShortChangePct decimal.Decimal `json:"short_change_pct"`
	LongChangePct  decimal.Decimal `json:"long_change_pct"`
	RSI14          decimal.Decimal `json:"rsi14"`
	Reason         string          `json:"reason"`
	Time           time.Time       `json:"time"`
}

// AlertEventRecord pairs a journal event with its WAL index.
type AlertEventRecord struct {
	Index uint64     `json:"index"`
	Event AlertEvent `json:"event"`
}
