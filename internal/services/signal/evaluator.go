package signal

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mkeller/signalgram/internal/domain"
	"github.com/mkeller/signalgram/internal/services/market/collector"
)

const (
	shortWindow = time.Hour
	longWindow  = 24 * time.Hour
)

// PriorState carries what the previous run knew about an instrument.
type PriorState struct {
	// MACDAbove is the MACD/signal relation at the previous run, nil
	// when the instrument has never been evaluated.
	MACDAbove *bool
	// LastFired maps signal names to the last time they fired.
	LastFired map[string]time.Time
}

// Outcome is an evaluation plus the state to persist for the next run.
type Outcome struct {
	Evaluation domain.Evaluation
	// MACDAbove is the relation observed this run, to be stored.
	MACDAbove *bool
	// Fired reports whether a gated signal fired and its timestamp
	// should be recorded.
	Fired bool
}

// Evaluator runs one full classification cycle per instrument.
type Evaluator struct {
	collector *collector.Collector
	th        Thresholds
	gate      *CooldownGate
	logger    *zap.Logger
	now       func() time.Time
}

// NewEvaluator creates an evaluator.
func NewEvaluator(c *collector.Collector, th Thresholds, gate *CooldownGate, logger *zap.Logger) *Evaluator {
	return &Evaluator{
		collector: c,
		th:        th,
		gate:      gate,
		logger:    logger,
		now:       time.Now,
	}
}

// Evaluate fetches market data for the instrument and classifies it.
// Fetch or calculation failures never propagate: the instrument gets a
// HOLD placeholder row with the failure noted, and the run continues
// (the report must always cover the whole watchlist).
func (e *Evaluator) Evaluate(ctx context.Context, inst domain.Instrument, prior PriorState) Outcome {
	now := e.now().UTC()

	data, err := e.collector.Fetch(ctx, inst)
	if err != nil {
		e.logger.Warn("market data fetch failed, downgrading to HOLD",
			zap.String("symbol", inst.Symbol),
			zap.Error(err))
		return Outcome{Evaluation: domain.Evaluation{
			Instrument: inst,
			Signal:     domain.SignalHold,
			Reason:     "market data unavailable",
			Failed:     true,
			Time:       now,
		}}
	}

	indicatorSet, ok := data.LatestIndicator()
	if !ok {
		return Outcome{Evaluation: domain.Evaluation{
			Instrument: inst,
			Quote:      data.Quote,
			Signal:     domain.SignalHold,
			Reason:     "no indicator data",
			Failed:     true,
			Time:       now,
		}}
	}

	shortChange, err := ChangeOverWindow(data.Candles, shortWindow)
	if err != nil {
		e.logger.Debug("short change unavailable", zap.String("symbol", inst.Symbol), zap.Error(err))
	}
	longChange, err := ChangeOverWindow(data.Candles, longWindow)
	if err != nil {
		e.logger.Debug("long change unavailable", zap.String("symbol", inst.Symbol), zap.Error(err))
	}
	if longChange.IsZero() && !data.Quote.Change24h.IsZero() {
		longChange = data.Quote.Change24h
	}

	macdAbove := indicatorSet.MACDAboveSignal()
	sig, reason := Classify(e.th, Inputs{
		RSI14:          indicatorSet.RSI14,
		ShortChangePct: shortChange,
		LongChangePct:  longChange,
		MACDAbove:      macdAbove,
		PrevMACDAbove:  prior.MACDAbove,
	})

	sig, reason, fired := e.gate.Filter(sig, reason, prior.LastFired)

	return Outcome{
		Evaluation: domain.Evaluation{
			Instrument:     inst,
			Quote:          data.Quote,
			Indicators:     indicatorSet,
			Signal:         sig,
			Reason:         reason,
			ShortChangePct: shortChange,
			LongChangePct:  longChange,
			Time:           now,
		},
		MACDAbove: &macdAbove,
		Fired:     fired,
	}
}
