// Package collector fetches candle history and current quotes from the
// configured market data source and derives indicator values from them.
package collector

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/mkeller/signalgram/internal/domain"
	"github.com/mkeller/signalgram/pkg/indicators"
)

const fetchTimeout = 30 * time.Second

// KlineProvider fetches historical candle data for an instrument.
// interval uses the standard notation ("1m", "15m", "1h", "4h"), limit
// is the maximum number of candles.
type KlineProvider interface {
	GetKlines(ctx context.Context, inst domain.Instrument, interval string, limit int) ([]domain.Candle, error)
}

// QuoteProvider fetches current prices for a set of instruments, keyed
// by symbol. Sources without a batch price endpoint may be absent; the
// collector then quotes from the latest candle close.
type QuoteProvider interface {
	GetQuotes(ctx context.Context, instruments []domain.Instrument) (map[string]domain.Quote, error)
}

// MarketData is everything the classifier needs for one instrument.
type MarketData struct {
	Candles    []domain.Candle
	Indicators []domain.IndicatorSet
	Quote      domain.Quote
}

// LatestIndicator returns the most recent indicator set.
func (m *MarketData) LatestIndicator() (domain.IndicatorSet, bool) {
	if m == nil || len(m.Indicators) == 0 {
		return domain.IndicatorSet{}, false
	}
	return m.Indicators[len(m.Indicators)-1], true
}

// Collector manages market data collection and indicator calculation.
type Collector struct {
	klines   KlineProvider
	quotes   QuoteProvider
	interval string
	lookback int
}

// New creates a collector. quotes may be nil.
func New(klines KlineProvider, quotes QuoteProvider, interval string, lookback int) *Collector {
	return &Collector{
		klines:   klines,
		quotes:   quotes,
		interval: interval,
		lookback: lookback,
	}
}

// Fetch pulls candles for one instrument and computes indicators.
func (c *Collector) Fetch(ctx context.Context, inst domain.Instrument) (*MarketData, error) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	candles, err := c.klines.GetKlines(ctxWithTimeout, inst, c.interval, c.lookback)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch candles for %s", inst.Symbol)
	}

	if len(candles) < indicators.MinCandles {
		return nil, errors.Errorf(
			"insufficient candle data for %s (need at least %d, got %d; raise 'lookback' in config)",
			inst.Symbol, indicators.MinCandles, len(candles),
		)
	}

	priceData := make([]indicators.PriceData, len(candles))
	for i, k := range candles {
		priceData[i] = indicators.PriceData{
			Open:  k.Open,
			High:  k.High,
			Low:   k.Low,
			Close: k.Close,
		}
	}

	sets, err := indicators.CalculateAll(priceData)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to calculate indicators for %s", inst.Symbol)
	}

	data := &MarketData{
		Candles:    candles,
		Indicators: sets,
		Quote:      quoteFromCandles(candles),
	}

	if c.quotes != nil {
		quotes, err := c.quotes.GetQuotes(ctxWithTimeout, []domain.Instrument{inst})
		if err == nil {
			if q, ok := quoteForInstrument(quotes, inst); ok {
				data.Quote = q
			}
		}
		// quote failures are not fatal, the candle close stands in
	}

	return data, nil
}

func quoteFromCandles(candles []domain.Candle) domain.Quote {
	last := candles[len(candles)-1]
	return domain.Quote{
		Price: last.Close,
		Time:  last.CloseTime,
	}
}

func quoteForInstrument(quotes map[string]domain.Quote, inst domain.Instrument) (domain.Quote, bool) {
	if q, ok := quotes[inst.Symbol]; ok {
		return q, true
	}
	q, ok := quotes[inst.MarketID]
	return q, ok
}
