package collector

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/mkeller/signalgram/internal/clients/coingecko"
	"github.com/mkeller/signalgram/internal/domain"
	"github.com/mkeller/signalgram/pkg/indicators"
)

// CoinGeckoProvider implements KlineProvider and QuoteProvider on the
// CoinGecko API. The OHLC endpoint chooses candle granularity from the
// day span, so the requested interval only sizes the span.
type CoinGeckoProvider struct {
	client *coingecko.Client
}

// NewCoinGeckoProvider creates a new CoinGecko market data provider.
func NewCoinGeckoProvider(client *coingecko.Client) *CoinGeckoProvider {
	return &CoinGeckoProvider{client: client}
}

// ohlcSpans are the day values the OHLC endpoint accepts, with the
// candle granularity CoinGecko serves for each: 30m candles for 1 day,
// 4h up to 30 days, 4-day candles beyond that.
var ohlcSpans = []struct {
	days        int
	candleHours float64
}{
	{1, 0.5},
	{7, 4},
	{14, 4},
	{30, 4},
	{90, 96},
	{180, 96},
	{365, 96},
}

// ohlcDays picks the smallest accepted span that covers the requested
// window and is served with enough candles for the indicators. A 1-day
// span only ever yields 48 half-hour candles, so the default watchlist
// lands on 14 days (84 four-hour candles).
func ohlcDays(window time.Duration) int {
	for _, s := range ohlcSpans {
		spanHours := float64(s.days) * 24
		if spanHours < window.Hours() {
			continue
		}
		if int(spanHours/s.candleHours) >= indicators.MinCandles {
			return s.days
		}
	}
	return ohlcSpans[len(ohlcSpans)-1].days
}

// GetKlines fetches candle history from CoinGecko. The endpoint ignores
// the requested interval: it only takes a fixed set of day spans and
// picks the granularity itself, so interval*limit merely sizes the
// window and downstream consumers go by candle timestamps.
func (p *CoinGeckoProvider) GetKlines(ctx context.Context, inst domain.Instrument, interval string, limit int) ([]domain.Candle, error) {
	if inst.MarketID == "" {
		return nil, errors.Errorf("instrument %s has no market id for coingecko", inst.Symbol)
	}

	d, err := time.ParseDuration(interval)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid interval: %s", interval)
	}

	candles, err := p.client.OHLC(ctx, inst.MarketID, ohlcDays(d*time.Duration(limit)))
	if err != nil {
		return nil, err
	}

	if len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}

	return candles, nil
}

// GetQuotes fetches current prices with 24h change in one batch call.
func (p *CoinGeckoProvider) GetQuotes(ctx context.Context, instruments []domain.Instrument) (map[string]domain.Quote, error) {
	ids := make([]string, 0, len(instruments))
	bySymbol := make(map[string]string, len(instruments))
	for _, inst := range instruments {
		if inst.MarketID == "" {
			continue
		}
		ids = append(ids, inst.MarketID)
		bySymbol[inst.MarketID] = inst.Symbol
	}

	raw, err := p.client.SimplePrice(ctx, ids)
	if err != nil {
		return nil, err
	}

	quotes := make(map[string]domain.Quote, len(raw))
	for id, q := range raw {
		if symbol, ok := bySymbol[id]; ok {
			quotes[symbol] = q
		}
	}

	return quotes, nil
}
