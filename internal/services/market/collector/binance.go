package collector

import (
	"context"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/mkeller/signalgram/internal/domain"
)

// BinanceKlineProvider implements KlineProvider for Binance. The kline
// endpoint is public, no API keys are needed.
type BinanceKlineProvider struct {
	client *binance.Client
}

// NewBinanceKlineProvider creates a new Binance kline provider.
func NewBinanceKlineProvider(client *binance.Client) *BinanceKlineProvider {
	return &BinanceKlineProvider{client: client}
}

// GetKlines fetches kline data from Binance.
func (p *BinanceKlineProvider) GetKlines(ctx context.Context, inst domain.Instrument, interval string, limit int) ([]domain.Candle, error) {
	klines, err := p.client.NewKlinesService().
		Symbol(inst.PairSymbol()).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch klines from Binance for %s", inst.PairSymbol())
	}

	result := make([]domain.Candle, len(klines))
	for i, k := range klines {
		open, err := decimal.NewFromString(k.Open)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse open price at index %d", i)
		}
		high, err := decimal.NewFromString(k.High)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse high price at index %d", i)
		}
		low, err := decimal.NewFromString(k.Low)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse low price at index %d", i)
		}
		close, err := decimal.NewFromString(k.Close)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse close price at index %d", i)
		}
		volume, err := decimal.NewFromString(k.Volume)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse volume at index %d", i)
		}

		result[i] = domain.Candle{
			OpenTime:  time.Unix(0, k.OpenTime*int64(time.Millisecond)),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     close,
			Volume:    volume,
			CloseTime: time.Unix(0, k.CloseTime*int64(time.Millisecond)),
		}
	}

	return result, nil
}

// GetQuotes fetches last prices for the instruments from the public
// ticker endpoint. The 24h change field stays zero; the classifier
// derives long-window change from candles anyway.
func (p *BinanceKlineProvider) GetQuotes(ctx context.Context, instruments []domain.Instrument) (map[string]domain.Quote, error) {
	quotes := make(map[string]domain.Quote, len(instruments))
	now := time.Now().UTC()

	for _, inst := range instruments {
		prices, err := p.client.NewListPricesService().Symbol(inst.PairSymbol()).Do(ctx)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to fetch price from Binance for %s", inst.PairSymbol())
		}
		if len(prices) == 0 {
			return nil, errors.Errorf("binance API returned empty prices for %s", inst.PairSymbol())
		}

		price, err := decimal.NewFromString(prices[0].Price)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse price for %s", inst.PairSymbol())
		}

		quotes[inst.Symbol] = domain.Quote{Price: price, Time: now}
	}

	return quotes, nil
}
