package collector

import (
	"context"
	"fmt"
	"time"

	bybit "github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/mkeller/signalgram/internal/domain"
)

// BybitKlineProvider implements KlineProvider for Bybit spot markets.
type BybitKlineProvider struct {
	client *bybit.Client
}

// NewBybitKlineProvider creates a new Bybit kline provider.
func NewBybitKlineProvider(client *bybit.Client) *BybitKlineProvider {
	return &BybitKlineProvider{client: client}
}

// klineFetcher performs one GetKline call. The paging logic is split
// out over it so batching can be tested without the live API.
type klineFetcher func(param bybit.V5GetKlineParam) (bybit.V5GetKlineList, error)

// GetKlines fetches kline data from Bybit.
func (p *BybitKlineProvider) GetKlines(ctx context.Context, inst domain.Instrument, interval string, limit int) ([]domain.Candle, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be > 0")
	}

	bybitInterval, err := convertIntervalToBybit(interval)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid interval: %s", interval)
	}

	allKlines, err := pageKlines(func(param bybit.V5GetKlineParam) (bybit.V5GetKlineList, error) {
		result, err := p.client.V5().Market().GetKline(param)
		if err != nil {
			return nil, err
		}
		if result == nil {
			return nil, errors.New("empty result from Bybit API")
		}
		return result.Result.List, nil
	}, bybit.SymbolV5(inst.PairSymbol()), bybit.Interval(bybitInterval), limit)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch klines from Bybit for %s", inst.PairSymbol())
	}

	candles := make([]domain.Candle, len(allKlines))
	for i, k := range allKlines {
		openTime, err := parseBybitTimestamp(k.StartTime)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse start time at index %d", i)
		}

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

		candles[i] = domain.Candle{
			OpenTime:  openTime,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     close,
			Volume:    volume,
			CloseTime: openTime, // Bybit doesn't provide close time
		}
	}

	// Bybit returns newest first
	reverse(candles)

	return candles, nil
}

// pageKlines pulls up to limit klines in batches of at most 200,
// walking backwards in time: each batch ends one millisecond before the
// oldest candle already fetched, so no candle is requested twice.
func pageKlines(fetch klineFetcher, symbol bybit.SymbolV5, interval bybit.Interval, limit int) ([]bybit.V5GetKlineItem, error) {
	const maxPerRequest = 200

	var all []bybit.V5GetKlineItem
	var end *int64
	remaining := limit

	for remaining > 0 {
		batchSize := remaining
		if batchSize > maxPerRequest {
			batchSize = maxPerRequest
		}

		klines, err := fetch(bybit.V5GetKlineParam{
			Category: bybit.CategoryV5Spot,
			Symbol:   symbol,
			Interval: interval,
			End:      end,
			Limit:    &batchSize,
		})
		if err != nil {
			return nil, err
		}

		if len(klines) == 0 {
			if len(all) == 0 {
				return nil, errors.New("no kline data returned")
			}
			break
		}

		all = append(all, klines...)
		remaining -= len(klines)

		if len(klines) < batchSize {
			break
		}

		// results are newest first, so the batch's last item is its oldest
		oldest, err := parseBybitTimestamp(klines[len(klines)-1].StartTime)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse batch boundary timestamp")
		}
		cursor := oldest.UnixMilli() - 1
		end = &cursor

		// small delay between batches to stay under the rate limit
		if remaining > 0 {
			time.Sleep(100 * time.Millisecond)
		}
	}

	return all, nil
}

func reverse(candles []domain.Candle) {
	for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
		candles[i], candles[j] = candles[j], candles[i]
	}
}

// convertIntervalToBybit converts standard interval notation to Bybit's.
// Standard: "1m", "5m", "15m", "1h", "4h", "1d". Bybit: "1", "5", "15",
// "60", "240", "D".
func convertIntervalToBybit(interval string) (string, error) {
	if len(interval) < 2 {
		return "", fmt.Errorf("invalid interval format: %s", interval)
	}

	unit := interval[len(interval)-1]
	numberPart := interval[:len(interval)-1]

	switch unit {
	case 'm':
		return numberPart, nil
	case 'h':
		var n int64
		for _, r := range numberPart {
			if r < '0' || r > '9' {
				return "", fmt.Errorf("invalid interval number: %s", interval)
			}
			n = n*10 + int64(r-'0')
		}
		return fmt.Sprintf("%d", n*60), nil
	case 'd':
		return "D", nil
	case 'w':
		return "W", nil
	default:
		return "", fmt.Errorf("unsupported interval unit: %c", unit)
	}
}

// parseBybitTimestamp converts a millisecond timestamp string to time.Time.
func parseBybitTimestamp(ts string) (time.Time, error) {
	if ts == "" {
		return time.Time{}, errors.New("empty timestamp")
	}

	var msec int64
	if _, err := fmt.Sscanf(ts, "%d", &msec); err != nil {
		return time.Time{}, errors.Wrapf(err, "failed to parse timestamp: %s", ts)
	}

	return time.UnixMilli(msec).UTC(), nil
}
