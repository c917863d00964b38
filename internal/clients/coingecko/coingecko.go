// Package coingecko is a thin client for the public CoinGecko HTTP API.
// Only the two endpoints the bot consumes are covered: simple price
// lookup and OHLC candle history. Both are unauthenticated.
package coingecko

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/mkeller/signalgram/internal/domain"
)

const (
	defaultBaseURL = "https://api.coingecko.com/api/v3"
	vsCurrency     = "usd"
)

// Client wraps a resty client pointed at the CoinGecko API.
type Client struct {
	http *resty.Client
}

// New creates a client against the public API.
func New() *Client {
	return NewWithBaseURL(defaultBaseURL)
}

// NewWithBaseURL creates a client against the given base URL. Used by
// tests to point the client at a local httptest server.
func NewWithBaseURL(baseURL string) *Client {
	http := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(20 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return r != nil && r.StatusCode() == 429
		})

	return &Client{http: http}
}

// SimplePrice fetches the current price and 24h change for the given
// market ids. The result is keyed by market id; ids unknown to the API
// are simply absent from the map.
func (c *Client) SimplePrice(ctx context.Context, ids []string) (map[string]domain.Quote, error) {
	if len(ids) == 0 {
		return map[string]domain.Quote{}, nil
	}

	var out map[string]map[string]float64

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"ids":                 joinIDs(ids),
			"vs_currencies":       vsCurrency,
			"include_24hr_change": "true",
		}).
		SetResult(&out).
		Get("/simple/price")
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch prices from coingecko")
	}
	if resp.IsError() {
		return nil, errors.Errorf("coingecko /simple/price returned status %d", resp.StatusCode())
	}

	now := time.Now().UTC()
	quotes := make(map[string]domain.Quote, len(out))
	for id, values := range out {
		price, ok := values[vsCurrency]
		if !ok {
			continue
		}
		quotes[id] = domain.Quote{
			Price:     decimal.NewFromFloat(price),
			Change24h: changeFromValues(values),
			Time:      now,
		}
	}

	return quotes, nil
}

// OHLC fetches candle history for one coin. CoinGecko picks the candle
// granularity from the requested day span (30m candles for 1 day, 4h
// for up to 30 days). Volume is not part of this endpoint.
func (c *Client) OHLC(ctx context.Context, id string, days int) ([]domain.Candle, error) {
	if id == "" {
		return nil, errors.New("market id is required")
	}
	if days <= 0 {
		days = 1
	}

	var out [][]float64

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"vs_currency": vsCurrency,
			"days":        fmt.Sprintf("%d", days),
		}).
		SetResult(&out).
		Get(fmt.Sprintf("/coins/%s/ohlc", id))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch ohlc from coingecko for %s", id)
	}
	if resp.IsError() {
		return nil, errors.Errorf("coingecko /coins/%s/ohlc returned status %d", id, resp.StatusCode())
	}

	candles := make([]domain.Candle, 0, len(out))
	for i, row := range out {
		if len(row) < 5 {
			return nil, errors.Errorf("malformed ohlc row at index %d for %s", i, id)
		}
		openTime := time.UnixMilli(int64(row[0])).UTC()
		candles = append(candles, domain.Candle{
			OpenTime:  openTime,
			Open:      decimal.NewFromFloat(row[1]),
			High:      decimal.NewFromFloat(row[2]),
			Low:       decimal.NewFromFloat(row[3]),
			Close:     decimal.NewFromFloat(row[4]),
			CloseTime: openTime,
		})
	}

	if len(candles) == 0 {
		return nil, errors.Errorf("no ohlc data returned from coingecko for %s", id)
	}

	return candles, nil
}

func changeFromValues(values map[string]float64) decimal.Decimal {
	change, ok := values[vsCurrency+"_24h_change"]
	if !ok || change != change { // API omits or NaNs the field for thin markets
		return decimal.Zero
	}
	return decimal.NewFromFloat(change)
}

func joinIDs(ids []string) string {
	return strings.Join(ids, ",")
}
