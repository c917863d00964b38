package domain

import "fmt"

// Instrument is a tracked coin with its identifiers on the market data sources.
type Instrument struct {
	// Symbol is the short ticker, e.g. "BTC".
	Symbol string `yaml:"symbol"`
	// MarketID is the identifier used by the quote API, e.g. "bitcoin" for CoinGecko.
	MarketID string `yaml:"market_id"`
	// Name is the display name used in reports, e.g. "Bitcoin".
	Name string `yaml:"name"`
	// Quote is the quote currency for candle sources, defaults to USDT.
	Quote string `yaml:"quote,omitempty"`
}

// PairSymbol returns the exchange pair symbol, e.g. "BTCUSDT".
func (i Instrument) PairSymbol() string {
	quote := i.Quote
	if quote == "" {
		quote = "USDT"
	}
	return i.Symbol + quote
}

// Title returns the display name with the ticker, e.g. "Bitcoin (BTC)".
func (i Instrument) Title() string {
	if i.Name == "" {
		return i.Symbol
	}
	return fmt.Sprintf("%s (%s)", i.Name, i.Symbol)
}
