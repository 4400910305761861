// Package market defines the market data the collectors move around and the
// interfaces of the remote sources that provide it.
package market

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Bar is one trading day of a symbol
type Bar struct {
	Date     time.Time
	Open     decimal.Decimal
	High     decimal.Decimal
	Low      decimal.Decimal
	Close    decimal.Decimal
	Volume   int64
	Dividend decimal.Decimal // zero when no dividend went ex on Date
}

// DividendEvent is one row of the dividend calendar, kept as displayed by the site
type DividendEvent struct {
	Company   string `csv:"Empresa"`
	ExDate    string `csv:"Data ex-dividendos"`
	Dividend  string `csv:"Dividendo"`
	Type      string `csv:"Tipo"`
	PayDate   string `csv:"Pagamento"`
	YieldRate string `csv:"Rendimento"`
}

// HistoryFetcher returns the daily bars of symbol between from and to, both inclusive.
// An empty slice with a nil error means the symbol has no trades in the range.
type HistoryFetcher interface {
	FetchHistory(ctx context.Context, symbol string, from, to time.Time) ([]Bar, error)
}

// DividendFetcher returns the dividend calendar rows between from and to
type DividendFetcher interface {
	FetchDividends(ctx context.Context, from, to time.Time) ([]DividendEvent, error)
}

// HistoryFetcherFunc adapts a function to HistoryFetcher
type HistoryFetcherFunc func(ctx context.Context, symbol string, from, to time.Time) ([]Bar, error)

// FetchHistory calls f
func (f HistoryFetcherFunc) FetchHistory(ctx context.Context, symbol string, from, to time.Time) ([]Bar, error) {
	return f(ctx, symbol, from, to)
}

// DividendFetcherFunc adapts a function to DividendFetcher
type DividendFetcherFunc func(ctx context.Context, from, to time.Time) ([]DividendEvent, error)

// FetchDividends calls f
func (f DividendFetcherFunc) FetchDividends(ctx context.Context, from, to time.Time) ([]DividendEvent, error) {
	return f(ctx, from, to)
}
