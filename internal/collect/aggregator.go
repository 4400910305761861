// Package collect runs the month-by-month collection jobs: it walks the windows
// after the checkpoint, fetches every item of a window, and writes one file per
// window that produced data.
package collect

import (
	"context"
	"path/filepath"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"b3collect/internal/exporter"
	"b3collect/internal/market"
	"b3collect/internal/period"
)

// Status is the result kind of one item fetch
type Status string

const (
	StatusOK     Status = "ok"
	StatusEmpty  Status = "empty"
	StatusFailed Status = "failed"
)

// Outcome is the result of fetching one item (a ticker, or a whole window for
// the dividend calendar). Empty and failed items are dropped from the output.
type Outcome struct {
	Item   string
	Status Status
	Rows   int
	Err    error
}

// Row is one line of a monthly price file. Column order follows the files
// already on disk.
type Row struct {
	Date      string `csv:"Date"`
	Close     string `csv:"Close"`
	Dividends string `csv:"Dividends"`
	High      string `csv:"High"`
	Low       string `csv:"Low"`
	Open      string `csv:"Open"`
	Volume    string `csv:"Volume"`
	Ticker    string `csv:"Ticker"`
}

// Table is the data of one window, in ticker order
type Table struct {
	Window period.Window
	Rows   []Row
}

// Aggregator collects the bars of a ticker universe for one window
type Aggregator struct {
	fetcher market.HistoryFetcher
	tracer  trace.Tracer
}

// NewAggregator creates an Aggregator fetching through fetcher
func NewAggregator(fetcher market.HistoryFetcher, tracer trace.Tracer) *Aggregator {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("")
	}
	return &Aggregator{fetcher: fetcher, tracer: tracer}
}

// Aggregate fetches every ticker for w, in order, and concatenates the rows of
// the tickers that returned data. It returns a nil table when no ticker did.
// There is one outcome per ticker; when ctx is cancelled the remaining tickers
// are reported as failed without being fetched.
func (a *Aggregator) Aggregate(ctx context.Context, w period.Window, tickers []string) (*Table, []Outcome) {
	outcomes := make([]Outcome, 0, len(tickers))
	var rows []Row

	for _, ticker := range tickers {
		if err := ctx.Err(); err != nil {
			outcomes = append(outcomes, Outcome{Item: ticker, Status: StatusFailed, Err: err})
			continue
		}

		bars, err := a.fetch(ctx, ticker, w)
		switch {
		case err != nil:
			outcomes = append(outcomes, Outcome{Item: ticker, Status: StatusFailed, Err: err})
		case len(bars) == 0:
			outcomes = append(outcomes, Outcome{Item: ticker, Status: StatusEmpty})
		default:
			for _, bar := range bars {
				rows = append(rows, toRow(bar, ticker))
			}
			outcomes = append(outcomes, Outcome{Item: ticker, Status: StatusOK, Rows: len(bars)})
		}
	}

	if len(rows) == 0 {
		return nil, outcomes
	}
	return &Table{Window: w, Rows: rows}, outcomes
}

func (a *Aggregator) fetch(ctx context.Context, ticker string, w period.Window) ([]market.Bar, error) {
	ctx, span := a.tracer.Start(ctx, "fetch_history", trace.WithAttributes(
		attribute.String("ticker", ticker),
	))
	defer span.End()

	bars, err := a.fetcher.FetchHistory(ctx, ticker, w.Start, w.End)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("bars", len(bars)))
	return bars, nil
}

func toRow(bar market.Bar, ticker string) Row {
	return Row{
		Date:      exporter.FormatDate(bar.Date),
		Close:     exporter.FormatDecimal(bar.Close),
		Dividends: exporter.FormatDecimal(bar.Dividend),
		High:      exporter.FormatDecimal(bar.High),
		Low:       exporter.FormatDecimal(bar.Low),
		Open:      exporter.FormatDecimal(bar.Open),
		Volume:    exporter.FormatVolume(bar.Volume),
		Ticker:    ticker,
	}
}

// WriteTable writes t to dir as <prefix>_MM_YYYY.csv, named after the window
// start, replacing any previous file. It returns the file path.
func WriteTable(w *exporter.CSVWriter, dir, prefix string, t *Table) (string, error) {
	path := filepath.Join(dir, exporter.MonthFileName(prefix, t.Window.Start))
	if err := w.WriteRows(path, t.Rows, exporter.WriteOptions{}); err != nil {
		return "", err
	}
	return path, nil
}
