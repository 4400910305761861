package collect

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"b3collect/internal/checkpoint"
	"b3collect/internal/exporter"
	"b3collect/internal/infrastructure"
	"b3collect/internal/journal"
	"b3collect/internal/period"
	"b3collect/internal/validation"
)

// Recorder stores one entry per processed window
type Recorder interface {
	Record(ctx context.Context, e *journal.Entry) error
}

// Summary counts what a run did
type Summary struct {
	Windows      int
	FilesWritten int
	Skipped      int
	Rows         int
}

// Option configures a runner
type Option func(*runnerBase)

// WithJournal records every window in r
func WithJournal(r Recorder) Option {
	return func(b *runnerBase) { b.journal = r }
}

// WithMetrics records fetch outcomes and window results in m
func WithMetrics(m *infrastructure.CollectionMetrics) Option {
	return func(b *runnerBase) { b.metrics = m }
}

// WithTracer opens run, window and fetch spans on tracer
func WithTracer(t trace.Tracer) Option {
	return func(b *runnerBase) { b.tracer = t }
}

// WithClock replaces time.Now as the end of the collected range
func WithClock(now func() time.Time) Option {
	return func(b *runnerBase) { b.now = now }
}

// WithPattern sets the regexp that finds the month in output file names
func WithPattern(re *regexp.Regexp) Option {
	return func(b *runnerBase) { b.pattern = re }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(b *runnerBase) { b.logger = l }
}

// runnerBase holds what the price and dividend runners share
type runnerBase struct {
	dataset   string
	pattern   *regexp.Regexp
	resolver  *checkpoint.Resolver
	validator *validation.FileValidator
	writer    *exporter.CSVWriter
	journal   Recorder
	metrics   *infrastructure.CollectionMetrics
	tracer    trace.Tracer
	logger    *slog.Logger
	now       func() time.Time
}

func newRunnerBase(dataset string, opts []Option) runnerBase {
	b := runnerBase{
		dataset: dataset,
		tracer:  noop.NewTracerProvider().Tracer(""),
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(&b)
	}
	b.logger = b.logger.With(slog.String("dataset", dataset))
	b.resolver = checkpoint.NewResolver(b.pattern, b.logger)
	b.validator = validation.NewFileValidator(b.logger)
	b.writer = exporter.NewCSVWriter(b.logger)
	return b
}

// bounds checks that dir accepts files, resolves its checkpoint and returns
// the range to collect, ending after today
func (b *runnerBase) bounds(dir string, defaultStart time.Time) (time.Time, time.Time, error) {
	if err := b.validator.ValidateOutputDirectory(dir); err != nil {
		return time.Time{}, time.Time{}, err
	}
	start, err := b.resolver.Resolve(dir, defaultStart)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end := b.now()
	// compare calendar days in the checkpoint's location
	end = time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, start.Location()).AddDate(0, 0, 1)
	return start, end, nil
}

// logOutcomes reports per-item results. It is the only place they are logged.
func (b *runnerBase) logOutcomes(ctx context.Context, w period.Window, outcomes []Outcome) (ok, empty, failed int) {
	for _, o := range outcomes {
		b.metrics.RecordFetch(ctx, b.dataset, string(o.Status))
		switch o.Status {
		case StatusOK:
			ok++
			b.logger.DebugContext(ctx, "Item collected",
				slog.String("item", o.Item),
				slog.Int("rows", o.Rows))
		case StatusEmpty:
			empty++
			b.logger.DebugContext(ctx, "Item returned no data",
				slog.String("item", o.Item))
		case StatusFailed:
			failed++
			b.logger.WarnContext(ctx, "Item fetch failed",
				slog.String("item", o.Item),
				slog.String("window_start", exporter.FormatDate(w.Start)),
				slog.String("error", errString(o.Err)))
		}
	}
	return ok, empty, failed
}

// finishWindow journals, measures and logs one window
func (b *runnerBase) finishWindow(ctx context.Context, w period.Window, started time.Time, file string, rows int, ok, empty, failed int, summary *Summary) {
	written := file != ""
	summary.Windows++
	if written {
		summary.FilesWritten++
		summary.Rows += rows
	} else {
		summary.Skipped++
	}

	b.metrics.RecordWindow(ctx, b.dataset, time.Since(started), rows, written)

	if b.journal != nil {
		entry := &journal.Entry{
			RunID:       infrastructure.GetRunID(ctx),
			Dataset:     b.dataset,
			WindowStart: w.Start,
			WindowEnd:   w.End,
			File:        file,
			Rows:        rows,
			ItemsOK:     ok,
			ItemsEmpty:  empty,
			ItemsFailed: failed,
		}
		if err := b.journal.Record(ctx, entry); err != nil {
			b.logger.WarnContext(ctx, "Failed to journal window", slog.String("error", err.Error()))
		}
	}

	attrs := []any{
		slog.String("window_start", exporter.FormatDate(w.Start)),
		slog.String("window_end", exporter.FormatDate(w.End)),
		slog.Int("items_ok", ok),
		slog.Int("items_empty", empty),
		slog.Int("items_failed", failed),
	}
	if written {
		b.logger.InfoContext(ctx, "Window written", append(attrs,
			slog.String("file", file),
			slog.Int("rows", rows))...)
	} else {
		b.logger.InfoContext(ctx, "Window skipped, no data", attrs...)
	}
}

func (b *runnerBase) logSummary(ctx context.Context, s Summary, started time.Time) {
	b.logger.InfoContext(ctx, "Run completed",
		slog.Int("windows", s.Windows),
		slog.Int("files_written", s.FilesWritten),
		slog.Int("windows_skipped", s.Skipped),
		slog.Int("rows", s.Rows),
		slog.Duration("duration", time.Since(started)))
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// PriceConfig describes one price universe
type PriceConfig struct {
	Dataset      string
	OutputDir    string
	FilePrefix   string
	DefaultStart time.Time
}

// TickerLoader supplies the universe of a price run
type TickerLoader interface {
	Load(path string) ([]string, error)
}

// PriceRunner collects monthly price history for a ticker universe
type PriceRunner struct {
	runnerBase
	cfg        PriceConfig
	tickerFile string
	loader     TickerLoader
	aggregator *Aggregator
}

// NewPriceRunner creates a runner reading tickers from tickerFile through loader
func NewPriceRunner(cfg PriceConfig, tickerFile string, loader TickerLoader, aggregator *Aggregator, opts ...Option) *PriceRunner {
	return &PriceRunner{
		runnerBase: newRunnerBase(cfg.Dataset, opts),
		cfg:        cfg,
		tickerFile: tickerFile,
		loader:     loader,
		aggregator: aggregator,
	}
}

// Run collects every window from the checkpoint of the output directory up to
// today. Structural failures (missing directory or ticker file, write errors,
// cancellation) stop the run; per-ticker failures only skip the ticker.
func (r *PriceRunner) Run(ctx context.Context) (Summary, error) {
	var summary Summary
	started := time.Now()

	ctx, span := r.tracer.Start(ctx, "prices.run", trace.WithAttributes(
		attribute.String("dataset", r.dataset),
	))
	defer span.End()

	start, end, err := r.bounds(r.cfg.OutputDir, r.cfg.DefaultStart)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return summary, err
	}

	tickers, err := r.loader.Load(r.tickerFile)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return summary, err
	}

	r.logger.InfoContext(ctx, "Collecting prices",
		slog.String("from", exporter.FormatDate(start)),
		slog.String("to", exporter.FormatDate(end.AddDate(0, 0, -1))),
		slog.Int("tickers", len(tickers)),
		slog.String("output_dir", r.cfg.OutputDir))

	for w := range period.Generate(start, end) {
		if err := r.runWindow(ctx, w, tickers, &summary); err != nil {
			infrastructure.RecordError(ctx, err)
			return summary, err
		}
	}

	r.logSummary(ctx, summary, started)
	return summary, nil
}

func (r *PriceRunner) runWindow(ctx context.Context, w period.Window, tickers []string, summary *Summary) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	started := time.Now()

	ctx, span := r.tracer.Start(ctx, "prices.window", trace.WithAttributes(
		attribute.String("window_start", exporter.FormatDate(w.Start)),
		attribute.String("window_end", exporter.FormatDate(w.End)),
	))
	defer span.End()

	table, outcomes := r.aggregator.Aggregate(ctx, w, tickers)
	ok, empty, failed := r.logOutcomes(ctx, w, outcomes)

	// a cancelled window is incomplete and must not overwrite a previous file
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("window %s interrupted: %w", exporter.FormatDate(w.Start), err)
	}

	if table == nil {
		r.finishWindow(ctx, w, started, "", 0, ok, empty, failed, summary)
		return nil
	}

	file, err := WriteTable(r.writer, r.cfg.OutputDir, r.cfg.FilePrefix, table)
	if err != nil {
		return err
	}
	r.finishWindow(ctx, w, started, file, len(table.Rows), ok, empty, failed, summary)
	return nil
}
