package collect

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"b3collect/internal/exporter"
	"b3collect/internal/infrastructure"
	"b3collect/internal/market"
	"b3collect/internal/period"
)

// DataComConfig describes the dividend calendar job
type DataComConfig struct {
	OutputDir    string
	FilePrefix   string
	DefaultStart time.Time
}

// DataComDataset names the dividend calendar in logs, metrics and the journal
const DataComDataset = "datacom"

// DataComRunner snapshots the dividend calendar one window at a time
type DataComRunner struct {
	runnerBase
	cfg     DataComConfig
	fetcher market.DividendFetcher
}

// NewDataComRunner creates a runner reading the calendar through fetcher
func NewDataComRunner(cfg DataComConfig, fetcher market.DividendFetcher, opts ...Option) *DataComRunner {
	return &DataComRunner{
		runnerBase: newRunnerBase(DataComDataset, opts),
		cfg:        cfg,
		fetcher:    fetcher,
	}
}

// Run writes one <prefix>_MM_YYYY.csv per window, named after the window end.
// A window whose fetch fails or returns nothing is skipped and the run moves on.
func (r *DataComRunner) Run(ctx context.Context) (Summary, error) {
	var summary Summary
	started := time.Now()

	ctx, span := r.tracer.Start(ctx, "datacom.run")
	defer span.End()

	start, end, err := r.bounds(r.cfg.OutputDir, r.cfg.DefaultStart)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return summary, err
	}

	r.logger.InfoContext(ctx, "Collecting dividend calendar",
		slog.String("from", exporter.FormatDate(start)),
		slog.String("to", exporter.FormatDate(end.AddDate(0, 0, -1))),
		slog.String("output_dir", r.cfg.OutputDir))

	for w := range period.Generate(start, end) {
		if err := r.runWindow(ctx, w, &summary); err != nil {
			infrastructure.RecordError(ctx, err)
			return summary, err
		}
	}

	r.logSummary(ctx, summary, started)
	return summary, nil
}

func (r *DataComRunner) runWindow(ctx context.Context, w period.Window, summary *Summary) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	started := time.Now()

	ctx, span := r.tracer.Start(ctx, "datacom.window", trace.WithAttributes(
		attribute.String("window_start", exporter.FormatDate(w.Start)),
		attribute.String("window_end", exporter.FormatDate(w.End)),
	))
	defer span.End()

	item := exporter.FormatDate(w.Start) + ".." + exporter.FormatDate(w.End)
	events, err := r.fetcher.FetchDividends(ctx, w.Start, w.End)

	var outcome Outcome
	switch {
	case err != nil:
		span.RecordError(err)
		outcome = Outcome{Item: item, Status: StatusFailed, Err: err}
	case len(events) == 0:
		outcome = Outcome{Item: item, Status: StatusEmpty}
	default:
		outcome = Outcome{Item: item, Status: StatusOK, Rows: len(events)}
	}
	ok, empty, failed := r.logOutcomes(ctx, w, []Outcome{outcome})

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("window %s interrupted: %w", exporter.FormatDate(w.Start), err)
	}

	if outcome.Status != StatusOK {
		r.finishWindow(ctx, w, started, "", 0, ok, empty, failed, summary)
		return nil
	}

	path := filepath.Join(r.cfg.OutputDir, exporter.MonthFileName(r.cfg.FilePrefix, w.End))
	if err := r.writer.WriteRows(path, events, exporter.WriteOptions{}); err != nil {
		return err
	}
	r.finishWindow(ctx, w, started, path, len(events), ok, empty, failed, summary)
	return nil
}
