package collect

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"b3collect/internal/config"
	"b3collect/internal/errors"
	"b3collect/internal/infrastructure"
	"b3collect/internal/journal"
	"b3collect/internal/market"
	"b3collect/internal/shared/testutil"
	"b3collect/internal/tickers"
)

type staticTickers []string

func (s staticTickers) Load(string) ([]string, error) { return s, nil }

type failingRecorder struct{}

func (failingRecorder) Record(context.Context, *journal.Entry) error {
	return errors.NewStorageError("record window", stderrors.New("database is locked"))
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func telemetryConfig(metricsFile string) config.TelemetryConfig {
	return config.TelemetryConfig{
		ServiceName:   "b3collect-test",
		TraceExporter: "none",
		MetricsFile:   metricsFile,
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// windowLog returns a fetcher that records "symbol start..end" for every call,
// returns nothing for AAA.SA and for April, and one bar on the window start otherwise
func windowLog(calls *[]string) market.HistoryFetcher {
	return market.HistoryFetcherFunc(func(_ context.Context, symbol string, from, to time.Time) ([]market.Bar, error) {
		*calls = append(*calls, symbol+" "+from.Format("2006-01-02")+".."+to.Format("2006-01-02"))
		if symbol == "AAA.SA" || from.Month() == time.April {
			return nil, nil
		}
		return []market.Bar{bar(from, "10")}, nil
	})
}

var april10 = time.Date(2023, 4, 10, 15, 0, 0, 0, time.UTC)

func TestPriceRunner_Run(t *testing.T) {
	dir := t.TempDir()
	testutil.TouchFiles(t, dir,
		"Acoes_IBOV_01_2023.csv",
		"Acoes_IBOV_02_2023.csv",
		"Acoes_IBOV_03_2023.csv",
	)

	var calls []string
	j, err := journal.Open(":memory:")
	require.NoError(t, err)
	defer j.Close()

	logger, handler := testutil.NewTestLogger(t)
	ctx := infrastructure.WithRunID(context.Background(), "run-42")

	runner := NewPriceRunner(PriceConfig{
		Dataset:      "stocks",
		OutputDir:    dir,
		FilePrefix:   "Acoes_IBOV",
		DefaultStart: testutil.Date(2020, 1, 1),
	}, "tickers.csv", staticTickers{"AAA.SA", "BBB.SA"}, NewAggregator(windowLog(&calls), nil),
		WithJournal(j),
		WithLogger(logger),
		WithClock(fixedClock(april10)),
	)

	summary, err := runner.Run(ctx)
	require.NoError(t, err)

	// resumes from the second-to-last month on disk
	assert.Equal(t, []string{
		"AAA.SA 2023-02-01..2023-02-28",
		"BBB.SA 2023-02-01..2023-02-28",
		"AAA.SA 2023-03-01..2023-03-31",
		"BBB.SA 2023-03-01..2023-03-31",
		"AAA.SA 2023-04-01..2023-04-30",
		"BBB.SA 2023-04-01..2023-04-30",
	}, calls)
	assert.Equal(t, Summary{Windows: 3, FilesWritten: 2, Skipped: 1, Rows: 2}, summary)

	march := filepath.Join(dir, "Acoes_IBOV_03_2023.csv")
	assert.Equal(t, "Date;Close;Dividends;High;Low;Open;Volume;Ticker\n"+
		"2023-03-01;10,00;0,00;11,00;8,00;9,00;1000;BBB.SA\n", testutil.ReadFile(t, march))
	assert.NoFileExists(t, filepath.Join(dir, "Acoes_IBOV_04_2023.csv"))

	entries, err := j.List(ctx, "stocks", 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.True(t, entries[0].Skipped())
	assert.Equal(t, 2, entries[0].ItemsEmpty)
	assert.Equal(t, "run-42", entries[1].RunID)
	assert.Equal(t, march, entries[1].File)
	assert.Equal(t, 1, entries[1].ItemsOK)
	assert.Equal(t, 1, entries[1].ItemsEmpty)
	assert.Equal(t, 1, entries[1].Rows)

	testutil.AssertLogContains(t, handler, slog.LevelInfo, "Window skipped, no data")
	testutil.AssertLogContains(t, handler, slog.LevelInfo, "Run completed")
	testutil.AssertLogAttr(t, handler, "dataset", "stocks")
	testutil.AssertNoErrors(t, handler)
}

func TestPriceRunner_EmptyDirectoryUsesDefaultStart(t *testing.T) {
	dir := t.TempDir()
	var calls []string

	runner := NewPriceRunner(PriceConfig{
		Dataset:      "reits",
		OutputDir:    dir,
		FilePrefix:   "FII_IBOV",
		DefaultStart: testutil.Date(2023, 2, 1),
	}, "", staticTickers{"BBB.SA"}, NewAggregator(windowLog(&calls), nil),
		WithLogger(discardLogger()),
		WithClock(fixedClock(april10)),
	)

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Windows)
	assert.Equal(t, "BBB.SA 2023-02-01..2023-02-28", calls[0])
	assert.FileExists(t, filepath.Join(dir, "FII_IBOV_02_2023.csv"))
	assert.FileExists(t, filepath.Join(dir, "FII_IBOV_03_2023.csv"))
}

func TestPriceRunner_Idempotent(t *testing.T) {
	dir := t.TempDir()
	var calls []string
	newRunner := func() *PriceRunner {
		return NewPriceRunner(PriceConfig{
			Dataset:      "stocks",
			OutputDir:    dir,
			FilePrefix:   "Acoes_IBOV",
			DefaultStart: testutil.Date(2023, 2, 1),
		}, "", staticTickers{"BBB.SA", "CCC.SA"}, NewAggregator(windowLog(&calls), nil),
			WithLogger(discardLogger()),
			WithClock(fixedClock(april10)),
		)
	}

	_, err := newRunner().Run(context.Background())
	require.NoError(t, err)
	first := testutil.ReadFile(t, filepath.Join(dir, "Acoes_IBOV_03_2023.csv"))

	// the second run resumes from February and rewrites the same bytes
	_, err = newRunner().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, testutil.ReadFile(t, filepath.Join(dir, "Acoes_IBOV_03_2023.csv")))
}

func TestPriceRunner_StructuralErrors(t *testing.T) {
	noData := NewAggregator(&fakeHistory{}, nil)

	t.Run("missing output directory", func(t *testing.T) {
		runner := NewPriceRunner(PriceConfig{
			Dataset:   "stocks",
			OutputDir: filepath.Join(t.TempDir(), "absent"),
		}, "", staticTickers{"A"}, noData, WithLogger(discardLogger()))

		_, err := runner.Run(context.Background())
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))
	})

	t.Run("missing ticker file", func(t *testing.T) {
		runner := NewPriceRunner(PriceConfig{
			Dataset:   "stocks",
			OutputDir: t.TempDir(),
		}, filepath.Join(t.TempDir(), "Indicadores.csv"), tickers.NewSource(tickers.DefaultSuffix, nil), noData,
			WithLogger(discardLogger()))

		_, err := runner.Run(context.Background())
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))
	})

	t.Run("output directory removed mid-run", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "out")
		require.NoError(t, os.Mkdir(dir, 0755))

		fetcher := market.HistoryFetcherFunc(func(_ context.Context, _ string, from, _ time.Time) ([]market.Bar, error) {
			require.NoError(t, os.RemoveAll(dir))
			return []market.Bar{bar(from, "1")}, nil
		})
		runner := NewPriceRunner(PriceConfig{
			Dataset:      "stocks",
			OutputDir:    dir,
			FilePrefix:   "Acoes_IBOV",
			DefaultStart: testutil.Date(2023, 3, 1),
		}, "", staticTickers{"BBB.SA"}, NewAggregator(fetcher, nil),
			WithLogger(discardLogger()),
			WithClock(fixedClock(april10)))

		summary, err := runner.Run(context.Background())
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrTypeStorage))
		assert.Zero(t, summary.FilesWritten)
	})
}

func TestPriceRunner_FailedTickersAreLogged(t *testing.T) {
	dir := t.TempDir()
	fetcher := &fakeHistory{errs: map[string]error{
		"AAA.SA": errors.NewNetworkError("chart request failed", stderrors.New("503")),
	}}
	logger, handler := testutil.NewTestLogger(t)

	runner := NewPriceRunner(PriceConfig{
		Dataset:      "stocks",
		OutputDir:    dir,
		FilePrefix:   "Acoes_IBOV",
		DefaultStart: testutil.Date(2023, 4, 1),
	}, "", staticTickers{"AAA.SA"}, NewAggregator(fetcher, nil),
		WithLogger(logger),
		WithJournal(failingRecorder{}),
		WithClock(fixedClock(april10)))

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Skipped)

	testutil.AssertLogContains(t, handler, slog.LevelWarn, "Item fetch failed")
	testutil.AssertLogAttr(t, handler, "item", "AAA.SA")
	// a broken journal never stops collection
	testutil.AssertLogContains(t, handler, slog.LevelWarn, "Failed to journal window")
}

func TestPriceRunner_Cancelled(t *testing.T) {
	dir := t.TempDir()
	testutil.TouchFiles(t, dir, "Acoes_IBOV_02_2023.csv")
	ctx, cancel := context.WithCancel(context.Background())

	fetcher := market.HistoryFetcherFunc(func(_ context.Context, _ string, from, _ time.Time) ([]market.Bar, error) {
		cancel()
		return []market.Bar{bar(from, "1")}, nil
	})
	runner := NewPriceRunner(PriceConfig{
		Dataset:      "stocks",
		OutputDir:    dir,
		FilePrefix:   "Acoes_IBOV",
		DefaultStart: testutil.Date(2023, 1, 1),
	}, "", staticTickers{"BBB.SA"}, NewAggregator(fetcher, nil),
		WithLogger(discardLogger()),
		WithClock(fixedClock(april10)))

	_, err := runner.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	// the interrupted window leaves the existing file untouched
	assert.Empty(t, testutil.ReadFile(t, filepath.Join(dir, "Acoes_IBOV_02_2023.csv")))
}

func TestPriceRunner_Metrics(t *testing.T) {
	dir := t.TempDir()
	metricsFile := filepath.Join(t.TempDir(), "metrics.prom")

	tel, err := infrastructure.InitializeTelemetry(telemetryConfig(metricsFile), "prices", discardLogger())
	require.NoError(t, err)

	var calls []string
	runner := NewPriceRunner(PriceConfig{
		Dataset:      "stocks",
		OutputDir:    dir,
		FilePrefix:   "Acoes_IBOV",
		DefaultStart: testutil.Date(2023, 3, 1),
	}, "", staticTickers{"AAA.SA", "BBB.SA"}, NewAggregator(windowLog(&calls), tel.Tracer),
		WithMetrics(tel.Metrics),
		WithTracer(tel.Tracer),
		WithLogger(discardLogger()),
		WithClock(fixedClock(april10)))

	_, err = runner.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, tel.Shutdown(context.Background()))

	content := testutil.ReadFile(t, metricsFile)
	assert.Regexp(t, regexp.MustCompile(`b3collect_files_written_total\{[^}]*dataset="stocks"[^}]*\} 1`), content)
	assert.Regexp(t, regexp.MustCompile(`b3collect_windows_skipped_total\{[^}]*dataset="stocks"[^}]*\} 1`), content)
	assert.Regexp(t, regexp.MustCompile(`b3collect_fetch_outcomes_total\{[^}]*status="empty"[^}]*\} 3`), content)
}
