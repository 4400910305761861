// Package tickers loads the universe of symbols from a downloaded indicator file.
package tickers

import (
	"bytes"
	"encoding/csv"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/xuri/excelize/v2"

	"b3collect/internal/errors"
	"b3collect/internal/validation"
)

// Column is the header of the symbol column in indicator files
const Column = "TICKER"

// DefaultSuffix is appended to every symbol so the market data provider can resolve it
const DefaultSuffix = ".SA"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// indicatorRow is the only column we read from an indicator file
type indicatorRow struct {
	Ticker string `csv:"TICKER"`
}

// Source reads ticker lists from indicator files
type Source struct {
	suffix    string
	validator *validation.FileValidator
	logger    *slog.Logger
}

// NewSource creates a Source that appends suffix to every symbol
func NewSource(suffix string, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{
		suffix:    suffix,
		validator: validation.NewFileValidator(logger),
		logger:    logger,
	}
}

// Load returns the symbols of the indicator file at path, in file order.
// Duplicates keep their first occurrence and blank cells are skipped.
// CSV files must be ';'-delimited; .xlsx files are read from their first sheet.
func (s *Source) Load(path string) ([]string, error) {
	if err := s.validator.ValidateTickerFile(path); err != nil {
		return nil, err
	}

	var (
		raw []string
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		raw, err = readXLSX(path)
	default:
		raw, err = readCSV(path)
	}
	if err != nil {
		return nil, err
	}

	symbols := normalize(raw, s.suffix)
	if len(symbols) == 0 {
		return nil, errors.NewAppValidationError("indicator file has no tickers", nil).
			WithContext("file", path)
	}

	s.logger.Info("Tickers loaded",
		slog.String("file", path),
		slog.Int("rows", len(raw)),
		slog.Int("tickers", len(symbols)))
	return symbols, nil
}

func normalize(raw []string, suffix string) []string {
	seen := make(map[string]bool, len(raw))
	symbols := make([]string, 0, len(raw))
	for _, r := range raw {
		ticker := strings.TrimSpace(r)
		if ticker == "" || seen[ticker] {
			continue
		}
		seen[ticker] = true
		symbols = append(symbols, ticker+suffix)
	}
	return symbols
}

func newReader(data []byte) *csv.Reader {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = ';'
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	return r
}

func readCSV(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewStorageError("failed to read ticker file", err).WithContext("file", path)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	header, err := newReader(data).Read()
	if err != nil {
		if stderrors.Is(err, io.EOF) {
			return nil, errors.NewAppValidationError("ticker file is empty", nil).WithContext("file", path)
		}
		return nil, errors.NewParsingError("failed to read ticker file header", err).WithContext("file", path)
	}
	// gocsv matches headers exactly
	if !slices.Contains(header, Column) {
		return nil, missingColumn(path)
	}

	var rows []indicatorRow
	if err := gocsv.UnmarshalCSV(newReader(data), &rows); err != nil {
		return nil, errors.NewParsingError("failed to parse ticker file", err).WithContext("file", path)
	}

	raw := make([]string, len(rows))
	for i, row := range rows {
		raw[i] = row.Ticker
	}
	return raw, nil
}

func readXLSX(path string) ([]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.NewParsingError("failed to open spreadsheet", err).WithContext("file", path)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.NewAppValidationError("spreadsheet has no sheets", nil).WithContext("file", path)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, errors.NewParsingError("failed to read spreadsheet rows", err).
			WithContext("file", path).
			WithContext("sheet", sheets[0])
	}
	if len(rows) == 0 {
		return nil, errors.NewAppValidationError("ticker file is empty", nil).WithContext("file", path)
	}

	col := columnIndex(rows[0])
	if col < 0 {
		return nil, missingColumn(path)
	}

	raw := make([]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		// excelize trims trailing empty cells
		if col < len(row) {
			raw = append(raw, row[col])
		}
	}
	return raw, nil
}

func columnIndex(header []string) int {
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), Column) {
			return i
		}
	}
	return -1
}

func missingColumn(path string) error {
	return errors.NewAppValidationError(fmt.Sprintf("ticker file has no %s column", Column), nil).
		WithContext("file", path)
}
