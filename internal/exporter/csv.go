package exporter

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"

	"github.com/gocarina/gocsv"

	"b3collect/internal/errors"
)

// DefaultDelimiter separates fields in every file the collectors write
const DefaultDelimiter = ';'

// CSVWriter provides CSV export functionality
type CSVWriter struct {
	logger *slog.Logger
}

// NewCSVWriter creates a new CSV writer instance
func NewCSVWriter(logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{logger: logger}
}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	Delimiter rune // DefaultDelimiter when zero
	BOMPrefix bool // Add UTF-8 BOM for Excel compatibility
}

// WriteRows writes a slice of csv-tagged structs to filePath, header first.
// An existing file is truncated. The directory must already exist.
func (w *CSVWriter) WriteRows(filePath string, rows any, options WriteOptions) error {
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return errors.NewStorageError("failed to open output file", err).
			WithContext("file", filePath)
	}
	defer file.Close()

	if options.BOMPrefix {
		if _, err := file.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
			return errors.NewStorageError("failed to write BOM", err).
				WithContext("file", filePath)
		}
	}

	delimiter := options.Delimiter
	if delimiter == 0 {
		delimiter = DefaultDelimiter
	}
	writer := csv.NewWriter(file)
	writer.Comma = delimiter

	if err := gocsv.MarshalCSV(rows, gocsv.NewSafeCSVWriter(writer)); err != nil {
		return errors.NewStorageError("failed to write rows", err).
			WithContext("file", filePath)
	}

	if err := file.Close(); err != nil {
		return errors.NewStorageError("failed to close output file", err).
			WithContext("file", filePath)
	}

	w.logger.Debug("CSV file written",
		slog.String("file", filePath),
		slog.String("delimiter", fmt.Sprintf("%q", delimiter)))
	return nil
}
