package exporter

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the layout of dates in price files
const DateLayout = "2006-01-02"

// FormatDecimal renders d with exactly 2 decimal places and a comma separator (12.3 -> "12,30")
func FormatDecimal(d decimal.Decimal) string {
	return strings.Replace(d.StringFixed(2), ".", ",", 1)
}

// FormatVolume formats a traded volume as an integer
func FormatVolume(v int64) string {
	return strconv.FormatInt(v, 10)
}

// FormatDate formats a trading day
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// MonthFileName builds the name of a monthly output file: <prefix>_MM_YYYY.csv
func MonthFileName(prefix string, month time.Time) string {
	return fmt.Sprintf("%s_%02d_%04d.csv", prefix, int(month.Month()), month.Year())
}
