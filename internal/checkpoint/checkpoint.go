// Package checkpoint derives the resume point of a collector from the names of
// the files it already wrote.
//
// Output files carry their month in the name (Acoes_IBOV_03_2023.csv). The
// resume point is the second-to-last distinct month found: the last month may
// have been written while still in progress, so it is always collected again
// together with the month before it.
package checkpoint

import (
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"b3collect/internal/files"
)

// DefaultPattern matches the MM_YYYY part of an output file name
var DefaultPattern = regexp.MustCompile(`(\d{2})_(\d{4})`)

// Resolver resolves resume points in output directories
type Resolver struct {
	discovery *files.Discovery
	pattern   *regexp.Regexp
	logger    *slog.Logger
}

// NewResolver creates a resolver matching file names against pattern.
// A nil pattern falls back to DefaultPattern.
func NewResolver(pattern *regexp.Regexp, logger *slog.Logger) *Resolver {
	if pattern == nil {
		pattern = DefaultPattern
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		discovery: files.NewDiscovery(""),
		pattern:   pattern,
		logger:    logger,
	}
}

// Resolve returns the first day of the month to resume from in dir.
// Without matching files it returns defaultDate; with a single distinct month,
// that month; otherwise the second-to-last distinct month. A missing dir is a
// NOT_FOUND error.
func (r *Resolver) Resolve(dir string, defaultDate time.Time) (time.Time, error) {
	matches, err := r.discovery.FindByRegexp(dir, r.pattern)
	if err != nil {
		return time.Time{}, err
	}

	months := make([]time.Time, 0, len(matches))
	seen := make(map[time.Time]bool, len(matches))
	for _, m := range matches {
		month, ok := parseMonth(m)
		if !ok {
			r.logger.Debug("Ignoring file with invalid month",
				slog.String("file", m.Name),
				slog.String("match", m.Text))
			continue
		}
		if seen[month] {
			continue
		}
		seen[month] = true
		months = append(months, month)
	}

	resume := pick(months, defaultDate)

	r.logger.Info("Checkpoint resolved",
		slog.String("directory", dir),
		slog.Int("files_matched", len(matches)),
		slog.Int("distinct_months", len(months)),
		slog.String("resume_from", resume.Format("2006-01-02")))

	return resume, nil
}

// Resolve is a convenience wrapper around Resolver.Resolve with the default logger
func Resolve(dir string, pattern *regexp.Regexp, defaultDate time.Time) (time.Time, error) {
	return NewResolver(pattern, nil).Resolve(dir, defaultDate)
}

func pick(months []time.Time, defaultDate time.Time) time.Time {
	switch len(months) {
	case 0:
		return defaultDate
	case 1:
		return months[0]
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })
	return months[len(months)-2]
}

// parseMonth turns a match into the first day of its month (UTC).
// With two capture groups they are read as month and year; otherwise the
// matched text is read as MM_YYYY.
func parseMonth(m files.Match) (time.Time, bool) {
	var monthStr, yearStr string
	if len(m.Groups) >= 2 {
		monthStr, yearStr = m.Groups[0], m.Groups[1]
	} else {
		var found bool
		monthStr, yearStr, found = strings.Cut(m.Text, "_")
		if !found {
			return time.Time{}, false
		}
	}

	month, err := strconv.Atoi(monthStr)
	if err != nil || month < 1 || month > 12 {
		return time.Time{}, false
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC), true
}

