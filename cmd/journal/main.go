package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"b3collect/internal/app"
	"b3collect/internal/errors"
	"b3collect/internal/journal"
)

func main() {
	dataset := flag.String("dataset", "", "only list windows of this dataset (stocks, reits, datacom)")
	limit := flag.Int("limit", 50, "maximum number of windows to list (0 for all)")
	configFile := flag.String("config", "", "config file (defaults to config.yaml lookup)")
	flag.Parse()

	a, err := app.New(app.Options{Job: "journal", ConfigFile: *configFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	err = a.Run(func(ctx context.Context) error {
		if a.Journal == nil {
			return errors.NewConfigError("journal is disabled: set journal.path or B3_JOURNAL_DB_PATH", nil)
		}
		entries, err := a.Journal.List(ctx, *dataset, *limit)
		if err != nil {
			return err
		}
		return printEntries(os.Stdout, entries)
	})
	app.CloseLogs()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printEntries(w io.Writer, entries []journal.Entry) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tDATASET\tWINDOW\tFILE\tROWS\tOK\tEMPTY\tFAILED\tWRITTEN")
	for _, e := range entries {
		file := e.File
		if e.Skipped() {
			file = "(skipped)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s..%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			shortID(e.RunID), e.Dataset,
			e.WindowStart.Format("2006-01-02"), e.WindowEnd.Format("2006-01-02"),
			file, e.Rows, e.ItemsOK, e.ItemsEmpty, e.ItemsFailed,
			e.WrittenAt.Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
