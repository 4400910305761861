package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"

	"b3collect/internal/app"
	"b3collect/internal/config"
	"b3collect/internal/scraper/statusinvest"
)

func main() {
	var logger *slog.Logger
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "PANIC RECOVERED: %v\n%s\n", r, debug.Stack())
			if logger != nil {
				logger.Error("Indicator download panicked",
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())))
			}
			os.Exit(1)
		}
	}()

	universe := flag.String("universe", "all", "indicator sheet to download: stocks | reits | all")
	configFile := flag.String("config", "", "config file (defaults to config.yaml lookup)")
	headless := flag.Bool("headless", true, "run the browser headless")
	flag.Parse()

	a, err := app.New(app.Options{Job: "indicators", ConfigFile: *configFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logger = a.Logger
	a.Config.Browser.Headless = *headless

	err = a.Run(func(ctx context.Context) error {
		return download(ctx, a, *universe)
	})
	app.CloseLogs()
	if err != nil {
		os.Exit(1)
	}
}

// download fetches the indicator sheet of each selected universe. The price
// jobs read their tickers from these files.
func download(ctx context.Context, a *app.Application, universe string) error {
	sheets := []struct {
		name string
		url  string
	}{
		{config.UniverseStocks, a.Config.Indicators.StocksURL},
		{config.UniverseReits, a.Config.Indicators.ReitsURL},
	}

	downloader := statusinvest.NewDownloader(a.Config.Indicators, a.Config.Browser, a.Logger)
	selected := 0
	for _, sheet := range sheets {
		if universe != "all" && universe != sheet.name {
			continue
		}
		selected++

		ucfg, err := a.Config.Universe(sheet.name)
		if err != nil {
			return err
		}
		target := a.Paths.GetIndicatorPath(ucfg.TickerFile)
		if err := downloader.Download(ctx, sheet.url, target); err != nil {
			return fmt.Errorf("download %s indicators: %w", sheet.name, err)
		}
	}

	if selected == 0 {
		_, err := a.Config.Universe(universe)
		return err
	}
	return nil
}
