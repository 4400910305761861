package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	_ "time/tzdata" // exchange time zones of the chart API

	"b3collect/internal/app"
	"b3collect/internal/collect"
	"b3collect/internal/config"
	"b3collect/internal/scraper/yahoo"
	"b3collect/internal/tickers"
)

func main() {
	var logger *slog.Logger
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "PANIC RECOVERED: %v\n%s\n", r, debug.Stack())
			if logger != nil {
				logger.Error("Prices collector panicked",
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())))
			}
			os.Exit(1)
		}
	}()

	universe := flag.String("universe", config.UniverseStocks, "ticker universe: stocks | reits")
	configFile := flag.String("config", "", "config file (defaults to config.yaml lookup)")
	flag.Parse()

	a, err := app.New(app.Options{Job: "prices_" + *universe, ConfigFile: *configFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logger = a.Logger

	err = a.Run(func(ctx context.Context) error {
		runner, err := newRunner(a, *universe)
		if err != nil {
			return err
		}
		_, err = runner.Run(ctx)
		return err
	})
	app.CloseLogs()
	if err != nil {
		os.Exit(1)
	}
}

// newRunner builds the price runner of a universe
func newRunner(a *app.Application, universe string) (*collect.PriceRunner, error) {
	ucfg, err := a.Config.Universe(universe)
	if err != nil {
		return nil, err
	}
	outputDir, err := a.Paths.OutputDir(universe)
	if err != nil {
		return nil, err
	}
	defaultStart, err := config.ParseDate(ucfg.DefaultStart)
	if err != nil {
		return nil, err
	}
	opts, err := a.RunnerOptions()
	if err != nil {
		return nil, err
	}

	client := yahoo.NewFromConfig(a.Config.Yahoo, a.Config.Browser.UserAgent, a.Logger)
	aggregator := collect.NewAggregator(client, a.Telemetry.Tracer)

	return collect.NewPriceRunner(collect.PriceConfig{
		Dataset:      universe,
		OutputDir:    outputDir,
		FilePrefix:   ucfg.FilePrefix,
		DefaultStart: defaultStart,
	},
		a.Paths.GetIndicatorPath(ucfg.TickerFile),
		tickers.NewSource(a.Config.Prices.MarketSuffix, a.Logger),
		aggregator,
		opts...,
	), nil
}
