package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"

	"b3collect/internal/app"
	"b3collect/internal/collect"
	"b3collect/internal/config"
	"b3collect/internal/scraper/investing"
)

func main() {
	var logger *slog.Logger
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "PANIC RECOVERED: %v\n%s\n", r, debug.Stack())
			if logger != nil {
				logger.Error("DataCom collector panicked",
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())))
			}
			os.Exit(1)
		}
	}()

	configFile := flag.String("config", "", "config file (defaults to config.yaml lookup)")
	headless := flag.Bool("headless", true, "run the browser headless")
	flag.Parse()

	// the calendar log only keeps the latest run
	a, err := app.New(app.Options{
		Job:         collect.DataComDataset,
		ConfigFile:  *configFile,
		LogFile:     func(cfg *config.Config) string { return cfg.DataCom.LogFile },
		TruncateLog: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logger = a.Logger
	a.Config.Browser.Headless = *headless

	err = a.Run(func(ctx context.Context) error {
		defaultStart, err := config.ParseDate(a.Config.DataCom.DefaultStart)
		if err != nil {
			return err
		}
		opts, err := a.RunnerOptions()
		if err != nil {
			return err
		}

		calendar := investing.NewCalendar(a.Config.DataCom, a.Config.Browser, a.Logger)
		runner := collect.NewDataComRunner(collect.DataComConfig{
			OutputDir:    a.Paths.DataComDir,
			FilePrefix:   a.Config.DataCom.FilePrefix,
			DefaultStart: defaultStart,
		}, calendar, opts...)

		_, err = runner.Run(ctx)
		return err
	})
	app.CloseLogs()
	if err != nil {
		os.Exit(1)
	}
}
