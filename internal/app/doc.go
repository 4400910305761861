// Package app wires the collector jobs together. Every command builds one
// Application, which owns the configuration, the resolved paths, the logger,
// telemetry and the optional journal of a single run.
//
// # Initialization Flow
//
//	1. Load configuration from defaults, config.yaml, .env and the environment
//	2. Resolve and create the working directories
//	3. Initialize the job logger (logs/<job>.log plus the console)
//	4. Initialize telemetry and open the journal
//
// # Usage
//
//	a, err := app.New(app.Options{Job: "prices"})
//	if err != nil {
//	    os.Exit(1)
//	}
//	err = a.Run(func(ctx context.Context) error {
//	    ...
//	})
//
// # Graceful Shutdown
//
// Run cancels the job context on SIGINT or SIGTERM. The collectors then stop
// before writing the window in progress, and Run still flushes the metrics
// textfile, closes the journal and closes the log file.
package app
