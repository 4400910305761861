// Package config provides centralized configuration management for the collectors.
// It loads configuration from several sources, validates it and resolves every
// directory the jobs read from or write to.
//
// # Configuration Sources
//
// Configuration is assembled in the following order, later sources win:
//
//	1. Default values (Default)
//	2. YAML file (config.yaml, configs/config.yaml)
//	3. A .env file in the working directory
//	4. Environment variables
//
// # Environment Variables
//
// All environment variables follow the pattern B3_<SECTION>_<FIELD>:
//
//	B3_LOGGING_LEVEL=debug
//	B3_PATHS_BASE_DIR=/srv/investimento
//	B3_PRICES_STOCKS_DEFAULT_START=2021-01-01
//	B3_BROWSER_HEADLESS=false
//	B3_JOURNAL_DB_PATH=/srv/investimento/journal.db
//
// # Path Management
//
// Paths resolves the indicator, price, DataCom and log directories against a base
// directory. When no base is configured the executable directory is used, or its
// nearest ancestor named paths.project_name:
//
//	paths, err := config.GetPaths(cfg.Paths)
//	tickerFile := paths.GetIndicatorPath(cfg.Prices.Stocks.TickerFile)
//
// # Validation
//
// Load validates the assembled struct with go-playground/validator tags: dates use
// the YYYY-MM-DD layout, URLs must parse and timeouts must be positive.
package config
