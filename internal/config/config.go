package config

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"b3collect/internal/errors"
)

// EnvPrefix namespaces every environment variable read by Load (B3_LOGGING_LEVEL, ...).
const EnvPrefix = "B3"

// DateLayout is the layout of every date option in the configuration.
const DateLayout = "2006-01-02"

// Universe names accepted by Config.Universe.
const (
	UniverseStocks = "stocks"
	UniverseReits  = "reits"
)

// Config represents the complete application configuration
type Config struct {
	Logging    LoggingConfig    `yaml:"logging" envconfig:"LOGGING"`
	Paths      PathsConfig      `yaml:"paths" envconfig:"PATHS"`
	Checkpoint CheckpointConfig `yaml:"checkpoint" envconfig:"CHECKPOINT"`
	Prices     PricesConfig     `yaml:"prices" envconfig:"PRICES"`
	DataCom    DataComConfig    `yaml:"datacom" envconfig:"DATACOM"`
	Indicators IndicatorsConfig `yaml:"indicators" envconfig:"INDICATORS"`
	Browser    BrowserConfig    `yaml:"browser" envconfig:"BROWSER"`
	Yahoo      YahooConfig      `yaml:"yahoo" envconfig:"YAHOO"`
	Journal    JournalConfig    `yaml:"journal" envconfig:"JOURNAL"`
	Telemetry  TelemetryConfig  `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Format   string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
	// Truncate empties the log file when the logger opens it.
	Truncate bool `yaml:"truncate" envconfig:"TRUNCATE"`
}

// PathsConfig contains file system paths configuration.
// Relative directories are resolved against the base directory.
type PathsConfig struct {
	BaseDir       string `yaml:"base_dir" envconfig:"BASE_DIR"`
	ProjectName   string `yaml:"project_name" envconfig:"PROJECT_NAME"`
	IndicatorsDir string `yaml:"indicators_dir" envconfig:"INDICATORS_DIR" validate:"required"`
	StocksDir     string `yaml:"stocks_dir" envconfig:"STOCKS_DIR" validate:"required"`
	ReitsDir      string `yaml:"reits_dir" envconfig:"REITS_DIR" validate:"required"`
	DataComDir    string `yaml:"datacom_dir" envconfig:"DATACOM_DIR" validate:"required"`
	LogsDir       string `yaml:"logs_dir" envconfig:"LOGS_DIR" validate:"required"`
}

// CheckpointConfig controls how resume points are read from output filenames
type CheckpointConfig struct {
	Pattern string `yaml:"pattern" envconfig:"PATTERN" validate:"required"`
}

// UniverseConfig describes one family of tickers collected by the prices job
type UniverseConfig struct {
	TickerFile   string `yaml:"ticker_file" envconfig:"TICKER_FILE" validate:"required"`
	FilePrefix   string `yaml:"file_prefix" envconfig:"FILE_PREFIX" validate:"required"`
	DefaultStart string `yaml:"default_start" envconfig:"DEFAULT_START" validate:"required,datetime=2006-01-02"`
}

// PricesConfig contains the monthly price history job configuration
type PricesConfig struct {
	MarketSuffix string         `yaml:"market_suffix" envconfig:"MARKET_SUFFIX"`
	Stocks       UniverseConfig `yaml:"stocks" envconfig:"STOCKS"`
	Reits        UniverseConfig `yaml:"reits" envconfig:"REITS"`
}

// DataComConfig contains the dividend calendar job configuration
type DataComConfig struct {
	URL          string        `yaml:"url" envconfig:"URL" validate:"required,url"`
	FilePrefix   string        `yaml:"file_prefix" envconfig:"FILE_PREFIX" validate:"required"`
	DefaultStart string        `yaml:"default_start" envconfig:"DEFAULT_START" validate:"required,datetime=2006-01-02"`
	CountryID    string        `yaml:"country_id" envconfig:"COUNTRY_ID" validate:"required"`
	SettleDelay  time.Duration `yaml:"settle_delay" envconfig:"SETTLE_DELAY"`
	LogFile      string        `yaml:"log_file" envconfig:"LOG_FILE"`
}

// IndicatorsConfig contains the indicator download job configuration
type IndicatorsConfig struct {
	StocksURL       string        `yaml:"stocks_url" envconfig:"STOCKS_URL" validate:"required,url"`
	ReitsURL        string        `yaml:"reits_url" envconfig:"REITS_URL" validate:"required,url"`
	DownloadName    string        `yaml:"download_name" envconfig:"DOWNLOAD_NAME" validate:"required"`
	DownloadTimeout time.Duration `yaml:"download_timeout" envconfig:"DOWNLOAD_TIMEOUT" validate:"gt=0"`
}

// BrowserConfig contains headless Chrome settings shared by the browser jobs
type BrowserConfig struct {
	Headless     bool          `yaml:"headless" envconfig:"HEADLESS"`
	WaitTimeout  time.Duration `yaml:"wait_timeout" envconfig:"WAIT_TIMEOUT" validate:"gt=0"`
	WindowWidth  int           `yaml:"window_width" envconfig:"WINDOW_WIDTH" validate:"gt=0"`
	WindowHeight int           `yaml:"window_height" envconfig:"WINDOW_HEIGHT" validate:"gt=0"`
	UserAgent    string        `yaml:"user_agent" envconfig:"USER_AGENT"`
}

// YahooConfig contains the market data provider configuration
type YahooConfig struct {
	ChartEndpoint     string        `yaml:"chart_endpoint" envconfig:"CHART_ENDPOINT" validate:"required,url"`
	CookieURL         string        `yaml:"cookie_url" envconfig:"COOKIE_URL" validate:"required,url"`
	CrumbURL          string        `yaml:"crumb_url" envconfig:"CRUMB_URL" validate:"required,url"`
	Timeout           time.Duration `yaml:"timeout" envconfig:"TIMEOUT" validate:"gt=0"`
	RequestsPerSecond float64       `yaml:"requests_per_second" envconfig:"REQUESTS_PER_SECOND" validate:"gt=0"`
}

// JournalConfig enables the SQLite run journal. An empty path disables it.
type JournalConfig struct {
	Path string `yaml:"path" envconfig:"DB_PATH"`
}

// TelemetryConfig contains OpenTelemetry configuration
type TelemetryConfig struct {
	ServiceName   string `yaml:"service_name" envconfig:"SERVICE_NAME" validate:"required"`
	TraceExporter string `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER" validate:"oneof=stdout none"`
	TraceFile     string `yaml:"trace_file" envconfig:"TRACE_FILE"`
	MetricsFile   string `yaml:"metrics_file" envconfig:"METRICS_FILE"`
}

// Load loads configuration from defaults, the first config file found, .env and the environment
func Load() (*Config, error) {
	return LoadFrom(getConfigFilePath())
}

// LoadFrom loads configuration using the given YAML file (may be empty).
// Precedence, lowest first: defaults, YAML file, .env, process environment.
func LoadFrom(configFile string) (*Config, error) {
	cfg := Default()

	if configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, errors.NewConfigError("failed to load config from file", err).
				WithContext("file", configFile)
		}
	}

	// godotenv never overrides variables already present in the environment
	if err := godotenv.Load(); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return nil, errors.NewConfigError("failed to load .env", err)
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, errors.NewConfigError("failed to load config from env", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromFile overlays the YAML file on top of cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if stderrors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return errors.NewConfigError("config validation failed: "+strings.Join(msgs, "; "), err)
		}
		return errors.NewConfigError("config validation failed", err)
	}
	return nil
}

// Universe returns the configuration of a price universe by name
func (c *Config) Universe(name string) (UniverseConfig, error) {
	switch strings.ToLower(name) {
	case UniverseStocks:
		return c.Prices.Stocks, nil
	case UniverseReits:
		return c.Prices.Reits, nil
	default:
		return UniverseConfig{}, errors.NewConfigError(
			fmt.Sprintf("unknown universe %q (want %s or %s)", name, UniverseStocks, UniverseReits), nil)
	}
}

// ParseDate parses a configuration date (YYYY-MM-DD) as UTC midnight
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, errors.NewConfigError(fmt.Sprintf("invalid date %q", s), err)
	}
	return t, nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use env vars only
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "both",
			FilePath: "",
		},
		Paths: PathsConfig{
			IndicatorsDir: "Indicadores Financeiros",
			StocksDir:     "Historico cotações/Ações IBOV",
			ReitsDir:      "Historico cotações/FIIs IBOV",
			DataComDir:    "DataCom Proventos",
			LogsDir:       "logs",
		},
		Checkpoint: CheckpointConfig{
			Pattern: `(\d{2})_(\d{4})`,
		},
		Prices: PricesConfig{
			MarketSuffix: ".SA",
			Stocks: UniverseConfig{
				TickerFile:   "Indicadores_AcoesIBOV.csv",
				FilePrefix:   "Acoes_IBOV",
				DefaultStart: "2021-01-01",
			},
			Reits: UniverseConfig{
				TickerFile:   "Indicadores_FiiIBOV.csv",
				FilePrefix:   "FII_IBOV",
				DefaultStart: "2021-01-01",
			},
		},
		DataCom: DataComConfig{
			URL:          "https://br.investing.com/dividends-calendar/",
			FilePrefix:   "DATACOM",
			DefaultStart: "2024-01-01",
			CountryID:    "country32",
			SettleDelay:  20 * time.Second,
			LogFile:      "datacom.log",
		},
		Indicators: IndicatorsConfig{
			StocksURL:       "https://statusinvest.com.br/acoes/busca-avancada",
			ReitsURL:        "https://statusinvest.com.br/fundos-imobiliarios/busca-avancada",
			DownloadName:    "statusinvest-busca-avancada.csv",
			DownloadTimeout: 60 * time.Second,
		},
		Browser: BrowserConfig{
			Headless:     true,
			WaitTimeout:  15 * time.Second,
			WindowWidth:  1920,
			WindowHeight: 1080,
		},
		Yahoo: YahooConfig{
			ChartEndpoint:     "https://query2.finance.yahoo.com/v8/finance/chart",
			CookieURL:         "https://fc.yahoo.com",
			CrumbURL:          "https://query1.finance.yahoo.com/v1/test/getcrumb",
			Timeout:           30 * time.Second,
			RequestsPerSecond: 2,
		},
		Telemetry: TelemetryConfig{
			ServiceName:   "b3collect",
			TraceExporter: "none",
		},
	}
}
