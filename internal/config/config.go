// Package config loads the bot configuration from YAML, a dotenv file and the environment.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/joho/godotenv"
	"github.com/rxtech-lab/argo-shortbot/pkg/errors"
	"gopkg.in/yaml.v3"
)

// AmountType selects how the margin of a new trade is sized.
type AmountType string

const (
	AmountTypeFixed      AmountType = "fixed_usdt"
	AmountTypePercentage AmountType = "percentage"
)

// TradingConfig holds the strategy parameters. It can be changed at runtime through Settings.
type TradingConfig struct {
	AlertThreshold      float64       `yaml:"alert_threshold" json:"alert_threshold" jsonschema:"title=Alert Threshold,description=RSI above which a short is opened,default=95" validate:"gt=0,lte=100"`
	CloseThreshold      float64       `yaml:"close_threshold" json:"close_threshold" jsonschema:"title=Close Threshold,description=RSI at or below which a profitable short is closed,default=65" validate:"gt=0,lte=100,ltfield=AlertThreshold"`
	HotCoinThreshold    float64       `yaml:"hot_coin_threshold" json:"hot_coin_threshold" jsonschema:"title=Hot Coin Threshold,description=Minimum 24h change in percent for a symbol to be sampled,default=10"`
	MaxMonitoredSymbols int           `yaml:"max_monitored_symbols" json:"max_monitored_symbols" jsonschema:"title=Max Monitored Symbols,default=100" validate:"min=1"`
	MaxOpenTrades       int           `yaml:"max_open_trades" json:"max_open_trades" jsonschema:"title=Max Open Trades,default=10" validate:"min=1"`
	Leverage            int           `yaml:"leverage" json:"leverage" jsonschema:"title=Leverage,default=2" validate:"min=1,max=125"`
	TakeProfitPercent   float64       `yaml:"take_profit_percent" json:"take_profit_percent" jsonschema:"title=Take Profit,description=Leveraged pnl percent that closes a paper trade,default=10" validate:"gt=0"`
	AmountType          AmountType    `yaml:"amount_type" json:"amount_type" jsonschema:"title=Amount Type,enum=fixed_usdt,enum=percentage,default=fixed_usdt" validate:"oneof=fixed_usdt percentage"`
	FixedAmount         float64       `yaml:"fixed_amount" json:"fixed_amount" jsonschema:"title=Fixed Amount,description=Margin in USDT per trade,default=3" validate:"gt=0"`
	PercentageAmount    float64       `yaml:"percentage_amount" json:"percentage_amount" jsonschema:"title=Percentage Amount,description=Margin as percent of balance,default=10" validate:"gt=0,lte=100"`
	MinMargin           float64       `yaml:"min_margin" json:"min_margin" jsonschema:"title=Minimum Margin,description=Smallest margin the exchange accepts,default=5.1" validate:"gte=0"`
	LossLimit           int           `yaml:"loss_limit" json:"loss_limit" jsonschema:"title=Loss Limit,description=Losing trades in the loss window that trip the breaker,default=1" validate:"min=1"`
	LossWindow          time.Duration `yaml:"loss_window" json:"loss_window" jsonschema:"title=Loss Window" validate:"gt=0"`
	PauseDuration       time.Duration `yaml:"pause_duration" json:"pause_duration" jsonschema:"title=Pause Duration" validate:"gt=0"`
	DefaultCooldown     time.Duration `yaml:"default_cooldown" json:"default_cooldown" jsonschema:"title=Default Cooldown" validate:"gte=0"`
	FailureCooldown     time.Duration `yaml:"failure_cooldown" json:"failure_cooldown" jsonschema:"title=Failure Cooldown" validate:"gte=0"`
	OpenRateLimit       time.Duration `yaml:"open_rate_limit" json:"open_rate_limit" jsonschema:"title=Open Rate Limit,description=Minimum time between two opens" validate:"gte=0"`
	StaleSignalLookback time.Duration `yaml:"stale_signal_lookback" json:"stale_signal_lookback" jsonschema:"title=Stale Signal Lookback" validate:"gt=0"`
	QuoteSuffix         string        `yaml:"quote_suffix" json:"quote_suffix" jsonschema:"title=Quote Suffix,default=USDT" validate:"required"`
}

// ResolveAmount returns the margin for a new trade given the current balance.
func (t TradingConfig) ResolveAmount(balance float64) float64 {
	if t.AmountType == AmountTypePercentage {
		return balance * t.PercentageAmount / 100
	}

	return t.FixedAmount
}

// IntervalConfig holds loop periods and cron specs.
type IntervalConfig struct {
	PaperMonitor   time.Duration `yaml:"paper_monitor" json:"paper_monitor" validate:"gt=0"`
	LiveMonitor    time.Duration `yaml:"live_monitor" json:"live_monitor" validate:"gt=0"`
	IndicatorSweep time.Duration `yaml:"indicator_sweep" json:"indicator_sweep" validate:"gt=0"`
	SymbolPause    time.Duration `yaml:"symbol_pause" json:"symbol_pause" validate:"gte=0"`
	BreakerScan    string        `yaml:"breaker_scan" json:"breaker_scan" jsonschema:"description=Cron spec of the loss breaker scan" validate:"required"`
	StateFlush     string        `yaml:"state_flush" json:"state_flush" jsonschema:"description=Cron spec of the state file flush" validate:"required"`
}

// IndicatorConfig controls RSI sampling.
type IndicatorConfig struct {
	Length        int           `yaml:"length" json:"length" validate:"min=2"`
	KlineInterval string        `yaml:"kline_interval" json:"kline_interval" validate:"required"`
	KlineLimit    int           `yaml:"kline_limit" json:"kline_limit" validate:"min=2,max=1500,gtfield=Length"`
	Retries       int           `yaml:"retries" json:"retries" validate:"min=0"`
	RetryBase     time.Duration `yaml:"retry_base" json:"retry_base" validate:"gte=0"`
	CallTimeout   time.Duration `yaml:"call_timeout" json:"call_timeout" validate:"gt=0"`
}

// BinanceConfig holds exchange credentials. Live trading stays off without both keys.
type BinanceConfig struct {
	LiveEnabled bool          `yaml:"live_enabled" json:"live_enabled"`
	Testnet     bool          `yaml:"testnet" json:"testnet"`
	APIKey      string        `yaml:"api_key" json:"-"`
	SecretKey   string        `yaml:"secret_key" json:"-"`
	CallTimeout time.Duration `yaml:"call_timeout" json:"call_timeout" validate:"gt=0"`
	Retries     int           `yaml:"retries" json:"retries" validate:"min=0"`
}

// HasCredentials reports whether both keys are set.
func (b BinanceConfig) HasCredentials() bool {
	return b.APIKey != "" && b.SecretKey != ""
}

// TelegramConfig holds notifier settings. Empty token disables notifications.
type TelegramConfig struct {
	BotToken string        `yaml:"bot_token" json:"-"`
	ChatID   string        `yaml:"chat_id" json:"chat_id"`
	BaseURL  string        `yaml:"base_url" json:"base_url" validate:"omitempty,url"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout" validate:"gt=0"`
}

// StorageConfig lists where state is persisted. Relative file names live under DataDir.
type StorageConfig struct {
	DataDir      string `yaml:"data_dir" json:"data_dir" validate:"required"`
	LedgerFile   string `yaml:"ledger_file" json:"ledger_file" validate:"required"`
	CooldownFile string `yaml:"cooldown_file" json:"cooldown_file" validate:"required"`
	StateFile    string `yaml:"state_file" json:"state_file" validate:"required"`
	StatsFile    string `yaml:"stats_file" json:"stats_file" validate:"required"`
}

// Path joins a storage file name with the data directory.
func (s StorageConfig) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}

	return filepath.Join(s.DataDir, name)
}

// APIConfig configures the HTTP control surface.
type APIConfig struct {
	Listen string `yaml:"listen" json:"listen" validate:"required"`
}

// PortfolioConfig seeds the paper balance on first start.
type PortfolioConfig struct {
	DefaultBalance float64 `yaml:"default_balance" json:"default_balance" validate:"gte=0"`
}

// Config is the complete bot configuration.
type Config struct {
	LogLevel  string          `yaml:"log_level" json:"log_level" validate:"omitempty,oneof=debug info warn error"`
	Trading   TradingConfig   `yaml:"trading" json:"trading"`
	Intervals IntervalConfig  `yaml:"intervals" json:"intervals"`
	Indicator IndicatorConfig `yaml:"indicator" json:"indicator"`
	Binance   BinanceConfig   `yaml:"binance" json:"binance"`
	Telegram  TelegramConfig  `yaml:"telegram" json:"telegram"`
	Storage   StorageConfig   `yaml:"storage" json:"storage"`
	API       APIConfig       `yaml:"api" json:"api"`
	Portfolio PortfolioConfig `yaml:"portfolio" json:"portfolio"`
}

// Default returns the configuration used when no file overrides a value.
func Default() Config {
	return Config{
		LogLevel: "info",
		Trading: TradingConfig{
			AlertThreshold:      95,
			CloseThreshold:      65,
			HotCoinThreshold:    10,
			MaxMonitoredSymbols: 100,
			MaxOpenTrades:       10,
			Leverage:            2,
			TakeProfitPercent:   10,
			AmountType:          AmountTypeFixed,
			FixedAmount:         3,
			PercentageAmount:    10,
			MinMargin:           5.1,
			LossLimit:           1,
			LossWindow:          24 * time.Hour,
			PauseDuration:       24 * time.Hour,
			DefaultCooldown:     48 * time.Hour,
			FailureCooldown:     5 * time.Minute,
			OpenRateLimit:       10 * time.Second,
			StaleSignalLookback: 12 * time.Hour,
			QuoteSuffix:         "USDT",
		},
		Intervals: IntervalConfig{
			PaperMonitor:   time.Second,
			LiveMonitor:    1500 * time.Millisecond,
			IndicatorSweep: time.Second,
			SymbolPause:    50 * time.Millisecond,
			BreakerScan:    "@every 1m",
			StateFlush:     "@every 30s",
		},
		Indicator: IndicatorConfig{
			Length:        14,
			KlineInterval: "1h",
			KlineLimit:    100,
			Retries:       3,
			RetryBase:     5 * time.Second,
			CallTimeout:   10 * time.Second,
		},
		Binance: BinanceConfig{
			LiveEnabled: false,
			Testnet:     false,
			APIKey:      "",
			SecretKey:   "",
			CallTimeout: 10 * time.Second,
			Retries:     3,
		},
		Telegram: TelegramConfig{
			BotToken: "",
			ChatID:   "",
			BaseURL:  "https://api.telegram.org",
			Timeout:  10 * time.Second,
		},
		Storage: StorageConfig{
			DataDir:      "data",
			LedgerFile:   "trades.duckdb",
			CooldownFile: "cooldowns.db",
			StateFile:    "state.yaml",
			StatsFile:    "stats.yaml",
		},
		API: APIConfig{
			Listen: ":5001",
		},
		Portfolio: PortfolioConfig{
			DefaultBalance: 1000,
		},
	}
}

// Load reads the YAML file at path over the defaults, loads envFile if it exists,
// then applies environment overrides and validates the result.
// A missing config file is not an error.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrapf(errors.ErrCodeConfigLoadFailed, err, "failed to read config %s", path)
		}

		if len(data) > 0 {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, errors.Wrapf(errors.ErrCodeConfigLoadFailed, err, "failed to parse config %s", path)
			}
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrapf(errors.ErrCodeConfigLoadFailed, err, "failed to load env file %s", envFile)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("BINANCE_API_KEY"); v != "" {
		c.Binance.APIKey = v
	}

	if v := os.Getenv("BINANCE_SECRET_KEY"); v != "" {
		c.Binance.SecretKey = v
	}

	if v := os.Getenv("BINANCE_TESTNET"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Binance.Testnet = b
		}
	}

	if v := os.Getenv("LIVE_TRADING"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Binance.LiveEnabled = b
		}
	}

	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}

	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}

	if v := os.Getenv("DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}

	if v := os.Getenv("API_LISTEN"); v != "" {
		c.API.Listen = v
	}
}

// Validate validates every section of the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid configuration", err)
	}

	return nil
}

// LiveTradingAvailable reports whether live execution was requested and can be served.
func (c *Config) LiveTradingAvailable() bool {
	return c.Binance.LiveEnabled && c.Binance.HasCredentials()
}

// Schema returns the JSON schema of the configuration.
func Schema() (string, error) {
	r := new(jsonschema.Reflector)
	r.DoNotReference = true
	schema := r.Reflect(Config{}) //nolint:exhaustruct // only the type is reflected

	data, err := json.Marshal(schema)
	if err != nil {
		return "", err
	}

	return string(data), nil
}
