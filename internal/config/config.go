package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all engine configuration.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Engine     EngineConfig     `mapstructure:"engine"`
	Risk       RiskConfig       `mapstructure:"risk"`
	Exchange   ExchangeConfig   `mapstructure:"exchange"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// AppConfig contains application-level settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"` // development, staging, production
	LogLevel    string `mapstructure:"log_level"`
}

// DatabaseConfig contains PostgreSQL connection settings. The audit log is
// the only consumer — the engine's live state lives in the position store's
// JSON file, per spec.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
	PoolSize int    `mapstructure:"pool_size"`
}

// RedisConfig contains Redis settings, used for the market data cache layer.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// NATSConfig contains NATS messaging settings, used by internal/telemetry to
// publish cycle and decision events for out-of-process consumers.
type NATSConfig struct {
	URL             string `mapstructure:"url"`
	EnableJetStream bool   `mapstructure:"enable_jetstream"`
}

// EngineConfig contains the trading-loop tunables from spec.md §6's
// configuration surface.
type EngineConfig struct {
	PollingIntervalSeconds      int     `mapstructure:"polling_interval_seconds"`
	MaxConcurrentPositions      int     `mapstructure:"max_concurrent_positions"`
	MinQuoteVolumeUSD           float64 `mapstructure:"min_quote_volume_usd"`
	TopNAnalyzed                int     `mapstructure:"top_n_analyzed"`
	MinLiquidity                float64 `mapstructure:"min_liquidity"`
	ReconcileMinIntervalSeconds int     `mapstructure:"reconcile_min_interval_seconds"`
	OCOSettlementWaitSeconds    int     `mapstructure:"oco_settlement_wait_seconds"`
	Quote                       string  `mapstructure:"quote"` // e.g. "USDT"
	StateFilePath               string  `mapstructure:"state_file_path"`

	CacheTTL CacheTTLConfig `mapstructure:"cache_ttl"`
}

// CacheTTLConfig contains the per-data-kind cache lifetimes from
// spec.md §6. There is no candle entry: internal/market caches candles for
// one bar of the requested timeframe, resolved per call.
type CacheTTLConfig struct {
	TickersSeconds  int `mapstructure:"tickers_seconds"`
	BooksSeconds    int `mapstructure:"books_seconds"`
	RankingsSeconds int `mapstructure:"rankings_seconds"`
	MacroSeconds    int `mapstructure:"macro_seconds"`
}

// RiskConfig contains risk management settings.
type RiskConfig struct {
	MaxPositionSize   float64 `mapstructure:"max_position_size"`   // fraction of portfolio
	MaxDailyLoss      float64 `mapstructure:"max_daily_loss"`      // fraction
	MaxDrawdown       float64 `mapstructure:"max_drawdown"`        // fraction
	DefaultStopLoss   float64 `mapstructure:"default_stop_loss"`   // fraction below entry
	DefaultTakeProfit float64 `mapstructure:"default_take_profit"` // fraction above entry
	MinConfidence     float64 `mapstructure:"min_confidence"`
}

// ExchangeConfig contains OKX credential and fee settings. OKX authenticates
// with three secrets (API key, secret key, passphrase), unlike Binance's
// two-secret scheme — all three are resolvable from Vault via
// internal/vault.Client.GetExchangeConfig.
type ExchangeConfig struct {
	APIKey     string    `mapstructure:"api_key"`
	SecretKey  string    `mapstructure:"secret_key"`
	Passphrase string    `mapstructure:"passphrase"`
	Simulated  bool      `mapstructure:"simulated"` // OKX demo-trading flag
	BaseURL    string    `mapstructure:"base_url"`
	Fees       FeeConfig `mapstructure:"fees"`
}

// FeeConfig contains exchange fee structure.
type FeeConfig struct {
	Maker        float64 `mapstructure:"maker"`         // e.g. 0.0008 = 0.08%
	Taker        float64 `mapstructure:"taker"`         // e.g. 0.001 = 0.1%
	BaseSlippage float64 `mapstructure:"base_slippage"` // e.g. 0.0005 = 0.05%
	MarketImpact float64 `mapstructure:"market_impact"` // per unit of book depth consumed
	MaxSlippage  float64 `mapstructure:"max_slippage"`
}

// MonitoringConfig contains monitoring settings.
type MonitoringConfig struct {
	PrometheusPort int  `mapstructure:"prometheus_port"`
	EnableMetrics  bool `mapstructure:"enable_metrics"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("ENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	// Keys without a default are bound explicitly so Unmarshal sees them.
	for _, key := range []string{"exchange.api_key", "exchange.secret_key", "exchange.passphrase", "database.password", "redis.password"} {
		_ = v.BindEnv(key)
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; using defaults and environment variables.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "spotengine")
	v.SetDefault("app.version", "0.1.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.database", "spotengine")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.pool_size", 10)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.enable_jetstream", true)

	v.SetDefault("engine.polling_interval_seconds", 30)
	v.SetDefault("engine.max_concurrent_positions", 10)
	v.SetDefault("engine.min_quote_volume_usd", 40_000_000.0)
	v.SetDefault("engine.top_n_analyzed", 15)
	v.SetDefault("engine.min_liquidity", 0.30)
	v.SetDefault("engine.reconcile_min_interval_seconds", 60)
	v.SetDefault("engine.oco_settlement_wait_seconds", 1)
	v.SetDefault("engine.quote", "USDT")
	v.SetDefault("engine.state_file_path", "./data/positions.json")
	v.SetDefault("engine.cache_ttl.tickers_seconds", 15)
	v.SetDefault("engine.cache_ttl.books_seconds", 10)
	v.SetDefault("engine.cache_ttl.rankings_seconds", 300)
	v.SetDefault("engine.cache_ttl.macro_seconds", 3600)

	v.SetDefault("risk.max_position_size", 0.1)
	v.SetDefault("risk.max_daily_loss", 0.02)
	v.SetDefault("risk.max_drawdown", 0.1)
	v.SetDefault("risk.default_stop_loss", 0.02)
	v.SetDefault("risk.default_take_profit", 0.05)
	v.SetDefault("risk.min_confidence", 0.7)

	v.SetDefault("exchange.simulated", false)
	v.SetDefault("exchange.base_url", "https://www.okx.com")
	v.SetDefault("exchange.fees.maker", 0.0008)
	v.SetDefault("exchange.fees.taker", 0.001)
	v.SetDefault("exchange.fees.base_slippage", 0.0005)
	v.SetDefault("exchange.fees.market_impact", 0.0001)
	v.SetDefault("exchange.fees.max_slippage", 0.003)

	v.SetDefault("monitoring.prometheus_port", 9100)
	v.SetDefault("monitoring.enable_metrics", true)
}

// GetDSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// GetRedisAddr returns the Redis address.
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// PollingInterval returns the polling interval as a time.Duration.
func (c *EngineConfig) PollingInterval() time.Duration {
	return time.Duration(c.PollingIntervalSeconds) * time.Second
}

// ReconcileMinInterval returns the reconciliation floor as a time.Duration.
func (c *EngineConfig) ReconcileMinInterval() time.Duration {
	return time.Duration(c.ReconcileMinIntervalSeconds) * time.Second
}

// OCOSettlementWait returns the OCO settlement wait as a time.Duration.
func (c *EngineConfig) OCOSettlementWait() time.Duration {
	return time.Duration(c.OCOSettlementWaitSeconds) * time.Second
}

// TickersTTL returns the ticker cache TTL as a time.Duration.
func (c *CacheTTLConfig) TickersTTL() time.Duration {
	return time.Duration(c.TickersSeconds) * time.Second
}

// BooksTTL returns the order book cache TTL as a time.Duration.
func (c *CacheTTLConfig) BooksTTL() time.Duration {
	return time.Duration(c.BooksSeconds) * time.Second
}

// RankingsTTL returns the ranking cache TTL as a time.Duration.
func (c *CacheTTLConfig) RankingsTTL() time.Duration {
	return time.Duration(c.RankingsSeconds) * time.Second
}

// MacroTTL returns the macro context cache TTL as a time.Duration.
func (c *CacheTTLConfig) MacroTTL() time.Duration {
	return time.Duration(c.MacroSeconds) * time.Second
}
