//nolint:goconst // Test files use repeated strings for clarity
package config

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// getValidConfig returns a valid configuration for testing.
func getValidConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "spotengine",
			Version:     "1.0.0",
			Environment: "development",
			LogLevel:    "info",
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			Password: "secure_password",
			Database: "spotengine",
			SSLMode:  "disable",
			PoolSize: 10,
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: 6379,
			DB:   0,
		},
		NATS: NATSConfig{
			URL:             "nats://localhost:4222",
			EnableJetStream: true,
		},
		Engine: EngineConfig{
			PollingIntervalSeconds:      30,
			MaxConcurrentPositions:      10,
			MinQuoteVolumeUSD:           40_000_000,
			TopNAnalyzed:                15,
			MinLiquidity:                0.30,
			ReconcileMinIntervalSeconds: 60,
			OCOSettlementWaitSeconds:    1,
			Quote:                       "USDT",
			StateFilePath:               "./data/positions.json",
			CacheTTL: CacheTTLConfig{
				TickersSeconds:  15,
				BooksSeconds:    10,
				RankingsSeconds: 300,
				MacroSeconds:    3600,
			},
		},
		Risk: RiskConfig{
			MaxPositionSize:   0.1,
			MaxDailyLoss:      0.02,
			MaxDrawdown:       0.1,
			DefaultStopLoss:   0.02,
			DefaultTakeProfit: 0.05,
			MinConfidence:     0.7,
		},
		Exchange: ExchangeConfig{
			APIKey:     "test_api_key",
			SecretKey:  "test_secret_key",
			Passphrase: "test_passphrase",
			Simulated:  true,
			BaseURL:    "https://www.okx.com",
		},
		Monitoring: MonitoringConfig{
			PrometheusPort: 9100,
			EnableMetrics:  true,
		},
	}
}

func TestValidateValidConfig(t *testing.T) {
	cfg := getValidConfig()
	err := cfg.Validate()
	assert.NoError(t, err, "Valid configuration should not produce errors")
}

func TestValidateApp(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(*Config)
		expectError string
	}{
		{"missing app name", func(c *Config) { c.App.Name = "" }, "app.name"},
		{"missing environment", func(c *Config) { c.App.Environment = "" }, "app.environment"},
		{"invalid environment", func(c *Config) { c.App.Environment = "invalid_env" }, "Invalid environment"},
		{"missing log level", func(c *Config) { c.App.LogLevel = "" }, "app.log_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := getValidConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestValidateDatabase(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(*Config)
		expectError string
	}{
		{"missing host", func(c *Config) { c.Database.Host = "" }, "database.host"},
		{"missing port", func(c *Config) { c.Database.Port = 0 }, "database.port"},
		{"invalid port - too high", func(c *Config) { c.Database.Port = 70000 }, "Invalid port"},
		{"invalid port - negative", func(c *Config) { c.Database.Port = -1 }, "Invalid port"},
		{"missing user", func(c *Config) { c.Database.User = "" }, "database.user"},
		{"missing database name", func(c *Config) { c.Database.Database = "" }, "database.database"},
		{"missing password in production", func(c *Config) {
			c.App.Environment = "production"
			c.Database.Password = ""
			c.Exchange.Simulated = false
			c.Database.SSLMode = "require"
		}, "password is required"},
		{"invalid pool size", func(c *Config) { c.Database.PoolSize = 0 }, "pool size must be at least 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := getValidConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestValidateRedis(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(*Config)
		expectError string
	}{
		{"missing host", func(c *Config) { c.Redis.Host = "" }, "redis.host"},
		{"missing port", func(c *Config) { c.Redis.Port = 0 }, "redis.port"},
		{"invalid port", func(c *Config) { c.Redis.Port = 70000 }, "Invalid port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := getValidConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestValidateNATS(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(*Config)
		expectError string
	}{
		{"missing URL", func(c *Config) { c.NATS.URL = "" }, "nats.url"},
		{"invalid URL format", func(c *Config) { c.NATS.URL = "http://localhost:4222" }, "must start with 'nats://'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := getValidConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestValidateEngine(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(*Config)
		expectError string
	}{
		{"invalid polling interval", func(c *Config) { c.Engine.PollingIntervalSeconds = 0 }, "Polling interval"},
		{"invalid max concurrent positions", func(c *Config) { c.Engine.MaxConcurrentPositions = 0 }, "Max concurrent positions"},
		{"negative min quote volume", func(c *Config) { c.Engine.MinQuoteVolumeUSD = -1 }, "min quote volume"},
		{"invalid top n analyzed", func(c *Config) { c.Engine.TopNAnalyzed = 0 }, "top_n_analyzed"},
		{"invalid min liquidity - too high", func(c *Config) { c.Engine.MinLiquidity = 1.5 }, "Invalid min_liquidity"},
		{"invalid min liquidity - negative", func(c *Config) { c.Engine.MinLiquidity = -0.1 }, "Invalid min_liquidity"},
		{"invalid reconcile interval", func(c *Config) { c.Engine.ReconcileMinIntervalSeconds = 0 }, "Reconcile interval"},
		{"negative OCO wait", func(c *Config) { c.Engine.OCOSettlementWaitSeconds = -1 }, "OCO settlement wait"},
		{"missing quote", func(c *Config) { c.Engine.Quote = "" }, "Quote asset"},
		{"missing state file path", func(c *Config) { c.Engine.StateFilePath = "" }, "state file path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := getValidConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestValidateRisk(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(*Config)
		expectError string
	}{
		{"invalid max_position_size - too low", func(c *Config) { c.Risk.MaxPositionSize = 0 }, "Invalid max_position_size"},
		{"invalid max_position_size - too high", func(c *Config) { c.Risk.MaxPositionSize = 1.5 }, "Invalid max_position_size"},
		{"invalid max_daily_loss - too low", func(c *Config) { c.Risk.MaxDailyLoss = 0 }, "Invalid max_daily_loss"},
		{"invalid max_daily_loss - too high", func(c *Config) { c.Risk.MaxDailyLoss = 1.5 }, "Invalid max_daily_loss"},
		{"invalid max_drawdown - too low", func(c *Config) { c.Risk.MaxDrawdown = 0 }, "Invalid max_drawdown"},
		{"invalid max_drawdown - too high", func(c *Config) { c.Risk.MaxDrawdown = 1.5 }, "Invalid max_drawdown"},
		{"invalid min_confidence - too low", func(c *Config) { c.Risk.MinConfidence = -0.1 }, "Invalid min_confidence"},
		{"invalid min_confidence - too high", func(c *Config) { c.Risk.MinConfidence = 1.5 }, "Invalid min_confidence"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := getValidConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestValidateExchange(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(*Config)
		expectError string
	}{
		{"missing base URL", func(c *Config) { c.Exchange.BaseURL = "" }, "base URL is required"},
		{"missing API key in live mode", func(c *Config) {
			c.Exchange.Simulated = false
			c.Exchange.APIKey = ""
		}, "API key is required for live trading"},
		{"missing secret key in live mode", func(c *Config) {
			c.Exchange.Simulated = false
			c.Exchange.SecretKey = ""
		}, "Secret key is required for live trading"},
		{"missing passphrase in live mode", func(c *Config) {
			c.Exchange.Simulated = false
			c.Exchange.Passphrase = ""
		}, "Passphrase is required for live trading"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := getValidConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestValidateEnvironmentRequirements(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(*Config)
		expectError string
	}{
		{
			name: "simulated mode enabled in production",
			modify: func(c *Config) {
				c.App.Environment = "production"
				c.Database.SSLMode = "require"
				c.Exchange.Simulated = true
			},
			expectError: "Simulated mode must be disabled in production",
		},
		{
			name: "SSL disabled in production",
			modify: func(c *Config) {
				c.App.Environment = "production"
				c.Exchange.Simulated = false
				c.Database.SSLMode = "disable"
			},
			expectError: "SSL must be enabled for database in production",
		},
		{
			name: "DATABASE_URL missing in production with incomplete config",
			modify: func(c *Config) {
				c.App.Environment = "production"
				c.Exchange.Simulated = false
				c.Database.SSLMode = "require"
				c.Database.Host = ""
				_ = os.Unsetenv("DATABASE_URL") // Test env cleanup
			},
			expectError: "DATABASE_URL is required in production",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := getValidConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestValidationErrors_Error(t *testing.T) {
	errors := ValidationErrors{
		{Field: "field1", Message: "error message 1"},
		{Field: "field2", Message: "error message 2"},
		{Field: "field3", Message: "error message 3"},
	}

	errMsg := errors.Error()

	assert.Contains(t, errMsg, "Configuration validation failed with 3 error(s)")
	assert.Contains(t, errMsg, "1. field1: error message 1")
	assert.Contains(t, errMsg, "2. field2: error message 2")
	assert.Contains(t, errMsg, "3. field3: error message 3")
	assert.Contains(t, errMsg, "Please fix the above errors and try again")
}

func TestValidationErrors_Empty(t *testing.T) {
	errors := ValidationErrors{}
	assert.Equal(t, "", errors.Error())
}

func TestValidateAndLoad(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "config-*.yaml")
	require.NoError(t, err)
	defer func() { _ = os.Remove(tmpfile.Name()) }() // Test cleanup

	invalidConfig := `
app:
  name: ""
  environment: "development"
  log_level: "info"
engine:
  top_n_analyzed: 0
`
	_, err = tmpfile.WriteString(invalidConfig)
	require.NoError(t, err)
	_ = tmpfile.Close() // Test cleanup

	_, err = Load(tmpfile.Name())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "app.name") || strings.Contains(err.Error(), "top_n_analyzed"))
}
