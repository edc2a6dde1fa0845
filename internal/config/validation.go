package config

import (
	"fmt"
	"os"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Configuration validation failed with %d error(s):\n\n", len(ve)))
	for i, err := range ve {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	sb.WriteString("\nPlease fix the above errors and try again.\n")
	return sb.String()
}

// Validate performs comprehensive configuration validation.
func (c *Config) Validate() error {
	var errors ValidationErrors

	errors = append(errors, c.validateApp()...)
	errors = append(errors, c.validateDatabase()...)
	errors = append(errors, c.validateRedis()...)
	errors = append(errors, c.validateNATS()...)
	errors = append(errors, c.validateEngine()...)
	errors = append(errors, c.validateRisk()...)
	errors = append(errors, c.validateExchange()...)
	errors = append(errors, c.validateEnvironmentRequirements()...)

	if len(errors) > 0 {
		return errors
	}

	return nil
}

func (c *Config) validateApp() ValidationErrors {
	var errors ValidationErrors

	if c.App.Name == "" {
		errors = append(errors, ValidationError{Field: "app.name", Message: "Application name is required"})
	}

	if c.App.Environment == "" {
		errors = append(errors, ValidationError{Field: "app.environment", Message: "Environment is required (development, staging, or production)"})
	} else {
		validEnvs := []string{"development", "staging", "production"}
		valid := false
		for _, env := range validEnvs {
			if c.App.Environment == env {
				valid = true
				break
			}
		}
		if !valid {
			errors = append(errors, ValidationError{
				Field:   "app.environment",
				Message: fmt.Sprintf("Invalid environment '%s'. Must be one of: %v", c.App.Environment, validEnvs),
			})
		}
	}

	if c.App.LogLevel == "" {
		errors = append(errors, ValidationError{Field: "app.log_level", Message: "Log level is required (debug, info, warn, error)"})
	}

	return errors
}

func (c *Config) validateDatabase() ValidationErrors {
	var errors ValidationErrors

	if c.Database.Host == "" {
		errors = append(errors, ValidationError{Field: "database.host", Message: "Database host is required"})
	}

	if c.Database.Port == 0 {
		errors = append(errors, ValidationError{Field: "database.port", Message: "Database port is required"})
	} else if c.Database.Port < 1 || c.Database.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "database.port",
			Message: fmt.Sprintf("Invalid port %d. Must be between 1-65535", c.Database.Port),
		})
	}

	if c.Database.User == "" {
		errors = append(errors, ValidationError{Field: "database.user", Message: "Database user is required"})
	}

	if c.Database.Database == "" {
		errors = append(errors, ValidationError{Field: "database.database", Message: "Database name is required"})
	}

	if c.Database.Password == "" && c.App.Environment != "development" {
		errors = append(errors, ValidationError{
			Field:   "database.password",
			Message: "Database password is required in non-development environments",
		})
	}

	if c.Database.PoolSize < 1 {
		errors = append(errors, ValidationError{Field: "database.pool_size", Message: "Database pool size must be at least 1"})
	}

	return errors
}

func (c *Config) validateRedis() ValidationErrors {
	var errors ValidationErrors

	if c.Redis.Host == "" {
		errors = append(errors, ValidationError{Field: "redis.host", Message: "Redis host is required"})
	}

	if c.Redis.Port == 0 {
		errors = append(errors, ValidationError{Field: "redis.port", Message: "Redis port is required"})
	} else if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "redis.port",
			Message: fmt.Sprintf("Invalid port %d. Must be between 1-65535", c.Redis.Port),
		})
	}

	return errors
}

func (c *Config) validateNATS() ValidationErrors {
	var errors ValidationErrors

	if c.NATS.URL == "" {
		errors = append(errors, ValidationError{Field: "nats.url", Message: "NATS URL is required"})
	} else if !strings.HasPrefix(c.NATS.URL, "nats://") {
		errors = append(errors, ValidationError{Field: "nats.url", Message: "NATS URL must start with 'nats://'"})
	}

	return errors
}

func (c *Config) validateEngine() ValidationErrors {
	var errors ValidationErrors

	if c.Engine.PollingIntervalSeconds < 1 {
		errors = append(errors, ValidationError{Field: "engine.polling_interval_seconds", Message: "Polling interval must be at least 1 second"})
	}

	if c.Engine.MaxConcurrentPositions < 1 {
		errors = append(errors, ValidationError{Field: "engine.max_concurrent_positions", Message: "Max concurrent positions must be at least 1"})
	}

	if c.Engine.MinQuoteVolumeUSD < 0 {
		errors = append(errors, ValidationError{Field: "engine.min_quote_volume_usd", Message: "Min quote volume must be non-negative"})
	}

	if c.Engine.TopNAnalyzed < 1 {
		errors = append(errors, ValidationError{Field: "engine.top_n_analyzed", Message: "top_n_analyzed must be at least 1"})
	}

	if c.Engine.MinLiquidity < 0 || c.Engine.MinLiquidity > 1 {
		errors = append(errors, ValidationError{
			Field:   "engine.min_liquidity",
			Message: fmt.Sprintf("Invalid min_liquidity %.2f. Must be between 0-1", c.Engine.MinLiquidity),
		})
	}

	if c.Engine.ReconcileMinIntervalSeconds < 1 {
		errors = append(errors, ValidationError{Field: "engine.reconcile_min_interval_seconds", Message: "Reconcile interval must be at least 1 second"})
	}

	if c.Engine.OCOSettlementWaitSeconds < 0 {
		errors = append(errors, ValidationError{Field: "engine.oco_settlement_wait_seconds", Message: "OCO settlement wait must be non-negative"})
	}

	if c.Engine.Quote == "" {
		errors = append(errors, ValidationError{Field: "engine.quote", Message: "Quote asset is required"})
	}

	if c.Engine.StateFilePath == "" {
		errors = append(errors, ValidationError{Field: "engine.state_file_path", Message: "Position state file path is required"})
	}

	return errors
}

func (c *Config) validateRisk() ValidationErrors {
	var errors ValidationErrors

	if c.Risk.MaxPositionSize <= 0 || c.Risk.MaxPositionSize > 1 {
		errors = append(errors, ValidationError{
			Field:   "risk.max_position_size",
			Message: fmt.Sprintf("Invalid max_position_size %.2f. Must be between 0-1 (representing percentage)", c.Risk.MaxPositionSize),
		})
	}

	if c.Risk.MaxDailyLoss <= 0 || c.Risk.MaxDailyLoss > 1 {
		errors = append(errors, ValidationError{
			Field:   "risk.max_daily_loss",
			Message: fmt.Sprintf("Invalid max_daily_loss %.2f. Must be between 0-1", c.Risk.MaxDailyLoss),
		})
	}

	if c.Risk.MaxDrawdown <= 0 || c.Risk.MaxDrawdown > 1 {
		errors = append(errors, ValidationError{
			Field:   "risk.max_drawdown",
			Message: fmt.Sprintf("Invalid max_drawdown %.2f. Must be between 0-1", c.Risk.MaxDrawdown),
		})
	}

	if c.Risk.MinConfidence < 0 || c.Risk.MinConfidence > 1 {
		errors = append(errors, ValidationError{
			Field:   "risk.min_confidence",
			Message: fmt.Sprintf("Invalid min_confidence %.2f. Must be between 0-1", c.Risk.MinConfidence),
		})
	}

	return errors
}

func (c *Config) validateExchange() ValidationErrors {
	var errors ValidationErrors

	if c.Exchange.BaseURL == "" {
		errors = append(errors, ValidationError{Field: "exchange.base_url", Message: "Exchange base URL is required"})
	}

	if !c.Exchange.Simulated {
		if c.Exchange.APIKey == "" {
			errors = append(errors, ValidationError{Field: "exchange.api_key", Message: "API key is required for live trading"})
		}
		if c.Exchange.SecretKey == "" {
			errors = append(errors, ValidationError{Field: "exchange.secret_key", Message: "Secret key is required for live trading"})
		}
		if c.Exchange.Passphrase == "" {
			errors = append(errors, ValidationError{Field: "exchange.passphrase", Message: "Passphrase is required for live trading"})
		}
	}

	return errors
}

func (c *Config) validateEnvironmentRequirements() ValidationErrors {
	var errors ValidationErrors

	if c.App.Environment == "production" {
		secretErrors := ValidateProductionSecrets(c)
		errors = append(errors, secretErrors...)

		if c.Exchange.Simulated {
			errors = append(errors, ValidationError{Field: "exchange.simulated", Message: "Simulated mode must be disabled in production"})
		}

		if c.Database.SSLMode == "disable" {
			errors = append(errors, ValidationError{Field: "database.ssl_mode", Message: "SSL must be enabled for database in production"})
		}
	}

	criticalEnvVars := []string{"DATABASE_URL"}

	for _, envVar := range criticalEnvVars {
		if os.Getenv(envVar) == "" && c.App.Environment == "production" {
			if envVar == "DATABASE_URL" && c.Database.Host != "" && c.Database.Database != "" {
				continue // Config is complete, no need for DATABASE_URL
			}

			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("env.%s", envVar),
				Message: fmt.Sprintf("Environment variable %s is required in production", envVar),
			})
		}
	}

	return errors
}

// ValidateAndLoad loads and validates configuration. configPath can be empty
// to use default config locations.
func ValidateAndLoad(configPath string) (*Config, error) {
	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
