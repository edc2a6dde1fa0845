package config

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ValidatorOptions contains options for configuration validation.
type ValidatorOptions struct {
	VerifyConnectivity bool // Check database/Redis connectivity
	VerifyAPIKeys      bool // Verify API keys with external services
	Timeout            time.Duration
}

// DefaultValidatorOptions returns default validator options for startup.
func DefaultValidatorOptions() ValidatorOptions {
	return ValidatorOptions{
		VerifyConnectivity: true,
		VerifyAPIKeys:      false, // Disabled by default; callers opt in by setting VerifyAPIKeys
		Timeout:            5 * time.Second,
	}
}

// Validator handles configuration validation at startup.
type Validator struct {
	config  *Config
	options ValidatorOptions
}

// NewValidator creates a new configuration validator.
func NewValidator(config *Config, options ValidatorOptions) *Validator {
	return &Validator{config: config, options: options}
}

// ValidateStartup performs comprehensive startup validation. Call before
// starting the trading loop.
func (v *Validator) ValidateStartup(ctx context.Context) error {
	log.Info().Msg("Validating configuration...")

	if err := v.validateProductionRequirements(); err != nil {
		return fmt.Errorf("production requirements validation failed: %w", err)
	}

	if err := v.validateEnvironmentVariables(); err != nil {
		return fmt.Errorf("environment variable validation failed: %w", err)
	}

	if err := v.validateAPIKeysPresence(); err != nil {
		return fmt.Errorf("API key validation failed: %w", err)
	}

	if v.options.VerifyConnectivity {
		if err := v.checkDatabaseConnectivity(ctx); err != nil {
			return fmt.Errorf("database connectivity check failed: %w", err)
		}
		if err := v.checkRedisConnectivity(ctx); err != nil {
			return fmt.Errorf("redis connectivity check failed: %w", err)
		}
	}

	if v.options.VerifyAPIKeys {
		if err := v.verifyAPIKeys(ctx); err != nil {
			return fmt.Errorf("API key verification failed: %w", err)
		}
	}

	log.Info().Msg("Configuration validation completed successfully")
	return nil
}

// validateProductionRequirements checks production-specific security requirements.
func (v *Validator) validateProductionRequirements() error {
	appEnv := strings.ToLower(os.Getenv("ENGINE_APP_ENVIRONMENT"))
	isProduction := appEnv == "production" || appEnv == "prod"

	if !isProduction {
		log.Info().Str("environment", appEnv).Msg("Non-production environment detected, skipping production requirements")
		return nil
	}

	log.Info().Msg("Production environment detected - enforcing production security requirements")

	var errors []string

	vaultEnabled := strings.ToLower(os.Getenv("VAULT_ENABLED"))
	if vaultEnabled != "true" && vaultEnabled != "1" {
		errors = append(errors, "Vault must be enabled in production (set VAULT_ENABLED=true)")
	}

	if vaultEnabled == "true" || vaultEnabled == "1" {
		vaultAddr := os.Getenv("VAULT_ADDR")
		if vaultAddr == "" {
			errors = append(errors, "VAULT_ADDR must be set when Vault is enabled")
		}

		vaultAuthMethod := os.Getenv("VAULT_AUTH_METHOD")
		if vaultAuthMethod == "" {
			errors = append(errors, "VAULT_AUTH_METHOD must be set when Vault is enabled (kubernetes, token, or approle)")
		}

		switch vaultAuthMethod {
		case "kubernetes":
			tokenPath := "/var/run/secrets/kubernetes.io/serviceaccount/token"
			if _, err := os.Stat(tokenPath); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Kubernetes service account token not found at %s", tokenPath))
			}
		case "token":
			if os.Getenv("VAULT_TOKEN") == "" {
				errors = append(errors, "VAULT_TOKEN must be set when using token auth method")
			}
		case "approle":
			roleID := os.Getenv("VAULT_ROLE_ID")
			secretID := os.Getenv("VAULT_SECRET_ID")
			if roleID == "" || secretID == "" {
				errors = append(errors, "VAULT_ROLE_ID and VAULT_SECRET_ID must be set when using approle auth method")
			}
		default:
			errors = append(errors, fmt.Sprintf("Unknown VAULT_AUTH_METHOD: %s (must be kubernetes, token, or approle)", vaultAuthMethod))
		}
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL != "" {
		if strings.Contains(databaseURL, "sslmode=disable") {
			errors = append(errors, "Database SSL cannot be disabled in production (sslmode=disable found in DATABASE_URL)")
		}
		if !strings.Contains(databaseURL, "sslmode=") {
			errors = append(errors, "Database SSL mode must be explicitly set in production (add sslmode=require to DATABASE_URL)")
		}
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL != "" && strings.HasPrefix(redisURL, "redis://") && !strings.HasPrefix(redisURL, "rediss://") {
		errors = append(errors, "Redis TLS must be enabled in production (use rediss:// instead of redis://)")
	}

	if v.config.Exchange.Simulated {
		errors = append(errors, "Exchange simulated mode must be disabled in production")
	}

	postgresPassword := os.Getenv("POSTGRES_PASSWORD")
	if postgresPassword != "" && isPlaceholderValue(postgresPassword) {
		errors = append(errors, "POSTGRES_PASSWORD cannot be a placeholder value in production")
	}

	grafanaPassword := os.Getenv("GRAFANA_ADMIN_PASSWORD")
	if grafanaPassword != "" && isPlaceholderValue(grafanaPassword) {
		errors = append(errors, "GRAFANA_ADMIN_PASSWORD cannot be a placeholder value in production")
	}

	if len(errors) > 0 {
		var errMsg strings.Builder
		errMsg.WriteString("\n==========================================================\n")
		errMsg.WriteString("PRODUCTION SECURITY REQUIREMENTS NOT MET\n")
		errMsg.WriteString("==========================================================\n\n")
		errMsg.WriteString("The following production security requirements must be addressed:\n\n")
		for i, err := range errors {
			errMsg.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err))
		}
		errMsg.WriteString("\nProduction deployment cannot proceed until these issues are resolved.\n")
		errMsg.WriteString("==========================================================\n")
		return fmt.Errorf("%s", errMsg.String())
	}

	log.Info().Msg("Production security requirements validated successfully")
	return nil
}

// validateEnvironmentVariables checks that required environment variables are set.
func (v *Validator) validateEnvironmentVariables() error {
	requiredVars := make(map[string]string)

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" && v.config.Database.Host == "" {
		requiredVars["DATABASE_HOST or DATABASE_URL"] = "Database host is not configured"
	}

	if v.config.Redis.Host == "" {
		requiredVars["REDIS_URL or REDIS_HOST"] = "Redis host is not configured"
	}

	if v.config.NATS.URL == "" {
		requiredVars["NATS_URL"] = "NATS URL is not configured"
	}

	if !v.config.Exchange.Simulated {
		if v.config.Exchange.APIKey == "" {
			requiredVars["EXCHANGE_API_KEY"] = "Exchange API key is required for live trading"
		}
		if v.config.Exchange.SecretKey == "" {
			requiredVars["EXCHANGE_SECRET_KEY"] = "Exchange API secret is required for live trading"
		}
		if v.config.Exchange.Passphrase == "" {
			requiredVars["EXCHANGE_PASSPHRASE"] = "Exchange passphrase is required for live trading"
		}
	}

	if len(requiredVars) > 0 {
		var errMsg strings.Builder
		errMsg.WriteString("Required environment variables are missing:\n\n")
		for varName, description := range requiredVars {
			errMsg.WriteString(fmt.Sprintf("  - %s: %s\n", varName, description))
		}
		errMsg.WriteString("\nPlease set these environment variables and try again.\n")
		return fmt.Errorf("%s", errMsg.String())
	}

	log.Info().Msg("Environment variables validation passed")
	return nil
}

// validateAPIKeysPresence checks that API keys are present and not placeholders.
func (v *Validator) validateAPIKeysPresence() error {
	var errors []string

	if !v.config.Exchange.Simulated {
		c := v.config.Exchange

		if c.APIKey == "" {
			errors = append(errors, "exchange API key is empty")
		} else if len(c.APIKey) < 16 {
			errors = append(errors, "exchange API key is too short (minimum 16 characters)")
		} else if isPlaceholderValue(c.APIKey) {
			errors = append(errors, "exchange API key appears to be a placeholder value")
		}

		if c.SecretKey == "" {
			errors = append(errors, "exchange API secret is empty")
		} else if len(c.SecretKey) < 16 {
			errors = append(errors, "exchange API secret is too short (minimum 16 characters)")
		} else if isPlaceholderValue(c.SecretKey) {
			errors = append(errors, "exchange API secret appears to be a placeholder value")
		}

		if c.Passphrase == "" {
			errors = append(errors, "exchange passphrase is empty")
		} else if isPlaceholderValue(c.Passphrase) {
			errors = append(errors, "exchange passphrase appears to be a placeholder value")
		}
	}

	if len(errors) > 0 {
		var errMsg strings.Builder
		errMsg.WriteString("API key validation failed:\n\n")
		for _, err := range errors {
			errMsg.WriteString(fmt.Sprintf("  - %s\n", err))
		}
		errMsg.WriteString("\nPlease provide valid API credentials and try again.\n")
		return fmt.Errorf("%s", errMsg.String())
	}

	log.Info().Msg("API key presence validation passed")
	return nil
}

// checkDatabaseConnectivity tests database connection with timeout.
func (v *Validator) checkDatabaseConnectivity(ctx context.Context) error {
	log.Info().Msg("Checking database connectivity...")

	connCtx, cancel := context.WithTimeout(ctx, v.options.Timeout)
	defer cancel()

	var connString string
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		connString = dbURL
	} else {
		connString = v.config.Database.GetDSN()
	}

	pool, err := pgxpool.New(connCtx, connString)
	if err != nil {
		return fmt.Errorf("failed to create database connection pool: %w\n\nPlease check:\n  - Database is running\n  - Connection details are correct\n  - Network connectivity is available", err)
	}
	defer pool.Close()

	if err := pool.Ping(connCtx); err != nil {
		return fmt.Errorf("failed to ping database: %w\n\nPlease check:\n  - Database is running and accepting connections\n  - Credentials are correct\n  - Network connectivity is available", err)
	}

	var dbName string
	if err := pool.QueryRow(connCtx, "SELECT current_database()").Scan(&dbName); err != nil {
		return fmt.Errorf("failed to verify database: %w", err)
	}

	log.Info().
		Str("database", dbName).
		Str("host", v.config.Database.Host).
		Int("port", v.config.Database.Port).
		Msg("Database connectivity check passed")

	return nil
}

// checkRedisConnectivity tests Redis connection with timeout.
func (v *Validator) checkRedisConnectivity(ctx context.Context) error {
	log.Info().Msg("Checking Redis connectivity...")

	connCtx, cancel := context.WithTimeout(ctx, v.options.Timeout)
	defer cancel()

	client := redis.NewClient(&redis.Options{
		Addr:     v.config.Redis.GetRedisAddr(),
		Password: v.config.Redis.Password,
		DB:       v.config.Redis.DB,
	})
	defer client.Close()

	if err := client.Ping(connCtx).Err(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w\n\nPlease check:\n  - Redis is running and accepting connections\n  - Connection details are correct\n  - Network connectivity is available", err)
	}

	log.Info().
		Str("addr", v.config.Redis.GetRedisAddr()).
		Int("db", v.config.Redis.DB).
		Msg("Redis connectivity check passed")

	return nil
}

// verifyAPIKeys tests the exchange API key with a lightweight, unauthenticated
// connectivity probe (dry run — it never exercises the order path).
func (v *Validator) verifyAPIKeys(ctx context.Context) error {
	log.Info().Msg("Verifying API keys (dry run)...")

	if v.config.Exchange.Simulated {
		log.Info().Msg("Exchange running in simulated mode, skipping API key verification")
		return nil
	}

	if v.config.Exchange.APIKey == "" || v.config.Exchange.SecretKey == "" {
		return nil
	}

	if err := v.verifyExchangeConnectivity(ctx); err != nil {
		return fmt.Errorf("exchange API connectivity verification failed: %w", err)
	}

	log.Info().Msg("Exchange API connectivity verified")
	return nil
}

// verifyExchangeConnectivity pings the exchange's public time endpoint to
// confirm the configured base URL is reachable before the engine starts
// placing orders against it.
func (v *Validator) verifyExchangeConnectivity(ctx context.Context) error {
	pingURL := strings.TrimRight(v.config.Exchange.BaseURL, "/") + "/api/v5/public/time"

	reqCtx, cancel := context.WithTimeout(ctx, v.options.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, pingURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach exchange API: %w (check network connectivity)", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("exchange API ping failed with status: %d", resp.StatusCode)
	}

	return nil
}

// isPlaceholderValue checks if a value is likely a placeholder.
func isPlaceholderValue(value string) bool {
	lowerValue := strings.ToLower(value)
	placeholders := []string{
		"your_api_key", "your_secret", "changeme", "placeholder", "example", "test", "sample", "demo",
	}

	for _, placeholder := range placeholders {
		if strings.Contains(lowerValue, placeholder) {
			return true
		}
	}

	return false
}
