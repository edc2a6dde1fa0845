// Package config provides configuration management for the spot-trading engine.
// This file centralizes all port constants to avoid duplication and ensure consistency.
package config

// ============================================================================
// CENTRALIZED PORT CONFIGURATION
// ============================================================================
//
// Port Allocation Strategy:
//   Infrastructure services keep their upstream defaults (Vault 8200,
//   PostgreSQL 5432, Redis 6379, NATS 4222).
//   The engine's own metrics endpoint uses 9100; Prometheus, Grafana and
//   the NATS exporter keep their upstream defaults (9090, 3000, 7777).
//
// ============================================================================

// Infrastructure Service Ports
const (
	// VaultPort is the default port for HashiCorp Vault.
	VaultPort = 8200

	// PostgresPort is the default port for PostgreSQL.
	PostgresPort = 5432

	// RedisPort is the default port for Redis.
	RedisPort = 6379

	// NATSPort is the default port for NATS messaging.
	NATSPort = 4222
)

// Monitoring Service Ports
const (
	// MetricsPort is the engine's own /metrics and /health port.
	MetricsPort = 9100

	// PrometheusPort is the default port for Prometheus.
	PrometheusPort = 9090

	// GrafanaPort is the default port for Grafana.
	GrafanaPort = 3000

	// NATSExporterPort is the port for the NATS Prometheus exporter.
	NATSExporterPort = 7777
)
