package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	JWT         JWTConfig
	Encryption  EncryptionConfig
	Aggregator  AggregatorConfig
	PaymentRail PaymentRailConfig
	Reconcile   ReconcileConfig
	TLS         TLSConfig
	Telemetry   TelemetryConfig
	Log         LogConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	AllowedHosts []string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type JWTConfig struct {
	Secret string
}

type EncryptionConfig struct {
	// TokenKey encrypts aggregator access tokens at rest.
	TokenKey string
	// HandleKey keys the public-handle codec.
	HandleKey string
}

type AggregatorConfig struct {
	BaseURL       string
	ClientID      string
	Secret        string
	Timeout       time.Duration
	RetryAttempts int
	SyncMaxPages  int
}

type PaymentRailConfig struct {
	BaseURL string
	Key     string
	Secret  string
	Timeout time.Duration
}

type ReconcileConfig struct {
	MaxConcurrency int
}

type TLSConfig struct {
	Enabled      bool
	CertPath     string
	KeyPath      string
	RedirectHTTP bool
}

type TelemetryConfig struct {
	Enabled      bool
	ServiceName  string
	Environment  string
	OTLPEndpoint string
	MetricsPort  string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	aggTimeout, err := time.ParseDuration(getEnv("AGGREGATOR_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid AGGREGATOR_TIMEOUT: %w", err)
	}
	aggRetries, err := strconv.Atoi(getEnv("AGGREGATOR_RETRY_ATTEMPTS", "3"))
	if err != nil {
		return nil, fmt.Errorf("invalid AGGREGATOR_RETRY_ATTEMPTS: %w", err)
	}
	aggMaxPages, err := strconv.Atoi(getEnv("AGGREGATOR_SYNC_MAX_PAGES", "250"))
	if err != nil {
		return nil, fmt.Errorf("invalid AGGREGATOR_SYNC_MAX_PAGES: %w", err)
	}

	railTimeout, err := time.ParseDuration(getEnv("PAYMENT_RAIL_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid PAYMENT_RAIL_TIMEOUT: %w", err)
	}

	maxConcurrency, err := strconv.Atoi(getEnv("RECONCILE_MAX_CONCURRENCY", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid RECONCILE_MAX_CONCURRENCY: %w", err)
	}

	// Parse allowed hosts (comma-separated list)
	allowedHostsStr := getEnv("ALLOWED_HOSTS", "")
	var allowedHosts []string
	if allowedHostsStr != "" {
		for _, host := range strings.Split(allowedHostsStr, ",") {
			host = strings.TrimSpace(host)
			if host != "" {
				allowedHosts = append(allowedHosts, host)
			}
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			Host:         getEnv("HOST", "0.0.0.0"),
			AllowedHosts: allowedHosts,
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "horizon"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "horizon"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", ""),
		},
		Encryption: EncryptionConfig{
			TokenKey:  getEnv("ENCRYPTION_KEY", ""),
			HandleKey: getEnv("HANDLE_KEY", ""),
		},
		Aggregator: AggregatorConfig{
			BaseURL:       getEnv("AGGREGATOR_BASE_URL", "https://sandbox.plaid.com"),
			ClientID:      getEnv("AGGREGATOR_CLIENT_ID", ""),
			Secret:        getEnv("AGGREGATOR_SECRET", ""),
			Timeout:       aggTimeout,
			RetryAttempts: aggRetries,
			SyncMaxPages:  aggMaxPages,
		},
		PaymentRail: PaymentRailConfig{
			BaseURL: getEnv("PAYMENT_RAIL_BASE_URL", "https://api-sandbox.dwolla.com"),
			Key:     getEnv("PAYMENT_RAIL_KEY", ""),
			Secret:  getEnv("PAYMENT_RAIL_SECRET", ""),
			Timeout: railTimeout,
		},
		Reconcile: ReconcileConfig{
			MaxConcurrency: maxConcurrency,
		},
		TLS: TLSConfig{
			Enabled:      getBoolEnv("TLS_ENABLED", false),
			CertPath:     getEnv("TLS_CERT_PATH", ""),
			KeyPath:      getEnv("TLS_KEY_PATH", ""),
			RedirectHTTP: getBoolEnv("TLS_REDIRECT_HTTP", false),
		},
		Telemetry: TelemetryConfig{
			Enabled:      getBoolEnv("OTEL_ENABLED", false),
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "horizon-api"),
			Environment:  getEnv("ENVIRONMENT", "development"),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_ENDPOINT", "localhost:4317"),
			MetricsPort:  getEnv("METRICS_PORT", "9090"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	// Validate required fields
	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.Encryption.TokenKey == "" {
		return nil, fmt.Errorf("ENCRYPTION_KEY is required")
	}
	if len(cfg.Encryption.TokenKey) != 32 {
		return nil, fmt.Errorf("ENCRYPTION_KEY must be exactly 32 bytes for AES-256")
	}
	if cfg.Encryption.HandleKey == "" {
		// Handles must stay decodable across restarts, so the key is not derived
		// from the token key implicitly unless configured that way on purpose.
		cfg.Encryption.HandleKey = cfg.Encryption.TokenKey
	}
	if len(cfg.Encryption.HandleKey) != 32 {
		return nil, fmt.Errorf("HANDLE_KEY must be exactly 32 bytes")
	}
	if cfg.Aggregator.SyncMaxPages <= 0 {
		return nil, fmt.Errorf("AGGREGATOR_SYNC_MAX_PAGES must be positive")
	}
	if cfg.Reconcile.MaxConcurrency <= 0 {
		return nil, fmt.Errorf("RECONCILE_MAX_CONCURRENCY must be positive")
	}

	// Validate TLS configuration
	if cfg.TLS.Enabled {
		if cfg.TLS.CertPath == "" {
			return nil, fmt.Errorf("TLS_CERT_PATH is required when TLS_ENABLED=true")
		}
		if cfg.TLS.KeyPath == "" {
			return nil, fmt.Errorf("TLS_KEY_PATH is required when TLS_ENABLED=true")
		}
	}

	return cfg, nil
}

func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	// Accept: true, false, 1, 0, yes, no (case-insensitive)
	switch strings.ToLower(value) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultValue
	}
}
