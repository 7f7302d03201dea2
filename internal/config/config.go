package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/hendrianz14/tripay-callback-service/internal/domain"
)

// Config holds all runtime configuration derived from environment variables.
type Config struct {
	HTTPPort               string
	DatabaseURL            string
	RedisURL               string
	TripayPrivateKey       string
	ReferencePrefix        string
	CreditPrice            decimal.Decimal
	CallbackTimeout        time.Duration
	SettledCacheTTL        time.Duration
	ReconciliationInterval time.Duration
	PublicRateLimitRPS     int
	JWTSecret              string
	JWTIssuer              string
	JWTAudience            string
	LogLevel               string
}

// Load reads environment variables using viper and returns a typed config.
// Missing store credentials are fatal; a missing Tripay private key is not —
// the verifier then fails closed on every callback.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	bindEnv(v, "port", "PORT", "TRIPAY_PORT")
	bindEnv(v, "database_url", "DATABASE_URL", "TRIPAY_DATABASE_URL")
	bindEnv(v, "redis_url", "REDIS_URL", "TRIPAY_REDIS_URL")
	bindEnv(v, "tripay_private_key", "TRIPAY_PRIVATE_KEY")
	bindEnv(v, "reference_prefix", "TOPUP_REFERENCE_PREFIX", "TRIPAY_REFERENCE_PREFIX")
	bindEnv(v, "credit_price", "TOPUP_CREDIT_PRICE", "TRIPAY_CREDIT_PRICE")
	bindEnv(v, "callback_timeout", "CALLBACK_TIMEOUT", "TRIPAY_CALLBACK_TIMEOUT")
	bindEnv(v, "settled_cache_ttl", "SETTLED_CACHE_TTL", "TRIPAY_SETTLED_CACHE_TTL")
	bindEnv(v, "reconciliation_interval", "RECONCILIATION_INTERVAL", "TRIPAY_RECONCILIATION_INTERVAL")
	bindEnv(v, "public_rate_limit_rps", "PUBLIC_RATE_LIMIT_RPS", "TRIPAY_PUBLIC_RATE_LIMIT_RPS")
	bindEnv(v, "jwt_secret", "JWT_SECRET", "TRIPAY_JWT_SECRET")
	bindEnv(v, "jwt_issuer", "JWT_ISSUER", "TRIPAY_JWT_ISSUER")
	bindEnv(v, "jwt_audience", "JWT_AUDIENCE", "TRIPAY_JWT_AUDIENCE")
	bindEnv(v, "log_level", "LOG_LEVEL", "TRIPAY_LOG_LEVEL")

	v.SetDefault("port", "8080")
	v.SetDefault("database_url", "")
	v.SetDefault("redis_url", "")
	v.SetDefault("tripay_private_key", "")
	v.SetDefault("reference_prefix", domain.ReferencePrefix)
	v.SetDefault("credit_price", domain.DefaultCreditPrice.String())
	v.SetDefault("callback_timeout", "10s")
	v.SetDefault("settled_cache_ttl", "24h")
	v.SetDefault("reconciliation_interval", "24h")
	v.SetDefault("public_rate_limit_rps", 50)
	v.SetDefault("jwt_secret", "")
	v.SetDefault("jwt_issuer", "tripay-callback-service")
	v.SetDefault("jwt_audience", "tripay-operator-api")
	v.SetDefault("log_level", "info")

	callbackTimeout, err := time.ParseDuration(v.GetString("callback_timeout"))
	if err != nil {
		return nil, fmt.Errorf("invalid CALLBACK_TIMEOUT: %w", err)
	}
	cacheTTL, err := time.ParseDuration(v.GetString("settled_cache_ttl"))
	if err != nil {
		return nil, fmt.Errorf("invalid SETTLED_CACHE_TTL: %w", err)
	}
	reconciliationInterval, err := time.ParseDuration(v.GetString("reconciliation_interval"))
	if err != nil {
		return nil, fmt.Errorf("invalid RECONCILIATION_INTERVAL: %w", err)
	}
	creditPrice, err := decimal.NewFromString(v.GetString("credit_price"))
	if err != nil {
		return nil, fmt.Errorf("invalid TOPUP_CREDIT_PRICE: %w", err)
	}
	if creditPrice.Sign() <= 0 {
		return nil, fmt.Errorf("TOPUP_CREDIT_PRICE must be positive")
	}

	cfg := &Config{
		HTTPPort:               v.GetString("port"),
		DatabaseURL:            v.GetString("database_url"),
		RedisURL:               v.GetString("redis_url"),
		TripayPrivateKey:       v.GetString("tripay_private_key"),
		ReferencePrefix:        v.GetString("reference_prefix"),
		CreditPrice:            creditPrice,
		CallbackTimeout:        callbackTimeout,
		SettledCacheTTL:        cacheTTL,
		ReconciliationInterval: reconciliationInterval,
		PublicRateLimitRPS:     max(v.GetInt("public_rate_limit_rps"), 1),
		JWTSecret:              v.GetString("jwt_secret"),
		JWTIssuer:              v.GetString("jwt_issuer"),
		JWTAudience:            v.GetString("jwt_audience"),
		LogLevel:               v.GetString("log_level"),
	}

	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if strings.TrimSpace(cfg.ReferencePrefix) == "" {
		return nil, fmt.Errorf("TOPUP_REFERENCE_PREFIX must not be empty")
	}

	return cfg, nil
}

func bindEnv(v *viper.Viper, key string, names ...string) {
	args := append([]string{key}, names...)
	_ = v.BindEnv(args...)
}
