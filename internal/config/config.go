package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "jwt-secret", "password",
}

type Config struct {
	Port          int    `env:"PORT" envDefault:"8080"`
	DatabaseURL   string `env:"DATABASE_URL,required,notEmpty"`
	RedisURL      string `env:"REDIS_URL,required,notEmpty"`
	JWTSecret     string `env:"JWT_SECRET,required,notEmpty"`
	EncryptionKey string `env:"ENCRYPTION_KEY"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	RunMigrations bool   `env:"RUN_MIGRATIONS" envDefault:"true"`

	MinBillableMinutes        int             `env:"MIN_BILLABLE_MINUTES" envDefault:"5"`
	DefaultCommissionFraction decimal.Decimal `env:"DEFAULT_COMMISSION_FRACTION" envDefault:"0.30"`

	SessionCreateLimit         int `env:"SESSION_CREATE_LIMIT" envDefault:"3"`
	SessionCreateWindowSeconds int `env:"SESSION_CREATE_WINDOW_SECONDS" envDefault:"3600"`
	PayoutRequestLimit         int `env:"PAYOUT_REQUEST_LIMIT" envDefault:"5"`
	PayoutRequestWindowSeconds int `env:"PAYOUT_REQUEST_WINDOW_SECONDS" envDefault:"3600"`

	APIRateLimitPerMin   int  `env:"API_RATE_LIMIT_PER_MIN" envDefault:"120"`
	APIRateLimitFailOpen bool `env:"API_RATE_LIMIT_FAIL_OPEN" envDefault:"true"`

	PendingSessionTTLSeconds int `env:"PENDING_SESSION_TTL_SECONDS" envDefault:"300"`
	RingingTTLSeconds        int `env:"RINGING_TTL_SECONDS" envDefault:"60"`

	WithdrawalMin decimal.Decimal `env:"WITHDRAWAL_MIN" envDefault:"100"`
	WithdrawalMax decimal.Decimal `env:"WITHDRAWAL_MAX" envDefault:"50000"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) SessionCreateWindow() time.Duration {
	return time.Duration(c.SessionCreateWindowSeconds) * time.Second
}

func (c *Config) PayoutRequestWindow() time.Duration {
	return time.Duration(c.PayoutRequestWindowSeconds) * time.Second
}

func (c *Config) PendingSessionTTL() time.Duration {
	return time.Duration(c.PendingSessionTTLSeconds) * time.Second
}

func (c *Config) RingingTTL() time.Duration {
	return time.Duration(c.RingingTTLSeconds) * time.Second
}

func (c *Config) Validate(isProduction bool) error {
	if c.MinBillableMinutes < 0 {
		return fmt.Errorf("MIN_BILLABLE_MINUTES must not be negative")
	}
	if c.DefaultCommissionFraction.IsNegative() || c.DefaultCommissionFraction.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("DEFAULT_COMMISSION_FRACTION must be between 0 and 1")
	}
	if !c.WithdrawalMin.IsPositive() {
		return fmt.Errorf("WITHDRAWAL_MIN must be greater than zero")
	}
	if c.WithdrawalMax.LessThan(c.WithdrawalMin) {
		return fmt.Errorf("WITHDRAWAL_MAX must not be below WITHDRAWAL_MIN")
	}
	if c.SessionCreateLimit <= 0 || c.PayoutRequestLimit <= 0 {
		return fmt.Errorf("SESSION_CREATE_LIMIT and PAYOUT_REQUEST_LIMIT must be positive")
	}
	if c.EncryptionKey != "" && len(c.EncryptionKey) != 64 {
		return fmt.Errorf("ENCRYPTION_KEY must be 32 bytes hex encoded (generate with: openssl rand -hex 32)")
	}

	if isProduction {
		if err := validateSecret("JWT_SECRET", c.JWTSecret); err != nil {
			return err
		}

		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
		if c.EncryptionKey == "" {
			log.Warn().Msg("ENCRYPTION_KEY is empty in production: payout account details will not be encrypted at rest")
		}
		if c.APIRateLimitFailOpen {
			log.Warn().Msg("API_RATE_LIMIT_FAIL_OPEN is enabled: the general API throttle allows requests when redis is down")
		}
	}

	return nil
}

func validateSecret(name, value string) error {
	if len(value) < 32 {
		return fmt.Errorf("%s must be at least 32 characters in production (generate with: openssl rand -base64 32)", name)
	}
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
		}
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
