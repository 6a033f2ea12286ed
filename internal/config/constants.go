package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Background job intervals
const SessionExpiryInterval = 30 * time.Second

// Rate limiting
const (
	APIRateLimitWindow  = time.Minute
	ViolationTTL        = 24 * time.Hour
	ViolationLevelOneAt = 3
	ViolationLevelTwoAt = 6
	RateLimitKeyPrefix  = "ratelimit:"
	ViolationsKeySuffix = ":violations"
	SessionCreateAction = "session_create"
	PayoutRequestAction = "payout_request"
	APIRequestAction    = "api"
)

// Money
const CurrencyDecimals = 2
