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
	ServerRequestTimeout  = 30 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerWriteTimeout    = 30 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Background job intervals
const CleanupJobInterval = 15 * time.Minute

// Outbound calls
const (
	CredentialCheckTimeout = 5 * time.Second
	NotifyDispatchTimeout  = 10 * time.Second
)

// Session defaults, overridable via env
const (
	DefaultSessionTTL   = 24 * time.Hour
	DefaultMagicLinkTTL = 15 * time.Minute
)
