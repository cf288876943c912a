package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "admin", "password",
}

type Config struct {
	Environment             string `env:"APP_ENV" envDefault:"development"`
	Port                    int    `env:"PORT" envDefault:"8080"`
	DatabaseURL             string `env:"DATABASE_URL,required"`
	RedisURL                string `env:"REDIS_URL,required"`
	SessionSecret           string `env:"SESSION_SECRET" envDefault:"dev-secret-change-me"`
	ServiceAPIKey           string `env:"SERVICE_API_KEY"`
	CredentialCheckURL      string `env:"CREDENTIAL_CHECK_URL"`
	PortalBaseURL           string `env:"PORTAL_BASE_URL" envDefault:"http://localhost:3000/portal"`
	SessionTTLSeconds       int    `env:"SESSION_TTL_SECONDS" envDefault:"86400"`
	MagicLinkTTLSeconds     int    `env:"MAGIC_LINK_TTL_SECONDS" envDefault:"900"`
	MagicLinkSingleUse      bool   `env:"MAGIC_LINK_SINGLE_USE" envDefault:"false"`
	ConfirmationTTLSeconds  int    `env:"CONFIRMATION_TTL_SECONDS" envDefault:"86400"`
	InvitationTTLSeconds    int    `env:"INVITATION_TTL_SECONDS" envDefault:"259200"`
	SessionRetentionSeconds int    `env:"SESSION_RETENTION_SECONDS" envDefault:"604800"`
	LoginRateLimitPerMin    int    `env:"LOGIN_RATE_LIMIT_PER_MIN" envDefault:"10"`
	MagicLinkRateLimitPerHr int    `env:"MAGIC_LINK_RATE_LIMIT_PER_HOUR" envDefault:"5"`
	LogLevel                string `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLSeconds) * time.Second
}

func (c *Config) MagicLinkTTL() time.Duration {
	return time.Duration(c.MagicLinkTTLSeconds) * time.Second
}

func (c *Config) ConfirmationTTL() time.Duration {
	return time.Duration(c.ConfirmationTTLSeconds) * time.Second
}

func (c *Config) InvitationTTL() time.Duration {
	return time.Duration(c.InvitationTTLSeconds) * time.Second
}

func (c *Config) SessionRetention() time.Duration {
	return time.Duration(c.SessionRetentionSeconds) * time.Second
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Validate(isProduction bool) error {
	if c.SessionTTLSeconds <= 0 || c.MagicLinkTTLSeconds <= 0 {
		return fmt.Errorf("SESSION_TTL_SECONDS and MAGIC_LINK_TTL_SECONDS must be positive")
	}
	if c.MagicLinkTTLSeconds > c.SessionTTLSeconds {
		return fmt.Errorf("MAGIC_LINK_TTL_SECONDS must not exceed SESSION_TTL_SECONDS")
	}

	if isProduction {
		if err := validateSecret("SESSION_SECRET", c.SessionSecret); err != nil {
			return err
		}
		if err := validateSecret("SERVICE_API_KEY", c.ServiceAPIKey); err != nil {
			return err
		}
		if c.CredentialCheckURL == "" {
			return fmt.Errorf("CREDENTIAL_CHECK_URL is required in production")
		}

		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
		if c.MagicLinkSingleUse {
			log.Info().Msg("magic links are single-use")
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
