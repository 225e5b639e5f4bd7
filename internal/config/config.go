package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Email sender modes.
const (
	SenderResend = "resend"
	SenderLog    = "log"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	LogLevel    string   `mapstructure:"LOG_LEVEL"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	EmailSender   string `mapstructure:"EMAIL_SENDER"`
	EmailFrom     string `mapstructure:"EMAIL_FROM"`
	ResendAPIKey  string `mapstructure:"RESEND_API_KEY"`
	ResendBaseURL string `mapstructure:"RESEND_BASE_URL"`

	ClearStaleInsurance bool          `mapstructure:"CLEAR_STALE_INSURANCE"`
	SessionTTL          time.Duration `mapstructure:"SESSION_TTL"`
	SweepInterval       time.Duration `mapstructure:"SWEEP_INTERVAL"`
	MaxBadgeBytes       int64         `mapstructure:"MAX_BADGE_BYTES"`

	BadgeBucket string `mapstructure:"BADGE_BUCKET"`
	BadgePrefix string `mapstructure:"BADGE_PREFIX"`
	AWSRegion   string `mapstructure:"AWS_REGION"`

	AdminJWTSecret string `mapstructure:"ADMIN_JWT_SECRET"`
	AdminJWTIssuer string `mapstructure:"ADMIN_JWT_ISSUER"`

	RateLimitRPS   float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int           `mapstructure:"RATE_LIMIT_BURST"`
	BodyLimit      string        `mapstructure:"BODY_LIMIT"`
	BadgeBodyLimit string        `mapstructure:"BADGE_BODY_LIMIT"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	SendTimeout    time.Duration `mapstructure:"SEND_TIMEOUT"`

	OTLPEndpoint    string  `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	TracingEnabled  bool    `mapstructure:"OTEL_ENABLED"`
	TraceSampleRate float64 `mapstructure:"OTEL_SAMPLE_RATE"`
}

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "CORS_ORIGINS",
	"EMAIL_SENDER", "EMAIL_FROM", "RESEND_API_KEY", "RESEND_BASE_URL",
	"CLEAR_STALE_INSURANCE", "SESSION_TTL", "SWEEP_INTERVAL", "MAX_BADGE_BYTES",
	"BADGE_BUCKET", "BADGE_PREFIX", "AWS_REGION",
	"ADMIN_JWT_SECRET", "ADMIN_JWT_ISSUER",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "BODY_LIMIT", "BADGE_BODY_LIMIT",
	"REQUEST_TIMEOUT", "SEND_TIMEOUT",
	"OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_ENABLED", "OTEL_SAMPLE_RATE",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 1)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("EMAIL_FROM", "Camp Adventure <onboarding@resend.dev>")
	v.SetDefault("RESEND_BASE_URL", "https://api.resend.com")
	v.SetDefault("CLEAR_STALE_INSURANCE", false)
	v.SetDefault("SESSION_TTL", "30m")
	v.SetDefault("SWEEP_INTERVAL", "1m")
	v.SetDefault("MAX_BADGE_BYTES", 5<<20)
	v.SetDefault("BADGE_PREFIX", "badges/")
	v.SetDefault("ADMIN_JWT_ISSUER", "camp-adventure")
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)
	v.SetDefault("BODY_LIMIT", "64K")
	v.SetDefault("BADGE_BODY_LIMIT", "8M")
	v.SetDefault("REQUEST_TIMEOUT", "15s")
	v.SetDefault("SEND_TIMEOUT", "20s")
	v.SetDefault("OTEL_ENABLED", true)
	v.SetDefault("OTEL_SAMPLE_RATE", 1.0)

	// Unmarshal only sees env vars that are bound.
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// .env is optional.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// A comma separated env value arrives as a single element.
	if len(cfg.CORSOrigins) <= 1 {
		cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// ResolvedEmailSender returns the effective sender. If EMAIL_SENDER is set it
// wins. Otherwise development logs emails and everything else uses Resend.
func (c *Config) ResolvedEmailSender() string {
	if c.EmailSender != "" {
		return strings.ToLower(c.EmailSender)
	}
	if c.IsDev() {
		return SenderLog
	}
	return SenderResend
}

// UsesPostgres reports whether completed registrations go to PostgreSQL.
func (c *Config) UsesPostgres() bool { return c.DatabaseURL != "" }

// UsesS3 reports whether badges are archived to S3.
func (c *Config) UsesS3() bool { return c.BadgeBucket != "" }

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	switch c.ResolvedEmailSender() {
	case SenderLog:
		if c.IsProduction() {
			return fmt.Errorf("EMAIL_SENDER=log is not allowed in production")
		}
	case SenderResend:
		if c.ResendAPIKey == "" {
			return fmt.Errorf("RESEND_API_KEY is required when EMAIL_SENDER is %q", SenderResend)
		}
	default:
		return fmt.Errorf("EMAIL_SENDER must be %q or %q, got %q", SenderResend, SenderLog, c.EmailSender)
	}

	if c.IsProduction() && len(c.AdminJWTSecret) < 32 {
		return fmt.Errorf("ADMIN_JWT_SECRET must be at least 32 characters in production")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL)
	}
	if c.MaxBadgeBytes <= 0 {
		return fmt.Errorf("MAX_BADGE_BYTES must be positive, got %d", c.MaxBadgeBytes)
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.TraceSampleRate < 0 || c.TraceSampleRate > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0 and 1, got %g", c.TraceSampleRate)
	}
	return nil
}
