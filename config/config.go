package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"invoicepay-backend/logger"
)

type Config struct {
	// HTTP
	Port           string
	AllowedOrigins string
	BodyLimitBytes int

	// Database
	DBDriver    string // postgres, sqlite
	DatabaseURL string
	DBHost      string
	DBPort      int
	DBUser      string
	DBPassword  string
	DBName      string
	SQLitePath  string

	// Auth (Supabase-compatible HS256 bearer tokens)
	JWTSecret     string
	AllowedRoles  []string
	AdminEmail    string
	AdminPassword string

	// Rate limiting
	RateLimitMax    int
	RateLimitWindow time.Duration
	RateLimitStore  string // memory, database

	// Payments
	Currency            string
	GatewayTimeout      time.Duration
	StripeSecretKey     string
	StripeWebhookSecret string
	PayPalClientID      string
	PayPalClientSecret  string
	PayPalMode          string // sandbox, live

	// Mail
	MailProvider string // resend, smtp, log
	MailFrom     string
	MailTimeout  time.Duration
	ResendAPIKey string
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	AppName      string
	AppBaseURL   string

	// Logging
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	// Fiber's default BodyLimit is 4MB; BODY_LIMIT_BYTES wins over BODY_LIMIT_MB.
	bodyLimit := envInt("BODY_LIMIT_BYTES", 0)
	if bodyLimit <= 0 {
		bodyLimit = envInt("BODY_LIMIT_MB", 4) * 1024 * 1024
	}

	jwtSecret := getEnv("SUPABASE_JWT_SECRET", "")
	if strings.TrimSpace(jwtSecret) == "" {
		jwtSecret = getEnv("JWT_SECRET_KEY", getEnv("JWT_SECRET", ""))
	}

	config := &Config{
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: getEnv("ALLOWED_ORIGINS", "*"),
		BodyLimitBytes: bodyLimit,

		DBDriver:    strings.ToLower(getEnv("DB_DRIVER", "postgres")),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		DBHost:      getEnv("DB_HOST", "db"),
		DBPort:      envInt("DB_PORT", 5432),
		DBUser:      getEnv("DB_USER", ""),
		DBPassword:  getEnv("DB_PASSWORD", ""),
		DBName:      getEnv("DB_NAME", ""),
		SQLitePath:  getEnv("SQLITE_PATH", "invoicepay.db"),

		JWTSecret:     jwtSecret,
		AllowedRoles:  splitList(getEnv("ALLOWED_ROLES", "authenticated,admin")),
		AdminEmail:    getEnv("ADMIN_EMAIL", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),

		RateLimitMax:    envInt("RATE_LIMIT_MAX", 60),
		RateLimitWindow: time.Duration(envInt("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second,
		RateLimitStore:  strings.ToLower(getEnv("RATE_LIMIT_STORE", "memory")),

		Currency:            strings.ToLower(getEnv("CURRENCY", "usd")),
		GatewayTimeout:      time.Duration(envInt("GATEWAY_TIMEOUT_SECONDS", 15)) * time.Second,
		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		PayPalClientID:      getEnv("PAYPAL_CLIENT_ID", ""),
		PayPalClientSecret:  getEnv("PAYPAL_CLIENT_SECRET", ""),
		PayPalMode:          strings.ToLower(getEnv("PAYPAL_MODE", "sandbox")),

		MailProvider: strings.ToLower(getEnv("MAIL_PROVIDER", "log")),
		MailFrom:     getEnv("MAIL_FROM", "invoices@example.com"),
		MailTimeout:  time.Duration(envInt("MAIL_TIMEOUT_SECONDS", 10)) * time.Second,
		ResendAPIKey: getEnv("RESEND_API_KEY", ""),
		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     envInt("SMTP_PORT", 587),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		AppName:      getEnv("APP_NAME", "Invoicepay"),
		AppBaseURL:   getEnv("APP_BASE_URL", "http://localhost:3000"),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "console"),
		LogTimeFormat: getEnv("LOG_TIME_FORMAT", time.RFC3339),
		LogOutput:     getEnv("LOG_OUTPUT", "stdout"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case "postgres":
		if c.DatabaseURL == "" && (c.DBUser == "" || c.DBName == "") {
			return fmt.Errorf("DATABASE_URL or DB_USER/DB_NAME is required for postgres")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for sqlite")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT secret not configured (set SUPABASE_JWT_SECRET or JWT_SECRET_KEY)")
	}
	switch c.RateLimitStore {
	case "memory", "database":
	default:
		return fmt.Errorf("unsupported RATE_LIMIT_STORE %q", c.RateLimitStore)
	}
	switch c.MailProvider {
	case "log":
	case "resend":
		if c.ResendAPIKey == "" {
			return fmt.Errorf("RESEND_API_KEY is required when MAIL_PROVIDER=resend")
		}
	case "smtp":
		if c.SMTPHost == "" {
			return fmt.Errorf("SMTP_HOST is required when MAIL_PROVIDER=smtp")
		}
	default:
		return fmt.Errorf("unsupported MAIL_PROVIDER %q", c.MailProvider)
	}
	if c.PayPalMode != "sandbox" && c.PayPalMode != "live" {
		return fmt.Errorf("PAYPAL_MODE must be sandbox or live")
	}
	return nil
}

// PostgresDSN prefers DATABASE_URL and falls back to the discrete DB_* settings.
func (c *Config) PostgresDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable TimeZone=UTC",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

func (c *Config) StripeEnabled() bool { return c.StripeSecretKey != "" }

func (c *Config) PayPalEnabled() bool { return c.PayPalClientID != "" && c.PayPalClientSecret != "" }

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// envInt reads an int env var with a default fallback.
func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
