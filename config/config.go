package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	AWS      AWSConfig
	Email    EmailConfig
	Portal   PortalConfig
	Worker   WorkerConfig
}

// EmailConfig for SMTP delivery of invites and notifications.
type EmailConfig struct {
	FromAddress string
	FromName    string
	SMTPHost    string
	SMTPPort    int
	SMTPUser    string
	SMTPPass    string
}

// PortalConfig holds client portal business settings.
type PortalConfig struct {
	TenantID              uuid.UUID // single tenant that gates every query
	DefaultMaxRevisions   int       // used when a client has no package
	InviteTTLHours        int
	AnalyticsCacheSeconds int
	AppURL                string // public portal URL used in invite links
}

// WorkerConfig holds background worker settings.
type WorkerConfig struct {
	CycleResetCron string // standard 5-field cron spec
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
	RateLimitPerSecond float64
	RateLimitBurst     int
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/portal?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT signing and validation settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// AWSConfig holds AWS credentials and S3 bucket names.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	DeliverablesBucket   string
	AssetsBucket         string
	PresignExpireMinutes int
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// DefaultTenantID is the demo tenant seeded by the initial migration.
const DefaultTenantID = "00000000-0000-0000-0000-000000000001"

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	tenantID, err := uuid.Parse(getEnv("PORTAL_TENANT_ID", DefaultTenantID))
	if err != nil {
		return nil, fmt.Errorf("PORTAL_TENANT_ID: %w", err)
	}
	rateLimit, err := strconv.ParseFloat(getEnv("RATE_LIMIT_PER_SEC", "10"), 64)
	if err != nil {
		return nil, fmt.Errorf("RATE_LIMIT_PER_SEC: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173"),
			RateLimitPerSecond: rateLimit,
			RateLimitBurst:     getEnvInt("RATE_LIMIT_BURST", 20),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "portal"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			DeliverablesBucket:   getEnv("AWS_S3_DELIVERABLES_BUCKET", "portal-deliverables"),
			AssetsBucket:         getEnv("AWS_S3_ASSETS_BUCKET", "portal-brand-assets"),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
		},
		Email: EmailConfig{
			FromAddress: getEnv("EMAIL_FROM_ADDRESS", "noreply@example.com"),
			FromName:    getEnv("EMAIL_FROM_NAME", "Client Portal"),
			SMTPHost:    getEnv("SMTP_HOST", ""),
			SMTPPort:    getEnvInt("SMTP_PORT", 587),
			SMTPUser:    getEnv("SMTP_USER", ""),
			SMTPPass:    getEnv("SMTP_PASS", ""),
		},
		Portal: PortalConfig{
			TenantID:              tenantID,
			DefaultMaxRevisions:   getEnvInt("PORTAL_DEFAULT_MAX_REVISIONS", 2),
			InviteTTLHours:        getEnvInt("PORTAL_INVITE_TTL_HOURS", 72),
			AnalyticsCacheSeconds: getEnvInt("PORTAL_ANALYTICS_CACHE_SEC", 300),
			AppURL:                strings.TrimRight(getEnv("PORTAL_APP_URL", "http://localhost:3000"), "/"),
		},
		Worker: WorkerConfig{
			CycleResetCron: getEnv("WORKER_CYCLE_RESET_CRON", "0 0 1 * *"),
		},
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
