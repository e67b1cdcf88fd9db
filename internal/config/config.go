package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingLicenseSecret is returned when LICENSE_SECRET is unset. The API
// must not start without it.
var ErrMissingLicenseSecret = errors.New("LICENSE_SECRET must be set")

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	License  LicenseConfig
	Device   DeviceConfig
	OAuth    OAuthConfig
	Redis    RedisConfig
	Stripe   StripeConfig
	Email    EmailConfig
	Jobs     JobsConfig
	Logging  LoggingConfig
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	FrontendURL     string
	Environment     string
	GlobalRPS       float64
	GlobalBurst     int
}

// DatabaseConfig contains database configuration
type DatabaseConfig struct {
	Driver          string
	Host            string
	Port            int
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// For SQLite
	Path string
}

// AuthConfig contains web session configuration
type AuthConfig struct {
	JWTSecret     string
	SessionExpiry time.Duration
	BCryptCost    int
	SecureCookies bool
}

// LicenseConfig contains license signing and quota configuration
type LicenseConfig struct {
	Secret     string
	Product    string
	TrialQuota int
	CacheTTL   time.Duration
}

// RateLimit is a fixed window limit
type RateLimit struct {
	Limit  int
	Window time.Duration
}

// DeviceConfig contains device flow configuration
type DeviceConfig struct {
	CodeTTL          time.Duration
	CompletedTTL     time.Duration
	PollInterval     time.Duration
	VerificationURL  string
	InvalidCodeDelay time.Duration
	StateTTL         time.Duration
	IssueLimit       RateLimit
	PollLimit        RateLimit
	CompleteLimit    RateLimit
	RegisterLimit    RateLimit
	CheckoutLimit    RateLimit
}

// OAuthConfig contains OAuth provider configuration
type OAuthConfig struct {
	Google          GoogleOAuthConfig
	ExchangeTimeout time.Duration
}

// GoogleOAuthConfig contains Google OAuth configuration
type GoogleOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// RedisConfig contains Redis configuration
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// StripeConfig contains payment provider configuration
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	PriceIDFree   string
	PriceIDPro    string
	SuccessURL    string
	CancelURL     string
	Timeout       time.Duration
}

// EmailConfig contains transactional email configuration
type EmailConfig struct {
	ResendAPIKey string
	From         string
	AppURL       string
	Timeout      time.Duration
}

// JobsConfig contains maintenance scheduler configuration. Schedules are
// standard five field cron expressions; an empty schedule disables the job.
type JobsConfig struct {
	Enabled        bool
	PruneSchedule  string
	SweepSchedule  string
	EventRetention time.Duration
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string
	Format     string // json or console
	OutputPath string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore errors as it's optional)
	_ = godotenv.Load()

	frontendURL := getEnv("FRONTEND_URL", "http://localhost:3000")

	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			FrontendURL:     frontendURL,
			Environment:     getEnv("ENVIRONMENT", "development"),
			GlobalRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 50),
			GlobalBurst:     getEnvAsInt("RATE_LIMIT_BURST", 100),
		},
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", "sqlite"),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			Name:            getEnv("DB_NAME", "kybernus"),
			User:            getEnv("DB_USER", ""),
			Password:        getEnv("DB_PASSWORD", ""),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			Path:            getEnv("DB_PATH", "./kybernus.db"),
		},
		Auth: AuthConfig{
			JWTSecret:     getEnv("JWT_SECRET", "supersecretkey"),
			SessionExpiry: getEnvAsDuration("SESSION_EXPIRY", 7*24*time.Hour),
			BCryptCost:    getEnvAsInt("BCRYPT_COST", 12),
			SecureCookies: getEnvAsBool("SECURE_COOKIES", false),
		},
		License: LicenseConfig{
			Secret:     getEnv("LICENSE_SECRET", ""),
			Product:    getEnv("LICENSE_PRODUCT", "KYB"),
			TrialQuota: getEnvAsInt("TRIAL_PROJECT_LIMIT", 3),
			CacheTTL:   getEnvAsDuration("LICENSE_CACHE_TTL", 5*time.Minute),
		},
		Device: DeviceConfig{
			CodeTTL:          getEnvAsDuration("DEVICE_CODE_TTL", 10*time.Minute),
			CompletedTTL:     getEnvAsDuration("DEVICE_COMPLETED_TTL", 5*time.Minute),
			PollInterval:     getEnvAsDuration("DEVICE_POLL_INTERVAL", 5*time.Second),
			VerificationURL:  getEnv("DEVICE_VERIFICATION_URL", frontendURL+"/device"),
			InvalidCodeDelay: getEnvAsDuration("DEVICE_INVALID_CODE_DELAY", time.Second),
			StateTTL:         getEnvAsDuration("OAUTH_STATE_TTL", 10*time.Minute),
			IssueLimit:       RateLimit{Limit: getEnvAsInt("DEVICE_ISSUE_LIMIT", 5), Window: time.Minute},
			PollLimit:        RateLimit{Limit: getEnvAsInt("DEVICE_POLL_LIMIT", 12), Window: time.Minute},
			CompleteLimit:    RateLimit{Limit: getEnvAsInt("DEVICE_COMPLETE_LIMIT", 10), Window: time.Minute},
			RegisterLimit:    RateLimit{Limit: getEnvAsInt("REGISTER_LIMIT", 5), Window: time.Minute},
			CheckoutLimit:    RateLimit{Limit: getEnvAsInt("CHECKOUT_LIMIT", 10), Window: time.Minute},
		},
		OAuth: OAuthConfig{
			Google: GoogleOAuthConfig{
				ClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
				ClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
				RedirectURL:  getEnv("GOOGLE_REDIRECT_URL", frontendURL+"/auth/google/callback"),
			},
			ExchangeTimeout: getEnvAsDuration("OAUTH_EXCHANGE_TIMEOUT", 10*time.Second),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Stripe: StripeConfig{
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
			PriceIDFree:   getEnv("STRIPE_PRICE_FREE", ""),
			PriceIDPro:    getEnv("STRIPE_PRICE_PRO", ""),
			SuccessURL:    getEnv("STRIPE_SUCCESS_URL", frontendURL+"/success?session_id={CHECKOUT_SESSION_ID}"),
			CancelURL:     getEnv("STRIPE_CANCEL_URL", frontendURL+"/pricing"),
			Timeout:       getEnvAsDuration("STRIPE_TIMEOUT", 10*time.Second),
		},
		Email: EmailConfig{
			ResendAPIKey: getEnv("RESEND_API_KEY", ""),
			From:         getEnv("EMAIL_FROM", "Kybernus <noreply@kybernus.dev>"),
			AppURL:       frontendURL,
			Timeout:      getEnvAsDuration("EMAIL_TIMEOUT", 10*time.Second),
		},
		Jobs: JobsConfig{
			Enabled:        getEnvAsBool("JOBS_ENABLED", true),
			PruneSchedule:  getEnv("JOB_PRUNE_SCHEDULE", "0 3 * * *"),
			SweepSchedule:  getEnv("JOB_SWEEP_SCHEDULE", "*/5 * * * *"),
			EventRetention: getEnvAsDuration("BILLING_EVENT_RETENTION", 90*24*time.Hour),
		},
		Logging: LoggingConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "json"),
			OutputPath: getEnv("LOG_OUTPUT", "stdout"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.License.Secret == "" {
		return ErrMissingLicenseSecret
	}

	if c.Auth.JWTSecret == "" || c.Auth.JWTSecret == "supersecretkey" {
		return fmt.Errorf("JWT_SECRET must be set and should not use default value in production")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Driver != "sqlite" && c.Database.Driver != "postgres" {
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if c.License.TrialQuota < 0 {
		return fmt.Errorf("TRIAL_PROJECT_LIMIT must not be negative")
	}

	if c.Jobs.EventRetention <= 0 {
		return fmt.Errorf("BILLING_EVENT_RETENTION must be positive")
	}

	if c.Device.CompletedTTL > c.Device.CodeTTL {
		return fmt.Errorf("DEVICE_COMPLETED_TTL must not exceed DEVICE_CODE_TTL")
	}

	return nil
}

// IsProduction reports whether the server runs in production
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
