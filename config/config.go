package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration
type Config struct {
	// API Configuration
	APIPort        string
	APIHost        string
	APIEnvironment string

	// Database
	DatabaseURL     string
	DatabaseSSLMode string

	// Redis
	RedisURL string

	// Supabase (row store owner and identity provider)
	SupabaseURL        string
	SupabaseServiceKey string
	SupabaseJWTSecret  string

	// Language model
	AnthropicAPIKey string
	LLMBaseURL      string
	LLMModel        string

	// Speech synthesis
	ElevenLabsAPIKey      string
	ElevenLabsVoiceIDLuna string

	// Audio storage (optional, S3 compatible)
	AudioS3Bucket      string
	AudioS3Endpoint    string
	AudioPublicBaseURL string
	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string

	// Stripe
	StripeSecretKey     string
	StripeWebhookSecret string
	StripePrice15Min    string
	StripePrice30Min    string
	StripePrice60Min    string
	StripePriceMonthly  string

	// Telegram
	TelegramBotToken   string
	TelegramWebhookURL string

	// Ephemeris service
	NocturnaAPIURL       string
	NocturnaServiceToken string

	// Geo-IP
	IPAPIKey string

	// Security
	AppSecretKey string
	AdminEmails  []string

	// Frontend / CORS
	FrontendURL        string
	CORSAllowedOrigins []string

	// Rate Limiting
	RateLimitRequestsPerMinute int
	RateLimitBurst             int

	// Scheduler
	SchedulerEnabled bool
	AppTimezone      string

	// Logging
	LogLevel  string
	LogFormat string

	// Sentry
	SentryDSN         string
	SentryEnvironment string
}

// Load loads configuration from environment variables
func Load() *Config {
	env := getEnv("APP_ENV", "production")

	return &Config{
		// API
		APIPort:        getEnv("PORT", getEnv("API_PORT", "8000")),
		APIHost:        getEnv("API_HOST", "0.0.0.0"),
		APIEnvironment: env,

		DatabaseURL:     getEnv("DATABASE_URL", ""),
		DatabaseSSLMode: getEnv("DATABASE_SSLMODE", ""),
		RedisURL:        getEnv("REDIS_URL", ""),

		// Supabase
		SupabaseURL:        strings.TrimRight(getEnv("SUPABASE_URL", ""), "/"),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseJWTSecret:  getEnv("SUPABASE_JWT_SECRET", ""),

		// LLM
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		LLMBaseURL:      getEnv("LLM_BASE_URL", "https://api.anthropic.com/v1/"),
		LLMModel:        getEnv("LLM_MODEL", "claude-sonnet-4-20250514"),

		// Voice
		ElevenLabsAPIKey:      getEnv("ELEVENLABS_API_KEY", ""),
		ElevenLabsVoiceIDLuna: getEnv("ELEVENLABS_VOICE_ID_LUNA", ""),

		// Audio storage
		AudioS3Bucket:      getEnv("AUDIO_S3_BUCKET", ""),
		AudioS3Endpoint:    getEnv("AUDIO_S3_ENDPOINT", ""),
		AudioPublicBaseURL: strings.TrimRight(getEnv("AUDIO_PUBLIC_BASE_URL", ""), "/"),
		AWSRegion:          getEnv("AWS_REGION", "eu-central-1"),
		AWSAccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),

		// Stripe
		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		StripePrice15Min:    getEnv("STRIPE_PRICE_15MIN", ""),
		StripePrice30Min:    getEnv("STRIPE_PRICE_30MIN", ""),
		StripePrice60Min:    getEnv("STRIPE_PRICE_60MIN", ""),
		StripePriceMonthly:  getEnv("STRIPE_PRICE_MONTHLY", ""),

		// Telegram
		TelegramBotToken:   getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramWebhookURL: getEnv("TELEGRAM_WEBHOOK_URL", "https://astra-personalday.onrender.com/api/telegram/webhook"),

		// Nocturna
		NocturnaAPIURL:       strings.TrimRight(getEnv("NOCTURNA_API_URL", ""), "/"),
		NocturnaServiceToken: getEnv("NOCTURNA_SERVICE_TOKEN", ""),

		IPAPIKey: getEnv("IPAPI_KEY", ""),

		AppSecretKey: getEnv("APP_SECRET_KEY", ""),
		AdminEmails:  getEnvAsList("ADMIN_EMAILS"),

		FrontendURL:        strings.TrimRight(getEnv("FRONTEND_URL", ""), "/"),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),

		// Rate Limiting
		RateLimitRequestsPerMinute: getEnvAsInt("RATE_LIMIT_REQUESTS_PER_MINUTE", 120),
		RateLimitBurst:             getEnvAsInt("RATE_LIMIT_BURST", 20),

		SchedulerEnabled: getEnvAsBool("SCHEDULER_ENABLED", false),
		AppTimezone:      getEnv("APP_TIMEZONE", "Europe/Rome"),

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		SentryDSN:         getEnv("SENTRY_DSN", ""),
		SentryEnvironment: getEnv("SENTRY_ENVIRONMENT", env),
	}
}

// Validate reports every required setting that is missing.
// IPAPI_KEY and ADMIN_EMAILS are allowed to be empty.
func (c *Config) Validate() error {
	required := []struct {
		key   string
		value string
	}{
		{"DATABASE_URL", c.DatabaseURL},
		{"REDIS_URL", c.RedisURL},
		{"SUPABASE_URL", c.SupabaseURL},
		{"SUPABASE_SERVICE_KEY", c.SupabaseServiceKey},
		{"SUPABASE_JWT_SECRET", c.SupabaseJWTSecret},
		{"ANTHROPIC_API_KEY", c.AnthropicAPIKey},
		{"ELEVENLABS_API_KEY", c.ElevenLabsAPIKey},
		{"ELEVENLABS_VOICE_ID_LUNA", c.ElevenLabsVoiceIDLuna},
		{"STRIPE_SECRET_KEY", c.StripeSecretKey},
		{"STRIPE_WEBHOOK_SECRET", c.StripeWebhookSecret},
		{"STRIPE_PRICE_15MIN", c.StripePrice15Min},
		{"STRIPE_PRICE_30MIN", c.StripePrice30Min},
		{"STRIPE_PRICE_60MIN", c.StripePrice60Min},
		{"STRIPE_PRICE_MONTHLY", c.StripePriceMonthly},
		{"TELEGRAM_BOT_TOKEN", c.TelegramBotToken},
		{"NOCTURNA_API_URL", c.NocturnaAPIURL},
		{"NOCTURNA_SERVICE_TOKEN", c.NocturnaServiceToken},
		{"APP_SECRET_KEY", c.AppSecretKey},
		{"FRONTEND_URL", c.FrontendURL},
	}

	var missing []string
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// IsAdminEmail reports whether email belongs to the configured admin list
func (c *Config) IsAdminEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false
	}
	for _, admin := range c.AdminEmails {
		if strings.ToLower(admin) == email {
			return true
		}
	}
	return false
}

// AllowedOrigins returns the CORS origins, always including the frontend
func (c *Config) AllowedOrigins() []string {
	origins := []string{c.FrontendURL, "http://localhost:3000", "http://localhost:8080"}
	for _, o := range c.CORSAllowedOrigins {
		if o != c.FrontendURL {
			origins = append(origins, o)
		}
	}
	return origins
}

// Helper functions
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
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

// getEnvAsList splits a comma separated variable, dropping blanks
func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
