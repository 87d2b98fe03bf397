package main

// @title Astra Personal API
// @version 1.0.0
// @description Backend for the Astra Personal app: horoscopes, Luna sessions, billing and the Telegram bot.

// @contact.name Astra Personal

// @BasePath /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the access token.

// @securityDefinitions.apikey CronSecret
// @in header
// @name x-cron-secret

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/astrapersonal/astra-api/config"
	_ "github.com/astrapersonal/astra-api/docs"
	"github.com/astrapersonal/astra-api/pkg/admin"
	"github.com/astrapersonal/astra-api/pkg/ai/llm"
	"github.com/astrapersonal/astra-api/pkg/api/handlers"
	apimiddleware "github.com/astrapersonal/astra-api/pkg/api/middleware"
	"github.com/astrapersonal/astra-api/pkg/auth"
	"github.com/astrapersonal/astra-api/pkg/billing"
	"github.com/astrapersonal/astra-api/pkg/cache"
	"github.com/astrapersonal/astra-api/pkg/database"
	"github.com/astrapersonal/astra-api/pkg/ephemeris"
	"github.com/astrapersonal/astra-api/pkg/geoip"
	"github.com/astrapersonal/astra-api/pkg/horoscope"
	"github.com/astrapersonal/astra-api/pkg/jobs"
	"github.com/astrapersonal/astra-api/pkg/logger"
	"github.com/astrapersonal/astra-api/pkg/luna"
	"github.com/astrapersonal/astra-api/pkg/metrics"
	custommiddleware "github.com/astrapersonal/astra-api/pkg/middleware"
	"github.com/astrapersonal/astra-api/pkg/profiles"
	"github.com/astrapersonal/astra-api/pkg/storage"
	"github.com/astrapersonal/astra-api/pkg/supabase"
	"github.com/astrapersonal/astra-api/pkg/telegram"
	"github.com/astrapersonal/astra-api/pkg/voice"
	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	echoSwagger "github.com/swaggo/echo-swagger"
	"github.com/swaggo/swag"
)

const version = "1.0.0"

func main() {
	// A missing .env is fine; production sets real environment variables
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	log.Info("🔧 Configuration loaded", "environment", cfg.APIEnvironment)

	if err := cfg.Validate(); err != nil {
		log.Error("❌ Invalid configuration", "error", err)
		os.Exit(1)
	}

	loc, err := time.LoadLocation(cfg.AppTimezone)
	if err != nil {
		log.Warn("⚠️  Unknown APP_TIMEZONE, falling back to UTC", "timezone", cfg.AppTimezone, "error", err)
		loc = time.UTC
	}

	// Initialize Sentry for error tracking
	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.SentryEnvironment,
			Release:          "astra-api@" + version,
			TracesSampleRate: 0.2,
			AttachStacktrace: true,
		})
		if err != nil {
			log.Warn("⚠️  Failed to initialize Sentry", "error", err)
		} else {
			log.Info("✅ Sentry initialized", "environment", cfg.SentryEnvironment)
			defer sentry.Flush(2 * time.Second)
		}
	} else {
		log.Info("ℹ️  Sentry disabled (no DSN configured)")
	}

	dsn, err := database.BuildConnectionString(cfg.DatabaseURL, &database.SSLConfig{Mode: cfg.DatabaseSSLMode})
	if err != nil {
		log.Error("❌ Invalid database URL", "error", err)
		os.Exit(1)
	}
	db, err := database.NewClient(dsn, database.DefaultPoolConfig())
	if err != nil {
		log.Error("❌ Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	redisClient, err := cache.NewClient(cfg.RedisURL)
	if err != nil {
		log.Error("❌ Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	prometheusMetrics := metrics.New()

	// Identity
	tokenBlacklist := auth.NewTokenBlacklist(redisClient)
	verifier := auth.NewVerifier(cfg.SupabaseJWTSecret, tokenBlacklist)
	authProvider := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey)

	// Outbound providers
	geoClient := geoip.NewClient(cfg.IPAPIKey)
	ephemerisClient := ephemeris.NewClient(cfg.NocturnaAPIURL, cfg.NocturnaServiceToken, log.With("component", "ephemeris"))
	chatClient := llm.NewOpenAIClient(llm.Config{
		APIKey:  cfg.AnthropicAPIKey,
		BaseURL: cfg.LLMBaseURL,
		Model:   cfg.LLMModel,
	}, log.With("component", "llm"))

	var audioStore voice.AudioStore
	if cfg.AudioS3Bucket != "" {
		s3Store, err := storage.NewS3Store(context.Background(), storage.Config{
			Bucket:             cfg.AudioS3Bucket,
			Endpoint:           cfg.AudioS3Endpoint,
			PublicBaseURL:      cfg.AudioPublicBaseURL,
			Region:             cfg.AWSRegion,
			AWSAccessKeyID:     cfg.AWSAccessKeyID,
			AWSSecretAccessKey: cfg.AWSSecretAccessKey,
		})
		if err != nil {
			log.Warn("⚠️  Audio storage disabled", "error", err)
		} else {
			audioStore = s3Store
			log.Info("✅ Audio storage initialized", "bucket", cfg.AudioS3Bucket)
		}
	} else {
		log.Info("ℹ️  Audio storage disabled (AUDIO_S3_BUCKET not set)")
	}
	speaker := voice.NewClient(voice.Config{
		APIKey:  cfg.ElevenLabsAPIKey,
		VoiceID: cfg.ElevenLabsVoiceIDLuna,
	}, audioStore, log.With("component", "voice"))

	botTransport, err := telegram.NewBotTransport(cfg.TelegramBotToken)
	if err != nil {
		log.Error("❌ Failed to initialize Telegram bot", "error", err)
		os.Exit(1)
	}

	// Initialize services
	profileService := profiles.NewService(db.DB, ephemerisClient, geoClient, log.With("component", "profiles"))
	horoscopeService := horoscope.NewService(db.DB, chatClient, ephemerisClient, loc, log.With("component", "horoscope"))
	lunaService := luna.NewService(db.DB, chatClient, speaker, prometheusMetrics, log.With("component", "luna"))
	billingService := billing.NewService(db.DB, billing.NewStripeGateway(cfg.StripeSecretKey), billing.Config{
		WebhookSecret: cfg.StripeWebhookSecret,
		FrontendURL:   cfg.FrontendURL,
		PriceIDs: map[string]string{
			"15min":   cfg.StripePrice15Min,
			"30min":   cfg.StripePrice30Min,
			"60min":   cfg.StripePrice60Min,
			"monthly": cfg.StripePriceMonthly,
		},
	}, prometheusMetrics, log.With("component", "billing"))
	telegramService := telegram.NewService(db.DB, botTransport, redisClient, prometheusMetrics, telegram.Config{
		FrontendURL: cfg.FrontendURL,
		WebhookURL:  cfg.TelegramWebhookURL,
		Location:    loc,
	}, log.With("component", "telegram"))
	jobRunner := jobs.NewRunner(db.DB, horoscopeService, ephemerisClient, botTransport, redisClient, prometheusMetrics, log.With("component", "jobs"))
	adminService := admin.NewService(db.DB, loc, log.With("component", "admin"))

	var cronManager *jobs.CronManager
	if cfg.SchedulerEnabled {
		cronManager = jobs.NewCronManager(jobRunner, loc, log.With("component", "cron"))
		if err := cronManager.SetupJobs(); err != nil {
			log.Error("❌ Failed to setup cron jobs", "error", err)
			os.Exit(1)
		}
		cronManager.Start()
	} else {
		log.Info("ℹ️  In-process scheduler disabled, jobs run via /api/scheduler")
	}

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true

	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	globalRateLimiter := custommiddleware.NewRateLimiter(cfg.RateLimitRequestsPerMinute, cfg.RateLimitBurst)
	authRateLimiter := custommiddleware.NewRateLimiter(10, 3)
	webhookRateLimiter := custommiddleware.NewRateLimiter(300, 50)
	for _, rl := range []*custommiddleware.RateLimiter{globalRateLimiter, authRateLimiter, webhookRateLimiter} {
		go rl.Cleanup(bgCtx, 5*time.Minute)
	}
	go reportPoolStats(bgCtx, db, prometheusMetrics)

	// Global middleware
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				log.Warn("request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency.String(), "error", v.Error)
				return nil
			}
			log.Debug("request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency.String())
			return nil
		},
	}))
	e.Use(middleware.Recover())

	if cfg.SentryDSN != "" {
		e.Use(sentryecho.New(sentryecho.Options{
			Repanic: true,
		}))
	}

	e.Use(prometheusMetrics.Middleware())
	e.Use(middleware.CORSWithConfig(custommiddleware.CORSConfig(cfg.AllowedOrigins())))
	e.Use(middleware.Gzip())
	e.Use(custommiddleware.SecurityHeaders(custommiddleware.DefaultSecurityHeadersConfig()))
	e.Use(globalRateLimiter.RateLimitMiddleware())
	e.Use(apimiddleware.Identity(verifier))

	// Public endpoints
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"name":        "Astra Personal API",
			"version":     version,
			"status":      "running",
			"environment": cfg.APIEnvironment,
			"timestamp":   time.Now().Unix(),
		})
	})

	e.GET("/health", func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()

		dbStatus, redisStatus := "up", "up"
		if err := db.Ping(ctx); err != nil {
			dbStatus = "down"
		}
		if err := redisClient.Ping(ctx); err != nil {
			redisStatus = "down"
		}

		status := http.StatusOK
		health := "healthy"
		if dbStatus != "up" || redisStatus != "up" {
			status = http.StatusServiceUnavailable
			health = "unhealthy"
		}
		return c.JSON(status, map[string]any{
			"status":   health,
			"database": dbStatus,
			"cache":    redisStatus,
			"version":  version,
		})
	})

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// API documentation
	e.GET("/openapi.json", func(c echo.Context) error {
		doc, err := swag.ReadDoc()
		if err != nil {
			return c.NoContent(http.StatusNotFound)
		}
		return c.Blob(http.StatusOK, echo.MIMEApplicationJSONCharsetUTF8, []byte(doc))
	})
	e.GET("/docs", func(c echo.Context) error {
		return c.Redirect(http.StatusMovedPermanently, "/docs/index.html")
	})
	e.GET("/docs/*", echoSwagger.EchoWrapHandler(echoSwagger.URL("/openapi.json")))

	registerRoutes(e.Group("/api"), routeHandlers{
		auth:      handlers.NewAuthHandler(authProvider, profileService, verifier, tokenBlacklist, prometheusMetrics, log.With("component", "auth")),
		profiles:  handlers.NewProfileHandler(profileService),
		horoscope: handlers.NewHoroscopeHandler(horoscopeService),
		luna:      handlers.NewLunaHandler(lunaService),
		billing:   handlers.NewBillingHandler(billingService),
		telegram:  handlers.NewTelegramHandler(telegramService, log.With("component", "telegram")),
		admin:     handlers.NewAdminHandler(adminService),
		scheduler: handlers.NewSchedulerHandler(jobRunner),
	}, defaultGuards(cfg.IsAdminEmail, cfg.AppSecretKey, authRateLimiter, webhookRateLimiter))

	address := fmt.Sprintf("%s:%s", cfg.APIHost, cfg.APIPort)
	log.Info("🚀 Astra Personal API starting",
		"address", address,
		"timezone", loc.String(),
		"rate_limit", cfg.RateLimitRequestsPerMinute,
		"scheduler", cfg.SchedulerEnabled,
	)

	go func() {
		if err := e.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("❌ Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("🛑 Shutting down server...")
	stopBackground()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if cronManager != nil {
		select {
		case <-cronManager.Stop().Done():
			log.Info("✅ Cron jobs stopped")
		case <-ctx.Done():
			log.Warn("⚠️  Cron jobs still running at shutdown")
		}
	}

	if err := e.Shutdown(ctx); err != nil {
		log.Error("❌ Server forced to shutdown", "error", err)
		return
	}

	log.Info("✅ Server gracefully stopped")
}

// reportPoolStats publishes the open connection count until ctx ends
func reportPoolStats(ctx context.Context, db *database.Client, m *metrics.Metrics) {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return
	}
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.UpdateDBConnections(sqlDB.Stats().OpenConnections)
		}
	}
}
