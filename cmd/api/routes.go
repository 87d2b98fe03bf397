package main

import (
	"github.com/astrapersonal/astra-api/pkg/api/handlers"
	custommiddleware "github.com/astrapersonal/astra-api/pkg/middleware"
	"github.com/labstack/echo/v4"
)

// routeHandlers bundles the handlers mounted under /api
type routeHandlers struct {
	auth      *handlers.AuthHandler
	profiles  *handlers.ProfileHandler
	horoscope *handlers.HoroscopeHandler
	luna      *handlers.LunaHandler
	billing   *handlers.BillingHandler
	telegram  *handlers.TelegramHandler
	admin     *handlers.AdminHandler
	scheduler *handlers.SchedulerHandler
}

// routeGuards are the per-group middlewares
type routeGuards struct {
	requireAdmin echo.MiddlewareFunc
	cronSecret   echo.MiddlewareFunc
	authLimit    echo.MiddlewareFunc
	webhookLimit echo.MiddlewareFunc
}

func registerRoutes(api *echo.Group, h routeHandlers, g routeGuards) {
	// Authentication routes (token exchange is public, see middleware.PublicPaths)
	authRoutes := api.Group("/auth")
	{
		authRoutes.POST("/register", h.auth.Register, g.authLimit)
		authRoutes.POST("/login", h.auth.Login, g.authLimit)
		authRoutes.POST("/refresh", h.auth.Refresh)
		authRoutes.POST("/logout", h.auth.Logout)
		authRoutes.GET("/me", h.auth.Me)
	}

	profileRoutes := api.Group("/profiles/me")
	{
		profileRoutes.GET("", h.profiles.GetProfile)
		profileRoutes.PATCH("", h.profiles.UpdateProfile)
		profileRoutes.POST("/birth-data", h.profiles.SaveBirthData)
		profileRoutes.POST("/geo", h.profiles.SaveGeo)
		profileRoutes.PATCH("/life-situation", h.profiles.UpdateLifeSituation)
		profileRoutes.GET("/partners", h.profiles.ListPartners)
		profileRoutes.POST("/partners", h.profiles.CreatePartner)
		profileRoutes.PATCH("/partners/:id", h.profiles.UpdatePartner)
		profileRoutes.DELETE("/partners/:id", h.profiles.DeletePartner)
	}

	horoscopeRoutes := api.Group("/horoscope")
	{
		horoscopeRoutes.GET("/today", h.horoscope.Today)
		horoscopeRoutes.GET("/history", h.horoscope.History)
	}

	lunaRoutes := api.Group("/luna")
	{
		lunaRoutes.POST("/session/start", h.luna.StartSession)
		lunaRoutes.POST("/message", h.luna.SendMessage)
		lunaRoutes.POST("/session/end", h.luna.EndSession)
		lunaRoutes.GET("/balance", h.luna.Balance)
	}

	servicesRoutes := api.Group("/services")
	{
		servicesRoutes.POST("/luna/checkout", h.billing.CreateLunaCheckout)
		servicesRoutes.GET("/luna/packs", h.billing.ListPacks)
	}

	// Stripe webhook with its own, higher rate limit
	api.POST("/webhooks/stripe", h.billing.HandleWebhook, g.webhookLimit)

	telegramRoutes := api.Group("/telegram")
	{
		telegramRoutes.POST("/webhook", h.telegram.Webhook, g.webhookLimit)
		telegramRoutes.POST("/generate-link-token", h.telegram.GenerateLinkToken)
		telegramRoutes.DELETE("/disconnect", h.telegram.Disconnect)
		telegramRoutes.GET("/status", h.telegram.Status)
		telegramRoutes.POST("/setup-webhook", h.telegram.SetupWebhook, g.requireAdmin)
	}

	// Admin routes (require an admin email)
	adminRoutes := api.Group("/admin")
	adminRoutes.Use(g.requireAdmin)
	{
		adminRoutes.GET("/dashboard", h.admin.Dashboard)
		adminRoutes.GET("/users", h.admin.ListUsers)
		adminRoutes.GET("/users/:id", h.admin.GetUser)
		adminRoutes.PATCH("/users/:id/subscription", h.admin.OverrideSubscription)
		adminRoutes.POST("/users/:id/ban", h.admin.BanUser)
		adminRoutes.GET("/geo/summary", h.admin.GeoSummary)
		adminRoutes.GET("/geo/users-by-area", h.admin.UsersByArea)
		adminRoutes.GET("/segments", h.admin.ListSegments)
		adminRoutes.POST("/segments", h.admin.CreateSegment)
		adminRoutes.POST("/segments/:id/assign", h.admin.AssignSegment)
		adminRoutes.GET("/scheduler/logs", h.admin.SchedulerLogs)
	}

	// Scheduler routes (shared cron secret instead of a bearer token)
	schedulerRoutes := api.Group("/scheduler")
	schedulerRoutes.Use(g.cronSecret)
	{
		schedulerRoutes.POST("/generate-daily", h.scheduler.GenerateDaily)
		schedulerRoutes.POST("/send-telegram", h.scheduler.SendTelegram)
		schedulerRoutes.POST("/check-trials", h.scheduler.CheckTrials)
	}
}

func defaultGuards(isAdmin func(string) bool, cronSecret string, authLimiter, webhookLimiter *custommiddleware.RateLimiter) routeGuards {
	return routeGuards{
		requireAdmin: custommiddleware.RequireAdmin(isAdmin),
		cronSecret:   custommiddleware.RequireCronSecret(cronSecret),
		authLimit:    authLimiter.RateLimitMiddleware(),
		webhookLimit: webhookLimiter.RateLimitMiddleware(),
	}
}
