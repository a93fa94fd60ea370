// Package api assembles the admin HTTP surface: health probes,
// operational triggers, the tenant inbox, campaign management and the
// websocket notification stream.
package api

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/welldanyogia/webrana-dripmail-backend/internal/api/handlers"
	"github.com/welldanyogia/webrana-dripmail-backend/internal/api/middleware"
	"github.com/welldanyogia/webrana-dripmail-backend/internal/repository"
	"github.com/welldanyogia/webrana-dripmail-backend/internal/websocket"
)

// RouterConfig holds dependencies for the router
type RouterConfig struct {
	DB        *gorm.DB
	Inbound   repository.InboundRepository
	Campaigns repository.CampaignRepository
	Enroller  handlers.Enroller
	Hub       *websocket.Hub

	// Background loops; nil entries disable the matching endpoints'
	// effect but keep the routes mounted.
	Scheduler  handlers.Runner
	SyncWorker handlers.Runner
	ForceTick  func()
	ForceSync  func()

	Logger *slog.Logger

	// Security configuration
	APIKey         string
	AllowedOrigins []string
	AppEnv         string
	RateLimit      float64
	RateBurst      int
}

// NewRouter creates and configures the Echo router with all routes
func NewRouter(cfg *RouterConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Recover())
	e.Use(middleware.SecureHeaders())
	e.Use(middleware.SecureCORS(cfg.AllowedOrigins, cfg.AppEnv))
	e.Use(middleware.RateLimiter(cfg.RateLimit, cfg.RateBurst, cfg.Logger))
	if cfg.Logger != nil {
		e.Use(middleware.RequestLogger(cfg.Logger))
	}

	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Scheduler, cfg.SyncWorker)
	inboxHandler := handlers.NewInboxHandler(cfg.Inbound)
	campaignHandler := handlers.NewCampaignHandler(cfg.Campaigns, cfg.Enroller)
	adminHandler := handlers.NewAdminHandler(forcer(cfg.ForceTick), forcer(cfg.ForceSync))

	// Health routes (no auth required)
	e.GET("/health", healthHandler.Health)
	e.GET("/ready", healthHandler.Ready)

	// API routes
	api := e.Group("/api")
	api.Use(middleware.APIKeyAuth(cfg.APIKey, cfg.Logger))
	api.Use(middleware.RequireTenant())

	// Inbox routes
	api.GET("/inbox", inboxHandler.List)
	api.GET("/inbox/unread", inboxHandler.Unread)
	api.GET("/messages/:id", inboxHandler.Get)
	api.POST("/messages/:id/read", inboxHandler.MarkAsRead)

	// Campaign routes
	campaigns := api.Group("/campaigns")
	campaigns.POST("", campaignHandler.Create)
	campaigns.GET("/:id", campaignHandler.Get)
	campaigns.POST("/:id/status", campaignHandler.UpdateStatus)
	campaigns.POST("/:id/leads", campaignHandler.Enroll)

	// Operational triggers
	api.POST("/scheduler/run", adminHandler.RunScheduler)
	api.POST("/sync/run", adminHandler.RunSync)

	// Websocket notification stream
	if cfg.Hub != nil {
		upgrader := websocket.NewSecureUpgrader(cfg.AllowedOrigins, cfg.Logger)
		wsHandler := handlers.NewWSHandler(cfg.Hub, upgrader, cfg.Logger)
		api.GET("/ws", wsHandler.Connect)
	}

	return e
}

func forcer(fn func()) handlers.Forcer {
	if fn == nil {
		return nil
	}
	return handlers.ForcerFunc(fn)
}
