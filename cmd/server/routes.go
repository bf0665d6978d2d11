package main

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-portal/backend/config"
	"github.com/aura-portal/backend/internal/analytics"
	"github.com/aura-portal/backend/internal/assets"
	"github.com/aura-portal/backend/internal/auth"
	"github.com/aura-portal/backend/internal/billing"
	"github.com/aura-portal/backend/internal/clients"
	"github.com/aura-portal/backend/internal/deliverables"
	"github.com/aura-portal/backend/internal/emaillogs"
	"github.com/aura-portal/backend/internal/health"
	"github.com/aura-portal/backend/internal/middleware"
	"github.com/aura-portal/backend/internal/models"
	"github.com/aura-portal/backend/internal/notifications"
	"github.com/aura-portal/backend/internal/packages"
	"github.com/aura-portal/backend/internal/permissions"
	"github.com/aura-portal/backend/internal/realtime"
	"github.com/aura-portal/backend/internal/subusers"
)

type handlers struct {
	auth          *auth.Handler
	clients       *clients.Handler
	deliverables  *deliverables.Handler
	subusers      *subusers.Handler
	notifications *notifications.Handler
	packages      *packages.Handler
	billing       *billing.Handler
	analytics     *analytics.Handler
	assets        *assets.Handler
	emailLogs     *emaillogs.Handler
	health        *health.Handler
}

func registerRoutes(
	router *gin.Engine,
	cfg *config.Config,
	logger *zap.Logger,
	jwtService *auth.JWTService,
	clientRepo *clients.Repository,
	subUsers middleware.SubUserLookup,
	hub *realtime.Hub,
	h handlers,
) {
	limiter := middleware.NewRateLimiter(cfg.Server.RateLimitPerSecond, cfg.Server.RateLimitBurst)
	limited := limiter.Middleware()

	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", h.health.Status)

	// Public
	router.POST("/auth/login", limited, h.auth.Login)
	router.POST("/invites/:token/accept", limited, h.subusers.AcceptInvite)

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, logger, jwtService.Session, subUsers))

	api := router.Group("")
	api.Use(middleware.JWT(jwtService), middleware.Permissions(subUsers, logger))

	perm := middleware.RequirePermission
	agency := middleware.RequireAgency()
	teamAdmin := middleware.RequireTeamAdmin()

	api.POST("/auth/register", middleware.RequireRole(models.RoleAdmin), h.auth.Register)
	api.GET("/me", h.auth.Me)
	api.GET("/me/permissions", h.subusers.MyPermissions)
	api.GET("/users", middleware.RequireRole(models.RoleAdmin), h.auth.List)

	// Clients
	api.GET("/clients", h.clients.List)
	api.POST("/clients", agency, limited, h.clients.Create)

	client := api.Group("/clients/:id", clients.RequireClientAccess(clientRepo))
	{
		client.GET("", h.clients.Get)
		client.PATCH("", agency, h.clients.UpdateStatus)

		// Deliverable posts
		client.GET("/posts", perm(permissions.ViewTasks), h.deliverables.List)
		client.POST("/posts", perm(permissions.RequestDeliverables), limited, h.deliverables.Create)

		// Team
		client.GET("/sub-users", teamAdmin, h.subusers.List)
		client.POST("/sub-users", teamAdmin, limited, h.subusers.Create)
		client.PATCH("/sub-users/:subUserId", teamAdmin, h.subusers.Update)
		client.DELETE("/sub-users/:subUserId", teamAdmin, h.subusers.Remove)
		client.POST("/sub-users/:subUserId/resend-invite", teamAdmin, limited, h.subusers.ResendInvite)

		// Badges, notifications and messages
		client.GET("/badges", h.notifications.Badges)
		client.GET("/notifications", h.notifications.List)
		client.POST("/notifications/read-all", h.notifications.MarkAllRead)
		client.GET("/messages", h.notifications.Messages)
		client.POST("/messages", perm(permissions.SendMessages), limited, h.notifications.SendMessage)
		client.POST("/messages/read", h.notifications.MarkMessagesRead)

		// Package
		client.GET("/package", h.packages.Get)
		client.PUT("/package", agency, h.packages.Upsert)

		// Billing
		client.GET("/wallet", perm(permissions.ManageBilling), h.billing.Wallet)
		client.POST("/wallet/credit", agency, h.billing.Credit)
		client.POST("/wallet/debit", agency, h.billing.Debit)
		client.GET("/transactions", perm(permissions.ManageBilling), h.billing.Transactions)
		client.GET("/transactions/export", perm(permissions.ManageBilling), h.billing.ExportTransactions)
		client.GET("/invoices", perm(permissions.ManageBilling), h.billing.Invoices)
		client.POST("/invoices", agency, h.billing.CreateInvoice)
		client.POST("/invoices/:invoiceId/pay", perm(permissions.ManageBilling), h.billing.PayInvoice)

		// Analytics
		client.GET("/analytics", perm(permissions.ViewAnalytics), h.analytics.Get)
		client.GET("/analytics/export", perm(permissions.ViewAnalytics), h.analytics.Export)

		// Brand assets
		client.GET("/brand-assets", h.assets.List)
		client.POST("/brand-assets", teamAdmin, limited, h.assets.Upload)
		client.GET("/brand-assets/:assetId/download-url", h.assets.DownloadURL)
		client.DELETE("/brand-assets/:assetId", teamAdmin, h.assets.Delete)

		// Email logs
		client.GET("/email-logs", agency, h.emailLogs.ListByClient)
	}

	// Post-scoped routes; the service checks the post's client against the session.
	posts := api.Group("/posts/:id")
	{
		posts.GET("", perm(permissions.ViewTasks), h.deliverables.Get)
		posts.POST("/transition", agency, h.deliverables.Transition)
		posts.POST("/approve", perm(permissions.ApproveDeliverables), h.deliverables.Approve)
		posts.POST("/revision", perm(permissions.ApproveDeliverables), h.deliverables.RequestRevision)
		posts.POST("/reactions", perm(permissions.ViewTasks), h.deliverables.React)
		posts.POST("/comments", perm(permissions.ViewTasks), limited, h.deliverables.AddComment)
		posts.POST("/versions", agency, limited, h.deliverables.UploadVersion)
		posts.GET("/versions/:version/download-url", perm(permissions.ViewTasks), h.deliverables.DownloadURL)
	}

	api.POST("/notifications/:id/read", h.notifications.MarkRead)
}
