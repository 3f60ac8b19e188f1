package router

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mailsorter/internal/handler"
	"mailsorter/internal/middleware"
)

func SetupRoutes(
	e *echo.Echo,
	authHandler *handler.AuthHandler,
	categoryHandler *handler.CategoryHandler,
	emailHandler *handler.EmailHandler,
	unsubscribeHandler *handler.UnsubscribeHandler,
	webhookHandler *handler.WebhookHandler,
) {
	// Public routes
	e.GET("/auth/logout", authHandler.LogoutHandler)
	e.GET("/auth/:provider", authHandler.BeginAuthHandler)
	e.GET("/auth/:provider/callback", authHandler.CallbackHandler)

	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	e.POST("/webhooks/gmail", webhookHandler.GmailPush)

	// Protected API routes
	protected := e.Group("/api")
	protected.Use(middleware.AuthMiddleware(authHandler))

	protected.GET("/me", authHandler.Me)

	// Category API routes
	protected.POST("/categories", categoryHandler.CreateCategory)
	protected.GET("/categories", categoryHandler.GetCategories)
	protected.POST("/categories/suggest", categoryHandler.SuggestCategory)
	protected.GET("/categories/:id", categoryHandler.GetCategory)
	protected.PUT("/categories/:id", categoryHandler.UpdateCategory)
	protected.DELETE("/categories/:id", categoryHandler.DeleteCategory)

	// Email API routes
	protected.GET("/emails", emailHandler.GetEmails)
	protected.GET("/emails/category/:id", emailHandler.GetEmailsByCategory)
	protected.POST("/emails/sync", emailHandler.SyncEmails)
	protected.POST("/emails/bulk-action", emailHandler.PerformBulkAction)
	protected.DELETE("/emails", emailHandler.DeleteEmails)
	protected.POST("/emails/unsubscribe", unsubscribeHandler.UnsubscribeEmails)
	protected.GET("/emails/:id", emailHandler.GetEmail)
	protected.DELETE("/emails/:id", emailHandler.DeleteEmail)
	protected.POST("/emails/:id/classify", emailHandler.ClassifyEmail)
	protected.POST("/emails/:id/unsubscribe", unsubscribeHandler.UnsubscribeEmail)

	// Real-time email updates via Server-Sent Events (SSE)
	protected.GET("/sse", emailHandler.SSEEmailUpdates)
}
