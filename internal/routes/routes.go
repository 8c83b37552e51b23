package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lifedigital/internal/handlers"
	"lifedigital/internal/middleware"
)

func SetupRoutes(
	r *gin.Engine,
	authHandler *handlers.AuthHandler,
	profileHandler *handlers.ProfileHandler,
	uploadHandler *handlers.UploadHandler,
	marginHandler *handlers.MarginHandler,
	simulationHandler *handlers.SimulationHandler,
	eventHandler *handlers.EventHandler,
	webhookHandler *handlers.WebhookHandler,
) *gin.Engine {

	// ---- public
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.POST("/auth/google", authHandler.GoogleLogin)

	// webhooks de entrada validam HMAC próprio
	webhooks := r.Group("/webhooks")
	{
		webhooks.POST("/scan", webhookHandler.ScanResult)
		webhooks.POST("/web", webhookHandler.WebEvent)
	}

	// ---- protected
	r.Use(middleware.AuthMiddleware())

	// PROFILE
	profile := r.Group("/profile")
	{
		profile.GET("/", profileHandler.Get)
		profile.PUT("/cpf", profileHandler.SetCPF)
		profile.PUT("/whatsapp", profileHandler.SetWhatsApp)
		profile.POST("/:attr/resend", profileHandler.Resend)
		profile.POST("/:attr/verify", profileHandler.Verify)
	}

	// UPLOADS
	uploads := r.Group("/uploads")
	{
		uploads.POST("/presign", uploadHandler.Presign)
		uploads.POST("/finalize", uploadHandler.Finalize)
		uploads.GET("/status", uploadHandler.Status)
	}

	// MARGIN
	margin := r.Group("/margin")
	{
		margin.GET("/", marginHandler.Get)
		margin.POST("/refresh", marginHandler.Refresh)
	}

	// SIMULATIONS
	sims := r.Group("/simulations")
	{
		sims.POST("/", simulationHandler.Create)
		sims.GET("/:id", simulationHandler.Get)
		sims.POST("/:id/accept", simulationHandler.Accept)
	}

	// EVENTS (SSE)
	r.GET("/events", eventHandler.Stream)

	return r
}
