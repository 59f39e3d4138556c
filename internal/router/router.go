// internal/router/router.go
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/authchain/internal/config"
	"github.com/javajoker/authchain/internal/handlers"
	"github.com/javajoker/authchain/internal/middleware"
	"github.com/javajoker/authchain/internal/services"
	"github.com/javajoker/authchain/internal/utils"
)

// Dependencies are the services the HTTP facade is built on.
type Dependencies struct {
	Marketplace *services.MarketplaceService
	Content     *services.ContentService
	Identities  services.IdentityProvider
	Logger      logrus.FieldLogger
}

// Initialize builds the engine. The returned function stops the background
// work of the rate limiters.
func Initialize(cfg *config.Config, deps Dependencies) (*gin.Engine, func()) {
	workHandler := handlers.NewWorkHandler(deps.Marketplace, deps.Content)
	licenseHandler := handlers.NewLicenseHandler(deps.Marketplace)
	contentHandler := handlers.NewContentHandler(deps.Content)
	adminHandler := handlers.NewAdminHandler(deps.Marketplace)
	authHandler := handlers.NewAuthHandler(deps.Identities)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	generalLimit, stopGeneral := middleware.RateLimit(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
	uploadLimit, stopUpload := middleware.UploadRateLimit(cfg.Server.UploadPerMinute)
	stop := func() {
		stopGeneral()
		stopUpload()
	}

	r := gin.New()
	r.MaxMultipartMemory = 32 << 20

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.CORS(cfg.Frontend.AllowedOrigins))
	r.Use(middleware.I18nMiddleware(cfg.I18n.DefaultLocale))
	r.Use(generalLimit)
	r.Use(middleware.SanitizeInput())

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
			"ledger":  cfg.Ledger.Backend,
		})
	})

	api := r.Group("/api")
	api.Use(middleware.OptionalAuth())
	{
		auth := api.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.GET("/users", authHandler.Users)
			auth.GET("/me", middleware.AuthRequired(), authHandler.Me)
		}

		works := api.Group("/works")
		{
			works.GET("", workHandler.ListWorks)
			works.POST("", workHandler.RegisterWork)
			works.POST("/publish", uploadLimit, workHandler.PublishWork)
			works.GET("/:id", workHandler.GetWork)
			works.GET("/:id/licenses", workHandler.GetWorkLicenses)
		}

		licenses := api.Group("/licenses")
		{
			licenses.POST("", licenseHandler.CreateLicense)
			licenses.POST("/purchase/:licenseId", licenseHandler.PurchaseLicense)
			licenses.GET("/:id", licenseHandler.GetLicense)
		}

		api.GET("/creators/:address/works", workHandler.GetCreatorWorks)
		api.GET("/accounts/:address/balance", adminHandler.GetBalance)
		api.GET("/registry", adminHandler.GetRegistry)
		api.POST("/content", uploadLimit, contentHandler.Upload)

		admin := api.Group("/admin")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired())
		{
			admin.POST("/withdraw", adminHandler.Withdraw)
		}
	}

	return r, stop
}
