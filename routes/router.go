package routes

import (
	"time"

	"github.com/LovationAdmin/gst-api/config"
	"github.com/LovationAdmin/gst-api/handlers"
	"github.com/LovationAdmin/gst-api/middleware"
	"github.com/LovationAdmin/gst-api/services"
	"github.com/LovationAdmin/gst-api/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter builds the HTTP engine with CORS, logging and rate limiting.
func NewRouter(settings config.Settings, rates *services.RateService, ws *handlers.WSHandler, limiter *middleware.RateLimiter) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Admin-Secret"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if utils.IsProduction {
		corsConfig.AllowOrigins = settings.AllowedOrigins()
		utils.Logger().Info("🌍 CORS: allowing origins", zap.Strings("origins", corsConfig.AllowOrigins))
	} else {
		corsConfig.AllowAllOrigins = true
	}
	router.Use(cors.New(corsConfig))

	router.Use(middleware.RequestLogger())
	if limiter != nil {
		router.Use(limiter.Handler())
	}

	SetupPublicRoutes(router, handlers.NewCalcHandler(rates), handlers.NewRatesHandler(rates))

	admin := handlers.NewAdminHandler(rates, handlers.AdminCredentials{
		AdminSecret:     settings.AdminSecret,
		AdminKeyHash:    settings.AdminKeyHash,
		AdminTOTPSecret: settings.AdminTOTPSecret,
		JWTSecret:       settings.JWTSecret,
	}, settings.MaxUploadMB<<20)
	SetupAdminRoutes(router, admin, middleware.AdminAuthConfig{
		AdminSecret:  settings.AdminSecret,
		AdminKeyHash: settings.AdminKeyHash,
		JWTSecret:    settings.JWTSecret,
	})

	if ws != nil {
		SetupLiveRoutes(router, ws)
	}

	return router
}
