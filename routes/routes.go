package routes

import (
	"github.com/LovationAdmin/gst-api/handlers"
	"github.com/LovationAdmin/gst-api/middleware"

	"github.com/gin-gonic/gin"
)

// SetupPublicRoutes registers the endpoints the calculator page calls.
func SetupPublicRoutes(r gin.IRouter, calc *handlers.CalcHandler, rates *handlers.RatesHandler) {
	r.GET("/", handlers.Root)
	r.GET("/test", handlers.Test)
	r.GET("/health", handlers.Health)

	r.POST("/api/calc", calc.Calculate)
	r.GET("/calculate/:product", calc.CalculateProduct)
	r.GET("/debug/:product", calc.Debug)

	r.GET("/rates", rates.ListRates)
	r.GET("/rates/:hsn", rates.GetRate)
}

// SetupAdminRoutes registers the admin console endpoints. The legacy
// /upload-pdf path sits behind the same guard as /admin/upload-pdf.
func SetupAdminRoutes(r gin.IRouter, admin *handlers.AdminHandler, auth middleware.AdminAuthConfig) {
	r.POST("/admin/login", admin.Login)

	guard := middleware.AdminAuth(auth)
	r.POST("/upload-pdf", guard, admin.UploadPDF)

	protected := r.Group("/admin")
	protected.Use(guard)
	{
		protected.POST("/upload-pdf", admin.UploadPDF)
		protected.GET("/stats", admin.Stats)
		protected.GET("/logs", admin.Logs)
		protected.GET("/history", admin.History)
		protected.GET("/history/:hsn", admin.History)
		protected.GET("/uploads", admin.Uploads)
	}
}

// SetupLiveRoutes registers the websocket feed of rate updates.
func SetupLiveRoutes(r gin.IRouter, ws *handlers.WSHandler) {
	r.GET("/ws/rates", ws.HandleWS)
}
