// handlers/admin.go
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/LovationAdmin/gst-api/services"
	"github.com/LovationAdmin/gst-api/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AdminCredentials are the secrets the admin login checks.
type AdminCredentials struct {
	AdminSecret     string
	AdminKeyHash    string
	AdminTOTPSecret string
	JWTSecret       string
}

type AdminHandler struct {
	Rates       *services.RateService
	Credentials AdminCredentials
	MaxUpload   int64
	now         func() time.Time
}

func NewAdminHandler(rates *services.RateService, creds AdminCredentials, maxUploadBytes int64) *AdminHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 20 << 20
	}
	return &AdminHandler{
		Rates:       rates,
		Credentials: creds,
		MaxUpload:   maxUploadBytes,
		now:         time.Now,
	}
}

// ============================================
// Login
// ============================================

type AdminLoginRequest struct {
	AdminKey string `json:"admin_key" binding:"required"`
	TOTPCode string `json:"totp_code"`
}

// Login exchanges the admin key (and TOTP code when enabled) for a token.
// POST /admin/login
func (h *AdminHandler) Login(c *gin.Context) {
	var req AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "admin_key is required"})
		return
	}

	creds := h.Credentials
	if creds.AdminSecret == "" && creds.AdminKeyHash == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Admin authentication is not configured"})
		return
	}

	if !utils.CheckAdminKey(req.AdminKey, creds.AdminKeyHash, creds.AdminSecret) {
		utils.LogAdminAction("login", c.ClientIP(), false)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid admin key"})
		return
	}

	if creds.AdminTOTPSecret != "" {
		if req.TOTPCode == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "2FA code required", "requires_2fa": true})
			return
		}
		if !utils.VerifyTOTP(creds.AdminTOTPSecret, req.TOTPCode) {
			utils.LogAdminAction("login 2fa", c.ClientIP(), false)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid 2FA code"})
			return
		}
	}

	token, expiresAt, err := utils.GenerateAdminToken(creds.JWTSecret, h.now())
	if err != nil {
		utils.Logger().Error("[Admin] failed to generate token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	utils.LogAdminAction("login", c.ClientIP(), true)
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_at": expiresAt.Format(time.RFC3339),
	})
}

// ============================================
// Upload
// ============================================

// UploadPDF parses an uploaded rate schedule into the rate table.
// POST /upload-pdf and POST /admin/upload-pdf
func (h *AdminHandler) UploadPDF(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUpload)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"ok": false, "error": "File is too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "No PDF file uploaded"})
		return
	}
	defer file.Close()

	if ct := header.Header.Get("Content-Type"); ct != "" && ct != "application/pdf" && ct != "application/octet-stream" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "Only PDF files are accepted"})
		return
	}

	result, err := h.Rates.UploadPDF(c.Request.Context(), header.Filename, file)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			utils.Logger().Error("[Upload] failed to process pdf", zap.String("filename", header.Filename), zap.Error(err))
			c.JSON(status, gin.H{"ok": false, "error": "Error processing PDF: " + err.Error()})
			return
		}
		c.JSON(status, gin.H{"ok": false, "error": err.Error(), "parsed_rows": 0})
		return
	}

	c.JSON(http.StatusOK, result)
}

// ============================================
// Reports
// ============================================

// Stats returns seeded vs uploaded rate counts.
// GET /admin/stats
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.Rates.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Logs returns recent product lookups.
// GET /admin/logs
func (h *AdminHandler) Logs(c *gin.Context) {
	logs, err := h.Rates.CalculationLogs(c.Request.Context(), queryLimit(c, 100))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs, "count": len(logs)})
}

// History returns rate changes, for one HSN when the path carries one.
// GET /admin/history and GET /admin/history/:hsn
func (h *AdminHandler) History(c *gin.Context) {
	changes, err := h.Rates.History(c.Request.Context(), c.Param("hsn"), queryLimit(c, 100))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": changes, "count": len(changes)})
}

// Uploads lists processed PDFs.
// GET /admin/uploads
func (h *AdminHandler) Uploads(c *gin.Context) {
	uploads, err := h.Rates.Uploads(c.Request.Context(), queryLimit(c, 50))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"uploads": uploads, "count": len(uploads)})
}
