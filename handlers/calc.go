package handlers

import (
	"net/http"

	"github.com/LovationAdmin/gst-api/models"
	"github.com/LovationAdmin/gst-api/services"
	"github.com/LovationAdmin/gst-api/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type CalcHandler struct {
	Rates *services.RateService
}

func NewCalcHandler(rates *services.RateService) *CalcHandler {
	return &CalcHandler{Rates: rates}
}

// Calculate handles POST /api/calc.
func (h *CalcHandler) Calculate(c *gin.Context) {
	var req models.CalcRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: description and price are required"})
		return
	}

	resp, err := h.Rates.Calculate(c.Request.Context(), req)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			utils.Logger().Error("[Calc] calculation failed", zap.Error(err))
			c.JSON(status, gin.H{"error": "Calculation failed"})
			return
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	utils.LogCalculation(req.Description, resp.Matched, resp.Score, c.ClientIP())
	c.JSON(http.StatusOK, resp)
}

// CalculateProduct handles GET /calculate/:product.
func (h *CalcHandler) CalculateProduct(c *gin.Context) {
	resp, err := h.Rates.Lookup(c.Request.Context(), c.Param("product"), c.ClientIP())
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			utils.Logger().Error("[Calc] lookup failed", zap.Error(err))
			c.JSON(status, gin.H{"error": "Error calculating GST"})
			return
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Debug handles GET /debug/:product.
func (h *CalcHandler) Debug(c *gin.Context) {
	result, err := h.Rates.Debug(c.Request.Context(), c.Param("product"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}
