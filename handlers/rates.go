package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/LovationAdmin/gst-api/services"

	"github.com/gin-gonic/gin"
)

type RatesHandler struct {
	Rates *services.RateService
}

func NewRatesHandler(rates *services.RateService) *RatesHandler {
	return &RatesHandler{Rates: rates}
}

func queryLimit(c *gin.Context, fallback int) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(fallback)))
	if err != nil {
		return fallback
	}
	return limit
}

// ListRates handles GET /rates.
func (h *RatesHandler) ListRates(c *gin.Context) {
	rates, err := h.Rates.ListRates(c.Request.Context(), queryLimit(c, 100))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error fetching rates"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rates": rates, "count": len(rates)})
}

// GetRate handles GET /rates/:hsn.
func (h *RatesHandler) GetRate(c *gin.Context) {
	rate, err := h.Rates.GetRate(c.Request.Context(), c.Param("hsn"))
	if errors.Is(err, services.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "HSN code not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error fetching rate"})
		return
	}
	c.JSON(http.StatusOK, rate)
}
