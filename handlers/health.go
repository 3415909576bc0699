package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const Version = "1.0.0"

func Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "GST Calculator API", "version": Version})
}

func Test(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "OK", "message": "Server is working"})
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"version": Version,
		"time":    time.Now().Format(time.RFC3339),
	})
}
