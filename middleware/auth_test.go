package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/LovationAdmin/gst-api/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func adminRouter(cfg AdminAuthConfig) *gin.Engine {
	r := gin.New()
	r.GET("/admin/stats", AdminAuth(cfg), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"admin": c.GetBool("admin")})
	})
	return r
}

func adminRequest(r http.Handler, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAdminAuthOpenWhenUnconfigured(t *testing.T) {
	r := adminRouter(AdminAuthConfig{})
	assert.Equal(t, http.StatusOK, adminRequest(r, nil).Code)
}

func TestAdminAuthSecretHeader(t *testing.T) {
	r := adminRouter(AdminAuthConfig{AdminSecret: "s3cret", JWTSecret: "s3cret"})

	assert.Equal(t, http.StatusUnauthorized, adminRequest(r, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, adminRequest(r, map[string]string{"X-Admin-Secret": "nope"}).Code)

	w := adminRequest(r, map[string]string{"X-Admin-Secret": "s3cret"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"admin":true}`, w.Body.String())
}

func TestAdminAuthHashedKey(t *testing.T) {
	hash, err := utils.HashAdminKey("hashed-key")
	require.NoError(t, err)
	r := adminRouter(AdminAuthConfig{AdminKeyHash: hash, JWTSecret: "jwt"})

	assert.Equal(t, http.StatusOK, adminRequest(r, map[string]string{"X-Admin-Secret": "hashed-key"}).Code)
	assert.Equal(t, http.StatusUnauthorized, adminRequest(r, map[string]string{"X-Admin-Secret": "other"}).Code)
}

func TestAdminAuthBearerToken(t *testing.T) {
	r := adminRouter(AdminAuthConfig{AdminSecret: "s3cret", JWTSecret: "jwt"})

	token, _, err := utils.GenerateAdminToken("jwt", time.Now())
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, adminRequest(r, map[string]string{"Authorization": "Bearer " + token}).Code)
	assert.Equal(t, http.StatusUnauthorized, adminRequest(r, map[string]string{"Authorization": "Token " + token}).Code)
	assert.Equal(t, http.StatusUnauthorized, adminRequest(r, map[string]string{"Authorization": "Bearer garbage"}).Code)

	other, _, err := utils.GenerateAdminToken("different", time.Now())
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, adminRequest(r, map[string]string{"Authorization": "Bearer " + other}).Code)
}
