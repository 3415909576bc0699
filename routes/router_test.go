package routes

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/LovationAdmin/gst-api/config"
	"github.com/LovationAdmin/gst-api/handlers"
	"github.com/LovationAdmin/gst-api/models"
	"github.com/LovationAdmin/gst-api/services"
	"github.com/LovationAdmin/gst-api/utils"

	"github.com/gin-gonic/gin"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
	utils.SetLogger(zap.NewNop())
}

func newTestRouter(t *testing.T, settings config.Settings) *gin.Engine {
	t.Helper()

	db, err := config.InitDB(":memory:")
	require.NoError(t, err)
	require.NoError(t, config.RunMigrations(db))
	t.Cleanup(func() { db.Close() })

	rates := services.NewRateService(services.NewRateRepository(db), services.NewPDFParser(), services.RateServiceConfig{
		MatchThreshold: 65,
		DefaultGSTRate: 18,
		RateBasis:      config.RateBasisCGST,
		UploadDir:      t.TempDir(),
	})
	_, _, err = rates.ImportRows(t.Context(), []models.ParsedRow{
		{HSN: "0401", Description: "Fresh milk and pasteurised milk", Rate: 0},
		{HSN: "1006", Description: "Rice", Rate: 2.5},
		{HSN: "8517", Description: "Mobile phones and smartphones", Rate: 9},
	}, "upload", "sample.pdf")
	require.NoError(t, err)

	ws := handlers.NewWSHandler()
	t.Cleanup(func() { ws.Close() })
	rates.SetPublisher(ws)

	return NewRouter(settings, rates, ws, nil)
}

func securedSettings() config.Settings {
	return config.Settings{AdminSecret: "s3cret", JWTSecret: "jwt-secret", MaxUploadMB: 1}
}

func doJSON(r http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func uploadRequest(t *testing.T, path, filename, contentType, content string, headers map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req
}

func TestHealthEndpoints(t *testing.T) {
	r := newTestRouter(t, securedSettings())

	for _, path := range []string{"/", "/test", "/health"} {
		w := doJSON(r, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestCalcEndpoint(t *testing.T) {
	r := newTestRouter(t, securedSettings())

	w := doJSON(r, http.MethodPost, "/api/calc", `{"description":"Rice","price":100}`, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.CalcResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Matched)
	require.NotNil(t, resp.Match)
	assert.Equal(t, "1006", resp.Match.HSN)
	assert.Equal(t, 5.0, resp.Match.Rate)
	assert.Equal(t, 105.0, resp.Calc.Total)

	w = doJSON(r, http.MethodPost, "/api/calc", `{"description":"zzqx vvkj","price":100,"inclusive":true}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp = models.CalcResponse{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Matched)
	assert.Equal(t, 18.0, resp.Calc.Rate)
	assert.NotEmpty(t, resp.Message)
}

func TestCalcEndpointValidation(t *testing.T) {
	r := newTestRouter(t, securedSettings())

	assert.Equal(t, http.StatusBadRequest, doJSON(r, http.MethodPost, "/api/calc", `{}`, nil).Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(r, http.MethodPost, "/api/calc", `{"description":"rice"}`, nil).Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(r, http.MethodPost, "/api/calc", `not json`, nil).Code)

	w := doJSON(r, http.MethodPost, "/api/calc", `{"description":"rice","price":-5}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "price")
}

func TestProductLookup(t *testing.T) {
	r := newTestRouter(t, securedSettings())

	w := doJSON(r, http.MethodGet, "/calculate/rice", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp models.LookupResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Rate)
	assert.Equal(t, 5.0, *resp.Rate)

	w = doJSON(r, http.MethodGet, "/calculate/zzqx", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Product not found")

	w = doJSON(r, http.MethodGet, "/debug/milk", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "fuzzy_matches")
}

func TestRatesEndpoints(t *testing.T) {
	r := newTestRouter(t, securedSettings())

	w := doJSON(r, http.MethodGet, "/rates?limit=2", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Rates []models.GSTRate `json:"rates"`
		Count int              `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 2, list.Count)

	w = doJSON(r, http.MethodGet, "/rates/8517", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Mobile phones")

	w = doJSON(r, http.MethodGet, "/rates/9999", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminRoutesRequireAuth(t *testing.T) {
	r := newTestRouter(t, securedSettings())

	for _, path := range []string{"/admin/stats", "/admin/logs", "/admin/history", "/admin/history/1006", "/admin/uploads"} {
		assert.Equal(t, http.StatusUnauthorized, doJSON(r, http.MethodGet, path, "", nil).Code, path)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, uploadRequest(t, "/upload-pdf", "rates.pdf", "application/pdf", "%PDF-", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, uploadRequest(t, "/admin/upload-pdf", "rates.pdf", "application/pdf", "%PDF-", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminLoginAndStats(t *testing.T) {
	r := newTestRouter(t, securedSettings())

	assert.Equal(t, http.StatusUnauthorized, doJSON(r, http.MethodPost, "/admin/login", `{"admin_key":"wrong"}`, nil).Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(r, http.MethodPost, "/admin/login", `{}`, nil).Code)

	w := doJSON(r, http.MethodPost, "/admin/login", `{"admin_key":"s3cret"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var login struct {
		Token     string `json:"token"`
		ExpiresAt string `json:"expires_at"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))
	require.NotEmpty(t, login.Token)
	assert.NotEmpty(t, login.ExpiresAt)

	w = doJSON(r, http.MethodGet, "/admin/stats", "", map[string]string{"Authorization": "Bearer " + login.Token})
	require.Equal(t, http.StatusOK, w.Code)
	var stats models.RateStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 3, stats.TotalRates)
	assert.Equal(t, 3, stats.UserUploaded)

	w = doJSON(r, http.MethodGet, "/admin/history/1006", "", map[string]string{"X-Admin-Secret": "s3cret"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":0`)
}

func TestAdminLoginWithTOTP(t *testing.T) {
	settings := securedSettings()
	settings.AdminTOTPSecret = "JBSWY3DPEHPK3PXP"
	r := newTestRouter(t, settings)

	w := doJSON(r, http.MethodPost, "/admin/login", `{"admin_key":"s3cret"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "requires_2fa")

	w = doJSON(r, http.MethodPost, "/admin/login", `{"admin_key":"s3cret","totp_code":"000000x"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	code, err := totp.GenerateCode(settings.AdminTOTPSecret, time.Now())
	require.NoError(t, err)
	w = doJSON(r, http.MethodPost, "/admin/login", `{"admin_key":"s3cret","totp_code":"`+code+`"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))
	require.NotEmpty(t, login.Token)

	w = doJSON(r, http.MethodGet, "/admin/stats", "", map[string]string{"Authorization": "Bearer " + login.Token})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminLoginWithKeyHashOnly(t *testing.T) {
	hash, err := utils.HashAdminKey("k3y")
	require.NoError(t, err)
	t.Setenv("ADMIN_SECRET", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("ADMIN_TOTP_SECRET", "")
	t.Setenv("ADMIN_KEY_HASH", hash)

	settings := config.Load()
	r := newTestRouter(t, settings)

	assert.Equal(t, http.StatusUnauthorized, doJSON(r, http.MethodPost, "/admin/login", `{"admin_key":"wrong"}`, nil).Code)

	w := doJSON(r, http.MethodPost, "/admin/login", `{"admin_key":"k3y"}`, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))
	require.NotEmpty(t, login.Token)

	w = doJSON(r, http.MethodGet, "/admin/stats", "", map[string]string{"Authorization": "Bearer " + login.Token})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminLoginUnconfigured(t *testing.T) {
	r := newTestRouter(t, config.Settings{})

	w := doJSON(r, http.MethodPost, "/admin/login", `{"admin_key":"anything"}`, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	// Without credentials the admin routes are open.
	assert.Equal(t, http.StatusOK, doJSON(r, http.MethodGet, "/admin/stats", "", nil).Code)
}

func TestUploadRejectsNonPDF(t *testing.T) {
	r := newTestRouter(t, securedSettings())
	auth := map[string]string{"X-Admin-Secret": "s3cret"}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, uploadRequest(t, "/admin/upload-pdf", "notes.txt", "text/plain", "hello", auth))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"ok":false`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, uploadRequest(t, "/upload-pdf", "rates.pdf", "application/pdf", "hello", auth))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), services.ErrNotPDF.Error())

	w = doJSON(r, http.MethodPost, "/admin/upload-pdf", `{}`, auth)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "No PDF file uploaded")
}
