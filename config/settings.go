package config

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Settings holds everything the service reads from the environment.
type Settings struct {
	Port        string
	DatabaseURL string
	FrontendURL string

	AdminSecret     string
	AdminKeyHash    string
	AdminTOTPSecret string
	JWTSecret       string
	// EphemeralJWTSecret is set when JWTSecret was generated at startup;
	// issued tokens stop validating after a restart.
	EphemeralJWTSecret bool

	UploadDir    string
	SeedDir      string
	WatchSeedDir bool
	MaxUploadMB  int64

	MatchThreshold float64
	DefaultGSTRate float64
	RateBasis      string

	RateLimitPerMinute int
	LogLevel           string
}

// RateBasis values.
const (
	RateBasisCGST  = "cgst"
	RateBasisTotal = "total"
)

// LoadEnv loads a .env file if there is one. It reports whether a file was found.
func LoadEnv() bool {
	return godotenv.Load() == nil
}

// Load reads Settings from the environment, applying defaults.
func Load() Settings {
	s := Settings{
		Port:        getEnv("PORT", "8000"),
		DatabaseURL: getEnv("DATABASE_URL", "sqlite://gst.db"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),

		AdminSecret:     os.Getenv("ADMIN_SECRET"),
		AdminKeyHash:    os.Getenv("ADMIN_KEY_HASH"),
		AdminTOTPSecret: os.Getenv("ADMIN_TOTP_SECRET"),
		JWTSecret:       os.Getenv("JWT_SECRET"),

		UploadDir:    getEnv("UPLOAD_DIR", "uploads"),
		SeedDir:      getEnv("SEED_DIR", "seed_data"),
		WatchSeedDir: getBool("WATCH_SEED_DIR", false),
		MaxUploadMB:  int64(getInt("MAX_UPLOAD_MB", 20)),

		MatchThreshold: getFloat("MATCH_THRESHOLD", 65),
		DefaultGSTRate: getFloat("DEFAULT_GST_RATE", 18),
		RateBasis:      strings.ToLower(getEnv("RATE_BASIS", RateBasisCGST)),

		RateLimitPerMinute: getInt("RATE_LIMIT_PER_MINUTE", 100),
		LogLevel:           getEnv("LOG_LEVEL", "INFO"),
	}

	if s.RateBasis != RateBasisTotal {
		s.RateBasis = RateBasisCGST
	}
	// Tokens stay verifiable across restarts when only ADMIN_SECRET is set.
	if s.JWTSecret == "" {
		s.JWTSecret = s.AdminSecret
	}
	if s.JWTSecret == "" && s.AdminKeyHash != "" {
		s.JWTSecret = randomSecret()
		s.EphemeralJWTSecret = true
	}
	return s
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic("config: crypto/rand unavailable: " + err.Error())
	}
	return hex.EncodeToString(b)
}

// AdminConfigured reports whether admin routes are protected.
func (s Settings) AdminConfigured() bool {
	return s.AdminSecret != "" || s.AdminKeyHash != ""
}

// AllowedOrigins returns the CORS origins for the frontend.
func (s Settings) AllowedOrigins() []string {
	origins := []string{}
	for _, o := range strings.Split(s.FrontendURL, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func getFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}
