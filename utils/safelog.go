// utils/safelog.go
// ============================================================================
// SAFE LOGGING - masks client data in production
// ============================================================================
// Structured logging on top of zap. In production, client IPs, admin keys
// and tokens are masked before they reach the log sink.
// ============================================================================

package utils

import (
	"os"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ============================================================================
// CONFIGURATION
// ============================================================================

var (
	// IsProduction is true when the service runs in release mode.
	IsProduction = os.Getenv("GIN_MODE") == "release" ||
		os.Getenv("ENVIRONMENT") == "production" ||
		os.Getenv("ENV") == "production"

	logger   *zap.Logger
	loggerMu sync.RWMutex
)

func parseLevel(raw string) zapcore.Level {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "DEBUG":
		return zapcore.DebugLevel
	case "WARN", "WARNING":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// InitLogger builds the process logger. Calling it again replaces the logger.
func InitLogger(level string) (*zap.Logger, error) {
	var cfg zap.Config
	if IsProduction {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))

	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	SetLogger(l)
	return l, nil
}

// Logger returns the process logger, building a default one on first use.
func Logger() *zap.Logger {
	loggerMu.RLock()
	l := logger
	loggerMu.RUnlock()
	if l != nil {
		return l
	}

	loggerMu.Lock()
	defer loggerMu.Unlock()
	if logger == nil {
		built, err := zap.NewProduction()
		if err != nil {
			built = zap.NewNop()
		}
		logger = built
	}
	return logger
}

// SetLogger swaps the process logger.
func SetLogger(l *zap.Logger) {
	loggerMu.Lock()
	logger = l
	loggerMu.Unlock()
}

// ============================================================================
// MASKING
// ============================================================================

var (
	ipv4Regex   = regexp.MustCompile(`\b(\d{1,3})\.(\d{1,3})\.\d{1,3}\.\d{1,3}\b`)
	bearerRegex = regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9\-_.]+`)
)

// MaskString hides IPv4 addresses and bearer tokens in production.
func MaskString(input string) string {
	if !IsProduction {
		return input
	}
	result := ipv4Regex.ReplaceAllString(input, "$1.$2.*.*")
	return bearerRegex.ReplaceAllString(result, "Bearer ***")
}

// MaskIP keeps the first two octets of an IPv4 address in production.
func MaskIP(ip string) string {
	if !IsProduction {
		return ip
	}
	if ipv4Regex.MatchString(ip) {
		return ipv4Regex.ReplaceAllString(ip, "$1.$2.*.*")
	}
	return "***"
}

// MaskSecret never prints more than the first 4 characters of a secret.
func MaskSecret(secret string) string {
	if len(secret) <= 4 {
		return "***"
	}
	return secret[:4] + "***"
}

// ============================================================================
// DOMAIN LOGGING HELPERS
// ============================================================================

// LogCalculation records a calculation request without the raw client IP.
func LogCalculation(description string, matched bool, score float64, ip string) {
	Logger().Info("[Calc] lookup",
		zap.String("description", description),
		zap.Bool("matched", matched),
		zap.Float64("score", score),
		zap.String("ip", MaskIP(ip)))
}

// LogUpload records a processed rate PDF.
func LogUpload(filename string, parsedRows, updated int) {
	Logger().Info("[Upload] pdf processed",
		zap.String("filename", filename),
		zap.Int("parsed_rows", parsedRows),
		zap.Int("updated", updated))
}

// LogAdminAction records an admin action.
func LogAdminAction(action string, ip string, success bool) {
	Logger().Info("[Admin] "+action,
		zap.String("ip", MaskIP(ip)),
		zap.Bool("success", success))
}

// GetEnvMode returns the current environment mode.
func GetEnvMode() string {
	if IsProduction {
		return "production"
	}
	return "development"
}

// LogStartup logs the startup banner.
func LogStartup(appName string, version string, port string) {
	Logger().Info("🚀 "+appName+" starting",
		zap.String("version", version),
		zap.String("mode", GetEnvMode()),
		zap.String("port", port))
	if IsProduction {
		Logger().Info("⚠️  Production mode: client IPs and keys are masked in logs")
	}
}
