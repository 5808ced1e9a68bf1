package config

import (
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds application configuration
type Config struct {
	Port            int
	MaxUploadMB     int
	UploadDir       string
	HistoryFile     string
	MaxConcurrent   int
	RateLimitPerSec int
	RateLimitBurst  int
	WorkerCount     int
	AllowedOrigins  []string
	LogLevel        string
	LogFormat       string

	// TrustProxyHeaders makes the rate limiter key clients by
	// X-Forwarded-For / X-Real-IP. Enable only behind a proxy that
	// overwrites those headers.
	TrustProxyHeaders bool
}

// Load loads configuration from environment variables with defaults.
// Variables from a .env file in the working directory (or the files named
// in envFiles) fill in anything not already set.
func Load(envFiles ...string) *Config {
	// A missing .env file is normal; real environment always wins.
	_ = godotenv.Load(envFiles...)

	cfg := &Config{
		Port:            getEnvInt("PORT", 8080),
		MaxUploadMB:     getEnvInt("MAX_UPLOAD_MB", 32),
		UploadDir:       getEnv("UPLOAD_DIR", "uploads"),
		HistoryFile:     getEnv("HISTORY_FILE", "data/history.json"),
		MaxConcurrent:   getEnvInt("MAX_CONCURRENT", 50),
		RateLimitPerSec: getEnvInt("RATE_LIMIT", 10),
		RateLimitBurst:  getEnvInt("RATE_LIMIT_BURST", 20),
		WorkerCount:     getEnvInt("WORKER_COUNT", 4),
		AllowedOrigins:  getEnvList("ALLOWED_ORIGINS", []string{"*"}),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "text"),

		TrustProxyHeaders: getEnvBool("TRUST_PROXY_HEADERS", false),
	}
	return cfg
}

// MaxUploadBytes returns the upload limit in bytes
func (c *Config) MaxUploadBytes() int {
	return c.MaxUploadMB << 20
}

// NewLogger builds a logger from LogLevel and LogFormat. Unknown levels
// fall back to info; format "json" selects the JSON formatter.
func (c *Config) NewLogger(out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)

	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if strings.EqualFold(c.LogFormat, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
	return logger
}

func getEnv(key, defaultValue string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil && intVal > 0 {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
