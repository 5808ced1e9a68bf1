package config

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "MAX_UPLOAD_MB", "UPLOAD_DIR", "WORKER_COUNT", "ALLOWED_ORIGINS", "TRUST_PROXY_HEADERS"} {
		t.Setenv(key, "")
	}

	cfg := Load(filepath.Join(t.TempDir(), "missing.env"))

	if cfg.Port != 8080 {
		t.Errorf("Expected port 8080, got %d", cfg.Port)
	}
	if cfg.MaxUploadMB != 32 {
		t.Errorf("Expected MaxUploadMB 32, got %d", cfg.MaxUploadMB)
	}
	if cfg.MaxUploadBytes() != 32<<20 {
		t.Errorf("Expected MaxUploadBytes %d, got %d", 32<<20, cfg.MaxUploadBytes())
	}
	if cfg.UploadDir != "uploads" {
		t.Errorf("Expected UploadDir uploads, got %s", cfg.UploadDir)
	}
	if !reflect.DeepEqual(cfg.AllowedOrigins, []string{"*"}) {
		t.Errorf("Expected AllowedOrigins [*], got %v", cfg.AllowedOrigins)
	}
	if cfg.TrustProxyHeaders {
		t.Error("Expected TrustProxyHeaders off by default")
	}
}

func TestLoad_TrustProxyHeaders(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"true", true},
		{"1", true},
		{"false", false},
		{"yes please", false},
	}

	for _, tt := range tests {
		t.Setenv("TRUST_PROXY_HEADERS", tt.value)
		cfg := Load(filepath.Join(t.TempDir(), "missing.env"))
		if cfg.TrustProxyHeaders != tt.want {
			t.Errorf("TRUST_PROXY_HEADERS=%q: got %v, want %v", tt.value, cfg.TrustProxyHeaders, tt.want)
		}
	}
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("WORKER_COUNT", "not a number")
	t.Setenv("RATE_LIMIT", "-3")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("HISTORY_FILE", "/tmp/h.json")

	cfg := Load(filepath.Join(t.TempDir(), "missing.env"))

	if cfg.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.Port)
	}
	if cfg.WorkerCount != 4 {
		t.Errorf("Expected default WorkerCount 4 for invalid value, got %d", cfg.WorkerCount)
	}
	if cfg.RateLimitPerSec != 10 {
		t.Errorf("Expected default RateLimitPerSec 10 for negative value, got %d", cfg.RateLimitPerSec)
	}
	want := []string{"https://a.example", "https://b.example"}
	if !reflect.DeepEqual(cfg.AllowedOrigins, want) {
		t.Errorf("Expected AllowedOrigins %v, got %v", want, cfg.AllowedOrigins)
	}
	if cfg.HistoryFile != "/tmp/h.json" {
		t.Errorf("Expected HistoryFile /tmp/h.json, got %s", cfg.HistoryFile)
	}
}

func TestLoad_DotEnv(t *testing.T) {
	t.Setenv("PORT", "")
	os.Unsetenv("PORT")
	t.Setenv("UPLOAD_DIR", "from-env")

	envFile := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(envFile, []byte("PORT=7070\nUPLOAD_DIR=from-file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("PORT") })

	cfg := Load(envFile)

	if cfg.Port != 7070 {
		t.Errorf("Expected port 7070 from .env, got %d", cfg.Port)
	}
	if cfg.UploadDir != "from-env" {
		t.Errorf("Expected real environment to win, got %s", cfg.UploadDir)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	cfg := &Config{LogLevel: "debug", LogFormat: "json"}
	logger := cfg.NewLogger(&buf)
	if logger.GetLevel() != logrus.DebugLevel {
		t.Errorf("Expected debug level, got %v", logger.GetLevel())
	}
	logger.WithField("mode", "compress").Info("hello")
	if !strings.Contains(buf.String(), `"mode":"compress"`) {
		t.Errorf("Expected JSON output, got %q", buf.String())
	}

	cfg = &Config{LogLevel: "chatty", LogFormat: "text"}
	logger = cfg.NewLogger(&buf)
	if logger.GetLevel() != logrus.InfoLevel {
		t.Errorf("Expected info fallback, got %v", logger.GetLevel())
	}
	if _, ok := logger.Formatter.(*logrus.TextFormatter); !ok {
		t.Errorf("Expected text formatter, got %T", logger.Formatter)
	}
}
