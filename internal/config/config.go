// Package config provides application configuration management through environment variables.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/allisson/go-env"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// Admin HTTP surface (health + metrics only, never a business surface)
	ServerHost string
	ServerPort int

	// Logging
	LogLevel string

	// StorageRoot is the root of the on-disk EL0/EL1/EL2 key tree. Production
	// default mirrors the device path; tests point this at a temp directory.
	StorageRoot string

	// Device trust root (EL0), legacy plaintext mode.
	TrustRootSeed []byte

	// Device trust root, KMS-wrapped mode. Both must be set together.
	KMSProvider string
	KMSKeyURI   string

	// Metrics
	MetricsEnabled   bool
	MetricsNamespace string
	MetricsPort      int

	// Rate limiting for the admin HTTP surface
	RateLimitEnabled         bool
	RateLimitRequestsPerSec  float64
	RateLimitBurst           int

	// CORS for the admin HTTP surface
	CORSEnabled      bool
	CORSAllowOrigins []string
}

// GetGinMode maps LogLevel to a gin engine mode for the admin HTTP router.
func (c *Config) GetGinMode() string {
	if c.LogLevel == "debug" {
		return "debug"
	}
	return "release"
}

// Load loads configuration from environment variables.
// It first attempts to load a .env file by searching recursively from the current directory
// up to the root directory. If no .env file is found, it continues with existing environment variables.
func Load() *Config {
	loadDotEnv()

	return &Config{
		ServerHost: env.GetString("SERVER_HOST", "0.0.0.0"),
		ServerPort: env.GetInt("SERVER_PORT", 8080),

		LogLevel: env.GetString("LOG_LEVEL", "info"),

		StorageRoot: env.GetString("STORAGE_ROOT", "/data/service"),

		TrustRootSeed: env.GetBase64ToBytes("TRUST_ROOT_SEED", []byte("")),

		KMSProvider: env.GetString("KMS_PROVIDER", ""),
		KMSKeyURI:   env.GetString("KMS_KEY_URI", ""),

		MetricsEnabled:   env.GetBool("METRICS_ENABLED", true),
		MetricsNamespace: env.GetString("METRICS_NAMESPACE", "fbekeyd"),
		MetricsPort:      env.GetInt("METRICS_PORT", 9090),

		RateLimitEnabled:        env.GetBool("RATE_LIMIT_ENABLED", false),
		RateLimitRequestsPerSec: env.GetFloat64("RATE_LIMIT_REQUESTS_PER_SEC", 10),
		RateLimitBurst:          env.GetInt("RATE_LIMIT_BURST", 20),

		CORSEnabled:      env.GetBool("CORS_ENABLED", false),
		CORSAllowOrigins: env.GetStringSlice("CORS_ALLOW_ORIGINS", []string{}),
	}
}

// loadDotEnv searches for a .env file recursively from the current directory
// up to the root directory and loads it if found.
func loadDotEnv() {
	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	dir := cwd
	for {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			return
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
}
