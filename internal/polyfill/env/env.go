// Package env reads the process configuration from environment variables,
// the way cmd/edge-gateway's flag/env handling in the teacher resolves
// defaults before any service is constructed.
package env

import (
	"os"
	"strconv"
)

// Config holds the process-wide settings named in the service's external
// interface: catalogue location, cache directory, listen port and log
// level.
type Config struct {
	PolyfillBase  string // POLYFILL_BASE
	CacheDir      string // CACHE_DIR (empty disables the disk cache tier)
	Port          int    // PORT
	LogLevel      string // POLYFILL_LOG_LEVEL
	LogFile       string // POLYFILL_LOG_FILE (optional rotating file sink)
	MetricsListen string // POLYFILL_METRICS_LISTEN
}

// Load reads Config from the environment, applying the documented
// defaults for every unset variable.
func Load() Config {
	return Config{
		PolyfillBase:  getString("POLYFILL_BASE", "polyfill-libraries"),
		CacheDir:      os.Getenv("CACHE_DIR"),
		Port:          getInt("PORT", 8787),
		LogLevel:      getString("POLYFILL_LOG_LEVEL", "info"),
		LogFile:       os.Getenv("POLYFILL_LOG_FILE"),
		MetricsListen: getString("POLYFILL_METRICS_LISTEN", ":9090"),
	}
}

func getString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
