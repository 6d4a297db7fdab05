// Package runtimeconfig loads host-level configuration for a pattern
// language embedding from environment variables (and an optional .env
// file), grounded on the teacher's internal/config.LoadConfig pattern.
package runtimeconfig

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds the runtime-lifetime settings a host reads once at startup
// and applies to a runtime.Runtime via its Set* calls.
type Config struct {
	DBPath         string
	RecursionLimit int
	PatternLimit   int
}

// Load reads a .env file if present (errors from a missing file are
// ignored, matching the teacher's db/sqlite_integration_test.go), then
// builds a Config from environment variables, falling back to defaults for
// anything unset or malformed.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		DBPath:         os.Getenv("PATTERNLANG_DB_PATH"),
		RecursionLimit: 256,
		PatternLimit:   100000,
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "patterninspect.db"
	}

	if v := os.Getenv("PATTERNLANG_RECURSION_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RecursionLimit = n
		}
	}
	if v := os.Getenv("PATTERNLANG_PATTERN_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PatternLimit = n
		}
	}

	return cfg
}
