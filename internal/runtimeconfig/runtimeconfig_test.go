package runtimeconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, "patterninspect.db", cfg.DBPath)
	assert.Equal(t, 256, cfg.RecursionLimit)
	assert.Equal(t, 100000, cfg.PatternLimit)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PATTERNLANG_DB_PATH", "/tmp/audit.db")
	t.Setenv("PATTERNLANG_RECURSION_LIMIT", "64")
	t.Setenv("PATTERNLANG_PATTERN_LIMIT", "500")

	cfg := Load()
	assert.Equal(t, "/tmp/audit.db", cfg.DBPath)
	assert.Equal(t, 64, cfg.RecursionLimit)
	assert.Equal(t, 500, cfg.PatternLimit)
}

func TestLoad_IgnoresMalformedIntegers(t *testing.T) {
	t.Setenv("PATTERNLANG_RECURSION_LIMIT", "not-a-number")
	t.Setenv("PATTERNLANG_PATTERN_LIMIT", "-5")

	cfg := Load()
	assert.Equal(t, 256, cfg.RecursionLimit)
	assert.Equal(t, 100000, cfg.PatternLimit)
}
