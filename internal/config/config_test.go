package config

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ORDERS_BACKEND", "")
	t.Setenv("MATCH_AUTOSELECT", "yes")
	t.Setenv("MATCH_TOP_N", "not-a-number")
	t.Setenv("MATCH_MIN_SCORE", "55.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "", cfg.OrdersBackend)
	assert.True(t, cfg.MatchAutoSelect)
	assert.Equal(t, 5, cfg.MatchTopN)
	assert.InDelta(t, 55.5, cfg.MatchMinScore, 0.0001)
}

func TestRequire(t *testing.T) {
	cfg := Config{}
	assert.Error(t, cfg.Require("S3_BUCKET", "  "))
	assert.NoError(t, cfg.Require("S3_BUCKET", "orders"))
}

func TestNewLoggerLevel(t *testing.T) {
	log := NewLogger(Config{LogLevel: "warn", LogFormat: "json"})
	assert.Equal(t, zerolog.WarnLevel, log.GetLevel())

	log = NewLogger(Config{LogLevel: "bogus"})
	assert.Equal(t, zerolog.InfoLevel, log.GetLevel())
}
