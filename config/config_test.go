package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TGFM_TEST_STR", "value")
	t.Setenv("TGFM_TEST_INT", "42")
	t.Setenv("TGFM_TEST_BAD_INT", "nope")
	t.Setenv("TGFM_TEST_BOOL", "true")

	assert.Equal(t, "value", getEnv("TGFM_TEST_STR", "fallback"))
	assert.Equal(t, "fallback", getEnv("TGFM_TEST_MISSING", "fallback"))

	assert.Equal(t, 42, getEnvInt("TGFM_TEST_INT", 7))
	assert.Equal(t, 7, getEnvInt("TGFM_TEST_BAD_INT", 7))
	assert.Equal(t, 7, getEnvInt("TGFM_TEST_MISSING", 7))

	assert.True(t, getEnvBool("TGFM_TEST_BOOL", false))
	assert.False(t, getEnvBool("TGFM_TEST_MISSING", false))
}

func TestLoadValidatesPlayPolicy(t *testing.T) {
	t.Setenv("PLAY_POLICY", "Replace")
	assert.Equal(t, "replace", Load().PlayPolicy)

	t.Setenv("PLAY_POLICY", "shuffle")
	assert.Equal(t, "append", Load().PlayPolicy)
}

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, "192k", cfg.AudioBitrate)
	assert.Equal(t, 5, cfg.SearchLimit)
	assert.Equal(t, 2, cfg.TrackGapSeconds)
	assert.False(t, cfg.RedisEnabled)
}
