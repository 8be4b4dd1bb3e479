package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 5*time.Minute, cfg.Token.RefreshThreshold)
	assert.Equal(t, 3, cfg.Token.MaxRetries)
	assert.Equal(t, time.Second, cfg.Token.BaseDelay)
	assert.Equal(t, "uni_session", cfg.Session.CookieName)
	assert.False(t, cfg.Session.Secure)
	assert.Equal(t, 7*24*time.Hour, cfg.Session.TTL)
}

func TestFromViperProductionSecureCookie(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("ENV", EnvProduction)
	v.Set("BACKEND_BASE_URL", "https://api.example.edu/")
	v.Set("TOKEN_REFRESH_THRESHOLD", "not-a-duration")

	cfg := fromViper(v)

	assert.True(t, cfg.Session.Secure)
	assert.Equal(t, "https://api.example.edu", cfg.Backend.BaseURL)
	assert.Equal(t, 5*time.Minute, cfg.Token.RefreshThreshold)
}

func TestSplitAndTrim(t *testing.T) {
	assert.Nil(t, splitAndTrim(""))
	assert.Equal(t, []string{"a", "b"}, splitAndTrim(" a, ,b "))
}
