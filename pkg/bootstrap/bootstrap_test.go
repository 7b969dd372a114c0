package bootstrap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		SessionSecret:      "secret",
		StravaClientID:     "client-id",
		StravaClientSecret: "client-secret",
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidateRejectsEmptySessionSecret(t *testing.T) {
	cfg := validConfig()
	cfg.SessionSecret = ""

	err := cfg.Validate()
	assert.ErrorContains(t, err, "SESSION_SECRET")
}

func TestValidateRejectsMissingStravaCredentials(t *testing.T) {
	cfg := validConfig()
	cfg.StravaClientID = ""
	cfg.StravaClientSecret = ""

	err := cfg.Validate()
	assert.ErrorContains(t, err, "STRAVA_CLIENT_ID")
	assert.ErrorContains(t, err, "STRAVA_CLIENT_SECRET")
}
