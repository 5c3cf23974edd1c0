package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyEnvOverlay_OverridesFromEnv(t *testing.T) {
	t.Setenv("AUTHCORE_DATABASE_DSN", "postgres://overlay")
	t.Setenv("AUTHCORE_JWKS_ISSUER", "overlay-issuer")

	c := &Config{}
	c.Database.DataSource = "postgres://original"

	ApplyEnvOverlay(c)

	assert.Equal(t, "postgres://overlay", c.Database.DataSource)
	assert.Equal(t, "overlay-issuer", c.JWKS.Issuer)
}

func TestApplyEnvOverlay_LeavesUnsetFieldsAlone(t *testing.T) {
	c := &Config{}
	c.Database.DataSource = "postgres://original"

	ApplyEnvOverlay(c)

	assert.Equal(t, "postgres://original", c.Database.DataSource)
}
