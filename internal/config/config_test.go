package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type pluginConfig struct {
	MaxRetries int    `default:"3"`
	Name       string `default:"default-plugin"`
}

func TestWithDefaults_PopulatesZeroValuedFields(t *testing.T) {
	cfg := &pluginConfig{}
	require := assert.New(t)
	err := WithDefaults(cfg)
	require.NoError(err)
	require.Equal(3, cfg.MaxRetries)
	require.Equal("default-plugin", cfg.Name)
}

func TestWithDefaults_DoesNotOverrideSetFields(t *testing.T) {
	cfg := &pluginConfig{MaxRetries: 10}
	err := WithDefaults(cfg)
	assert.NoError(t, err)
	assert.Equal(t, 10, cfg.MaxRetries)
	assert.Equal(t, "default-plugin", cfg.Name)
}
