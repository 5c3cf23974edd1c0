package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type webhookPluginConfig struct {
	URL     string `validate:"required,url"`
	Retries int    `validate:"min=0,max=10"`
}

func TestSetPluginConfigFromStruct_RejectsInvalidConfig(t *testing.T) {
	eng := newTestEngine()

	err := eng.SetPluginConfigFromStruct("webhook", webhookPluginConfig{URL: "", Retries: 3})
	require.Error(t, err)
}

func TestSetPluginConfigFromStruct_AcceptsValidConfig(t *testing.T) {
	eng := newTestEngine()

	err := eng.SetPluginConfigFromStruct("webhook", webhookPluginConfig{URL: "https://example.com/hook", Retries: 3})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/hook", eng.pluginConfigs["webhook"]["URL"])
}
