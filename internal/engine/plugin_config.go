package engine

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"

	"github.com/veyra/authcore/internal/coreerr"
)

// configValidator is shared across plugin config validation the way
// jrschumacher-dis.quest's config package holds a single *validator.Validate
// rather than constructing one per call.
var configValidator = validator.New()

// SetPluginConfigFromStruct validates cfg's `validate:"..."` struct tags,
// then stores it (as plain map[string]any) the same way SetPluginConfig
// does. Plugins that want struct-tag validation on their config - rather
// than a bare map - should construct one of these with defaults.Set applied
// first and pass it here instead of calling SetPluginConfig directly.
func (e *Engine) SetPluginConfigFromStruct(pluginName string, cfg any) error {
	if err := configValidator.Struct(cfg); err != nil {
		return coreerr.New(coreerr.KindInputValidation, "plugin config validation failed: "+err.Error())
	}

	encoded, err := json.Marshal(cfg)
	if err != nil {
		return coreerr.Internal("failed to encode plugin config", err)
	}
	var asMap map[string]any
	if err := json.Unmarshal(encoded, &asMap); err != nil {
		return coreerr.Internal("failed to decode plugin config", err)
	}

	e.SetPluginConfig(pluginName, asMap)
	return nil
}
